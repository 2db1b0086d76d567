package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	connectAttempts = 10
	connectBackoff  = 2 * time.Second
)

// Open connects to the database, retrying while it comes up.
func Open(ctx context.Context, url string, log *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for i := 1; i <= connectAttempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			log.Info("connected to database")
			return db, nil
		}
		log.Warn("waiting for database", zap.Int("attempt", i), zap.Int("of", connectAttempts), zap.Error(err))

		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
	db.Close()
	return nil, fmt.Errorf("database unreachable after %d attempts: %w", connectAttempts, err)
}

// Migrate applies migrations from source ("file://migrations") to dbURL.
// Down rolls everything back instead.
func Migrate(source, dbURL string, down bool, log *zap.Logger) error {
	m, err := migrate.New(source, dbURL)
	if err != nil {
		return fmt.Errorf("migration init: %w", err)
	}
	defer m.Close()

	if down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("migrations already current")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration: %w", err)
	}
	log.Info("migrations applied", zap.Bool("down", down))
	return nil
}
