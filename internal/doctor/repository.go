package doctor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

var ErrNotFound = errors.New("doctor not found")

type Repository interface {
	ListBySpecialties(ctx context.Context, specialties []string, limit int) ([]Doctor, error)
	GetByID(ctx context.Context, id int64) (*Doctor, error)
	GetByIDs(ctx context.Context, ids []int64) ([]Doctor, error)
	Search(ctx context.Context, f SearchFilter) ([]Doctor, error)
	ReplaceAll(ctx context.Context, ds []Doctor) error
}

type postgresRepo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &postgresRepo{db: db}
}

const selectColumns = `SELECT id, name, primary_specialty, specialties, location_text, clinic_address, profile_image, notes FROM doctors`

func (r *postgresRepo) ListBySpecialties(ctx context.Context, specialties []string, limit int) ([]Doctor, error) {
	query := selectColumns + ` WHERE primary_specialty = ANY($1) ORDER BY id LIMIT $2`
	return r.list(ctx, query, pq.Array(specialties), limit)
}

func (r *postgresRepo) GetByID(ctx context.Context, id int64) (*Doctor, error) {
	ds, err := r.list(ctx, selectColumns+` WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(ds) == 0 {
		return nil, ErrNotFound
	}
	return &ds[0], nil
}

func (r *postgresRepo) GetByIDs(ctx context.Context, ids []int64) ([]Doctor, error) {
	if len(ids) == 0 {
		return []Doctor{}, nil
	}
	return r.list(ctx, selectColumns+` WHERE id = ANY($1) ORDER BY id`, pq.Array(ids))
}

func (r *postgresRepo) Search(ctx context.Context, f SearchFilter) ([]Doctor, error) {
	var (
		conds []string
		args  []any
	)
	if f.Name != "" {
		args = append(args, "%"+f.Name+"%")
		conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if f.Specialty != "" {
		args = append(args, f.Specialty)
		conds = append(conds, fmt.Sprintf("primary_specialty = $%d", len(args)))
	}
	if f.Location != "" {
		args = append(args, "%"+f.Location+"%")
		conds = append(conds, fmt.Sprintf("location_text ILIKE $%d", len(args)))
	}

	query := selectColumns
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY name"
	return r.list(ctx, query, args...)
}

// ReplaceAll swaps the whole directory in one transaction.
func (r *postgresRepo) ReplaceAll(ctx context.Context, ds []Doctor) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM doctors`); err != nil {
		return fmt.Errorf("clearing doctors: %w", err)
	}

	const insert = `
		INSERT INTO doctors (name, primary_specialty, specialties, location_text, clinic_address, profile_image, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, d := range ds {
		specialtiesJSON, err := json.Marshal(d.Specialties)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insert,
			d.Name, d.PrimarySpecialty, specialtiesJSON, d.LocationText, d.ClinicAddress, d.ProfileImage, d.Notes); err != nil {
			return fmt.Errorf("inserting doctor %q: %w", d.Name, err)
		}
	}
	return tx.Commit()
}

func (r *postgresRepo) list(ctx context.Context, query string, args ...any) ([]Doctor, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ds := []Doctor{}
	for rows.Next() {
		var (
			d               Doctor
			specialtiesJSON []byte
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.PrimarySpecialty, &specialtiesJSON,
			&d.LocationText, &d.ClinicAddress, &d.ProfileImage, &d.Notes); err != nil {
			return nil, err
		}
		if len(specialtiesJSON) > 0 {
			if err := json.Unmarshal(specialtiesJSON, &d.Specialties); err != nil {
				return nil, fmt.Errorf("failed to unmarshal specialties: %w", err)
			}
		}
		ds = append(ds, d)
	}
	return ds, rows.Err()
}
