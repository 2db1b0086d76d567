package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("account not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	Create(ctx context.Context, a *Account) error
	ResetQuota(ctx context.Context, id uuid.UUID, quota int, resetAt time.Time) error
	DecrementQuota(ctx context.Context, id uuid.UUID) (bool, error)
	Upgrade(ctx context.Context, id uuid.UUID, txnID uuid.UUID) error
}

type postgresRepo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &postgresRepo{db: db}
}

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	query := `SELECT id, username, email, role, is_pro, upload_quota, quota_reset_at, created_at FROM accounts WHERE id = $1`

	var a Account
	var email sql.NullString
	var resetAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID,
		&a.Username,
		&email,
		&a.Role,
		&a.IsPro,
		&a.UploadQuota,
		&resetAt,
		&a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Email = email.String
	if resetAt.Valid {
		t := resetAt.Time
		a.QuotaResetAt = &t
	}
	return &a, nil
}

func (r *postgresRepo) Create(ctx context.Context, a *Account) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Role == "" {
		a.Role = RoleUser
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	var email sql.NullString
	if a.Email != "" {
		email = sql.NullString{String: a.Email, Valid: true}
	}
	var resetAt sql.NullTime
	if a.QuotaResetAt != nil {
		resetAt = sql.NullTime{Time: *a.QuotaResetAt, Valid: true}
	}

	query := `
		INSERT INTO accounts (id, username, email, role, is_pro, upload_quota, quota_reset_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Username, email, a.Role, a.IsPro, a.UploadQuota, resetAt, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// ResetQuota restores the upload allowance of a non-pro account.
func (r *postgresRepo) ResetQuota(ctx context.Context, id uuid.UUID, quota int, resetAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET upload_quota = $2, quota_reset_at = $3 WHERE id = $1 AND NOT is_pro`,
		id, quota, resetAt)
	return err
}

// DecrementQuota takes one upload from a non-pro account in a single
// statement. It reports false when nothing was left to take.
func (r *postgresRepo) DecrementQuota(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET upload_quota = upload_quota - 1 WHERE id = $1 AND NOT is_pro AND upload_quota > 0`,
		id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Upgrade marks the account pro and records a mock payment in one transaction.
func (r *postgresRepo) Upgrade(ctx context.Context, id uuid.UUID, txnID uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET is_pro = TRUE, upload_quota = $2 WHERE id = $1`, id, UnlimitedQuota)
	if err != nil {
		return fmt.Errorf("upgrade account: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO payments (account_id, amount, status, txn_id) VALUES ($1, $2, $3, $4)`,
		id, 0, "success (mock)", txnID); err != nil {
		return fmt.Errorf("record payment: %w", err)
	}
	return tx.Commit()
}
