// Package query stores the history of AI analyses per account.
package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Input types recorded with each query.
const (
	InputText   = "text"
	InputImage  = "image"
	InputPDF    = "pdf"
	InputTriage = "triage"
)

var ErrNotFound = errors.New("query not found")

// Record is one persisted analysis. RawResponse holds the JSON object
// extracted from the model reply.
type Record struct {
	ID               uuid.UUID `json:"id"`
	AccountID        uuid.UUID `json:"account_id"`
	InputType        string    `json:"input_type"`
	FilePath         string    `json:"file_path,omitempty"`
	UserText         string    `json:"user_text,omitempty"`
	RawResponse      string    `json:"raw_response"`
	MatchedDoctorIDs []int64   `json:"matched_doctor_ids"`
	CreatedAt        time.Time `json:"created_at"`
}

type Repository interface {
	Save(ctx context.Context, rec *Record) error
	SetMatchedDoctors(ctx context.Context, id uuid.UUID, doctorIDs []int64) error
	GetForAccount(ctx context.Context, accountID, id uuid.UUID) (*Record, error)
	Recent(ctx context.Context, accountID uuid.UUID, limit int) ([]Record, error)
}

type postgresRepo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &postgresRepo{db: db}
}

const recordColumns = `id, account_id, input_type, file_path, user_text, raw_response, matched_doctor_ids, created_at`

// Save inserts rec, assigning its ID and CreatedAt when unset.
func (r *postgresRepo) Save(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.MatchedDoctorIDs == nil {
		rec.MatchedDoctorIDs = []int64{}
	}
	idsJSON, err := json.Marshal(rec.MatchedDoctorIDs)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO queries (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.AccountID, rec.InputType, rec.FilePath, rec.UserText, rec.RawResponse, idsJSON, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert query: %w", err)
	}
	return nil
}

func (r *postgresRepo) SetMatchedDoctors(ctx context.Context, id uuid.UUID, doctorIDs []int64) error {
	if doctorIDs == nil {
		doctorIDs = []int64{}
	}
	idsJSON, err := json.Marshal(doctorIDs)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `UPDATE queries SET matched_doctor_ids = $2 WHERE id = $1`, id, idsJSON)
	if err != nil {
		return fmt.Errorf("update matched doctors: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetForAccount returns the record only when it belongs to accountID.
func (r *postgresRepo) GetForAccount(ctx context.Context, accountID, id uuid.UUID) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM queries WHERE id = $1 AND account_id = $2`
	recs, err := r.list(ctx, query, id, accountID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return &recs[0], nil
}

// Recent returns the account's newest records first.
func (r *postgresRepo) Recent(ctx context.Context, accountID uuid.UUID, limit int) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM queries WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, query, accountID, limit)
}

func (r *postgresRepo) list(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := []Record{}
	for rows.Next() {
		var rec Record
		var idsJSON []byte
		if err := rows.Scan(
			&rec.ID,
			&rec.AccountID,
			&rec.InputType,
			&rec.FilePath,
			&rec.UserText,
			&rec.RawResponse,
			&idsJSON,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		rec.MatchedDoctorIDs = []int64{}
		if len(idsJSON) > 0 {
			if err := json.Unmarshal(idsJSON, &rec.MatchedDoctorIDs); err != nil {
				return nil, fmt.Errorf("failed to unmarshal matched doctor ids: %w", err)
			}
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
