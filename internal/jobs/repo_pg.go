package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new run.
func (r *PGRepo) Create(ctx context.Context, run Run) error {
	const query = `
INSERT INTO analysis_runs (
	id, kind, query, provider, model, status, total_count, completed_count, results, error_message, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	results, err := marshalResults(run.Results)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		run.ID,
		run.Kind,
		run.Query,
		run.Provider,
		run.Model,
		run.Status,
		run.TotalCount,
		run.CompletedCount,
		results,
		nullableString(run.ErrorMessage),
		run.CreatedAt,
	)
	return err
}

// Finish records a run's terminal state and results.
func (r *PGRepo) Finish(ctx context.Context, id, status string, total, completed int, results json.RawMessage, errorMessage string, finishedAt time.Time) error {
	const query = `
UPDATE analysis_runs
SET status = $2, total_count = $3, completed_count = $4, results = $5, error_message = $6, finished_at = $7
WHERE id = $1`
	payload, err := marshalResults(results)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, query, id, status, total, completed, payload, nullableString(errorMessage), finishedAt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID returns a run by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Run, error) {
	const query = `
SELECT id, kind, query, provider, model, status, total_count, completed_count, results, error_message, created_at, finished_at
FROM analysis_runs
WHERE id = $1
LIMIT 1`
	row := r.DB.QueryRowContext(ctx, query, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return run, err
}

// List returns runs newest-first.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT id, kind, query, provider, model, status, total_count, completed_count, results, error_message, created_at, finished_at
FROM analysis_runs
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var query sql.NullString
	var results sql.NullString
	var errorMessage sql.NullString
	var finishedAt sql.NullTime

	err := row.Scan(
		&run.ID,
		&run.Kind,
		&query,
		&run.Provider,
		&run.Model,
		&run.Status,
		&run.TotalCount,
		&run.CompletedCount,
		&results,
		&errorMessage,
		&run.CreatedAt,
		&finishedAt,
	)
	if err != nil {
		return Run{}, err
	}
	run.Query = query.String
	if results.Valid && results.String != "" {
		run.Results = json.RawMessage(results.String)
	}
	run.ErrorMessage = errorMessage.String
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return run, nil
}

func marshalResults(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, errors.New("results payload is not valid JSON")
	}
	return string(raw), nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Repo = (*PGRepo)(nil)
