package publishlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Record stores a run and sets its ID.
func (db *DB) Record(ctx context.Context, run *Run) error {
	result, err := db.ExecContext(ctx, `
		INSERT INTO publish_runs (strategy, target, actor, status, commit_sha, http_status, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.Strategy, run.Target, run.Actor, run.Status, run.CommitSHA, run.HTTPStatus, run.Error,
		run.StartedAt.UTC(), run.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save publish run: %w", err)
	}

	id, err := result.LastInsertId()
	if err == nil {
		run.ID = id
	}

	return nil
}

const selectRuns = `
	SELECT id, strategy, target, actor, status, COALESCE(commit_sha, ''), http_status,
		COALESCE(error, ''), started_at, finished_at
	FROM publish_runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run

	err := s.Scan(&r.ID, &r.Strategy, &r.Target, &r.Actor, &r.Status, &r.CommitSHA,
		&r.HTTPStatus, &r.Error, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		return nil, err
	}

	return &r, nil
}

// Get returns a run by ID, or nil when it does not exist.
func (db *DB) Get(ctx context.Context, id int64) (*Run, error) {
	r, err := scanRun(db.QueryRowContext(ctx, selectRuns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get publish run: %w", err)
	}

	return r, nil
}

// List returns the most recent runs first. A status filters when non-empty;
// limit <= 0 returns everything.
func (db *DB) List(ctx context.Context, status string, limit int) ([]Run, error) {
	query := selectRuns
	args := []any{}

	if status != "" {
		query += " WHERE status = ?"

		args = append(args, status)
	}

	query += " ORDER BY started_at DESC, id DESC"

	if limit > 0 {
		query += " LIMIT ?"

		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list publish runs: %w", err)
	}

	defer func() { _ = rows.Close() }()

	var runs []Run

	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan publish run: %w", err)
		}

		runs = append(runs, *r)
	}

	return runs, rows.Err()
}

// Latest returns the most recent run, or nil when there is none.
func (db *DB) Latest(ctx context.Context) (*Run, error) {
	runs, err := db.List(ctx, "", 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}

	return &runs[0], nil
}

// Stats counts runs by status.
func (db *DB) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, "SELECT status, COUNT(*) FROM publish_runs GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count publish runs: %w", err)
	}

	defer func() { _ = rows.Close() }()

	stats := map[string]int{}

	for rows.Next() {
		var (
			status string
			n      int
		)

		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}

		stats[status] = n
	}

	return stats, rows.Err()
}
