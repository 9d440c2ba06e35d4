// Package publishlog keeps a local history of publish runs in SQLite.
package publishlog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SchemaVersion is the latest migration.
const SchemaVersion = 1

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// DB is the publish history database.
type DB struct {
	*sql.DB
	path string
}

// Run is one publish attempt.
type Run struct {
	ID         int64     `json:"id"`
	Strategy   string    `json:"strategy"` // "commit", "dispatch", "webhook"
	Target     string    `json:"target"`   // owner/repo@branch or hook host
	Actor      string    `json:"actor"`    // email of the admin who published
	Status     string    `json:"status"`
	CommitSHA  string    `json:"commit_sha,omitempty"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration is how long the run took.
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Open opens or creates the database at path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	pdb := &DB{DB: db, path: path}

	if err := pdb.migrate(); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return pdb, nil
}

func (db *DB) migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var current int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, `
			CREATE TABLE IF NOT EXISTS publish_runs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				strategy TEXT NOT NULL,
				target TEXT NOT NULL,
				actor TEXT NOT NULL,
				status TEXT NOT NULL,
				commit_sha TEXT,
				http_status INTEGER DEFAULT 0,
				error TEXT,
				started_at DATETIME NOT NULL,
				finished_at DATETIME NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_publish_runs_started ON publish_runs(started_at);
			CREATE INDEX IF NOT EXISTS idx_publish_runs_status ON publish_runs(status);
		`},
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		if _, err := db.Exec(m.sql); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", m.version, err)
		}

		if _, err := db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
	}

	return nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}
