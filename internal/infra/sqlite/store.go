// Package sqlite implements the quiz stores on a single SQLite file for
// single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS custom_quizzes (
	id         TEXT PRIMARY KEY,
	creator_id TEXT,
	data       TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS custom_quizzes_creator_idx ON custom_quizzes (creator_id, created_at);

CREATE TABLE IF NOT EXISTS quiz_configurations (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	settings   TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS quiz_configurations_user_idx ON quiz_configurations (user_id, created_at);
`

// DB is an open SQLite database with the quiz schema applied.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database file at path and applies the
// schema.
func Open(ctx context.Context, path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; appends are read-modify-write inside SQLite.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{db: db}, nil
}

// dsn applies the pragmas on every pooled connection.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "synchronous(NORMAL)")
	return "file:" + path + "?" + q.Encode()
}

func (d *DB) SQL() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Documents returns the custom quiz store.
func (d *DB) Documents() *DocumentStore {
	return &DocumentStore{db: d.db}
}

// Configurations returns the saved configuration store.
func (d *DB) Configurations() *ConfigurationStore {
	return &ConfigurationStore{db: d.db}
}
