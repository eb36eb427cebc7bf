// Package data implements filesystem-rooted persistence for jobs and tasks
// on top of SQLite.
package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id                   TEXT PRIMARY KEY,
    event_name           TEXT NOT NULL,
    announced_event_name TEXT NOT NULL DEFAULT '',
    event_date           TEXT NOT NULL,
    certificate_type     TEXT NOT NULL,
    output_dir           TEXT NOT NULL,
    created_at           DATETIME NOT NULL,
    completed_at         DATETIME
);

CREATE TABLE IF NOT EXISTS tasks (
    id               TEXT PRIMARY KEY,
    job_id           TEXT NOT NULL REFERENCES jobs(id),
    recipient_name   TEXT NOT NULL,
    recipient_email  TEXT NOT NULL,
    state            TEXT NOT NULL DEFAULT 'pending',
    convert_attempts INTEGER NOT NULL DEFAULT 0,
    send_attempts    INTEGER NOT NULL DEFAULT 0,
    error_kind       TEXT NOT NULL DEFAULT '',
    error_message    TEXT NOT NULL DEFAULT '',
    document_path    TEXT NOT NULL DEFAULT '',
    sent_at          DATETIME,
    created_at       DATETIME NOT NULL,
    updated_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_job_id ON tasks(job_id);
CREATE INDEX IF NOT EXISTS idx_tasks_state  ON tasks(state);
`

// Open opens (creating if necessary) the SQLite database at dbPath and
// initialises the schema. The parent directory is created on demand.
func Open(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialise schema: %w", err)
	}

	return db, nil
}
