// Package store provides SQLite-backed persistence for visits and day
// summaries. A separate backfill process may write the same file, so
// every write goes through a bounded-backoff retry.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS visits (
	id        TEXT PRIMARY KEY,
	date      TEXT NOT NULL,
	tag       TEXT NOT NULL,
	type      TEXT NOT NULL,
	time_in   TEXT NOT NULL,
	time_out  TEXT,
	duration  INTEGER,
	leftover  INTEGER NOT NULL DEFAULT 0,
	notes     TEXT NOT NULL DEFAULT '',
	batch     TEXT NOT NULL,
	CHECK (time_in GLOB '[0-2][0-9]:[0-5][0-9]'),
	CHECK (time_out IS NULL OR time_out GLOB '[0-2][0-9]:[0-5][0-9]'),
	CHECK (time_out IS NULL OR time_out >= time_in)
);

CREATE INDEX IF NOT EXISTS idx_visits_date ON visits(date);
CREATE INDEX IF NOT EXISTS idx_visits_tag ON visits(date, tag);

CREATE TABLE IF NOT EXISTS days (
	date                TEXT PRIMARY KEY,
	parked_regular      INTEGER NOT NULL DEFAULT 0,
	parked_oversize     INTEGER NOT NULL DEFAULT 0,
	parked_total        INTEGER NOT NULL DEFAULT 0,
	leftover            INTEGER NOT NULL DEFAULT 0,
	max_regular         INTEGER NOT NULL DEFAULT 0,
	max_regular_time    TEXT,
	max_oversize        INTEGER NOT NULL DEFAULT 0,
	max_oversize_time   TEXT,
	max_total           INTEGER NOT NULL DEFAULT 0,
	max_total_time      TEXT,
	time_open           TEXT,
	time_closed         TEXT,
	weekday             INTEGER NOT NULL,
	registrations       INTEGER
);
`

// DB wraps a sql.DB with visit and day operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
// WAL mode and a busy timeout keep short interactive writes from
// colliding with the report and backfill readers.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
