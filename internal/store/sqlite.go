// Package store persists partition records and the category catalog in a
// local SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/fakeyudi/partline/internal/category"
	"github.com/fakeyudi/partline/internal/partition"
	"github.com/fakeyudi/partline/internal/timeline"
)

// schema is executed on every open; IF NOT EXISTS keeps it idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS partition_types (
    id    INTEGER PRIMARY KEY,
    name  TEXT NOT NULL,
    color TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS partition_subtypes (
    id      INTEGER PRIMARY KEY,
    type_id INTEGER NOT NULL REFERENCES partition_types(id),
    name    TEXT NOT NULL,
    color   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS partitions (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    context_id TEXT NOT NULL,
    start_ms   INTEGER NOT NULL,
    end_ms     INTEGER,
    title      TEXT NOT NULL DEFAULT '',
    subtitle   TEXT NOT NULL DEFAULT '',
    body       TEXT NOT NULL DEFAULT '',
    type_id    INTEGER,
    subtype_id INTEGER,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(context_id, start_ms)
);

CREATE INDEX IF NOT EXISTS partitions_context ON partitions(context_id, start_ms);
`

// Compile-time check that SQLite can back a Partitioner.
var _ partition.Gateway = (*SQLite)(nil)

// SQLite implements partition.Gateway over a single SQLite file in WAL mode.
type SQLite struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database at path and ensures the schema exists.
// The parent directory is created when missing.
func Open(ctx context.Context, path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// SQLite has a single writer; one connection also keeps an in-memory
	// database alive for the lifetime of the store.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &SQLite{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLite) Path() string { return s.path }

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// LoadRecords returns the records of filter's context ordered by start.
// Non-positive type and subtype ids come back as nil.
func (s *SQLite) LoadRecords(ctx context.Context, filter partition.Filter) ([]partition.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, context_id, start_ms, end_ms, title, subtitle, body, type_id, subtype_id
		FROM partitions
		WHERE context_id = ?
		ORDER BY start_ms ASC`, filter.ContextID())
	if err != nil {
		return nil, fmt.Errorf("store: load records for %s: %w", filter.ContextID(), err)
	}
	defer rows.Close()

	var records []partition.Record
	for rows.Next() {
		var (
			r               partition.Record
			startMS         int64
			endMS           sql.NullInt64
			typeID, subtype sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.ContextID, &startMS, &endMS, &r.Title, &r.Subtitle, &r.Body,
			&typeID, &subtype); err != nil {
			return nil, fmt.Errorf("store: scan record: %w", err)
		}
		r.Start = timeline.FromMillis(startMS)
		if endMS.Valid {
			end := timeline.FromMillis(endMS.Int64)
			r.End = &end
		}
		if typeID.Valid {
			r.TypeID = category.ID(typeID.Int64)
		}
		if subtype.Valid {
			r.SubtypeID = category.ID(subtype.Int64)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate records: %w", err)
	}
	return records, nil
}

// SaveRecords replaces every record of filter's context with records in a
// single transaction.
func (s *SQLite) SaveRecords(ctx context.Context, filter partition.Filter, records []partition.Record) error {
	contextID := filter.ContextID()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx for %s: %w", contextID, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if err := replaceRecords(ctx, tx, contextID, records); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit records for %s: %w", contextID, err)
	}
	return nil
}

func replaceRecords(ctx context.Context, tx *sql.Tx, contextID string, records []partition.Record) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM partitions WHERE context_id = ?", contextID); err != nil {
		return fmt.Errorf("store: clear records for %s: %w", contextID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO partitions (id, context_id, start_ms, end_ms, title, subtitle, body, type_id, subtype_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare record insert: %w", err)
	}
	defer stmt.Close()

	for _, raw := range records {
		r := raw.Sanitize()
		var id, endMS any
		if r.ID > 0 {
			id = r.ID
		}
		if r.End != nil {
			endMS = timeline.Millis(*r.End)
		}
		if _, err := stmt.ExecContext(ctx, id, contextID, timeline.Millis(r.Start), endMS,
			r.Title, r.Subtitle, r.Body, nullableID(r.TypeID), nullableID(r.SubtypeID)); err != nil {
			return fmt.Errorf("store: insert record at %d for %s: %w", timeline.Millis(r.Start), contextID, err)
		}
	}
	return nil
}

func nullableID(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// ContextSummary is one stored context and how many records it holds.
type ContextSummary struct {
	ContextID string
	Records   int
}

// Contexts lists every context that has stored records.
func (s *SQLite) Contexts(ctx context.Context) ([]ContextSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT context_id, COUNT(*) FROM partitions GROUP BY context_id ORDER BY context_id")
	if err != nil {
		return nil, fmt.Errorf("store: list contexts: %w", err)
	}
	defer rows.Close()

	var out []ContextSummary
	for rows.Next() {
		var c ContextSummary
		if err := rows.Scan(&c.ContextID, &c.Records); err != nil {
			return nil, fmt.Errorf("store: scan context: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
