package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fakeyudi/partline/internal/category"
	"github.com/fakeyudi/partline/internal/partition"
)

// ErrCatalogConflict is wrapped by every *ConflictError.
var ErrCatalogConflict = errors.New("conflicts with the stored catalog")

// ConflictError reports an imported type or subtype whose id is already
// stored with different fields.
type ConflictError struct {
	Kind     string // "type" or "subtype"
	ID       int64
	Stored   string
	Incoming string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("store: %s %d %s: stored %s, importing %s", e.Kind, e.ID, ErrCatalogConflict, e.Stored, e.Incoming)
}

func (e *ConflictError) Unwrap() error { return ErrCatalogConflict }

// Import adds the types and subtypes the catalog lacks and replaces the
// records of filter's context, all in one transaction. Existing catalog rows
// are never changed: an id already stored with different fields is a
// *ConflictError and nothing is written.
func (s *SQLite) Import(ctx context.Context, filter partition.Filter, types []category.Type,
	subtypes []category.Subtype, records []partition.Record) error {
	contextID := filter.ContextID()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin import for %s: %w", contextID, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for _, t := range types {
		if err := importType(ctx, tx, t); err != nil {
			return err
		}
	}
	for _, st := range subtypes {
		if err := importSubtype(ctx, tx, st); err != nil {
			return err
		}
	}
	if err := replaceRecords(ctx, tx, contextID, records); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit import for %s: %w", contextID, err)
	}
	return nil
}

func importType(ctx context.Context, tx *sql.Tx, t category.Type) error {
	if t.ID <= 0 {
		return fmt.Errorf("store: type id must be positive, got %d", t.ID)
	}
	col, err := category.ParseColor(string(t.Color))
	if err != nil {
		return fmt.Errorf("store: type %d: %w", t.ID, err)
	}

	var name, color string
	err = tx.QueryRowContext(ctx, "SELECT name, color FROM partition_types WHERE id = ?", t.ID).Scan(&name, &color)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, "INSERT INTO partition_types (id, name, color) VALUES (?, ?, ?)",
			t.ID, t.Name, string(col)); err != nil {
			return fmt.Errorf("store: insert type %d: %w", t.ID, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("store: look up type %d: %w", t.ID, err)
	}

	if name != t.Name || color != string(col) {
		return &ConflictError{
			Kind:     "type",
			ID:       t.ID,
			Stored:   fmt.Sprintf("%q %s", name, color),
			Incoming: fmt.Sprintf("%q %s", t.Name, col),
		}
	}
	return nil
}

func importSubtype(ctx context.Context, tx *sql.Tx, st category.Subtype) error {
	if st.ID <= 0 {
		return fmt.Errorf("store: subtype id must be positive, got %d", st.ID)
	}
	col := ""
	if st.Color != "" {
		c, err := category.ParseColor(string(st.Color))
		if err != nil {
			return fmt.Errorf("store: subtype %d: %w", st.ID, err)
		}
		col = string(c)
	}

	var (
		typeID      int64
		name, color string
	)
	err := tx.QueryRowContext(ctx, "SELECT type_id, name, color FROM partition_subtypes WHERE id = ?", st.ID).
		Scan(&typeID, &name, &color)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, "INSERT INTO partition_subtypes (id, type_id, name, color) VALUES (?, ?, ?, ?)",
			st.ID, st.TypeID, st.Name, col); err != nil {
			return fmt.Errorf("store: insert subtype %d: %w", st.ID, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("store: look up subtype %d: %w", st.ID, err)
	}

	if typeID != st.TypeID || name != st.Name || color != col {
		return &ConflictError{
			Kind:     "subtype",
			ID:       st.ID,
			Stored:   fmt.Sprintf("%q under type %d", name, typeID),
			Incoming: fmt.Sprintf("%q under type %d", st.Name, st.TypeID),
		}
	}
	return nil
}
