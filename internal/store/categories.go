package store

import (
	"context"
	"fmt"

	"github.com/fakeyudi/partline/internal/category"
)

// PutType inserts or updates a partition type.
func (s *SQLite) PutType(ctx context.Context, t category.Type) error {
	if t.ID <= 0 {
		return fmt.Errorf("store: type id must be positive, got %d", t.ID)
	}
	col, err := category.ParseColor(string(t.Color))
	if err != nil {
		return fmt.Errorf("store: type %d: %w", t.ID, err)
	}
	const q = `
		INSERT INTO partition_types (id, name, color) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, color = excluded.color`
	if _, err := s.db.ExecContext(ctx, q, t.ID, t.Name, string(col)); err != nil {
		return fmt.Errorf("store: put type %d: %w", t.ID, err)
	}
	return nil
}

// PutSubtype inserts or updates a subtype. Its type must already exist.
func (s *SQLite) PutSubtype(ctx context.Context, st category.Subtype) error {
	if st.ID <= 0 {
		return fmt.Errorf("store: subtype id must be positive, got %d", st.ID)
	}
	color := ""
	if st.Color != "" {
		col, err := category.ParseColor(string(st.Color))
		if err != nil {
			return fmt.Errorf("store: subtype %d: %w", st.ID, err)
		}
		color = string(col)
	}
	const q = `
		INSERT INTO partition_subtypes (id, type_id, name, color) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET type_id = excluded.type_id, name = excluded.name, color = excluded.color`
	if _, err := s.db.ExecContext(ctx, q, st.ID, st.TypeID, st.Name, color); err != nil {
		return fmt.Errorf("store: put subtype %d: %w", st.ID, err)
	}
	return nil
}

// Catalog loads every type and subtype into a category.Catalog.
func (s *SQLite) Catalog(ctx context.Context) (*category.Catalog, error) {
	types, err := s.types(ctx)
	if err != nil {
		return nil, err
	}
	subtypes, err := s.subtypes(ctx)
	if err != nil {
		return nil, err
	}
	cat, err := category.NewCatalog(types, subtypes)
	if err != nil {
		return nil, fmt.Errorf("store: build catalog: %w", err)
	}
	return cat, nil
}

func (s *SQLite) types(ctx context.Context) ([]category.Type, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, color FROM partition_types ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("store: list types: %w", err)
	}
	defer rows.Close()

	var out []category.Type
	for rows.Next() {
		var t category.Type
		var color string
		if err := rows.Scan(&t.ID, &t.Name, &color); err != nil {
			return nil, fmt.Errorf("store: scan type: %w", err)
		}
		t.Color = category.Color(color)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLite) subtypes(ctx context.Context) ([]category.Subtype, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, type_id, name, color FROM partition_subtypes ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("store: list subtypes: %w", err)
	}
	defer rows.Close()

	var out []category.Subtype
	for rows.Next() {
		var st category.Subtype
		var color string
		if err := rows.Scan(&st.ID, &st.TypeID, &st.Name, &color); err != nil {
			return nil, fmt.Errorf("store: scan subtype: %w", err)
		}
		st.Color = category.Color(color)
		out = append(out, st)
	}
	return out, rows.Err()
}
