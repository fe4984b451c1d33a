// Package category resolves a partition's two-level classification
// (type, optional subtype) to the color it is drawn with.
package category

import (
	"errors"
	"fmt"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
)

var (
	// ErrNotFound is wrapped by every NotFoundError.
	ErrNotFound = errors.New("category not found")
	// ErrSubtypeMismatch is returned when a subtype is paired with a type it
	// does not belong to, or with no type at all.
	ErrSubtypeMismatch = errors.New("subtype does not belong to type")
)

// Unclassified is the color of partitions that carry no type.
const Unclassified Color = "#9e9e9e"

// subtypeTint is how far a subtype without its own color is pulled toward white.
const subtypeTint = 0.35

// Category is a type id and an optional subtype id. A nil TypeID means unclassified.
type Category struct {
	TypeID    *int64 `json:"type_id,omitempty"`
	SubtypeID *int64 `json:"subtype_id,omitempty"`
}

// IsUnclassified reports whether no type is set.
func (c Category) IsUnclassified() bool {
	return c.TypeID == nil
}

// Equal compares ids by value.
func (c Category) Equal(o Category) bool {
	return sameID(c.TypeID, o.TypeID) && sameID(c.SubtypeID, o.SubtypeID)
}

func (c Category) String() string {
	switch {
	case c.TypeID == nil && c.SubtypeID == nil:
		return "unclassified"
	case c.SubtypeID == nil:
		return fmt.Sprintf("type %d", *c.TypeID)
	case c.TypeID == nil:
		return fmt.Sprintf("subtype %d", *c.SubtypeID)
	default:
		return fmt.Sprintf("type %d/%d", *c.TypeID, *c.SubtypeID)
	}
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ID returns a pointer to v, or nil when v <= 0. Stored rows and older
// exports use 0 (and sometimes negatives) to mean "none".
func ID(v int64) *int64 {
	if v <= 0 {
		return nil
	}
	return &v
}

// SanitizeID applies ID to an optional value.
func SanitizeID(v *int64) *int64 {
	if v == nil {
		return nil
	}
	return ID(*v)
}

// Color is a "#rrggbb" hex color.
type Color string

// ParseColor validates and normalizes a hex color.
func ParseColor(s string) (Color, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return "", fmt.Errorf("invalid color %q: %w", s, err)
	}
	return Color(c.Hex()), nil
}

// Blend mixes c toward other by t in [0,1] in Lab space.
func (c Color) Blend(other Color, t float64) Color {
	a, err := colorful.Hex(string(c))
	if err != nil {
		return c
	}
	b, err := colorful.Hex(string(other))
	if err != nil {
		return c
	}
	return Color(a.BlendLab(b, t).Clamped().Hex())
}

// NotFoundError names the id that has no catalog entry.
type NotFoundError struct {
	Kind string // "type" | "subtype"
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Kind, e.ID, ErrNotFound)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Resolver maps a Category to its Color.
type Resolver interface {
	Resolve(c Category) (Color, error)
}

// Type is a top-level classification.
type Type struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color Color  `json:"color"`
}

// Subtype refines a Type. An empty Color inherits a tint of the type color.
type Subtype struct {
	ID     int64  `json:"id"`
	TypeID int64  `json:"type_id"`
	Name   string `json:"name"`
	Color  Color  `json:"color,omitempty"`
}

// Catalog is an in-memory Resolver over a fixed set of types and subtypes.
type Catalog struct {
	types    map[int64]Type
	subtypes map[int64]Subtype
}

// NewCatalog indexes types and subtypes. Every subtype must reference a known
// type and every color must parse.
func NewCatalog(types []Type, subtypes []Subtype) (*Catalog, error) {
	c := &Catalog{
		types:    make(map[int64]Type, len(types)),
		subtypes: make(map[int64]Subtype, len(subtypes)),
	}
	for _, t := range types {
		if t.ID <= 0 {
			return nil, fmt.Errorf("type %q: id must be positive, got %d", t.Name, t.ID)
		}
		col, err := ParseColor(string(t.Color))
		if err != nil {
			return nil, fmt.Errorf("type %d: %w", t.ID, err)
		}
		t.Color = col
		c.types[t.ID] = t
	}
	for _, s := range subtypes {
		if s.ID <= 0 {
			return nil, fmt.Errorf("subtype %q: id must be positive, got %d", s.Name, s.ID)
		}
		if _, ok := c.types[s.TypeID]; !ok {
			return nil, fmt.Errorf("subtype %d: %w", s.ID, &NotFoundError{Kind: "type", ID: s.TypeID})
		}
		if s.Color != "" {
			col, err := ParseColor(string(s.Color))
			if err != nil {
				return nil, fmt.Errorf("subtype %d: %w", s.ID, err)
			}
			s.Color = col
		}
		c.subtypes[s.ID] = s
	}
	return c, nil
}

// Validate checks that the ids exist and the subtype belongs to the type.
func (c *Catalog) Validate(cat Category) error {
	_, err := c.Resolve(cat)
	return err
}

// Resolve returns the color for cat.
func (c *Catalog) Resolve(cat Category) (Color, error) {
	if cat.TypeID == nil {
		if cat.SubtypeID != nil {
			return "", fmt.Errorf("subtype %d without a type: %w", *cat.SubtypeID, ErrSubtypeMismatch)
		}
		return Unclassified, nil
	}
	t, ok := c.types[*cat.TypeID]
	if !ok {
		return "", &NotFoundError{Kind: "type", ID: *cat.TypeID}
	}
	if cat.SubtypeID == nil {
		return t.Color, nil
	}
	s, ok := c.subtypes[*cat.SubtypeID]
	if !ok {
		return "", &NotFoundError{Kind: "subtype", ID: *cat.SubtypeID}
	}
	if s.TypeID != t.ID {
		return "", fmt.Errorf("subtype %d under type %d: %w", s.ID, t.ID, ErrSubtypeMismatch)
	}
	if s.Color != "" {
		return s.Color, nil
	}
	return t.Color.Blend("#ffffff", subtypeTint), nil
}

// Types returns all types ordered by id.
func (c *Catalog) Types() []Type {
	out := make([]Type, 0, len(c.types))
	for _, t := range c.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Subtypes returns the subtypes of typeID ordered by id.
func (c *Catalog) Subtypes(typeID int64) []Subtype {
	var out []Subtype
	for _, s := range c.subtypes {
		if s.TypeID == typeID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
