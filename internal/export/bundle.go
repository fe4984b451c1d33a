// Package export renders a track to a shareable file and reads it back.
package export

import (
	"fmt"
	"time"

	"github.com/fakeyudi/partline/internal/category"
	"github.com/fakeyudi/partline/internal/partition"
	"github.com/fakeyudi/partline/internal/session"
	"github.com/fakeyudi/partline/internal/timeline"
)

// Bundle is the complete, renderable representation of one annotated track.
type Bundle struct {
	Session    SessionMeta        `json:"session"`
	Context    partition.Filter   `json:"context"`
	Range      timeline.Range     `json:"range"`
	Partitions []partition.Record `json:"partitions"`
	Types      []category.Type    `json:"types"`
	Subtypes   []category.Subtype `json:"subtypes"`
	Notes      []session.Note     `json:"notes"`
	Journal    []session.Entry    `json:"journal"`
}

// SessionMeta holds summary metadata about the session for the bundle.
type SessionMeta struct {
	ID         string    `json:"id"`
	StartTime  time.Time `json:"start_time"`
	ExportedAt time.Time `json:"exported_at"`
	Annotator  string    `json:"annotator,omitempty"`
}

// SetCatalog copies every type and subtype of cat into the bundle.
func (b *Bundle) SetCatalog(cat *category.Catalog) {
	b.Types = cat.Types()
	b.Subtypes = nil
	for _, t := range b.Types {
		b.Subtypes = append(b.Subtypes, cat.Subtypes(t.ID)...)
	}
}

// Catalog rebuilds the category catalog carried by the bundle.
func (b *Bundle) Catalog() (*category.Catalog, error) {
	return category.NewCatalog(b.Types, b.Subtypes)
}

// Records returns the partitions ready to be stored under another database:
// row ids and context keys are cleared so the target assigns its own.
func (b *Bundle) Records() []partition.Record {
	out := make([]partition.Record, len(b.Partitions))
	for i, r := range b.Partitions {
		r.ID = 0
		r.ContextID = ""
		out[i] = r
	}
	return out
}

// Validate checks that the partitions form a valid sequence over the range
// using the bundle's own categories.
func (b *Bundle) Validate() error {
	cat, err := b.Catalog()
	if err != nil {
		return fmt.Errorf("bundle categories: %w", err)
	}
	if _, err := partition.New(b.Range, b.Partitions, partition.WithResolver(cat)); err != nil {
		return fmt.Errorf("bundle partitions: %w", err)
	}
	return nil
}

// typeName returns the display name of c, or "unclassified".
func (b *Bundle) typeName(c category.Category) string {
	if c.IsUnclassified() {
		return "unclassified"
	}
	name := fmt.Sprintf("type %d", *c.TypeID)
	for _, t := range b.Types {
		if t.ID == *c.TypeID {
			name = t.Name
		}
	}
	if c.SubtypeID == nil {
		return name
	}
	for _, s := range b.Subtypes {
		if s.ID == *c.SubtypeID {
			return name + " / " + s.Name
		}
	}
	return fmt.Sprintf("%s / subtype %d", name, *c.SubtypeID)
}
