// Package partition implements the partition timeline: an ordered, gap-free,
// non-overlapping sequence of labeled intervals that exactly covers one
// timeline.Range, together with the cut, edit, navigation, selection and
// reload operations that keep it that way.
//
// A Partitioner is not safe for concurrent use. It is meant to be driven from
// a single UI goroutine; background work must hand its results back to that
// goroutine before calling into the engine.
package partition

import (
	"fmt"
	"strings"
	"time"

	"github.com/fakeyudi/partline/internal/category"
	"github.com/fakeyudi/partline/internal/interaction"
)

// Label is the user-entered text of a partition.
type Label struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Body     string `json:"body"`
}

// Partition is one labeled interval [Start, End) of the timeline.
type Partition struct {
	// ID is the store row this partition was loaded from; 0 for partitions
	// created by a cut and not yet saved.
	ID          int64
	Start       time.Time
	End         time.Time
	Label       Label
	Category    category.Category
	Color       category.Color
	Interaction interaction.State
}

// Duration returns End - Start.
func (p Partition) Duration() time.Duration {
	return p.End.Sub(p.Start)
}

// Record projects the partition to its durable form.
func (p Partition) Record(contextID string) Record {
	end := p.End
	return Record{
		ID:        p.ID,
		Start:     p.Start,
		End:       &end,
		Title:     p.Label.Title,
		Subtitle:  p.Label.Subtitle,
		Body:      p.Label.Body,
		TypeID:    copyID(p.Category.TypeID),
		SubtypeID: copyID(p.Category.SubtypeID),
		ContextID: contextID,
	}
}

// Record is what the store reads and writes: a partition without interaction
// state. End is nil only for an open partition that ingestion closes at the
// next record's start.
type Record struct {
	ID        int64      `json:"id,omitempty"`
	Start     time.Time  `json:"start"`
	End       *time.Time `json:"end,omitempty"`
	Title     string     `json:"title"`
	Subtitle  string     `json:"subtitle,omitempty"`
	Body      string     `json:"body,omitempty"`
	TypeID    *int64     `json:"type_id,omitempty"`
	SubtypeID *int64     `json:"subtype_id,omitempty"`
	ContextID string     `json:"context_id"`
}

// Sanitize maps non-positive type and subtype ids to nil.
func (r Record) Sanitize() Record {
	r.TypeID = category.SanitizeID(r.TypeID)
	r.SubtypeID = category.SanitizeID(r.SubtypeID)
	return r
}

// Category returns the record's classification.
func (r Record) Category() category.Category {
	return category.Category{TypeID: copyID(r.TypeID), SubtypeID: copyID(r.SubtypeID)}
}

// Label returns the record's text.
func (r Record) Label() Label {
	return Label{Title: r.Title, Subtitle: r.Subtitle, Body: r.Body}
}

func copyID(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Filter selects which records a track shows. Empty fields match nothing in
// particular; the combination is the context key records are stored under.
type Filter struct {
	Experiment string `json:"experiment,omitempty"`
	Cohort     string `json:"cohort,omitempty"`
	Animal     string `json:"animal,omitempty"`
	Box        string `json:"box,omitempty"`
}

// ContextID returns the stable key stored on every record of this context.
func (f Filter) ContextID() string {
	parts := make([]string, 0, 4)
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	add("experiment", f.Experiment)
	add("cohort", f.Cohort)
	add("animal", f.Animal)
	add("box", f.Box)
	if len(parts) == 0 {
		return "default"
	}
	return strings.Join(parts, ";")
}

func (f Filter) String() string {
	return f.ContextID()
}

// Edit is the full replacement for one partition passed to ModifyPartition.
// Start and End must equal the partition's current bounds.
type Edit struct {
	Start    time.Time
	End      time.Time
	Label    Label
	Category category.Category
}

// EditOf returns an Edit that leaves p unchanged, for callers that only want
// to change a field or two.
func EditOf(p Partition) Edit {
	return Edit{Start: p.Start, End: p.End, Label: p.Label, Category: p.Category}
}

func (p Partition) String() string {
	return fmt.Sprintf("[%d, %d) %q", p.Start.UnixMilli(), p.End.UnixMilli(), p.Label.Title)
}
