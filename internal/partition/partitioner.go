package partition

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fakeyudi/partline/internal/category"
	"github.com/fakeyudi/partline/internal/interaction"
	"github.com/fakeyudi/partline/internal/timeline"
)

// Gateway loads and stores the records of one context.
// SaveRecords must commit the whole batch or nothing.
type Gateway interface {
	LoadRecords(ctx context.Context, filter Filter) ([]Record, error)
	SaveRecords(ctx context.Context, filter Filter, records []Record) error
}

// Option configures a Partitioner.
type Option func(*Partitioner)

// WithResolver sets the category color lookup.
func WithResolver(r category.Resolver) Option {
	return func(p *Partitioner) { p.resolver = r }
}

// WithGateway sets where SavePartitionsToDatabase writes.
func WithGateway(g Gateway) Option {
	return func(p *Partitioner) { p.gateway = g }
}

// WithFilter sets the context the partitions belong to.
func WithFilter(f Filter) Option {
	return func(p *Partitioner) { p.filter = f }
}

// WithPolicy sets the selection policy.
func WithPolicy(pol interaction.Policy) Option {
	return func(p *Partitioner) { p.policy = pol }
}

// WithLogger sets the logger. If nil, slog.Default() is used.
func WithLogger(l *slog.Logger) Option {
	return func(p *Partitioner) { p.logger = l }
}

// Partitioner owns the partition sequence of one track and is the only thing
// allowed to change it.
type Partitioner struct {
	rng      timeline.Range
	filter   Filter
	parts    []Partition
	resolver category.Resolver
	gateway  Gateway
	policy   interaction.Policy
	logger   *slog.Logger

	// rangeFilter is the active deemphasis window, nil when none.
	rangeFilter *timeline.Range
}

// New builds a Partitioner over rng from records. With no records the track
// starts as a single unclassified partition spanning rng. Records that do not
// already form a valid sequence over rng are rejected with a *ValidationError.
func New(rng timeline.Range, records []Record, opts ...Option) (*Partitioner, error) {
	p := &Partitioner{rng: rng, resolver: unresolved{}}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With(slog.String("component", "partitioner"))

	parts, err := p.build(records)
	if err != nil {
		return nil, err
	}
	p.parts = parts
	p.logger.Debug("partitioner ready",
		slog.String("context", p.filter.ContextID()),
		slog.Int("partitions", len(parts)),
		slog.String("range", rng.String()))
	return p, nil
}

// build turns records into a complete partition sequence without touching p.parts.
func (p *Partitioner) build(records []Record) ([]Partition, error) {
	if p.rng.IsEmpty() {
		return nil, ErrEmptyRange
	}
	if !timeline.IsWholeMillis(p.rng.Start) || !timeline.IsWholeMillis(p.rng.End) {
		return nil, fmt.Errorf("range %s: %w", p.rng, timeline.ErrSubMillisecond)
	}
	if len(records) == 0 {
		color, err := p.resolver.Resolve(category.Category{})
		if err != nil {
			return nil, &ValidationError{Index: 0, Reason: "unclassified category", Err: err}
		}
		return []Partition{{Start: p.rng.Start, End: p.rng.End, Color: color}}, nil
	}

	parts := make([]Partition, 0, len(records))
	for i, raw := range records {
		r := raw.Sanitize()

		var end time.Time
		switch {
		case r.End != nil:
			end = *r.End
		case i+1 < len(records):
			end = records[i+1].Start
		default:
			end = p.rng.End
		}

		if !timeline.IsWholeMillis(r.Start) || !timeline.IsWholeMillis(end) {
			return nil, &ValidationError{Index: i, Reason: "bounds finer than a millisecond", Err: timeline.ErrSubMillisecond}
		}
		if i == 0 && !r.Start.Equal(p.rng.Start) {
			return nil, &ValidationError{Index: i, Reason: fmt.Sprintf("first start %d does not match range start %d",
				r.Start.UnixMilli(), p.rng.Start.UnixMilli())}
		}
		if !r.Start.Before(end) {
			return nil, &ValidationError{Index: i, Reason: fmt.Sprintf("start %d is not before end %d",
				r.Start.UnixMilli(), end.UnixMilli())}
		}
		if i > 0 {
			prev := parts[i-1]
			if !prev.Start.Before(r.Start) {
				return nil, &ValidationError{Index: i, Reason: "records are not sorted by start"}
			}
			if !prev.End.Equal(r.Start) {
				kind := "gap"
				if prev.End.After(r.Start) {
					kind = "overlap"
				}
				return nil, &ValidationError{Index: i, Reason: fmt.Sprintf("%s between %d and %d",
					kind, prev.End.UnixMilli(), r.Start.UnixMilli())}
			}
		}

		cat := r.Category()
		color, err := p.resolver.Resolve(cat)
		if err != nil {
			return nil, &ValidationError{Index: i, Reason: "category " + cat.String(), Err: err}
		}
		parts = append(parts, Partition{
			ID:       r.ID,
			Start:    r.Start,
			End:      end,
			Label:    r.Label(),
			Category: cat,
			Color:    color,
		})
	}

	last := parts[len(parts)-1]
	if !last.End.Equal(p.rng.End) {
		return nil, &ValidationError{Index: len(parts) - 1, Reason: fmt.Sprintf("last end %d does not match range end %d",
			last.End.UnixMilli(), p.rng.End.UnixMilli())}
	}
	return parts, nil
}

// Range returns the span the partitions cover.
func (p *Partitioner) Range() timeline.Range { return p.rng }

// Filter returns the context the partitions belong to.
func (p *Partitioner) Filter() Filter { return p.filter }

// Policy returns the selection policy.
func (p *Partitioner) Policy() interaction.Policy { return p.policy }

// Len returns the number of partitions.
func (p *Partitioner) Len() int { return len(p.parts) }

// Partitions returns a copy of the ordered sequence. Indices into it are valid
// until the next cut or reload.
func (p *Partitioner) Partitions() []Partition {
	out := make([]Partition, len(p.parts))
	copy(out, p.parts)
	return out
}

// At returns the partition at index.
func (p *Partitioner) At(index int) (Partition, bool) {
	if index < 0 || index >= len(p.parts) {
		return Partition{}, false
	}
	return p.parts[index], true
}

// IndexAt returns the index of the partition containing t, treating each
// partition as [Start, End) except the last, which also owns the range end.
func (p *Partitioner) IndexAt(t time.Time) (int, bool) {
	if !p.rng.Contains(t) {
		return 0, false
	}
	for i, part := range p.parts {
		if t.Before(part.End) {
			return i, true
		}
	}
	return len(p.parts) - 1, true
}

// CutPartition splits partition index at the instant at. Both halves keep the
// label and category. at must lie strictly inside the partition and be a
// whole millisecond, the resolution the store keeps. Every index
// after index shifts by one on success; nothing changes on failure.
func (p *Partitioner) CutPartition(index int, at time.Time) error {
	if index < 0 || index >= len(p.parts) {
		return &CutError{Index: index, At: at, Err: ErrInvalidIndex}
	}
	orig := p.parts[index]
	if !orig.Start.Before(at) || !at.Before(orig.End) {
		return &CutError{Index: index, At: at, Err: ErrOutOfRange}
	}
	if !timeline.IsWholeMillis(at) {
		return &CutError{Index: index, At: at, Err: timeline.ErrSubMillisecond}
	}

	left := orig
	left.End = at
	right := orig
	right.ID = 0
	right.Start = at
	right.Interaction = interaction.State{Hover: p.baseHover(right)}

	next := make([]Partition, 0, len(p.parts)+1)
	next = append(next, p.parts[:index]...)
	next = append(next, left, right)
	next = append(next, p.parts[index+1:]...)
	p.parts = next

	p.logger.Debug("cut partition",
		slog.Int("index", index),
		slog.Int64("at_ms", at.UnixMilli()),
		slog.Int("partitions", len(p.parts)))
	return nil
}

// ModifyPartition replaces the label and category of partition index. The
// bounds in e must equal the current bounds: moving a boundary here would
// break contiguity with a neighbour, so it is refused.
func (p *Partitioner) ModifyPartition(index int, e Edit) error {
	if index < 0 || index >= len(p.parts) {
		return &ModifyError{Index: index, Err: ErrInvalidIndex}
	}
	cur := p.parts[index]
	if !e.Start.Equal(cur.Start) || !e.End.Equal(cur.End) {
		return &ModifyError{Index: index, Err: fmt.Errorf("%w: [%d, %d) -> [%d, %d)", ErrWouldViolateContiguity,
			cur.Start.UnixMilli(), cur.End.UnixMilli(), e.Start.UnixMilli(), e.End.UnixMilli())}
	}
	cat := category.Category{
		TypeID:    category.SanitizeID(e.Category.TypeID),
		SubtypeID: category.SanitizeID(e.Category.SubtypeID),
	}
	color, err := p.resolver.Resolve(cat)
	if err != nil {
		return &ModifyError{Index: index, Err: err}
	}

	cur.Label = e.Label
	cur.Category = cat
	cur.Color = color
	p.parts[index] = cur

	p.logger.Debug("modified partition", slog.Int("index", index), slog.String("category", cat.String()))
	return nil
}

// FindNextEvent returns the first partition that starts after the given instant.
func (p *Partitioner) FindNextEvent(after time.Time) (int, Partition, bool) {
	for i, part := range p.parts {
		if part.Start.After(after) {
			return i, part, true
		}
	}
	return -1, Partition{}, false
}

// FindPreviousEvent returns the last partition that ends before the given instant.
func (p *Partitioner) FindPreviousEvent(before time.Time) (int, Partition, bool) {
	found := -1
	for i, part := range p.parts {
		if !part.End.Before(before) {
			break
		}
		found = i
	}
	if found < 0 {
		return -1, Partition{}, false
	}
	return found, p.parts[found], true
}

// OnReloadPartitionRecords replaces every partition with ones built from
// records. The new sequence is built completely before it is swapped in; if
// records are invalid the current sequence is kept and the error returned.
// Interaction state, including any range filter, is reset.
func (p *Partitioner) OnReloadPartitionRecords(records []Record) error {
	parts, err := p.build(records)
	if err != nil {
		p.logger.Error("reload rejected", slog.String("error", err.Error()))
		return err
	}
	p.parts = parts
	p.rangeFilter = nil
	p.logger.Debug("reloaded partitions", slog.Int("partitions", len(parts)))
	return nil
}

// SwitchContext moves the partitioner to another context and rebuilds it from
// that context's records. Like a reload, either both the filter and the
// sequence change or neither does.
func (p *Partitioner) SwitchContext(filter Filter, records []Record) error {
	parts, err := p.build(records)
	if err != nil {
		p.logger.Error("context switch rejected",
			slog.String("from", p.filter.ContextID()),
			slog.String("to", filter.ContextID()),
			slog.String("error", err.Error()))
		return err
	}
	p.filter = filter
	p.parts = parts
	p.rangeFilter = nil
	p.logger.Debug("switched context", slog.String("context", filter.ContextID()), slog.Int("partitions", len(parts)))
	return nil
}

// Records projects every partition to a Record for the current context.
func (p *Partitioner) Records() []Record {
	id := p.filter.ContextID()
	out := make([]Record, len(p.parts))
	for i, part := range p.parts {
		out[i] = part.Record(id)
	}
	return out
}

// SavePartitionsToDatabase writes every partition through the gateway as one
// batch. A failed save does not roll back in-memory edits; the caller decides
// whether to retry or reload.
func (p *Partitioner) SavePartitionsToDatabase(ctx context.Context) error {
	if p.gateway == nil {
		return ErrNoGateway
	}
	records := p.Records()
	if err := p.gateway.SaveRecords(ctx, p.filter, records); err != nil {
		p.logger.Error("save failed",
			slog.String("context", p.filter.ContextID()),
			slog.Int("records", len(records)),
			slog.String("error", err.Error()))
		return fmt.Errorf("saving %d partitions for %s: %w", len(records), p.filter.ContextID(), err)
	}
	p.logger.Debug("saved partitions", slog.String("context", p.filter.ContextID()), slog.Int("records", len(records)))
	return nil
}

// Coverage returns the summed duration of all partitions.
func (p *Partitioner) Coverage() time.Duration {
	var d time.Duration
	for _, part := range p.parts {
		d += part.Duration()
	}
	return d
}

// Validate re-checks every sequence invariant against the range.
func (p *Partitioner) Validate() error {
	return checkSequence(p.rng, p.parts)
}

func checkSequence(rng timeline.Range, parts []Partition) error {
	if len(parts) == 0 {
		if rng.IsEmpty() {
			return nil
		}
		return &ValidationError{Index: 0, Reason: "no partitions over a non-empty range"}
	}
	if !parts[0].Start.Equal(rng.Start) {
		return &ValidationError{Index: 0, Reason: "first start does not match range start"}
	}
	for i, part := range parts {
		if !part.Start.Before(part.End) {
			return &ValidationError{Index: i, Reason: "zero-length or inverted partition"}
		}
		if i > 0 {
			if !parts[i-1].Start.Before(part.Start) {
				return &ValidationError{Index: i, Reason: "not sorted by start"}
			}
			if !parts[i-1].End.Equal(part.Start) {
				return &ValidationError{Index: i, Reason: "not contiguous with previous partition"}
			}
		}
	}
	if !parts[len(parts)-1].End.Equal(rng.End) {
		return &ValidationError{Index: len(parts) - 1, Reason: "last end does not match range end"}
	}
	return nil
}

// unresolved colors only the unclassified category; any typed category is
// reported as not found.
type unresolved struct{}

func (unresolved) Resolve(c category.Category) (category.Color, error) {
	if c.TypeID == nil && c.SubtypeID == nil {
		return category.Unclassified, nil
	}
	if c.TypeID != nil {
		return "", &category.NotFoundError{Kind: "type", ID: *c.TypeID}
	}
	return "", &category.NotFoundError{Kind: "subtype", ID: *c.SubtypeID}
}
