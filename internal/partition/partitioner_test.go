package partition_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fakeyudi/partline/internal/category"
	"github.com/fakeyudi/partline/internal/partition"
	"github.com/fakeyudi/partline/internal/timeline"
)

func ms(v int64) time.Time { return timeline.FromMillis(v) }

func msPtr(v int64) *time.Time {
	t := ms(v)
	return &t
}

// memGateway records the last batch it was asked to save.
type memGateway struct {
	records []partition.Record
	saved   []partition.Record
	filter  partition.Filter
	calls   int
	err     error
}

func (g *memGateway) LoadRecords(ctx context.Context, f partition.Filter) ([]partition.Record, error) {
	return g.records, g.err
}

func (g *memGateway) SaveRecords(ctx context.Context, f partition.Filter, records []partition.Record) error {
	g.calls++
	if g.err != nil {
		return g.err
	}
	g.filter = f
	g.saved = records
	return nil
}

func testCatalog(t *testing.T) *category.Catalog {
	t.Helper()
	c, err := category.NewCatalog(
		[]category.Type{{ID: 1, Name: "groom", Color: "#ff0000"}, {ID: 2, Name: "rear", Color: "#00ff00"}},
		[]category.Subtype{{ID: 5, TypeID: 1, Name: "face"}},
	)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return c
}

func newEmpty(t *testing.T, opts ...partition.Option) *partition.Partitioner {
	t.Helper()
	p, err := partition.New(timeline.MustRange(ms(0), ms(100)), nil, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func assertBounds(t *testing.T, p *partition.Partitioner, want ...int64) {
	t.Helper()
	parts := p.Partitions()
	if len(parts) != len(want)-1 {
		t.Fatalf("got %d partitions, want %d: %v", len(parts), len(want)-1, parts)
	}
	for i, part := range parts {
		if part.Start.UnixMilli() != want[i] || part.End.UnixMilli() != want[i+1] {
			t.Errorf("partition %d = [%d, %d), want [%d, %d)", i,
				part.Start.UnixMilli(), part.End.UnixMilli(), want[i], want[i+1])
		}
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestCutScenario(t *testing.T) {
	p := newEmpty(t)
	assertBounds(t, p, 0, 100)
	if got := p.Partitions()[0]; !got.Category.IsUnclassified() || got.Color != category.Unclassified {
		t.Errorf("initial partition must be unclassified, got %+v", got)
	}

	if err := p.CutPartition(0, ms(30)); err != nil {
		t.Fatalf("cut(0, 30): %v", err)
	}
	assertBounds(t, p, 0, 30, 100)

	if err := p.CutPartition(1, ms(60)); err != nil {
		t.Fatalf("cut(1, 60): %v", err)
	}
	assertBounds(t, p, 0, 30, 60, 100)

	err := p.CutPartition(1, ms(30))
	if !errors.Is(err, partition.ErrOutOfRange) {
		t.Fatalf("cut(1, 30): expected ErrOutOfRange, got %v", err)
	}
	assertBounds(t, p, 0, 30, 60, 100)

	i, prev, ok := p.FindPreviousEvent(ms(65))
	if !ok || i != 1 || prev.Start.UnixMilli() != 30 || prev.End.UnixMilli() != 60 {
		t.Errorf("FindPreviousEvent(65) = %d %v %v, want 1 [30,60)", i, prev, ok)
	}

	i, next, ok := p.FindNextEvent(ms(25))
	if !ok || i != 1 || next.Start.UnixMilli() != 30 {
		t.Errorf("FindNextEvent(25) = %d %v %v, want 1 [30,60)", i, next, ok)
	}
	i, next, ok = p.FindNextEvent(ms(45))
	if !ok || i != 2 || next.Start.UnixMilli() != 60 {
		t.Errorf("FindNextEvent(45) = %d %v %v, want 2 [60,100)", i, next, ok)
	}
	if _, _, ok := p.FindNextEvent(ms(65)); ok {
		t.Error("FindNextEvent(65) must be empty: no partition starts after 65")
	}
}

func TestCutInheritsLabelAndCategory(t *testing.T) {
	cat := testCatalog(t)
	p, err := partition.New(timeline.MustRange(ms(0), ms(100)), []partition.Record{{
		ID: 7, Start: ms(0), End: msPtr(100), Title: "walk", Subtitle: "s", Body: "b",
		TypeID: category.ID(1), SubtypeID: category.ID(5),
	}}, partition.WithResolver(cat))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.CutPartition(0, ms(40)); err != nil {
		t.Fatalf("cut: %v", err)
	}
	parts := p.Partitions()
	for i, part := range parts {
		if part.Label != (partition.Label{Title: "walk", Subtitle: "s", Body: "b"}) {
			t.Errorf("partition %d label = %+v", i, part.Label)
		}
		if !part.Category.Equal(category.Category{TypeID: category.ID(1), SubtypeID: category.ID(5)}) {
			t.Errorf("partition %d category = %v", i, part.Category)
		}
		if part.Color != parts[0].Color {
			t.Errorf("partition %d color = %q, want %q", i, part.Color, parts[0].Color)
		}
	}
	if parts[0].ID != 7 || parts[1].ID != 0 {
		t.Errorf("left half keeps the row id, right half is new: got %d, %d", parts[0].ID, parts[1].ID)
	}
}

func TestCutRejections(t *testing.T) {
	tests := []struct {
		name  string
		index int
		at    int64
		want  error
	}{
		{"at start", 0, 0, partition.ErrOutOfRange},
		{"at end", 0, 100, partition.ErrOutOfRange},
		{"before", 0, -5, partition.ErrOutOfRange},
		{"after", 0, 150, partition.ErrOutOfRange},
		{"negative index", -1, 50, partition.ErrInvalidIndex},
		{"index past end", 1, 50, partition.ErrInvalidIndex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newEmpty(t)
			err := p.CutPartition(tt.index, ms(tt.at))
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			var ce *partition.CutError
			if !errors.As(err, &ce) || ce.Index != tt.index {
				t.Errorf("expected *CutError for index %d, got %T", tt.index, err)
			}
			if p.Len() != 1 {
				t.Errorf("partition count changed to %d", p.Len())
			}
		})
	}
}

func TestCutRejectsSubMillisecondInstant(t *testing.T) {
	p := newEmpty(t)
	err := p.CutPartition(0, ms(30).Add(500*time.Microsecond))
	if !errors.Is(err, timeline.ErrSubMillisecond) {
		t.Fatalf("got %v, want ErrSubMillisecond", err)
	}
	assertBounds(t, p, 0, 100)
}

func TestModifyPartition(t *testing.T) {
	p := newEmpty(t, partition.WithResolver(testCatalog(t)))
	if err := p.CutPartition(0, ms(50)); err != nil {
		t.Fatal(err)
	}
	cur, _ := p.At(1)
	e := partition.EditOf(cur)
	e.Label = partition.Label{Title: "rearing", Body: "on hind legs"}
	e.Category = category.Category{TypeID: category.ID(2)}
	if err := p.ModifyPartition(1, e); err != nil {
		t.Fatalf("ModifyPartition: %v", err)
	}
	got, _ := p.At(1)
	if got.Label.Title != "rearing" || got.Color != "#00ff00" {
		t.Errorf("modified partition = %+v", got)
	}
	if left, _ := p.At(0); left.Label.Title != "" {
		t.Errorf("neighbour changed: %+v", left)
	}
	assertBounds(t, p, 0, 50, 100)
}

func TestModifySanitizesZeroIDs(t *testing.T) {
	p := newEmpty(t)
	cur, _ := p.At(0)
	e := partition.EditOf(cur)
	zero := int64(0)
	e.Category = category.Category{TypeID: &zero, SubtypeID: &zero}
	if err := p.ModifyPartition(0, e); err != nil {
		t.Fatalf("ModifyPartition with zero ids: %v", err)
	}
	if got, _ := p.At(0); !got.Category.IsUnclassified() {
		t.Errorf("zero ids must read as unclassified, got %v", got.Category)
	}
}

func TestModifyRejections(t *testing.T) {
	p := newEmpty(t, partition.WithResolver(testCatalog(t)))
	if err := p.CutPartition(0, ms(50)); err != nil {
		t.Fatal(err)
	}
	cur, _ := p.At(0)

	moved := partition.EditOf(cur)
	moved.End = ms(60)
	if err := p.ModifyPartition(0, moved); !errors.Is(err, partition.ErrWouldViolateContiguity) {
		t.Errorf("moving the end: got %v", err)
	}

	shrunk := partition.EditOf(cur)
	shrunk.End = ms(40)
	if err := p.ModifyPartition(0, shrunk); !errors.Is(err, partition.ErrWouldViolateContiguity) {
		t.Errorf("opening a gap: got %v", err)
	}

	if err := p.ModifyPartition(2, partition.EditOf(cur)); !errors.Is(err, partition.ErrInvalidIndex) {
		t.Errorf("bad index: got %v", err)
	}

	unknown := partition.EditOf(cur)
	unknown.Label.Title = "should not stick"
	unknown.Category = category.Category{TypeID: category.ID(99)}
	err := p.ModifyPartition(0, unknown)
	if !errors.Is(err, category.ErrNotFound) {
		t.Errorf("unknown type: got %v", err)
	}
	var me *partition.ModifyError
	if !errors.As(err, &me) || me.Index != 0 {
		t.Errorf("expected *ModifyError, got %T", err)
	}
	if got, _ := p.At(0); got.Label.Title != "" {
		t.Errorf("failed edit leaked into state: %+v", got)
	}
	assertBounds(t, p, 0, 50, 100)
}

func TestNewValidatesRecords(t *testing.T) {
	rng := timeline.MustRange(ms(0), ms(100))
	tests := []struct {
		name    string
		records []partition.Record
	}{
		{"start mismatch", []partition.Record{{Start: ms(5), End: msPtr(100)}}},
		{"end mismatch", []partition.Record{{Start: ms(0), End: msPtr(90)}}},
		{"gap", []partition.Record{{Start: ms(0), End: msPtr(40)}, {Start: ms(50), End: msPtr(100)}}},
		{"overlap", []partition.Record{{Start: ms(0), End: msPtr(60)}, {Start: ms(50), End: msPtr(100)}}},
		{"zero length", []partition.Record{{Start: ms(0), End: msPtr(0)}, {Start: ms(0), End: msPtr(100)}}},
		{"unsorted", []partition.Record{{Start: ms(50), End: msPtr(100)}, {Start: ms(0), End: msPtr(50)}}},
		{"unknown type", []partition.Record{{Start: ms(0), End: msPtr(100), TypeID: category.ID(3)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := partition.New(rng, tt.records)
			if !errors.Is(err, partition.ErrInvalidRecords) {
				t.Fatalf("expected ErrInvalidRecords, got %v", err)
			}
			var ve *partition.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("expected *ValidationError, got %T", err)
			}
		})
	}
}

func TestNewRejectsEmptyRange(t *testing.T) {
	_, err := partition.New(timeline.MustRange(ms(10), ms(10)), nil)
	if !errors.Is(err, partition.ErrEmptyRange) {
		t.Fatalf("expected ErrEmptyRange, got %v", err)
	}
}

func TestNewRejectsSubMillisecondBounds(t *testing.T) {
	// A range decoded from a file does not pass through timeline.NewRange.
	rng := timeline.Range{Start: ms(0), End: ms(100).Add(500 * time.Microsecond)}
	if _, err := partition.New(rng, nil); !errors.Is(err, timeline.ErrSubMillisecond) {
		t.Fatalf("range: got %v, want ErrSubMillisecond", err)
	}

	late := ms(40).Add(time.Microsecond)
	records := []partition.Record{
		{Start: ms(0), End: &late},
		{Start: late, End: msPtr(100)},
	}
	_, err := partition.New(timeline.MustRange(ms(0), ms(100)), records)
	var ve *partition.ValidationError
	if !errors.As(err, &ve) || !errors.Is(err, timeline.ErrSubMillisecond) || ve.Index != 0 {
		t.Fatalf("records: got %v", err)
	}
}

func TestNewClosesOpenEnds(t *testing.T) {
	p, err := partition.New(timeline.MustRange(ms(0), ms(100)), []partition.Record{
		{Start: ms(0)},
		{Start: ms(20), End: msPtr(70)},
		{Start: ms(70)},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	assertBounds(t, p, 0, 20, 70, 100)
}

func TestNewSanitizesNonPositiveIDs(t *testing.T) {
	zero, neg := int64(0), int64(-1)
	p, err := partition.New(timeline.MustRange(ms(0), ms(100)), []partition.Record{
		{Start: ms(0), End: msPtr(100), TypeID: &zero, SubtypeID: &neg},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got, _ := p.At(0); !got.Category.IsUnclassified() {
		t.Errorf("expected unclassified, got %v", got.Category)
	}
}

func TestReloadKeepsOldSequenceOnError(t *testing.T) {
	p := newEmpty(t)
	if err := p.CutPartition(0, ms(50)); err != nil {
		t.Fatal(err)
	}
	err := p.OnReloadPartitionRecords([]partition.Record{{Start: ms(0), End: msPtr(10)}})
	if !errors.Is(err, partition.ErrInvalidRecords) {
		t.Fatalf("expected ErrInvalidRecords, got %v", err)
	}
	assertBounds(t, p, 0, 50, 100)
}

func TestReloadReplacesSequence(t *testing.T) {
	p := newEmpty(t)
	if err := p.Select(0); err != nil {
		t.Fatal(err)
	}
	err := p.OnReloadPartitionRecords([]partition.Record{
		{ID: 1, Start: ms(0), End: msPtr(25), Title: "a"},
		{ID: 2, Start: ms(25), End: msPtr(100), Title: "b"},
	})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	assertBounds(t, p, 0, 25, 100)
	if len(p.SelectedIndices()) != 0 {
		t.Error("reload must reset selection")
	}
}

func TestSwitchContextIsAtomic(t *testing.T) {
	a := partition.Filter{Animal: "a"}
	b := partition.Filter{Animal: "b"}
	p := newEmpty(t, partition.WithFilter(a))

	if err := p.SwitchContext(b, []partition.Record{{Start: ms(5)}}); err == nil {
		t.Fatal("expected validation error")
	}
	if p.Filter() != a {
		t.Fatalf("filter changed on failed switch: %v", p.Filter())
	}

	if err := p.SwitchContext(b, []partition.Record{{Start: ms(0)}, {Start: ms(40)}}); err != nil {
		t.Fatalf("SwitchContext: %v", err)
	}
	if p.Filter() != b {
		t.Errorf("filter = %v", p.Filter())
	}
	assertBounds(t, p, 0, 40, 100)
}

func TestSavePartitionsToDatabase(t *testing.T) {
	gw := &memGateway{}
	f := partition.Filter{Experiment: "exp1", Animal: "m3"}
	p := newEmpty(t, partition.WithGateway(gw), partition.WithFilter(f))
	if err := p.CutPartition(0, ms(50)); err != nil {
		t.Fatal(err)
	}
	if err := p.SavePartitionsToDatabase(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if gw.calls != 1 || len(gw.saved) != 2 {
		t.Fatalf("gateway got %d calls, %d records", gw.calls, len(gw.saved))
	}
	if gw.filter != f {
		t.Errorf("filter = %+v, want %+v", gw.filter, f)
	}
	for _, r := range gw.saved {
		if r.ContextID != f.ContextID() {
			t.Errorf("record context = %q, want %q", r.ContextID, f.ContextID())
		}
		if r.End == nil {
			t.Error("saved records must be closed")
		}
	}
}

func TestSaveFailureKeepsEdits(t *testing.T) {
	boom := errors.New("disk full")
	gw := &memGateway{err: boom}
	p := newEmpty(t, partition.WithGateway(gw))
	if err := p.CutPartition(0, ms(50)); err != nil {
		t.Fatal(err)
	}
	err := p.SavePartitionsToDatabase(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if p.Len() != 2 {
		t.Errorf("failed save must not roll back: %d partitions", p.Len())
	}
}

func TestSaveWithoutGateway(t *testing.T) {
	p := newEmpty(t)
	if err := p.SavePartitionsToDatabase(context.Background()); !errors.Is(err, partition.ErrNoGateway) {
		t.Fatalf("expected ErrNoGateway, got %v", err)
	}
}

func TestIndexAt(t *testing.T) {
	p := newEmpty(t)
	if err := p.CutPartition(0, ms(40)); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		at   int64
		want int
		ok   bool
	}{
		{0, 0, true}, {39, 0, true}, {40, 1, true}, {100, 1, true}, {101, 0, false},
	}
	for _, tt := range tests {
		got, ok := p.IndexAt(ms(tt.at))
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("IndexAt(%d) = %d %v, want %d %v", tt.at, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPartitionsReturnsCopy(t *testing.T) {
	p := newEmpty(t)
	parts := p.Partitions()
	parts[0].Label.Title = "mutated"
	if got, _ := p.At(0); got.Label.Title != "" {
		t.Error("mutating the returned slice must not affect the partitioner")
	}
}

func TestFilterContextID(t *testing.T) {
	if got := (partition.Filter{}).ContextID(); got != "default" {
		t.Errorf("empty filter = %q", got)
	}
	f := partition.Filter{Experiment: "e", Box: "b2"}
	if got := f.ContextID(); got != "experiment=e;box=b2" {
		t.Errorf("ContextID = %q", got)
	}
}
