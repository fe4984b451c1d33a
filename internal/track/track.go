// Package track ties a Partitioner to the record cache and the store so the
// CLI and the TUI drive a single object.
//
// A Track is used from one goroutine. Edits are persisted immediately and
// the partitioner is rebuilt from the stored rows, so partition ids are
// always the ones the database assigned.
package track

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fakeyudi/partline/internal/category"
	"github.com/fakeyudi/partline/internal/interaction"
	"github.com/fakeyudi/partline/internal/partition"
	"github.com/fakeyudi/partline/internal/timeline"
	"github.com/fakeyudi/partline/internal/trackcache"
)

// Config describes the track to open.
type Config struct {
	Range    timeline.Range
	Filter   partition.Filter
	Policy   interaction.Policy
	Resolver category.Resolver // nil means unclassified partitions only
	Logger   *slog.Logger
}

// Track is one annotated span of video for one context.
type Track struct {
	parts       *partition.Partitioner
	cache       *trackcache.Cache
	watcher     *trackcache.Watcher
	logger      *slog.Logger
	unsubscribe func()
	reloadErr   error
}

// Open loads the records for cfg.Filter from gw and builds the partition
// sequence over cfg.Range.
func Open(ctx context.Context, gw partition.Gateway, cfg Config) (*Track, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cache := trackcache.New(gw, logger)
	if err := cache.SetFilter(ctx, cfg.Filter); err != nil {
		return nil, err
	}

	opts := []partition.Option{
		partition.WithGateway(gw),
		partition.WithFilter(cfg.Filter),
		partition.WithPolicy(cfg.Policy),
		partition.WithLogger(logger),
	}
	if cfg.Resolver != nil {
		opts = append(opts, partition.WithResolver(cfg.Resolver))
	}
	parts, err := partition.New(cfg.Range, cache.Records(), opts...)
	if err != nil {
		return nil, fmt.Errorf("building track for %s: %w", cfg.Filter.ContextID(), err)
	}

	t := &Track{
		parts:  parts,
		cache:  cache,
		logger: logger.With(slog.String("component", "track")),
	}
	t.unsubscribe = cache.Subscribe(t.onRecords)
	return t, nil
}

func (t *Track) onRecords(records []partition.Record) {
	filter := t.cache.Filter()
	var err error
	if filter == t.parts.Filter() {
		err = t.parts.OnReloadPartitionRecords(records)
	} else {
		err = t.parts.SwitchContext(filter, records)
	}
	t.reloadErr = err
	if err != nil {
		t.logger.Warn("stored records rejected, keeping previous partitions",
			slog.String("context", filter.ContextID()),
			slog.String("error", err.Error()))
	}
}

// Watch starts reporting writes to the database at path made by other
// processes. Changes are applied by Poll.
func (t *Track) Watch(path string) error {
	w, err := trackcache.NewWatcher(path)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	t.watcher = w
	t.cache.Attach(w)
	return nil
}

// Poll applies any pending external change. It reports whether the
// partitions were reloaded.
func (t *Track) Poll(ctx context.Context) (bool, error) {
	reloaded, err := t.cache.Poll(ctx)
	if err != nil || !reloaded {
		return false, err
	}
	return t.reloadErr == nil, t.reloadErr
}

// Close stops watching and detaches from the cache.
func (t *Track) Close() {
	if t.unsubscribe != nil {
		t.unsubscribe()
		t.unsubscribe = nil
	}
	if t.watcher != nil {
		t.watcher.Stop()
		t.watcher = nil
	}
}

// Range returns the span the track covers.
func (t *Track) Range() timeline.Range { return t.parts.Range() }

// Filter returns the current context.
func (t *Track) Filter() partition.Filter { return t.parts.Filter() }

// Policy returns the selection policy.
func (t *Track) Policy() interaction.Policy { return t.parts.Policy() }

// Len returns the number of partitions.
func (t *Track) Len() int { return t.parts.Len() }

// Partitions returns a copy of the current sequence.
func (t *Track) Partitions() []partition.Partition { return t.parts.Partitions() }

// At returns the partition at index.
func (t *Track) At(index int) (partition.Partition, bool) { return t.parts.At(index) }

// IndexAt returns the index of the partition containing at.
func (t *Track) IndexAt(at time.Time) (int, bool) { return t.parts.IndexAt(at) }

// Coverage returns the summed duration of all partitions.
func (t *Track) Coverage() time.Duration { return t.parts.Coverage() }

// SetFilter switches to another context. If its stored records do not form a
// valid sequence over the track's range, the previous context is restored and
// the validation error returned.
func (t *Track) SetFilter(ctx context.Context, f partition.Filter) error {
	prev := t.parts.Filter()
	if err := t.cache.SetFilter(ctx, f); err != nil {
		return err
	}
	if t.reloadErr == nil {
		return nil
	}
	failed := t.reloadErr
	if err := t.cache.SetFilter(ctx, prev); err != nil {
		t.logger.Error("restoring previous context", slog.String("context", prev.ContextID()), slog.String("error", err.Error()))
	}
	return failed
}

// Cut splits partition index at the instant at and persists the result.
func (t *Track) Cut(ctx context.Context, index int, at time.Time) error {
	if err := t.parts.CutPartition(index, at); err != nil {
		return err
	}
	return t.persist(ctx)
}

// Edit replaces the label and category of partition index and persists the
// result.
func (t *Track) Edit(ctx context.Context, index int, e partition.Edit) error {
	if err := t.parts.ModifyPartition(index, e); err != nil {
		return err
	}
	return t.persist(ctx)
}

// Save writes the current sequence without changing it.
func (t *Track) Save(ctx context.Context) error {
	return t.persist(ctx)
}

// Replace stores records as the whole of the current context, after checking
// that they form a valid sequence over the track's range.
func (t *Track) Replace(ctx context.Context, records []partition.Record) error {
	if err := t.parts.OnReloadPartitionRecords(records); err != nil {
		return err
	}
	return t.persist(ctx)
}

func (t *Track) persist(ctx context.Context) error {
	t.cache.ExpectWrite()
	if err := t.parts.SavePartitionsToDatabase(ctx); err != nil {
		// Go back to what the store still holds.
		if rerr := t.cache.Reload(ctx); rerr != nil {
			t.logger.Error("restoring stored partitions", slog.String("error", rerr.Error()))
		}
		return err
	}
	if err := t.cache.Reload(ctx); err != nil {
		return fmt.Errorf("reloading after save: %w", err)
	}
	return t.reloadErr
}

// Next returns the first partition starting strictly after after.
func (t *Track) Next(after time.Time) (int, partition.Partition, bool) {
	return t.parts.FindNextEvent(after)
}

// Previous returns the last partition ending strictly before before.
func (t *Track) Previous(before time.Time) (int, partition.Partition, bool) {
	return t.parts.FindPreviousEvent(before)
}

// Hover emphasizes partition index.
func (t *Track) Hover(index int) error { return t.parts.Hover(index) }

// ClearHover drops hover emphasis.
func (t *Track) ClearHover() { t.parts.ClearHover() }

// ToggleSelect flips the selection of partition index.
func (t *Track) ToggleSelect(index int) error { return t.parts.ToggleSelect(index) }

// Select selects partition index.
func (t *Track) Select(index int) error { return t.parts.Select(index) }

// SelectRange selects by time window. Multi selection only.
func (t *Track) SelectRange(r timeline.Range) error { return t.parts.SelectRange(r) }

// ClearSelection deselects everything.
func (t *Track) ClearSelection() { t.parts.ClearSelection() }

// SelectedIndices returns the selected partition indices in order.
func (t *Track) SelectedIndices() []int { return t.parts.SelectedIndices() }

// Release ends a pointer gesture, dismissing the selection if the policy says
// so. It reports whether the selection was dismissed.
func (t *Track) Release() bool { return t.parts.PointerReleased() }

// Highlight deemphasizes partitions outside r. A nil r clears it.
func (t *Track) Highlight(r *timeline.Range) { t.parts.ApplyRangeFilter(r) }
