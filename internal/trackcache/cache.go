// Package trackcache keeps the record set of the current context filter and
// tells subscribers whenever it is replaced.
//
// Notifications are delivered synchronously on the goroutine that called
// SetFilter, Reload or Poll. The Watcher runs its own goroutine but only
// signals through a channel that Poll drains, so subscribers never run off
// the caller's goroutine.
package trackcache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fakeyudi/partline/internal/partition"
)

// Loader fetches the complete record set of one context.
type Loader interface {
	LoadRecords(ctx context.Context, filter partition.Filter) ([]partition.Record, error)
}

// Subscriber receives the complete record set after every update.
type Subscriber func(records []partition.Record)

type subscription struct {
	id int
	fn Subscriber
}

// Cache holds the records for one filter at a time.
type Cache struct {
	loader  Loader
	logger  *slog.Logger
	filter  partition.Filter
	records []partition.Record
	loaded  bool
	subs    []subscription
	nextID  int
	watcher *Watcher
}

// New returns an empty cache. If logger is nil, slog.Default() is used.
func New(loader Loader, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{loader: loader, logger: logger.With(slog.String("component", "trackcache"))}
}

// Subscribe registers fn and returns a function that removes it.
func (c *Cache) Subscribe(fn Subscriber) (unsubscribe func()) {
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscription{id: id, fn: fn})
	return func() {
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// Filter returns the current filter.
func (c *Cache) Filter() partition.Filter { return c.filter }

// Loaded reports whether any load has succeeded yet.
func (c *Cache) Loaded() bool { return c.loaded }

// Records returns a copy of the cached records.
func (c *Cache) Records() []partition.Record {
	out := make([]partition.Record, len(c.records))
	copy(out, c.records)
	return out
}

// SetFilter switches to filter, loads its records and notifies subscribers.
// On a load error the previous filter and records are kept.
func (c *Cache) SetFilter(ctx context.Context, filter partition.Filter) error {
	records, err := c.loader.LoadRecords(ctx, filter)
	if err != nil {
		return fmt.Errorf("loading records for %s: %w", filter.ContextID(), err)
	}
	c.filter = filter
	c.replace(records)
	return nil
}

// Reload re-reads the current filter's records and notifies subscribers.
func (c *Cache) Reload(ctx context.Context) error {
	return c.SetFilter(ctx, c.filter)
}

// Attach makes Poll reload whenever w reports a change.
func (c *Cache) Attach(w *Watcher) {
	c.watcher = w
}

// ExpectWrite tells the attached watcher, if any, to ignore the change events
// caused by our own save.
func (c *Cache) ExpectWrite() {
	if c.watcher != nil {
		c.watcher.Suppress()
	}
}

// Poll reloads once if the attached watcher has signalled since the last
// poll. It reports whether a reload happened.
func (c *Cache) Poll(ctx context.Context) (bool, error) {
	if c.watcher == nil {
		return false, nil
	}
	changed := false
drain:
	for {
		select {
		case <-c.watcher.Changes:
			changed = true
		default:
			break drain
		}
	}
	if !changed {
		return false, nil
	}
	c.logger.Debug("store changed on disk, reloading", slog.String("context", c.filter.ContextID()))
	if err := c.Reload(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) replace(records []partition.Record) {
	c.records = make([]partition.Record, len(records))
	copy(c.records, records)
	c.loaded = true
	c.logger.Debug("cache updated",
		slog.String("context", c.filter.ContextID()),
		slog.Int("records", len(records)),
		slog.Int("subscribers", len(c.subs)))

	// Copy so a subscriber may unsubscribe during notification.
	subs := append([]subscription(nil), c.subs...)
	for _, s := range subs {
		s.fn(c.Records())
	}
}
