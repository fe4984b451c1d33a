package trackcache

import (
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	debounce       = 100 * time.Millisecond
	suppressWindow = 750 * time.Millisecond
)

// Watcher reports writes to a database file (and its -wal/-journal
// companions) made by other processes.
type Watcher struct {
	Path    string
	Changes <-chan struct{} // coalesced: at most one pending signal

	changes       chan struct{}
	done          chan struct{}
	watcher       *fsnotify.Watcher
	suppressUntil atomic.Int64 // unix nanos
}

// NewWatcher creates a watcher for the database at path. Call Start to begin.
func NewWatcher(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, err
	}
	ch := make(chan struct{}, 1)
	return &Watcher{
		Path:    abs,
		Changes: ch,
		changes: ch,
		done:    make(chan struct{}),
		watcher: fw,
	}, nil
}

// Start watches the database's directory.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.Path)); err != nil {
		return err
	}
	go w.loop()
	return nil
}

// Stop closes the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done
}

// Suppress ignores events for a short window, used around our own writes.
func (w *Watcher) Suppress() {
	w.suppressUntil.Store(time.Now().Add(suppressWindow).UnixNano())
}

func (w *Watcher) loop() {
	defer close(w.done)

	var pending time.Time
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isDatabaseFile(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if time.Now().UnixNano() < w.suppressUntil.Load() {
				continue
			}
			pending = time.Now()

		case <-ticker.C:
			if !pending.IsZero() && time.Since(pending) >= debounce {
				pending = time.Time{}
				w.signal()
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal; the next explicit reload catches up.
		}
	}
}

func (w *Watcher) isDatabaseFile(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	return abs == w.Path || strings.HasPrefix(abs, w.Path+"-")
}

// signal never blocks; a signal already pending covers this change too.
func (w *Watcher) signal() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}
