package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fakeyudi/partline/internal/interaction"
	"github.com/fakeyudi/partline/internal/partition"
	"github.com/fakeyudi/partline/internal/session"
	"github.com/fakeyudi/partline/internal/store"
	"github.com/fakeyudi/partline/internal/timeline"
	"github.com/fakeyudi/partline/internal/track"
)

// now is the clock journal entries are stamped with.
var now = time.Now

// errNoSession is what commands report when they need an open session.
var errNoSession = errors.New("no active session, run 'partline open' first")

// activeSession loads the open session.
func activeSession() (*session.Session, session.SessionStore, error) {
	st, err := session.NewSessionStore()
	if err != nil {
		return nil, nil, err
	}
	s, err := st.Load()
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return nil, nil, errNoSession
		}
		return nil, nil, err
	}
	return s, st, nil
}

// policy returns the selection policy from the merged config.
func policy() (interaction.Policy, error) {
	mode, err := interaction.ParseSelectionMode(cfg.SelectionMode)
	if err != nil {
		return interaction.Policy{}, err
	}
	return interaction.Policy{Mode: mode, DismissSelectionOnRelease: cfg.DismissOnRelease()}, nil
}

// dbPath is the session's database, falling back to the configured one.
func dbPath(s *session.Session) string {
	if s != nil && s.DBPath != "" {
		return s.DBPath
	}
	return cfg.DBPath
}

// openTrack opens the store and the track for s. The caller closes both.
func openTrack(ctx context.Context, s *session.Session) (*track.Track, *store.SQLite, error) {
	return openTrackAt(ctx, dbPath(s), s.Filter, s.Range)
}

func openTrackAt(ctx context.Context, path string, f partition.Filter, rng timeline.Range) (*track.Track, *store.SQLite, error) {
	db, err := store.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	tr, err := trackOn(ctx, db, f, rng)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return tr, db, nil
}

// trackOn opens a track over an already open store.
func trackOn(ctx context.Context, db *store.SQLite, f partition.Filter, rng timeline.Range) (*track.Track, error) {
	cat, err := db.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	pol, err := policy()
	if err != nil {
		return nil, err
	}
	return track.Open(ctx, db, track.Config{
		Range:    rng,
		Filter:   f,
		Policy:   pol,
		Resolver: cat,
		Logger:   logger,
	})
}

// withTrack runs fn against the open session's track, then saves the session
// so journal entries fn added are kept.
func withTrack(ctx context.Context, fn func(s *session.Session, tr *track.Track) error) error {
	s, st, err := activeSession()
	if err != nil {
		return err
	}
	tr, db, err := openTrack(ctx, s)
	if err != nil {
		return err
	}
	defer db.Close()
	defer tr.Close()

	if err := fn(s, tr); err != nil {
		return err
	}
	if err := st.Save(s); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}
