package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/partline/internal/partition"
	"github.com/fakeyudi/partline/internal/session"
	"github.com/fakeyudi/partline/internal/timeline"
)

var (
	openStart  string
	openEnd    string
	openFilter partition.Filter
)

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Start annotating one context over a span of video",
	Long: `Open a session on the context selected by --experiment, --cohort, --animal
and --box, covering --start to --end. Instants are milliseconds or RFC 3339.
Records already stored for the context must tile the range exactly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := session.NewSessionStore()
		if err != nil {
			return err
		}

		s, err := store.Load()
		if err != nil && !errors.Is(err, session.ErrNoSession) {
			return err
		}
		if s != nil {
			return fmt.Errorf("session already in progress on %s (opened at %s)",
				s.Filter.ContextID(), s.StartTime.Format(time.RFC3339))
		}

		start, err := timeline.ParseInstant(openStart)
		if err != nil {
			return fmt.Errorf("--start: %w", err)
		}
		if openEnd == "" {
			return fmt.Errorf("--end is required")
		}
		end, err := timeline.ParseInstant(openEnd)
		if err != nil {
			return fmt.Errorf("--end: %w", err)
		}
		rng, err := timeline.NewRange(start, end)
		if err != nil {
			return err
		}

		newSession := &session.Session{
			ID:        uuid.New().String(),
			StartTime: time.Now(),
			Filter:    openFilter,
			Range:     rng,
			DBPath:    cfg.DBPath,
			Notes:     []session.Note{},
			Journal:   []session.Entry{},
		}
		if prof := GetProfile(); prof != nil {
			newSession.Annotator = prof.Name
		}

		// Refuse a range the stored records cannot tile.
		ctx := context.Background()
		tr, db, err := openTrack(ctx, newSession)
		if err != nil {
			return err
		}
		n := tr.Len()
		tr.Close()
		db.Close()

		if err := store.Save(newSession); err != nil {
			return err
		}

		cmd.Printf("Session opened on %s, %s (%d partitions).\n", openFilter.ContextID(), rng, n)
		return nil
	},
}

func init() {
	openCmd.Flags().StringVar(&openStart, "start", "0", "range start")
	openCmd.Flags().StringVar(&openEnd, "end", "", "range end (required)")
	openCmd.Flags().StringVar(&openFilter.Experiment, "experiment", "", "experiment name")
	openCmd.Flags().StringVar(&openFilter.Cohort, "cohort", "", "cohort name")
	openCmd.Flags().StringVar(&openFilter.Animal, "animal", "", "animal id")
	openCmd.Flags().StringVar(&openFilter.Box, "box", "", "recording box")
	rootCmd.AddCommand(openCmd)
}
