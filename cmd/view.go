package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/partline/internal/export"
	"github.com/fakeyudi/partline/internal/session"
	"github.com/fakeyudi/partline/internal/store"
	"github.com/fakeyudi/partline/internal/track"
	"github.com/fakeyudi/partline/internal/tui"
)

var plainOutput bool

var viewCmd = &cobra.Command{
	Use:   "view [file]",
	Short: "Browse the current track, or a bundle file",
	Long: `Browse and annotate the current session's track. Given a bundle file,
browse that instead; edits to a bundle are kept in memory only.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return viewBundle(cmd, args[0])
		}
		return viewSession(cmd)
	},
}

func viewSession(cmd *cobra.Command) error {
	ctx := context.Background()
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

	if plainOutput {
		printTrack(cmd, s, tr)
		return nil
	}

	if path := dbPath(s); cfg.WatchEnabled() && path != ":memory:" {
		if err := tr.Watch(path); err != nil {
			logger.Warn("not watching database", slog.String("path", path), slog.String("error", err.Error()))
		}
	}

	m := tui.New(tr, s)
	m.OnChange = func(op, detail string) { s.Log(now(), op, detail) }
	final, err := tui.Run(m)
	if err != nil {
		return err
	}
	s.Cursor = final.Cursor()
	return st.Save(s)
}

func viewBundle(cmd *cobra.Command, path string) error {
	ctx := context.Background()
	b, err := readBundle(path)
	if err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return err
	}

	db, err := store.Open(ctx, ":memory:")
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Import(ctx, b.Context, b.Types, b.Subtypes, nil); err != nil {
		return err
	}

	tr, err := trackOn(ctx, db, b.Context, b.Range)
	if err != nil {
		return err
	}
	defer tr.Close()
	if err := tr.Replace(ctx, b.Records()); err != nil {
		return err
	}

	s := &session.Session{
		ID:        b.Session.ID,
		StartTime: b.Session.StartTime,
		Filter:    b.Context,
		Range:     b.Range,
		Annotator: b.Session.Annotator,
		Notes:     b.Notes,
		Journal:   b.Journal,
	}
	if plainOutput {
		printTrack(cmd, s, tr)
		return nil
	}
	_, err = tui.Run(tui.New(tr, s))
	return err
}

// readBundle reads and parses a bundle file of either format.
func readBundle(path string) (*export.Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, err
	}
	return export.Parse(data)
}

// printTrack writes a plain-text summary of the track.
func printTrack(cmd *cobra.Command, s *session.Session, tr *track.Track) {
	cmd.Println("## Summary")
	cmd.Printf("  Context:   %s\n", tr.Filter().ContextID())
	cmd.Printf("  Range:     %s\n", tr.Range())
	if s.Annotator != "" {
		cmd.Printf("  Annotator: %s\n", s.Annotator)
	}
	cmd.Printf("  Opened:    %s\n", s.StartTime.Format("2006-01-02 15:04:05 MST"))
	cmd.Println()

	cmd.Println("## Partitions")
	printPartitions(cmd, tr.Partitions())
	cmd.Println()

	cmd.Println("## Notes")
	if len(s.Notes) == 0 {
		cmd.Println("  (none)")
	}
	for _, n := range s.Notes {
		kind := "note"
		if n.IsSummary {
			kind = "summary"
		}
		cmd.Printf("  [%s] (%s) %s\n", n.Timestamp.Format("2006-01-02 15:04:05"), kind, n.Message)
	}
	cmd.Println()

	cmd.Println("## Journal")
	if len(s.Journal) == 0 {
		cmd.Println("  (none)")
	}
	for _, e := range s.Journal {
		cmd.Printf("  [%s] %s %s\n", e.Timestamp.Format(time.TimeOnly), e.Op, e.Detail)
	}
}

func init() {
	viewCmd.Flags().BoolVar(&plainOutput, "plain", false, "plain text output instead of TUI")
	rootCmd.AddCommand(viewCmd)
}
