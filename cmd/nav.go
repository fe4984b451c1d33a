package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/partline/internal/partition"
	"github.com/fakeyudi/partline/internal/session"
	"github.com/fakeyudi/partline/internal/timeline"
	"github.com/fakeyudi/partline/internal/track"
)

var nextCmd = &cobra.Command{
	Use:   "next <instant>",
	Short: "Show the first partition starting after an instant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return navigate(cmd, args[0], func(tr *track.Track, t time.Time) (int, partition.Partition, bool) {
			return tr.Next(t)
		})
	},
}

var prevCmd = &cobra.Command{
	Use:   "prev <instant>",
	Short: "Show the last partition ending before an instant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return navigate(cmd, args[0], func(tr *track.Track, t time.Time) (int, partition.Partition, bool) {
			return tr.Previous(t)
		})
	},
}

func navigate(cmd *cobra.Command, arg string, find func(*track.Track, time.Time) (int, partition.Partition, bool)) error {
	at, err := timeline.ParseInstant(arg)
	if err != nil {
		return err
	}
	return withTrack(context.Background(), func(s *session.Session, tr *track.Track) error {
		i, p, ok := find(tr, at)
		if !ok {
			cmd.Println("none")
			return nil
		}
		s.Cursor = i
		cmd.Printf("%d\t%s\t%s\t%s\n", i, timeline.FormatInstant(p.Start), timeline.FormatInstant(p.End), p.Label.Title)
		return nil
	})
}

func init() {
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(prevCmd)
}
