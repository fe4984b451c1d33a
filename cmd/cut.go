package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/partline/internal/session"
	"github.com/fakeyudi/partline/internal/timeline"
	"github.com/fakeyudi/partline/internal/track"
)

var cutCmd = &cobra.Command{
	Use:   "cut <index> <at>",
	Short: "Split a partition in two at an instant",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		at, err := timeline.ParseInstant(args[1])
		if err != nil {
			return err
		}

		return withTrack(context.Background(), func(s *session.Session, tr *track.Track) error {
			if err := tr.Cut(context.Background(), index, at); err != nil {
				return err
			}
			detail := fmt.Sprintf("partition %d at %s", index, timeline.FormatInstant(at))
			s.Log(now(), "cut", detail)
			cmd.Printf("Cut %s, %d partitions.\n", detail, tr.Len())
			return nil
		})
	},
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("invalid partition index %q", s)
	}
	return i, nil
}

func init() {
	rootCmd.AddCommand(cutCmd)
}
