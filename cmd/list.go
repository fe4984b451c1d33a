package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/partline/internal/partition"
	"github.com/fakeyudi/partline/internal/session"
	"github.com/fakeyudi/partline/internal/store"
	"github.com/fakeyudi/partline/internal/timeline"
	"github.com/fakeyudi/partline/internal/track"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the partitions of the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTrack(context.Background(), func(s *session.Session, tr *track.Track) error {
			printPartitions(cmd, tr.Partitions())
			return nil
		})
	},
}

// printPartitions writes one row per partition.
func printPartitions(cmd *cobra.Command, parts []partition.Partition) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tSTART\tEND\tDURATION\tCATEGORY\tTITLE")
	for i, p := range parts {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			i,
			timeline.FormatInstant(p.Start),
			timeline.FormatInstant(p.End),
			p.Duration(),
			p.Category,
			strings.ReplaceAll(p.Label.Title, "\n", " "),
		)
	}
	w.Flush()
}

var contextsCmd = &cobra.Command{
	Use:   "contexts",
	Short: "List the contexts stored in the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, db *store.SQLite) error {
			summaries, err := db.Contexts(ctx)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				cmd.Println("no stored contexts")
				return nil
			}
			for _, c := range summaries {
				cmd.Printf("%s\t%d records\n", c.ContextID, c.Records)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(contextsCmd)
}
