package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current annotation session",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := activeSession()
		if err != nil {
			if errors.Is(err, errNoSession) {
				cmd.Println("no active session")
				return nil
			}
			return err
		}

		tr, db, err := openTrack(context.Background(), s)
		if err != nil {
			return err
		}
		defer db.Close()
		defer tr.Close()

		classified := time.Duration(0)
		for _, p := range tr.Partitions() {
			if !p.Category.IsUnclassified() {
				classified += p.Duration()
			}
		}

		cmd.Printf("Context: %s\n", s.Filter.ContextID())
		cmd.Printf("Range: %s\n", s.Range)
		cmd.Printf("Database: %s\n", dbPath(s))
		cmd.Printf("Opened: %s\n", s.StartTime.Format(time.RFC3339))
		cmd.Printf("Duration: %s\n", time.Since(s.StartTime).Round(time.Second).String())
		cmd.Printf("Partitions: %d\n", tr.Len())
		cmd.Printf("Classified: %s of %s\n", classified, tr.Coverage())
		cmd.Printf("Notes: %d\n", len(s.Notes))
		cmd.Printf("Changes: %d\n", len(s.Journal))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
