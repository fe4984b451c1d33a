package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/partline/internal/session"
)

var noteCmd = &cobra.Command{
	Use:   "note <message>",
	Short: "Add a note to the current annotation session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, st, err := activeSession()
		if err != nil {
			return err
		}

		if err := st.Update(func(s *session.Session) error {
			s.Notes = append(s.Notes, session.Note{
				Timestamp: time.Now(),
				Message:   args[0],
			})
			return nil
		}); err != nil {
			return err
		}

		cmd.Println("Note added.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(noteCmd)
}
