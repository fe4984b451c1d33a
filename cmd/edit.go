package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/partline/internal/category"
	"github.com/fakeyudi/partline/internal/partition"
	"github.com/fakeyudi/partline/internal/session"
	"github.com/fakeyudi/partline/internal/track"
)

var (
	editTitle         string
	editSubtitle      string
	editBody          string
	editType          int64
	editSubtype       int64
	editClearCategory bool
)

var editCmd = &cobra.Command{
	Use:   "edit <index>",
	Short: "Change the label or category of a partition",
	Long: `Change the label or category of a partition. Only the flags given are
applied; bounds never change. Use cut to split a partition.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if editClearCategory && (flags.Changed("type") || flags.Changed("subtype")) {
			return fmt.Errorf("--clear-category cannot be combined with --type or --subtype")
		}

		return withTrack(context.Background(), func(s *session.Session, tr *track.Track) error {
			p, ok := tr.At(index)
			if !ok {
				return fmt.Errorf("no partition %d (track has %d)", index, tr.Len())
			}

			e := partition.EditOf(p)
			var changed []string
			if flags.Changed("title") {
				e.Label.Title = editTitle
				changed = append(changed, "title")
			}
			if flags.Changed("subtitle") {
				e.Label.Subtitle = editSubtitle
				changed = append(changed, "subtitle")
			}
			if flags.Changed("body") {
				e.Label.Body = editBody
				changed = append(changed, "body")
			}
			if flags.Changed("type") {
				e.Category = category.Category{TypeID: category.ID(editType)}
				changed = append(changed, "type")
			}
			if flags.Changed("subtype") {
				e.Category.SubtypeID = category.ID(editSubtype)
				changed = append(changed, "subtype")
			}
			if editClearCategory {
				e.Category = category.Category{}
				changed = append(changed, "category")
			}
			if len(changed) == 0 {
				return fmt.Errorf("nothing to change")
			}

			if err := tr.Edit(context.Background(), index, e); err != nil {
				return err
			}
			detail := fmt.Sprintf("partition %d: %s", index, strings.Join(changed, ", "))
			s.Log(now(), "edit", detail)
			cmd.Printf("Edited %s.\n", detail)
			return nil
		})
	},
}

func init() {
	editCmd.Flags().StringVar(&editTitle, "title", "", "new title")
	editCmd.Flags().StringVar(&editSubtitle, "subtitle", "", "new subtitle")
	editCmd.Flags().StringVar(&editBody, "body", "", "new body text")
	editCmd.Flags().Int64Var(&editType, "type", 0, "category type id (clears the subtype unless --subtype is given)")
	editCmd.Flags().Int64Var(&editSubtype, "subtype", 0, "category subtype id")
	editCmd.Flags().BoolVar(&editClearCategory, "clear-category", false, "mark the partition unclassified")
	rootCmd.AddCommand(editCmd)
}
