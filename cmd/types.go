package cmd

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/partline/internal/category"
	"github.com/fakeyudi/partline/internal/store"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "Manage partition types and subtypes",
}

var typesAddCmd = &cobra.Command{
	Use:   "add <id> <name> <color>",
	Short: "Add or update a partition type",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseCategoryID(args[0])
		if err != nil {
			return err
		}
		return withStore(func(ctx context.Context, db *store.SQLite) error {
			if err := db.PutType(ctx, category.Type{ID: id, Name: args[1], Color: category.Color(args[2])}); err != nil {
				return err
			}
			cmd.Printf("Type %d saved.\n", id)
			return nil
		})
	},
}

var typesAddSubtypeCmd = &cobra.Command{
	Use:   "add-subtype <id> <type-id> <name> [color]",
	Short: "Add or update a subtype; without a color it takes a tint of its type",
	Args:  cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseCategoryID(args[0])
		if err != nil {
			return err
		}
		typeID, err := parseCategoryID(args[1])
		if err != nil {
			return err
		}
		sub := category.Subtype{ID: id, TypeID: typeID, Name: args[2]}
		if len(args) == 4 {
			sub.Color = category.Color(args[3])
		}
		return withStore(func(ctx context.Context, db *store.SQLite) error {
			if err := db.PutSubtype(ctx, sub); err != nil {
				return err
			}
			cmd.Printf("Subtype %d saved.\n", id)
			return nil
		})
	},
}

var typesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List partition types and their subtypes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, db *store.SQLite) error {
			cat, err := db.Catalog(ctx)
			if err != nil {
				return err
			}
			types := cat.Types()
			if len(types) == 0 {
				cmd.Println("no types defined")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCOLOR")
			for _, t := range types {
				fmt.Fprintf(w, "%d\t%s\t%s\n", t.ID, t.Name, t.Color)
				for _, sub := range cat.Subtypes(t.ID) {
					col, err := cat.Resolve(category.Category{TypeID: category.ID(t.ID), SubtypeID: category.ID(sub.ID)})
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "  %d\t  %s\t%s\n", sub.ID, sub.Name, col)
				}
			}
			return w.Flush()
		})
	},
}

// withStore runs fn against the database of the active session, or the
// configured one when no session is open.
func withStore(fn func(ctx context.Context, db *store.SQLite) error) error {
	ctx := context.Background()
	s, _, err := activeSession()
	if err != nil && err != errNoSession {
		return err
	}
	db, err := store.Open(ctx, dbPath(s))
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, db)
}

func parseCategoryID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", s)
	}
	return id, nil
}

func init() {
	typesCmd.AddCommand(typesAddCmd)
	typesCmd.AddCommand(typesAddSubtypeCmd)
	typesCmd.AddCommand(typesListCmd)
	rootCmd.AddCommand(typesCmd)
}
