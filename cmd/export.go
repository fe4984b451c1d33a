package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/partline/internal/store"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the current track to a bundle file without closing the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, _, err := activeSession()
		if err != nil {
			return err
		}
		tr, db, err := openTrack(ctx, s)
		if err != nil {
			return err
		}
		defer db.Close()
		defer tr.Close()

		b, err := buildBundle(ctx, s, tr, db, now())
		if err != nil {
			return err
		}
		path, err := writeBundle(b, exportFormat, exportOutput)
		if err != nil {
			return err
		}
		cmd.Printf("Exported: %s\n", path)
		return nil
	},
}

var importDryRun bool

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Store the partitions of a bundle file under its context",
	Long: `Import a bundle written by export or close. Categories the database lacks
are added and the bundle's partitions replace whatever the database holds for
the bundle's context. Nothing is written unless the bundle validates and its
categories agree with the ones already stored.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		b, err := readBundle(args[0])
		if err != nil {
			return err
		}
		if err := b.Validate(); err != nil {
			return err
		}
		if importDryRun {
			cmd.Printf("%s is valid: %d partitions for %s.\n", args[0], len(b.Partitions), b.Context.ContextID())
			return nil
		}

		s, st, err := activeSession()
		if err != nil && err != errNoSession {
			return err
		}
		db, err := store.Open(ctx, dbPath(s))
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Import(ctx, b.Context, b.Types, b.Subtypes, b.Records()); err != nil {
			return err
		}

		if s != nil && s.Filter == b.Context {
			s.Log(now(), "import", args[0])
			if err := st.Save(s); err != nil {
				return err
			}
		}
		cmd.Printf("Imported %d partitions into %s.\n", len(b.Partitions), b.Context.ContextID())
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "Output format: markdown or json (overrides config)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: generated name in the output directory)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate the bundle without writing")
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

