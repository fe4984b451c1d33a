package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/partline/internal/export"
	"github.com/fakeyudi/partline/internal/session"
	"github.com/fakeyudi/partline/internal/store"
	"github.com/fakeyudi/partline/internal/track"
)

var (
	closeMessage  string
	closeFormat   string
	closeNoExport bool
)

var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "End the current session and export its track",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, st, err := activeSession()
		if err != nil {
			return err
		}

		stoppedAt := now()
		s.StopTime = &stoppedAt
		if closeMessage != "" {
			s.Notes = append(s.Notes, session.Note{
				Timestamp: stoppedAt,
				Message:   closeMessage,
				IsSummary: true,
			})
		}

		if !closeNoExport {
			ctx := context.Background()
			tr, db, err := openTrack(ctx, s)
			if err != nil {
				return err
			}
			b, err := buildBundle(ctx, s, tr, db, stoppedAt)
			tr.Close()
			db.Close()
			if err != nil {
				return err
			}
			outputPath, err := writeBundle(b, closeFormat, "")
			if err != nil {
				return err
			}
			cmd.Printf("Exported: %s\n", outputPath)
		}

		if err := st.Delete(); err != nil {
			return err
		}
		cmd.Println("Session closed.")
		return nil
	},
}

// buildBundle snapshots the session's track for export.
func buildBundle(ctx context.Context, s *session.Session, tr *track.Track, db *store.SQLite, exportedAt time.Time) (*export.Bundle, error) {
	cat, err := db.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	parts := tr.Partitions()
	b := &export.Bundle{
		Session: export.SessionMeta{
			ID:         s.ID,
			StartTime:  s.StartTime,
			ExportedAt: exportedAt,
			Annotator:  s.Annotator,
		},
		Context: s.Filter,
		Range:   s.Range,
		Notes:   s.Notes,
		Journal: s.Journal,
	}
	for _, p := range parts {
		b.Partitions = append(b.Partitions, p.Record(s.Filter.ContextID()))
	}
	b.SetCatalog(cat)
	return b, nil
}

// writeBundle renders b in format (config default when empty) to path, or to
// OutputDir under a generated name when path is empty.
func writeBundle(b *export.Bundle, format, path string) (string, error) {
	if format == "" {
		format = cfg.DefaultFormat
	}
	renderer := export.RendererFor(format)
	data, err := renderer.Render(b)
	if err != nil {
		return "", fmt.Errorf("render bundle: %w", err)
	}

	if path == "" {
		outputDir := cfg.OutputDir
		if outputDir == "" {
			outputDir = "."
		}
		name := strings.NewReplacer("=", "-", ";", "_").Replace(b.Context.ContextID())
		path = filepath.Join(outputDir, "partline-"+name+"-"+b.Session.ExportedAt.Format("20060102T150405")+renderer.Ext())
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write output file: %w", err)
	}
	return path, nil
}

func init() {
	closeCmd.Flags().StringVarP(&closeMessage, "message", "m", "", "Summary note to include in the export")
	closeCmd.Flags().StringVar(&closeFormat, "format", "", "Output format: markdown or json (overrides config)")
	closeCmd.Flags().BoolVar(&closeNoExport, "no-export", false, "Close without writing an export")
	rootCmd.AddCommand(closeCmd)
}
