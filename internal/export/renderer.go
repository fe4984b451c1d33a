package export

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fakeyudi/partline/internal/timeline"
)

const (
	versionSentinel = "<!-- partline-bundle-version: 1 -->"
	dataPrefix      = "<!-- partline-data: "
	dataSuffix      = " -->"
)

// Renderer serializes a Bundle to bytes.
type Renderer interface {
	Render(b *Bundle) ([]byte, error)
	Ext() string
}

// RendererFor returns the renderer for format ("json" or "markdown").
// Anything else falls back to Markdown.
func RendererFor(format string) Renderer {
	if format == "json" {
		return &JSONRenderer{}
	}
	return &MarkdownRenderer{}
}

// JSONRenderer renders a Bundle as indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(b *Bundle) ([]byte, error) {
	return json.MarshalIndent(b, "", "  ")
}

func (r *JSONRenderer) Ext() string { return ".json" }

// MarkdownRenderer renders a Bundle as a human-readable report with an
// embedded base64 JSON payload for lossless round-trip parsing.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Ext() string { return ".md" }

func (r *MarkdownRenderer) Render(b *Bundle) ([]byte, error) {
	jsonBytes, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal bundle: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(jsonBytes)

	var sb strings.Builder

	sb.WriteString(versionSentinel + "\n")
	fmt.Fprintf(&sb, "%s%s%s\n\n", dataPrefix, encoded, dataSuffix)

	fmt.Fprintf(&sb, "# Partline · %s · %s\n\n",
		b.Context.ContextID(),
		b.Session.ExportedAt.Format("2006-01-02 15:04:05 MST"),
	)

	// ## Summary
	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- Range: %s\n", b.Range)
	fmt.Fprintf(&sb, "- Duration: %s\n", b.Range.Duration())
	fmt.Fprintf(&sb, "- Partitions: %d\n", len(b.Partitions))
	if b.Session.Annotator != "" {
		fmt.Fprintf(&sb, "- Annotator: %s\n", b.Session.Annotator)
	}
	sb.WriteString("\n")

	// ## Partitions
	sb.WriteString("## Partitions\n\n")
	if len(b.Partitions) == 0 {
		sb.WriteString("_No partitions stored; the whole range is unclassified._\n")
	} else {
		sb.WriteString("| # | Start | End | Category | Title |\n")
		sb.WriteString("|---|-------|-----|----------|-------|\n")
		for i, p := range b.Partitions {
			end := b.Range.End
			if p.End != nil {
				end = *p.End
			} else if i+1 < len(b.Partitions) {
				end = b.Partitions[i+1].Start
			}
			fmt.Fprintf(&sb, "| %d | %s | %s | %s | %s |\n",
				i,
				timeline.FormatInstant(p.Start),
				timeline.FormatInstant(end),
				b.typeName(p.Category()),
				cell(p.Title),
			)
		}
	}
	sb.WriteString("\n")

	// ## Notes
	sb.WriteString("## Notes\n\n")
	if len(b.Notes) == 0 {
		sb.WriteString("_No notes._\n")
	} else {
		for _, n := range b.Notes {
			kind := "note"
			if n.IsSummary {
				kind = "summary"
			}
			fmt.Fprintf(&sb, "- [%s] (%s) %s\n", n.Timestamp.Format("2006-01-02 15:04:05"), kind, n.Message)
		}
	}
	sb.WriteString("\n")

	// ## Journal
	sb.WriteString("## Journal\n\n")
	if len(b.Journal) == 0 {
		sb.WriteString("_No changes recorded._\n")
	} else {
		for _, e := range b.Journal {
			fmt.Fprintf(&sb, "- [%s] %s: %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Op, e.Detail)
		}
	}
	sb.WriteString("\n")

	return []byte(sb.String()), nil
}

// cell keeps a value from breaking the Markdown table row.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
