package report

import (
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"openbq/internal/artifacts"
	"openbq/internal/workunit"
)

const defaultPreviewRows = 50

// Views are the files produced by a report or filter run.
type Views struct {
	Table  string
	Report string
	Output string
}

// Filter selects and orders rows of an output table.
type Filter struct {
	Columns []string
	Query   string
	Sort    string
}

// Generator builds reports and filtered outputs.
type Generator struct {
	PreviewRows int
	Title       string
	Now         func() time.Time
}

// NewGenerator returns a generator with the given preview size.
func NewGenerator(previewRows int, title string) *Generator {
	if previewRows <= 0 {
		previewRows = defaultPreviewRows
	}
	return &Generator{PreviewRows: previewRows, Title: title, Now: time.Now}
}

// BuildReport writes the preview table and HTML report next to tablePath.
func (g *Generator) BuildReport(ctx context.Context, tablePath, cwd, prefix string) (Views, error) {
	header, rows, err := artifacts.ReadTable(tablePath)
	if err != nil {
		return Views{}, err
	}
	if err := ctx.Err(); err != nil {
		return Views{}, err
	}
	rewritePaths(header, rows, cwd, prefix)

	preview := derivedPath(tablePath, "preview", ".md")
	if err := os.WriteFile(preview, []byte(g.renderPreview(header, rows)+"\n"), 0o644); err != nil {
		return Views{}, fmt.Errorf("write preview: %w", err)
	}
	reportPath := derivedPath(tablePath, "report", ".html")
	if err := os.WriteFile(reportPath, []byte(g.renderHTML(tablePath, header, rows)), 0o644); err != nil {
		return Views{}, fmt.Errorf("write report: %w", err)
	}
	return Views{Table: preview, Report: reportPath}, nil
}

func (g *Generator) renderPreview(header []string, rows [][]string) string {
	limit := min(len(rows), g.previewRows())
	return newTable(header, rows[:limit]).RenderMarkdown()
}

func (g *Generator) renderHTML(source string, header []string, rows [][]string) string {
	title := g.Title
	if title == "" {
		title = "OpenBQ Report"
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}

	stats := newTable(StatsHeader, StatsRows(Describe(header, rows)))
	stats.Style().HTML.CSSClass = "stats"
	preview := newTable(header, rows[:min(len(rows), g.previewRows())])
	preview.Style().HTML.CSSClass = "preview"

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	b.WriteString("<style>body{font-family:sans-serif}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:2px 6px}</style>\n")
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(title))
	fmt.Fprintf(&b, "<p>Source: %s<br>Rows: %s<br>Columns: %d<br>Generated: %s</p>\n",
		html.EscapeString(source), humanize.Comma(int64(len(rows))), len(header), now().Format(time.RFC3339))
	b.WriteString("<h2>Statistics</h2>\n")
	b.WriteString(stats.RenderHTML())
	b.WriteString("\n<h2>Preview</h2>\n")
	b.WriteString(preview.RenderHTML())
	b.WriteString("\n</body>\n</html>\n")
	return b.String()
}

func (g *Generator) previewRows() int {
	if g.PreviewRows <= 0 {
		return defaultPreviewRows
	}
	return g.PreviewRows
}

func newTable(header []string, rows [][]string) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	h := make(table.Row, len(header))
	for i, col := range header {
		h[i] = col
	}
	tw.AppendHeader(h)
	for _, row := range rows {
		r := make(table.Row, len(header))
		for i := range header {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	configs := make([]table.ColumnConfig, 0, len(header))
	for i := range header {
		configs = append(configs, table.ColumnConfig{Number: i + 1, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw
}

// rewritePaths rewrites the file column in place. Paths under cwd are made
// relative to it before the prefix is applied.
func rewritePaths(header []string, rows [][]string, cwd, prefix string) {
	col := slices.Index(header, workunit.PathColumn)
	if col < 0 || (cwd == "" && prefix == "") {
		return
	}
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		p := artifacts.NormalizePath(row[col])
		if cwd != "" {
			rel := artifacts.RelativeTo(p, cwd)
			if rel == p {
				continue
			}
			p = rel
		}
		row[col] = artifacts.ReconstructPath(p, prefix)
	}
}

// derivedPath names a sibling of tablePath: output_x.csv becomes
// <kind>_x<ext>.
func derivedPath(tablePath, kind, ext string) string {
	dir, base := filepath.Split(tablePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.TrimPrefix(stem, "output_")
	return filepath.Join(dir, kind+"_"+stem+ext)
}
