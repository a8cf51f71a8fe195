package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"openbq/internal/job"
	"openbq/internal/workunit"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)
	appendRows(tw, rows, columns)

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// renderPanel draws a titled two-column label/value box.
func renderPanel(title string, rows [][]string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(title)
	appendRows(tw, rows, 2)
	return tw.Render()
}

func appendRows(tw table.Writer, rows [][]string, columns int) {
	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}
}

var (
	titleCase = cases.Title(language.English)
	upperCase = cases.Upper(language.English)
)

// jobInfoRows lists what a job is about to do. Engine is only shown for face
// jobs and the fusion code only for the fusion engine.
func jobInfoRows(plan job.Plan) [][]string {
	rows := [][]string{{"Modality", titleCase.String(string(plan.Mode))}}
	if plan.Mode == workunit.ModeFace {
		rows = append(rows, []string{"Engine", upperCase.String(string(plan.Engine))})
	}
	if plan.Engine == workunit.EngineFusion {
		rows = append(rows, []string{"Fusion code", strconv.Itoa(plan.FusionCode)})
	}
	rows = append(rows, []string{"Input type", strings.Join(plan.Types, ", ")})
	if plan.Mode == workunit.ModeFinger && plan.Target != "" {
		rows = append(rows, []string{"Target type", plan.Target})
	}
	rows = append(rows,
		[]string{"Input folder", plan.InputDir},
		[]string{"Input count", humanize.Comma(int64(plan.Discovered))},
	)
	return rows
}

func renderJobInfo(plan job.Plan, colorize bool) string {
	var b strings.Builder
	b.WriteString(renderPanel("Job Info", jobInfoRows(plan)))
	b.WriteString("\n")
	if plan.Limit > 0 {
		line := fmt.Sprintf("Scan number limit: %s", humanize.Comma(int64(plan.Limit)))
		b.WriteString(renderStatusLine("Notice", statusWarn, line, colorize))
		b.WriteString("\n")
	}
	return b.String()
}
