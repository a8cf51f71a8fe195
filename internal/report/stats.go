package report

import (
	"math"
	"slices"
	"strconv"
	"strings"
)

// ColumnStats summarises one table column.
type ColumnStats struct {
	Name    string
	Count   int
	Missing int
	Unique  int
	Numeric bool
	Mean    float64
	Std     float64
	Min     float64
	Median  float64
	Max     float64
}

// StatsHeader labels the rows produced by StatsRows.
var StatsHeader = []string{"column", "count", "missing", "unique", "mean", "std", "min", "median", "max"}

// Describe computes per-column statistics. A column is numeric when every
// non-empty cell parses as a float.
func Describe(header []string, rows [][]string) []ColumnStats {
	out := make([]ColumnStats, 0, len(header))
	for i, name := range header {
		st := ColumnStats{Name: name, Numeric: true}
		seen := make(map[string]struct{})
		var values []float64
		for _, row := range rows {
			cell := ""
			if i < len(row) {
				cell = strings.TrimSpace(row[i])
			}
			if cell == "" {
				st.Missing++
				continue
			}
			st.Count++
			seen[cell] = struct{}{}
			if !st.Numeric {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil || math.IsNaN(v) {
				st.Numeric = false
				continue
			}
			values = append(values, v)
		}
		st.Unique = len(seen)
		if st.Count == 0 {
			st.Numeric = false
		}
		if st.Numeric {
			fillNumeric(&st, values)
		}
		out = append(out, st)
	}
	return out
}

func fillNumeric(st *ColumnStats, values []float64) {
	slices.Sort(values)
	n := float64(len(values))
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	st.Mean = sum / n
	if len(values) > 1 {
		sq := 0.0
		for _, v := range values {
			d := v - st.Mean
			sq += d * d
		}
		st.Std = math.Sqrt(sq / (n - 1))
	}
	st.Min = values[0]
	st.Max = values[len(values)-1]
	mid := len(values) / 2
	if len(values)%2 == 0 {
		st.Median = (values[mid-1] + values[mid]) / 2
	} else {
		st.Median = values[mid]
	}
}

// StatsRows renders stats as table rows aligned with StatsHeader.
func StatsRows(stats []ColumnStats) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, st := range stats {
		row := []string{st.Name, strconv.Itoa(st.Count), strconv.Itoa(st.Missing), strconv.Itoa(st.Unique)}
		if st.Numeric {
			row = append(row, formatFloat(st.Mean), formatFloat(st.Std), formatFloat(st.Min), formatFloat(st.Median), formatFloat(st.Max))
		} else {
			row = append(row, "", "", "", "", "")
		}
		rows = append(rows, row)
	}
	return rows
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
