package report

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"openbq/internal/artifacts"
	"openbq/internal/workunit"
)

const filterTable = "output"

var errEmptyTable = errors.New("table has no rows")

// FilterOutput writes the rows of tablePath matching filter to a sibling CSV
// and builds a report for it. Query is a SQL boolean expression over the
// table's columns; Sort is a comma-separated list of "column [asc|desc]".
func (g *Generator) FilterOutput(ctx context.Context, tablePath string, filter Filter, cwd, prefix string) (Views, error) {
	header, rows, err := artifacts.ReadTable(tablePath)
	if err != nil {
		return Views{}, err
	}
	if len(rows) == 0 {
		return Views{}, errEmptyTable
	}
	outHeader, outRows, err := Query(ctx, header, rows, filter)
	if err != nil {
		return Views{}, err
	}

	outPath := derivedPath(tablePath, "filtered", ".csv")
	if err := writeCSV(outPath, outHeader, outRows); err != nil {
		return Views{}, err
	}
	views, err := g.BuildReport(ctx, outPath, cwd, prefix)
	if err != nil {
		return Views{Output: outPath}, fmt.Errorf("filtered report: %w", err)
	}
	return Views{Output: outPath, Table: views.Table, Report: views.Report}, nil
}

// Query runs filter over rows with an in-memory SQLite database. Numeric cells
// compare as numbers, but the returned rows keep the table's original text.
func Query(ctx context.Context, header []string, rows [][]string, filter Filter) ([]string, [][]string, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite db: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := load(ctx, db, header, rows); err != nil {
		return nil, nil, err
	}

	columns, err := selectColumns(header, filter.Columns)
	if err != nil {
		return nil, nil, err
	}
	indexes := make([]int, len(columns))
	for i, col := range columns {
		indexes[i] = slices.Index(header, col)
	}
	stmt := "SELECT rowid FROM " + filterTable
	if q := strings.TrimSpace(filter.Query); q != "" {
		stmt += " WHERE " + q
	}
	if s := strings.TrimSpace(filter.Sort); s != "" {
		order, err := orderBy(header, s)
		if err != nil {
			return nil, nil, err
		}
		stmt += " ORDER BY " + order
	} else {
		stmt += " ORDER BY rowid"
	}

	result, err := db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, nil, fmt.Errorf("run filter: %w", err)
	}
	defer result.Close()

	var out [][]string
	for result.Next() {
		var rowid int64
		if err := result.Scan(&rowid); err != nil {
			return nil, nil, fmt.Errorf("scan filter row: %w", err)
		}
		if rowid < 1 || rowid > int64(len(rows)) {
			return nil, nil, fmt.Errorf("filter returned unknown row %d", rowid)
		}
		src := rows[rowid-1]
		row := make([]string, len(indexes))
		for i, idx := range indexes {
			if idx < len(src) {
				row[i] = src[idx]
			}
		}
		out = append(out, row)
	}
	if err := result.Err(); err != nil {
		return nil, nil, fmt.Errorf("read filter rows: %w", err)
	}
	return columns, out, nil
}

func load(ctx context.Context, db *sql.DB, header []string, rows [][]string) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE "+filterTable+" ("+joinQuoted(header)+")"); err != nil {
		return fmt.Errorf("create filter table: %w", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin load: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(header)), ",")
	insert, err := tx.PrepareContext(ctx, "INSERT INTO "+filterTable+" VALUES ("+placeholders+")")
	if err != nil {
		return fmt.Errorf("prepare load: %w", err)
	}
	defer insert.Close()

	pathCol := slices.Index(header, workunit.PathColumn)
	args := make([]any, len(header))
	for _, row := range rows {
		for i := range header {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if i == pathCol {
				args[i] = cell
				continue
			}
			args[i] = typedCell(cell)
		}
		if _, err := insert.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("load row: %w", err)
		}
	}
	return tx.Commit()
}

// typedCell stores numbers as REAL so comparisons in queries are numeric.
// Only the database copy is typed; output rows are read back from the table.
func typedCell(cell string) any {
	if cell == "" {
		return nil
	}
	if v, err := strconv.ParseFloat(cell, 64); err == nil {
		return v
	}
	return cell
}

// selectColumns validates requested columns and keeps the path column first.
func selectColumns(header, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return header, nil
	}
	out := []string{workunit.PathColumn}
	for _, col := range requested {
		for part := range strings.SplitSeq(col, ",") {
			part = strings.TrimSpace(part)
			if part == "" || slices.Contains(out, part) {
				continue
			}
			if !slices.Contains(header, part) {
				return nil, fmt.Errorf("unknown column %q", part)
			}
			out = append(out, part)
		}
	}
	return out, nil
}

func orderBy(header []string, spec string) (string, error) {
	var terms []string
	for part := range strings.SplitSeq(spec, ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		if len(fields) > 2 {
			return "", fmt.Errorf("invalid sort term %q", strings.TrimSpace(part))
		}
		col := fields[0]
		dir := "ASC"
		if strings.HasPrefix(col, "-") {
			col = col[1:]
			dir = "DESC"
		}
		if len(fields) == 2 {
			switch strings.ToUpper(fields[1]) {
			case "ASC":
				dir = "ASC"
			case "DESC":
				dir = "DESC"
			default:
				return "", fmt.Errorf("invalid sort direction %q", fields[1])
			}
		}
		if !slices.Contains(header, col) {
			return "", fmt.Errorf("unknown sort column %q", col)
		}
		terms = append(terms, quoteIdent(col)+" "+dir)
	}
	if len(terms) == 0 {
		return "rowid", nil
	}
	return strings.Join(terms, ", "), nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func joinQuoted(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create filtered output: %w", err)
	}
	defer file.Close()
	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write filtered header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write filtered rows: %w", err)
	}
	return file.Close()
}
