package artifacts

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"sync"

	"openbq/internal/workunit"
)

const partialSuffix = ".partial"

// Table is the output table. Rows stream into a JSON-lines partial file and
// Seal rewrites them as CSV at Path.
type Table struct {
	path string

	mu     sync.Mutex
	file   *os.File
	rows   int
	sealed bool
}

// CreateTable opens the partial file backing the table at path.
func CreateTable(path string) (*Table, error) {
	file, err := os.OpenFile(path+partialSuffix, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}
	return &Table{path: path, file: file}, nil
}

// Path returns the sealed table location.
func (t *Table) Path() string {
	return t.path
}

// Rows returns the number of appended rows.
func (t *Table) Rows() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rows
}

// Append writes one record as a single row.
func (t *Table) Append(rec workunit.ResultRecord) error {
	row := make(map[string]any, len(rec.Attributes)+1)
	for k, v := range rec.Attributes {
		row[k] = v
	}
	row[workunit.PathColumn] = rec.Path
	line, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}
	line = append(line, '\n')

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sealed {
		return errors.New("table already sealed")
	}
	if _, err := t.file.Write(line); err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	t.rows++
	return nil
}

// Seal converts the partial rows to CSV. The header is the path column
// followed by every other attribute name in sorted order. Seal runs once;
// later calls are no-ops.
func (t *Table) Seal() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sealed {
		return nil
	}
	t.sealed = true
	if err := t.file.Close(); err != nil {
		return fmt.Errorf("close partial table: %w", err)
	}

	partial := t.path + partialSuffix
	rows, err := readRows(partial)
	if err != nil {
		return err
	}
	if err := writeCSV(t.path, rows); err != nil {
		return err
	}
	if err := os.Remove(partial); err != nil {
		return fmt.Errorf("remove partial table: %w", err)
	}
	return nil
}

// Discard removes the table and its partial file.
func (t *Table) Discard() error {
	t.mu.Lock()
	if !t.sealed {
		t.sealed = true
		_ = t.file.Close()
	}
	t.mu.Unlock()
	var errs []error
	for _, p := range []string{t.path, t.path + partialSuffix} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func readRows(path string) ([]map[string]any, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open partial table: %w", err)
	}
	defer file.Close()

	var rows []map[string]any
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var row map[string]any
		if err := dec.Decode(&row); err != nil {
			return nil, fmt.Errorf("decode row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read partial table: %w", err)
	}
	return rows, nil
}

func writeCSV(path string, rows []map[string]any) error {
	header := Header(rows)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(header))
	for _, row := range rows {
		for i, col := range header {
			record[i] = FormatCell(row[col])
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush table: %w", err)
	}
	return file.Close()
}

// Header returns the union of row keys with the path column first.
func Header(rows []map[string]any) []string {
	seen := map[string]struct{}{workunit.PathColumn: {}}
	var rest []string
	for _, row := range rows {
		for k := range row {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append([]string{workunit.PathColumn}, rest...)
}

// FormatCell renders a decoded JSON value as a CSV cell.
func FormatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

// ReadTable loads a sealed CSV table.
func ReadTable(path string) (header []string, rows [][]string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open table: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	header, err = r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, errors.New("table is empty")
		}
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, record)
	}
	return header, rows, nil
}
