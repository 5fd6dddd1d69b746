// Package dataset loads tabular inputs into an in-memory table and writes
// linked and deduplicated outputs.
package dataset

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/namelink/internal/fetcher"
)

// Table is a headed, row-major table. Cells keep the type they were read
// with: CSV and XLSX cells are strings, JSON cells may be any JSON value.
type Table struct {
	Columns []string
	Rows    [][]any
}

// FromStrings builds a Table from string rows.
func FromStrings(header []string, rows [][]string) *Table {
	t := &Table{Columns: append([]string(nil), header...), Rows: make([][]any, len(rows))}
	for i, r := range rows {
		row := make([]any, len(r))
		for j, c := range r {
			row[j] = c
		}
		t.Rows[i] = row
	}
	return t
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Column returns the index of the named column.
func (t *Table) Column(name string) (int, error) {
	for i, c := range t.Columns {
		if c == name {
			return i, nil
		}
	}
	return -1, eris.Errorf("dataset: column %q not found (have %s)", name, strings.Join(t.Columns, ", "))
}

// Cell returns the value at row i of column col, or nil when the row is short.
func (t *Table) Cell(i, col int) any {
	if col < 0 || col >= len(t.Rows[i]) {
		return nil
	}
	return t.Rows[i][col]
}

// Values returns every cell of the named column in row order.
func (t *Table) Values(name string) ([]any, error) {
	col, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(t.Rows))
	for i := range t.Rows {
		out[i] = t.Cell(i, col)
	}
	return out, nil
}

// Names returns the named column as name strings. Cells that are not strings
// (numbers, nulls) become the empty name, which never matches.
func (t *Table) Names(name string) ([]string, error) {
	vals, err := t.Values(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(vals))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[i] = s
		}
	}
	return out, nil
}

// AddColumn appends a column filled by fn(row index). An existing column of
// the same name is overwritten in place.
func (t *Table) AddColumn(name string, fn func(i int) any) {
	col, err := t.Column(name)
	if err != nil {
		t.Columns = append(t.Columns, name)
		col = len(t.Columns) - 1
	}
	for i := range t.Rows {
		for len(t.Rows[i]) <= col {
			t.Rows[i] = append(t.Rows[i], nil)
		}
		t.Rows[i][col] = fn(i)
	}
}

// StringRows renders every cell as text, padding short rows to the header.
func (t *Table) StringRows() [][]string {
	out := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		row := make([]string, len(t.Columns))
		for j := range row {
			if j < len(r) {
				row[j] = FormatCell(r[j])
			}
		}
		out[i] = row
	}
	return out
}

// FormatCell renders a cell value as text. Nil renders empty.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// Load reads src (local path or http/https/ftp URL) into a Table. The format
// follows the extension: .csv, .txt and .tsv are delimited text, .xlsx is a
// workbook, .json an array of objects, and .zip an archive holding one of
// those. workDir receives downloaded and extracted files.
func Load(ctx context.Context, opener *fetcher.Opener, src, workDir string) (*Table, error) {
	log := zap.L().With(zap.String("source", src))

	switch ext := fetcher.Ext(src); ext {
	case ".xlsx":
		path, err := opener.Materialize(ctx, src, workDir)
		if err != nil {
			return nil, err
		}
		header, rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: load %s", src)
		}
		log.Debug("dataset: loaded xlsx", zap.Int("rows", len(rows)))
		return FromStrings(header, rows), nil

	case ".zip":
		path, err := opener.Materialize(ctx, src, workDir)
		if err != nil {
			return nil, err
		}
		inner, err := fetcher.ExtractTabular(path, workDir)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: load %s", src)
		}
		log.Debug("dataset: extracted archive entry", zap.String("entry", inner))
		return Load(ctx, opener, inner, workDir)

	case ".json":
		rc, err := opener.Open(ctx, src)
		if err != nil {
			return nil, err
		}
		defer rc.Close() //nolint:errcheck
		cols, recs, err := fetcher.ReadJSONRecords(rc)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: load %s", src)
		}
		t := &Table{Columns: cols, Rows: make([][]any, len(recs))}
		for i, rec := range recs {
			row := make([]any, len(cols))
			for j, c := range cols {
				row[j] = rec[c]
			}
			t.Rows[i] = row
		}
		log.Debug("dataset: loaded json", zap.Int("rows", len(recs)))
		return t, nil

	case ".csv", ".txt", ".tsv", "":
		rc, err := opener.Open(ctx, src)
		if err != nil {
			return nil, err
		}
		defer rc.Close() //nolint:errcheck
		header, rows, err := fetcher.ReadCSV(rc, fetcher.CSVOptions{LazyQuotes: true})
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: load %s", src)
		}
		log.Debug("dataset: loaded csv", zap.Int("rows", len(rows)))
		return FromStrings(header, rows), nil

	default:
		return nil, eris.Errorf("dataset: unsupported format %q for %s", ext, src)
	}
}

// Save writes t to path, choosing CSV, XLSX or JSON from the extension.
// Unknown extensions are written as CSV.
func Save(t *Table, path string) error {
	switch fetcher.Ext(path) {
	case ".xlsx":
		return fetcher.WriteXLSX(path, "Sheet1", t.Columns, t.StringRows())
	case ".json":
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrap(err, "dataset: create output")
		}
		defer f.Close() //nolint:errcheck
		return WriteJSON(f, t)
	default:
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrap(err, "dataset: create output")
		}
		defer f.Close() //nolint:errcheck
		return WriteCSV(f, t)
	}
}
