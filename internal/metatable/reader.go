package metatable

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Reader yields the rows of one reference table, one string per requested field.
type Reader interface {
	ReadTable(ctx context.Context, fields []string) ([][]string, error)
}

// Table pairs a reader with the field list that decides the row schema.
type Table struct {
	Name   string
	Reader Reader
	Fields []string
}

// CSVReader reads a reference table exported as CSV with a header row.
type CSVReader struct {
	Path string
}

// ReadTable implements Reader.
func (r *CSVReader) ReadTable(ctx context.Context, fields []string) ([][]string, error) {
	f, err := os.Open(r.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "metatable: open csv %s", r.Path)
	}
	defer f.Close() //nolint:errcheck

	return readCSV(ctx, f, fields)
}

func readCSV(ctx context.Context, rd io.Reader, fields []string) ([][]string, error) {
	reader := csv.NewReader(rd)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "metatable: read csv header")
	}
	// Spreadsheet exports often lead with a byte order mark.
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	cols, err := columnIndexes(header, fields)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "metatable: context cancelled")
		}
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "metatable: read csv row")
		}
		rows = append(rows, project(record, cols))
	}
}

// XLSXReader reads a reference table from the first sheet of a workbook, or
// from the named sheet when Sheet is set.
type XLSXReader struct {
	Path  string
	Sheet string
}

// ReadTable implements Reader.
func (r *XLSXReader) ReadTable(ctx context.Context, fields []string) ([][]string, error) {
	f, err := xlsx.OpenFile(r.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "metatable: open xlsx %s", r.Path)
	}

	sheet, err := r.sheet(f)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	cols, err := columnIndexes(cellStrings(sheet.Rows[0]), fields)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(sheet.Rows)-1)
	for _, row := range sheet.Rows[1:] {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "metatable: context cancelled")
		}
		rows = append(rows, project(cellStrings(row), cols))
	}
	return rows, nil
}

func (r *XLSXReader) sheet(f *xlsx.File) (*xlsx.Sheet, error) {
	if r.Sheet != "" {
		sheet, ok := f.Sheet[r.Sheet]
		if !ok {
			return nil, eris.Errorf("metatable: sheet %q not found", r.Sheet)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("metatable: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

func cellStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, c := range row.Cells {
		cells[j] = c.String()
	}
	return cells
}

// columnIndexes maps each requested field to its header position,
// matching names case-insensitively.
func columnIndexes(header, fields []string) ([]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.ToLower(strings.TrimSpace(h))] = i
	}
	cols := make([]int, len(fields))
	for i, f := range fields {
		idx, ok := pos[strings.ToLower(f)]
		if !ok {
			return nil, eris.Errorf("metatable: field %q not found in header", f)
		}
		cols[i] = idx
	}
	return cols, nil
}

func project(record []string, cols []int) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		if c < len(record) {
			out[i] = record[c]
		}
	}
	return out
}
