// Package report writes run reports to disk.
package report

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/auditor-cli/internal/model"
)

// Report format names.
const (
	FormatDelimited = "delimited"
	FormatXLSX      = "xlsx"
)

// Defaults for DelimitedWriter.
const (
	DefaultSeparator   = "|"
	DefaultRotateCount = 18
)

// IDColumn heads the item id column.
const IDColumn = "agol_id"

// Writer writes a run report. Both writers satisfy auditor.Sink.
type Writer interface {
	Write(ctx context.Context, report *model.RunReport) error
}

// New returns the writer for format, writing to path.
func New(format, path, separator string, rotateCount int) (Writer, error) {
	switch format {
	case "", FormatDelimited:
		if _, err := separatorRune(separator); err != nil {
			return nil, err
		}
		return &DelimitedWriter{Path: path, Separator: separator, RotateCount: rotateCount}, nil
	case FormatXLSX:
		return &XLSXWriter{Path: path, RotateCount: rotateCount}, nil
	default:
		return nil, eris.Errorf("report: unknown format %q", format)
	}
}

// DelimitedWriter writes one line per item joined by Separator. The first
// line holds the time the report was written and the second the column
// header. Earlier reports are kept as Path.1 through Path.RotateCount.
type DelimitedWriter struct {
	Path        string
	Separator   string
	RotateCount int
	Now         func() time.Time
}

// Write rotates earlier reports and writes report to Path.
func (w *DelimitedWriter) Write(_ context.Context, report *model.RunReport) error {
	if err := os.MkdirAll(filepath.Dir(w.Path), 0o755); err != nil {
		return eris.Wrap(err, "report: create report dir")
	}
	if err := rotate(w.Path, w.rotateCount()); err != nil {
		return err
	}

	f, err := os.Create(w.Path)
	if err != nil {
		return eris.Wrap(err, "report: create report")
	}
	if err := w.Render(f, report); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrap(err, "report: close report")
	}
	return nil
}

// Render writes the report text to out. Values holding the separator or a
// double quote are quoted.
func (w *DelimitedWriter) Render(out io.Writer, report *model.RunReport) error {
	comma, err := separatorRune(w.Separator)
	if err != nil {
		return err
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}

	cw := csv.NewWriter(out)
	cw.Comma = comma
	if err := cw.Write([]string{now().Format("2006-01-02 15:04:05")}); err != nil {
		return eris.Wrap(err, "report: write report")
	}
	if err := cw.Write(append([]string{IDColumn}, model.Columns(true)...)); err != nil {
		return eris.Wrap(err, "report: write header")
	}
	for _, entry := range report.Entries() {
		values := append([]string{entry.ItemID}, entry.Row(true)...)
		for i, v := range values {
			values[i] = flatten(v)
		}
		if err := cw.Write(values); err != nil {
			return eris.Wrapf(err, "report: write row %s", entry.ItemID)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "report: write report")
}

// separatorRune returns the single character sep names, or the default.
func separatorRune(sep string) (rune, error) {
	if sep == "" {
		sep = DefaultSeparator
	}
	r, size := utf8.DecodeRuneInString(sep)
	if size != len(sep) || r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, eris.Errorf("report: invalid separator %q", sep)
	}
	return r, nil
}

func (w *DelimitedWriter) rotateCount() int {
	if w.RotateCount <= 0 {
		return DefaultRotateCount
	}
	return w.RotateCount
}

// flatten keeps a value on one line.
func flatten(v string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(v)
}

// rotate shifts path.1..path.(keep-1) up by one, drops path.keep and moves
// path to path.1.
func rotate(path string, keep int) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	oldest := fmt.Sprintf("%s.%d", path, keep)
	if err := os.Remove(oldest); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(err, "report: remove %s", oldest)
	}
	for i := keep - 1; i >= 1; i-- {
		from := fmt.Sprintf("%s.%d", path, i)
		to := fmt.Sprintf("%s.%d", path, i+1)
		if err := os.Rename(from, to); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return eris.Wrapf(err, "report: rotate %s", from)
		}
	}
	if err := os.Rename(path, path+".1"); err != nil {
		return eris.Wrapf(err, "report: rotate %s", path)
	}
	return nil
}

// XLSXWriter writes the report as a workbook with one sheet.
type XLSXWriter struct {
	Path        string
	RotateCount int
}

// SheetName names the report sheet.
const SheetName = "report"

// Write rotates earlier workbooks and saves report to Path.
func (w *XLSXWriter) Write(_ context.Context, report *model.RunReport) error {
	if err := os.MkdirAll(filepath.Dir(w.Path), 0o755); err != nil {
		return eris.Wrap(err, "report: create report dir")
	}
	keep := w.RotateCount
	if keep <= 0 {
		keep = DefaultRotateCount
	}
	if err := rotate(w.Path, keep); err != nil {
		return err
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	addRow(sheet, append([]string{IDColumn}, model.Columns(true)...))
	for _, entry := range report.Entries() {
		addRow(sheet, append([]string{entry.ItemID}, entry.Row(true)...))
	}

	if err := file.Save(w.Path); err != nil {
		return eris.Wrap(err, "report: save workbook")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().Value = v
	}
}
