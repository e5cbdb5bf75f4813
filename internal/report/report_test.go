package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/auditor-cli/internal/model"
)

const (
	roadsID = "0a1b2c3d-0000-4000-8000-000000000001"
	lakesID = "0a1b2c3d-0000-4000-8000-000000000003"
)

func sampleReport() *model.RunReport {
	newTags := []string{"Highways", "Transportation", "SGID", "UGRC"}

	report := model.NewRunReport()
	report.Put(&model.ReportEntry{
		ItemID:     roadsID,
		SourceName: "SGID.TRANSPORTATION.Roads",
		Tags: model.TagsReport{
			Fix:    model.FixYes,
			Old:    []string{"Roads", "highways"},
			New:    newTags,
			Result: "Updated tags to " + model.FormatList(newTags),
		},
		Title:            model.ValueReport{Fix: model.FixYes, Old: "Roads", New: "Utah Roads", Result: "Updated title to 'Utah Roads'"},
		Folder:           model.ValueReport{Fix: model.FixNo, Result: model.NoUpdate("folder")},
		Groups:           model.GroupsReport{Fix: model.FixNo, Old: []string{"Utah SGID Transportation"}, Result: model.NoUpdate("groups")},
		Downloads:        model.FlagReport{Fix: model.FixNo},
		DeleteProtection: model.FlagReport{Fix: model.FixNo},
		Metadata:         model.MetadataReport{Fix: model.FixNo},
		DescriptionNote:  model.DescriptionNoteReport{Fix: model.FixNo},
		Thumbnail:        model.ThumbnailReport{Fix: model.FixNo, Path: "Thumbnail not found: thumbs/transportation.png"},
		Authoritative:    model.ValueReport{Fix: model.FixNo},
		Visibility:       model.FlagReport{Fix: model.FixNo},
		CacheAge:         model.CacheAgeReport{Fix: model.FixYes, Old: -1, New: 5, Result: "Set cacheMaxAge to 5"},
	})
	report.Put(&model.ReportEntry{
		ItemID: lakesID,
		Error:  "auditor: read item: service\nunavailable",
	})
	return report
}

func fixedClock() time.Time {
	return time.Date(2026, 10, 14, 8, 30, 0, 0, time.UTC)
}

func TestDelimitedWriter_Render(t *testing.T) {
	w := &DelimitedWriter{Now: fixedClock}

	var buf bytes.Buffer
	require.NoError(t, w.Render(&buf, sampleReport()))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "delimited_report", buf.Bytes())
}

func TestDelimitedWriter_CustomSeparator(t *testing.T) {
	w := &DelimitedWriter{Separator: "\t", Now: fixedClock}

	var buf bytes.Buffer
	require.NoError(t, w.Render(&buf, model.NewRunReport()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2026-10-14 08:30:00", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "agol_id\tSGID_Name\ttags_fix"))
}

func TestDelimitedWriter_QuotesSeparatorInValues(t *testing.T) {
	w := &DelimitedWriter{Now: fixedClock}

	report := model.NewRunReport()
	report.Put(&model.ReportEntry{
		ItemID:     roadsID,
		SourceName: "SGID.TRANSPORTATION.Roads",
		Title:      model.ValueReport{Fix: model.FixYes, Old: "Roads | Trails", New: `Utah "Roads"`},
	})

	var buf bytes.Buffer
	require.NoError(t, w.Render(&buf, report))

	r := csv.NewReader(&buf)
	r.Comma = '|'
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	header, row := records[1], records[2]
	require.Len(t, row, len(header))
	col := func(name string) string {
		for i, h := range header {
			if h == name {
				return row[i]
			}
		}
		t.Fatalf("missing column %s", name)
		return ""
	}
	assert.Equal(t, "Roads | Trails", col("title_old"))
	assert.Equal(t, `Utah "Roads"`, col("title_new"))
	assert.Equal(t, "SGID.TRANSPORTATION.Roads", col("SGID_Name"))
}

func TestDelimitedWriter_InvalidSeparator(t *testing.T) {
	for _, sep := range []string{"||", `"`, "\n"} {
		w := &DelimitedWriter{Separator: sep, Now: fixedClock}
		assert.Error(t, w.Render(&bytes.Buffer{}, model.NewRunReport()), sep)

		_, err := New(FormatDelimited, "r.txt", sep, 0)
		assert.Error(t, err, sep)
	}
}

func TestDelimitedWriter_Rotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checks.txt")
	w := &DelimitedWriter{Path: path, RotateCount: 2, Now: fixedClock}

	for range 4 {
		require.NoError(t, w.Write(context.Background(), sampleReport()))
	}

	for _, name := range []string{"checks.txt", "checks.txt.1", "checks.txt.2"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	_, err := os.Stat(filepath.Join(dir, "checks.txt.3"))
	assert.True(t, os.IsNotExist(err))
}

func TestRotate_MissingFileIsNoop(t *testing.T) {
	require.NoError(t, rotate(filepath.Join(t.TempDir(), "none.txt"), 3))
}

func TestXLSXWriter_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checks.xlsx")
	w := &XLSXWriter{Path: path}
	require.NoError(t, w.Write(context.Background(), sampleReport()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet, ok := f.Sheet[SheetName]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 3)

	assert.Equal(t, IDColumn, sheet.Rows[0].Cells[0].Value)
	assert.Equal(t, roadsID, sheet.Rows[1].Cells[0].Value)
	assert.Equal(t, "SGID.TRANSPORTATION.Roads", sheet.Rows[1].Cells[1].Value)
	assert.Equal(t, lakesID, sheet.Rows[2].Cells[0].Value)
}

func TestNew(t *testing.T) {
	w, err := New("", "r.txt", "", 0)
	require.NoError(t, err)
	assert.IsType(t, &DelimitedWriter{}, w)

	w, err = New(FormatXLSX, "r.xlsx", "", 0)
	require.NoError(t, err)
	assert.IsType(t, &XLSXWriter{}, w)

	_, err = New("pdf", "r.pdf", "", 0)
	assert.Error(t, err)
}
