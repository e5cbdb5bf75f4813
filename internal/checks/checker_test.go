package checks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/auditor-cli/internal/metadata"
	"github.com/sells-group/auditor-cli/internal/metatable"
	"github.com/sells-group/auditor-cli/internal/model"
)

const (
	itemID      = "9af95df8fbb94bbd9a3e6f0f1c8a2b11"
	otherItemID = "c1a6f0e2d3b44a5e8f7d6c5b4a3e2d1f"
)

func sgidIndex(rows ...[]string) *metatable.Index {
	ix := metatable.NewIndex()
	ix.Load(rows, metatable.SGIDFields)
	return ix
}

func agolIndex(rows ...[]string) *metatable.Index {
	ix := metatable.NewIndex()
	ix.Load(rows, metatable.AGOLFields)
	return ix
}

func newChecker(t *testing.T, ix *metatable.Index, state *model.ItemState, mutate ...func(*Options)) *Checker {
	t.Helper()
	opts := Options{Index: ix, Rules: DefaultRules(), CacheMaxAge: 5}
	for _, m := range mutate {
		m(&opts)
	}
	c := NewSuite(opts).Checker(state)
	require.NoError(t, c.Setup())
	return c
}

func boolPtr(b bool) *bool { return &b }

func TestSetup_DerivesGroupAndFolder(t *testing.T) {
	c := newChecker(t, sgidIndex([]string{"SGID.BOUNDARIES.Counties", itemID, "Utah Counties", "y"}),
		&model.ItemState{ID: itemID, Title: "Utah Counties"})

	assert.Equal(t, "Utah SGID Boundaries", c.newGroup)
	assert.Equal(t, "Boundaries", c.newFolder)
	assert.Equal(t, model.ContentStatusAuthoritative, c.authoritative)
	assert.Equal(t, "SGID.BOUNDARIES.Counties", c.Report().SourceName)
	assert.Empty(t, c.staticShelved)
}

func TestSetup_Shelved(t *testing.T) {
	c := newChecker(t, agolIndex([]string{"SGID.HISTORIC.OldRoads", itemID, "Old Roads", "shelved"}),
		&model.ItemState{ID: itemID})

	assert.Equal(t, ShelfGroup, c.newGroup)
	assert.Equal(t, ShelfFolder, c.newFolder)
	assert.Equal(t, model.CategoryShelved, c.staticShelved)
}

func TestSetup_Static(t *testing.T) {
	c := newChecker(t, agolIndex([]string{"SGID.WATER.Lakes", itemID, "Lakes", "static"}),
		&model.ItemState{ID: itemID})

	assert.Equal(t, "Utah SGID Water", c.newGroup)
	assert.Equal(t, model.CategoryStatic, c.staticShelved)
	assert.Empty(t, c.authoritative)
}

func TestSetup_NotIndexed(t *testing.T) {
	c := newChecker(t, sgidIndex(), &model.ItemState{ID: itemID, Title: "x"})

	assert.False(t, c.indexed)
	assert.Empty(t, c.newGroup)
	assert.Empty(t, c.newFolder)
	assert.Empty(t, c.Report().SourceName)
}

func TestSetup_SourceNameWithoutCategory(t *testing.T) {
	c := newChecker(t, sgidIndex([]string{"Counties", itemID, "Counties", "n"}), &model.ItemState{ID: itemID})
	assert.Empty(t, c.newGroup)
	assert.Empty(t, c.newFolder)
}

type failingSource struct{}

func (failingSource) Lookup(string) (*metadata.Document, error) { return nil, eris.New("disk gone") }
func (failingSource) Load(string) (*metadata.Document, error)   { return nil, eris.New("disk gone") }

func TestSetup_MetadataError(t *testing.T) {
	opts := Options{
		Index:    sgidIndex([]string{"SGID.A.B", itemID, "B", "y"}),
		Rules:    DefaultRules(),
		Metadata: failingSource{},
	}
	err := NewSuite(opts).Checker(&model.ItemState{ID: itemID}).Setup()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		table    string
		flag     string
		wantFix  model.Flag
		wantNew  string
		notIndex bool
	}{
		{"matches table", "Utah Counties", "Utah Counties", "y", model.FixNo, "", false},
		{"stale title", "Counties", "Utah Counties", "y", model.FixYes, "Utah Counties", false},
		{"deprecated adds marker", "foo", "foo", "d", model.FixYes, "{Deprecated} foo", false},
		{"deprecated already marked", "{Deprecated} current", "current", "d", model.FixNo, "", false},
		{"deprecated with new title", "old", "new", "d", model.FixYes, "{Deprecated} new", false},
		{"marker on live item stays", "{Deprecated} current", "current", "y", model.FixNo, "", false},
		{"deprecated word anywhere", "foo (deprecated)", "foo (deprecated)", "d", model.FixNo, "", false},
		{"not indexed", "anything", "", "", model.FixNo, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix := sgidIndex()
			if !tt.notIndex {
				ix = sgidIndex([]string{"SGID.A.B", itemID, tt.table, tt.flag})
			}
			c := newChecker(t, ix, &model.ItemState{ID: itemID, Title: tt.current})
			c.Title()

			got := c.Report().Title
			assert.Equal(t, tt.wantFix, got.Fix)
			assert.Equal(t, tt.wantNew, got.New)
			assert.Equal(t, tt.current, got.Old, "old title is always kept")
		})
	}
}

func TestTags(t *testing.T) {
	tests := []struct {
		name     string
		index    *metatable.Index
		title    string
		current  []string
		wantFix  model.Flag
		wantTags []string
	}{
		{
			name:     "recases and adds housekeeping",
			index:    sgidIndex([]string{"SGID.TRANSPORTATION.Roads", itemID, "Utah Roads", "y"}),
			title:    "Utah Roads",
			current:  []string{"udot", "highways"},
			wantFix:  model.FixYes,
			wantTags: []string{"UDOT", "Highways", "Transportation", "SGID", "UGRC"},
		},
		{
			name:     "already clean",
			index:    sgidIndex([]string{"SGID.TRANSPORTATION.Roads", itemID, "Utah Roads", "y"}),
			title:    "Utah Roads",
			current:  []string{"UDOT", "Transportation", "SGID", "UGRC"},
			wantFix:  model.FixNo,
			wantTags: nil,
		},
		{
			name:     "order does not matter",
			index:    sgidIndex([]string{"SGID.TRANSPORTATION.Roads", itemID, "Utah Roads", "y"}),
			title:    "Utah Roads",
			current:  []string{"UGRC", "SGID", "Transportation", "UDOT"},
			wantFix:  model.FixNo,
			wantTags: nil,
		},
		{
			name:     "drops deny list and title words",
			index:    sgidIndex([]string{"SGID.WATER.Lakes", itemID, "Great Lakes", "y"}),
			title:    "Great Lakes",
			current:  []string{".sd", "lakes", "Service Definition", "AGRC", "Great Lakes", "water"},
			wantFix:  model.FixYes,
			wantTags: []string{"Water", "SGID", "UGRC"},
		},
		{
			name:     "utah kept when title lacks it",
			index:    sgidIndex([]string{"SGID.WATER.Lakes", itemID, "Lakes", "y"}),
			title:    "Lakes",
			current:  []string{"utah"},
			wantFix:  model.FixYes,
			wantTags: []string{"Utah", "Water", "SGID", "UGRC"},
		},
		{
			name:     "utah dropped when title has it",
			index:    sgidIndex([]string{"SGID.WATER.Lakes", itemID, "Utah Lakes", "y"}),
			title:    "Utah Lakes",
			current:  []string{"Utah", "Water", "SGID", "UGRC"},
			wantFix:  model.FixYes,
			wantTags: []string{"Water", "SGID", "UGRC"},
		},
		{
			name:     "shelved replaces category",
			index:    agolIndex([]string{"SGID.HISTORIC.OldRoads", itemID, "Old Roads", "shelved"}),
			title:    "Old Roads",
			current:  []string{"history"},
			wantFix:  model.FixYes,
			wantTags: []string{"History", "Shelved", "SGID", "UGRC"},
		},
		{
			name:     "static swaps shelved",
			index:    agolIndex([]string{"SGID.WATER.Lakes", itemID, "Lakes", "static"}),
			title:    "Lakes",
			current:  []string{"shelved"},
			wantFix:  model.FixYes,
			wantTags: []string{"Water", "Static", "SGID", "UGRC"},
		},
		{
			name:     "not indexed only recases",
			index:    sgidIndex(),
			title:    "Parcels",
			current:  []string{" plss fabric ", "", "parcels"},
			wantFix:  model.FixYes,
			wantTags: []string{"PLSS Fabric"},
		},
		{
			name:     "duplicates collapse",
			index:    sgidIndex(),
			title:    "Parcels",
			current:  []string{"gis", "GIS"},
			wantFix:  model.FixYes,
			wantTags: []string{"GIS"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newChecker(t, tt.index, &model.ItemState{ID: itemID, Title: tt.title, Tags: tt.current})
			c.Tags()

			got := c.Report().Tags
			assert.Equal(t, tt.wantFix, got.Fix)
			assert.Equal(t, tt.wantTags, got.New)
			assert.Equal(t, tt.current, got.Old)
		})
	}
}

func TestTags_UsesTableTitle(t *testing.T) {
	c := newChecker(t, sgidIndex([]string{"SGID.WATER.Lakes", itemID, "Lakes", "y"}),
		&model.ItemState{ID: itemID, Title: "Stale", Tags: []string{"lakes", "stale"}})
	c.Tags()

	assert.Equal(t, []string{"Stale", "Water", "SGID", "UGRC"}, c.Report().Tags.New)
}

func TestTags_IncludesMetadataKeywords(t *testing.T) {
	dir := t.TempDir()
	xml := `<metadata><dataIdInfo><searchKeys><keyword>hydrography</keyword><keyword>Lakes</keyword></searchKeys></dataIdInfo></metadata>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SGID.WATER.Lakes.xml"), []byte(xml), 0o644))

	c := newChecker(t, sgidIndex([]string{"SGID.WATER.Lakes", itemID, "Lakes", "y"}),
		&model.ItemState{ID: itemID, Title: "Lakes"},
		func(o *Options) { o.Metadata = metadata.NewDirSource(dir) })
	c.Tags()

	assert.Equal(t, []string{"Hydrography", "Water", "SGID", "UGRC"}, c.Report().Tags.New)
}

func TestTags_UtahKeywordConverges(t *testing.T) {
	dir := t.TempDir()
	xml := `<metadata><dataIdInfo><searchKeys><keyword>Utah</keyword><keyword>utah</keyword></searchKeys></dataIdInfo></metadata>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SGID.WATER.Lakes.xml"), []byte(xml), 0o644))
	ix := sgidIndex([]string{"SGID.WATER.Lakes", itemID, "Lakes", "y"})
	withDocs := func(o *Options) { o.Metadata = metadata.NewDirSource(dir) }

	c := newChecker(t, ix, &model.ItemState{ID: itemID, Title: "Lakes", Tags: []string{"utah", "water"}}, withDocs)
	c.Tags()
	fixed := c.Report().Tags
	require.Equal(t, model.FixYes, fixed.Fix)
	assert.Equal(t, []string{"Utah", "Water", "SGID", "UGRC"}, fixed.New)

	for range 3 {
		c = newChecker(t, ix, &model.ItemState{ID: itemID, Title: "Lakes", Tags: fixed.New}, withDocs)
		c.Tags()
		assert.Equal(t, model.FixNo, c.Report().Tags.Fix)
		assert.Nil(t, c.Report().Tags.New)
	}
}

func TestFolder(t *testing.T) {
	ix := sgidIndex([]string{"SGID.WATER.Lakes", itemID, "Lakes", "y"})

	c := newChecker(t, ix, &model.ItemState{ID: itemID})
	c.Folder(map[string]string{itemID: ""})
	assert.Equal(t, model.ValueReport{Fix: model.FixYes, Old: "", New: "Water"}, c.Report().Folder)

	c = newChecker(t, ix, &model.ItemState{ID: itemID})
	c.Folder(map[string]string{itemID: "Water"})
	assert.Equal(t, model.ValueReport{Fix: model.FixNo}, c.Report().Folder)

	c = newChecker(t, sgidIndex(), &model.ItemState{ID: itemID})
	c.Folder(map[string]string{itemID: "Anything"})
	assert.Equal(t, model.FixNo, c.Report().Folder.Fix)
}

func TestGroups(t *testing.T) {
	ix := sgidIndex([]string{"SGID.WATER.Lakes", itemID, "Lakes", "y"})

	c := newChecker(t, ix, &model.ItemState{ID: itemID, SharedGroups: []string{"Other"}})
	c.Groups()
	assert.Equal(t, model.GroupsReport{Fix: model.FixYes, Old: []string{"Other"}, New: "Utah SGID Water"}, c.Report().Groups)

	c = newChecker(t, ix, &model.ItemState{ID: itemID, SharedGroups: []string{"Other", "Utah SGID Water"}})
	c.Groups()
	assert.Equal(t, model.FixNo, c.Report().Groups.Fix)

	c = newChecker(t, ix, &model.ItemState{ID: itemID, GroupsErr: eris.New("403")})
	c.Groups()
	assert.Equal(t, model.GroupsReport{Fix: model.FixNo, Unavailable: true}, c.Report().Groups)
}

func TestDownloadsAndProtection(t *testing.T) {
	ix := sgidIndex([]string{"SGID.WATER.Lakes", itemID, "Lakes", "y"})

	c := newChecker(t, ix, &model.ItemState{ID: itemID, Properties: &model.ServiceProperties{Capabilities: "Query"}})
	c.Downloads()
	c.DeleteProtection()
	assert.Equal(t, model.FixYes, c.Report().Downloads.Fix)
	assert.Equal(t, model.FixYes, c.Report().DeleteProtection.Fix)

	c = newChecker(t, ix, &model.ItemState{ID: itemID, Protected: true, Properties: &model.ServiceProperties{Capabilities: "Query,Extract"}})
	c.Downloads()
	c.DeleteProtection()
	assert.Equal(t, model.FixNo, c.Report().Downloads.Fix)
	assert.Equal(t, model.FixNo, c.Report().DeleteProtection.Fix)

	c = newChecker(t, ix, &model.ItemState{ID: itemID, Protected: true})
	c.Downloads()
	assert.Equal(t, model.FixNo, c.Report().Downloads.Fix, "no properties")

	c = newChecker(t, sgidIndex(), &model.ItemState{ID: itemID, Properties: &model.ServiceProperties{Capabilities: "Query"}})
	c.Downloads()
	c.DeleteProtection()
	assert.Equal(t, model.FixNo, c.Report().Downloads.Fix)
	assert.Equal(t, model.FixNo, c.Report().DeleteProtection.Fix)
}

func TestMetadata(t *testing.T) {
	dir := t.TempDir()
	xml := "<metadata><Esri/></metadata>"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SGID.WATER.Lakes.xml"), []byte(xml), 0o644))
	withDocs := func(o *Options) { o.Metadata = metadata.NewDirSource(dir) }

	c := newChecker(t, agolIndex([]string{"SGID.WATER.Lakes", itemID, "Lakes", "static"}),
		&model.ItemState{ID: itemID, Metadata: "<metadata/>"}, withDocs)
	c.Metadata()
	assert.Equal(t, model.MetadataReport{
		Fix:  model.FixYes,
		Old:  MetadataNotShown,
		New:  filepath.Join(dir, "SGID.WATER.Lakes.xml"),
		Note: model.CategoryStatic,
	}, c.Report().Metadata)

	c = newChecker(t, agolIndex([]string{"SGID.WATER.Lakes", itemID, "Lakes", "shelved"}),
		&model.ItemState{ID: itemID, Metadata: "<metadata/>"}, withDocs)
	c.Metadata()
	assert.Equal(t, model.CategoryShelved, c.Report().Metadata.Note)

	c = newChecker(t, sgidIndex([]string{"SGID.WATER.Lakes", itemID, "Lakes", "y"}),
		&model.ItemState{ID: itemID, Metadata: xml + "\n"}, withDocs)
	c.Metadata()
	assert.Equal(t, model.MetadataReport{Fix: model.FixNo}, c.Report().Metadata)

	c = newChecker(t, sgidIndex([]string{"SGID.WATER.Rivers", itemID, "Rivers", "y"}),
		&model.ItemState{ID: itemID, Metadata: "<metadata/>"}, withDocs)
	c.Metadata()
	assert.Equal(t, model.FixNo, c.Report().Metadata.Fix, "no source document")
}

func TestDescriptionNote(t *testing.T) {
	rules := DefaultRules()

	c := newChecker(t, agolIndex([]string{"SGID.WATER.Lakes", itemID, "Lakes", "static"}),
		&model.ItemState{ID: itemID, Description: "Lakes of Utah"})
	c.DescriptionNote()
	assert.Equal(t, model.DescriptionNoteReport{Fix: model.FixYes, Source: "static"}, c.Report().DescriptionNote)

	c = newChecker(t, agolIndex([]string{"SGID.WATER.Lakes", itemID, "Lakes", "static"}),
		&model.ItemState{ID: itemID, Description: rules.StaticNote + "<div><br />Lakes"})
	c.DescriptionNote()
	assert.Equal(t, model.FixNo, c.Report().DescriptionNote.Fix)

	c = newChecker(t, agolIndex([]string{"SGID.HISTORIC.Old", itemID, "Old", "shelved"}),
		&model.ItemState{ID: itemID, Description: rules.StaticNote})
	c.DescriptionNote()
	assert.Equal(t, model.DescriptionNoteReport{Fix: model.FixYes, Source: "shelved"}, c.Report().DescriptionNote)

	c = newChecker(t, sgidIndex([]string{"SGID.WATER.Lakes", itemID, "Lakes", "y"}),
		&model.ItemState{ID: itemID})
	c.DescriptionNote()
	assert.Equal(t, model.FixNo, c.Report().DescriptionNote.Fix)
}

func TestThumbnail(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "water.png"), []byte("png"), 0o644))
	withDir := func(o *Options) { o.ThumbnailDir = dir }

	c := newChecker(t, sgidIndex([]string{"SGID.WATER.Lakes", itemID, "Lakes", "y"}), &model.ItemState{ID: itemID}, withDir)
	c.Thumbnail()
	assert.Equal(t, model.ThumbnailReport{Fix: model.FixYes, Path: filepath.Join(dir, "water.png")}, c.Report().Thumbnail)

	c = newChecker(t, agolIndex([]string{"SGID.HISTORIC.Old", itemID, "Old", "shelved"}), &model.ItemState{ID: itemID}, withDir)
	c.Thumbnail()
	assert.Equal(t, model.ThumbnailReport{
		Fix:  model.FixNo,
		Path: "Thumbnail not found: " + filepath.Join(dir, "shelf.png"),
	}, c.Report().Thumbnail)

	c = newChecker(t, sgidIndex(), &model.ItemState{ID: itemID}, withDir)
	c.Thumbnail()
	assert.Equal(t, model.ThumbnailReport{Fix: model.FixNo}, c.Report().Thumbnail)
}

func TestAuthoritative(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		current string
		want    model.ValueReport
	}{
		{"set authoritative", "y", "", model.ValueReport{Fix: model.FixYes, Old: "' '", New: "public_authoritative"}},
		{"already authoritative", "y", "public_authoritative", model.ValueReport{Fix: model.FixNo}},
		{"deprecate", "d", "public_authoritative", model.ValueReport{Fix: model.FixYes, Old: "public_authoritative", New: "deprecated"}},
		{"clear status", "n", "deprecated", model.ValueReport{Fix: model.FixYes, Old: "deprecated", New: ""}},
		{"nothing to do", "", "", model.ValueReport{Fix: model.FixNo}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newChecker(t, sgidIndex([]string{"SGID.A.B", itemID, "B", tt.flag}),
				&model.ItemState{ID: itemID, ContentStatus: tt.current})
			c.Authoritative()
			assert.Equal(t, tt.want, c.Report().Authoritative)
		})
	}

	c := newChecker(t, sgidIndex(), &model.ItemState{ID: itemID, ContentStatus: "deprecated"})
	c.Authoritative()
	assert.Equal(t, model.FixNo, c.Report().Authoritative.Fix)
}

func TestVisibility(t *testing.T) {
	c := newChecker(t, sgidIndex(), &model.ItemState{ID: itemID, Layers: []model.LayerState{
		{URL: "/0", DefaultVisibility: boolPtr(true)},
		{URL: "/1", DefaultVisibility: boolPtr(false)},
	}})
	c.Visibility()
	assert.Equal(t, model.FixYes, c.Report().Visibility.Fix)

	c = newChecker(t, sgidIndex(), &model.ItemState{ID: itemID, Layers: []model.LayerState{
		{URL: "/0", DefaultVisibility: boolPtr(true)},
		{URL: "/1"},
	}})
	c.Visibility()
	assert.Equal(t, model.FixNo, c.Report().Visibility.Fix)
}

func TestCacheAge(t *testing.T) {
	ix := sgidIndex([]string{"SGID.A.B", itemID, "B", "y"})

	c := newChecker(t, ix, &model.ItemState{ID: itemID, Properties: &model.ServiceProperties{CacheMaxAge: -1}})
	c.CacheAge()
	assert.Equal(t, model.CacheAgeReport{Fix: model.FixYes, Old: -1, New: 5}, c.Report().CacheAge)

	c = newChecker(t, ix, &model.ItemState{ID: itemID, Properties: &model.ServiceProperties{CacheMaxAge: 5}})
	c.CacheAge()
	assert.Equal(t, model.CacheAgeReport{Fix: model.FixNo}, c.Report().CacheAge)

	c = newChecker(t, sgidIndex(), &model.ItemState{ID: otherItemID, Properties: &model.ServiceProperties{CacheMaxAge: -1}})
	c.CacheAge()
	assert.Equal(t, model.FixNo, c.Report().CacheAge.Fix)
}

func TestAll_PopulatesEveryFlag(t *testing.T) {
	c := newChecker(t, sgidIndex([]string{"SGID.A.B", itemID, "B", "y"}), &model.ItemState{ID: itemID, Title: "B"})
	steps := c.All(map[string]string{})
	require.Len(t, steps, 12)
	for _, s := range steps {
		s.Run()
	}

	r := c.Report()
	for _, f := range []model.Flag{
		r.Tags.Fix, r.Title.Fix, r.Folder.Fix, r.Groups.Fix, r.Downloads.Fix, r.DeleteProtection.Fix,
		r.Metadata.Fix, r.DescriptionNote.Fix, r.Thumbnail.Fix, r.Authoritative.Fix, r.Visibility.Fix, r.CacheAge.Fix,
	} {
		assert.Contains(t, []model.Flag{model.FixYes, model.FixNo}, f)
	}
}
