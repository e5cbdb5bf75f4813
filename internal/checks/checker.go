// Package checks compares an item's current state with the state its
// reference entry calls for and records the differences.
package checks

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/auditor-cli/internal/metadata"
	"github.com/sells-group/auditor-cli/internal/metatable"
	"github.com/sells-group/auditor-cli/internal/model"
	"github.com/sells-group/auditor-cli/internal/tags"
)

// Naming constants derived from reference categories.
const (
	ShelfGroup      = "UGRC Shelf"
	ShelfFolder     = "UGRC_Shelved"
	ShelvedTag      = "Shelved"
	StaticTag       = "Static"
	SGIDGroupPrefix = "Utah SGID "
	DeprecatedMark  = "{Deprecated} "

	// MetadataNotShown replaces the old metadata value in the report.
	MetadataNotShown = "item.metadata from AGOL not shown due to length"
)

// Housekeeping tags carried by every item with a category tag.
var housekeepingTags = []string{"SGID", "UGRC"}

// Options configures a Suite.
type Options struct {
	Index        *metatable.Index
	Rules        Rules
	ThumbnailDir string
	CacheMaxAge  int
	// Metadata resolves source documents; nil disables the metadata check.
	Metadata metadata.Source
}

// Suite holds the organization-wide inputs shared by every item's checker.
type Suite struct {
	opts Options
	sets compiled
}

// NewSuite compiles opts into a Suite.
func NewSuite(opts Options) *Suite {
	if opts.Index == nil {
		opts.Index = metatable.NewIndex()
	}
	return &Suite{opts: opts, sets: opts.Rules.compile()}
}

// Rules returns the rule set the suite checks against.
func (s *Suite) Rules() Rules {
	return s.opts.Rules
}

// Checker runs every check for one item against one snapshot.
type Checker struct {
	suite  *Suite
	state  *model.ItemState
	report *model.ReportEntry

	entry   model.ReferenceEntry
	indexed bool

	titleFromTable string
	newGroup       string
	newFolder      string
	authoritative  string
	staticShelved  string
	doc            *metadata.Document
}

// Checker returns a checker for the item captured in state.
func (s *Suite) Checker(state *model.ItemState) *Checker {
	return &Checker{
		suite:  s,
		state:  state,
		report: model.NewReportEntry(state.ID),
	}
}

// Report returns the entry the checks write into.
func (c *Checker) Report() *model.ReportEntry {
	return c.report
}

// Setup derives the desired values from the item's reference entry and loads
// its source metadata document if one exists.
func (c *Checker) Setup() error {
	entry, ok := c.suite.opts.Index.Lookup(c.state.ID)
	if ok {
		c.entry, c.indexed = entry, true
		c.titleFromTable = entry.PublishedName
		c.newGroup = groupFor(entry)
		c.authoritative = entry.Authoritative.ContentStatus()
		c.report.SourceName = entry.SourceName

		if c.newGroup == "" {
			zap.L().Debug("checks: no group derivable from source name",
				zap.String("item_id", c.state.ID),
				zap.String("source_name", entry.SourceName),
			)
		}

		if src := c.suite.opts.Metadata; src != nil {
			doc, err := src.Lookup(entry.SourceName)
			if err != nil {
				return eris.Wrapf(err, "checks: load metadata for %s", entry.SourceName)
			}
			c.doc = doc
		}
	}

	switch {
	case c.newGroup == ShelfGroup:
		c.newFolder = ShelfFolder
	case c.newGroup != "":
		c.newFolder = strings.TrimPrefix(c.newGroup, SGIDGroupPrefix)
	}

	switch {
	case c.newGroup == ShelfGroup:
		c.staticShelved = model.CategoryShelved
	case c.indexed && c.entry.IsStatic():
		c.staticShelved = model.CategoryStatic
	}
	return nil
}

// groupFor returns the sharing group for entry: the shelf for shelved items,
// otherwise "Utah SGID {Category}" from the second dotted segment of the
// source name. Empty when the source name has no second segment.
func groupFor(entry model.ReferenceEntry) string {
	if entry.IsShelved() {
		return ShelfGroup
	}
	parts := strings.Split(entry.SourceName, ".")
	if len(parts) < 2 || parts[1] == "" {
		return ""
	}
	return SGIDGroupPrefix + tags.Title(parts[1])
}

// Tags computes the cleaned tag list.
func (c *Checker) Tags() {
	sets := c.suite.sets

	title := c.state.Title
	if c.titleFromTable != "" {
		title = c.titleFromTable
	}
	titleWords := strings.Fields(title)
	lowerTitleWords := strings.Fields(strings.ToLower(title))

	var candidates []string
	for _, t := range c.state.Tags {
		if t = strings.TrimSpace(t); t != "" {
			candidates = append(candidates, t)
		}
	}
	if c.doc != nil {
		for _, t := range c.doc.Keywords {
			if t = strings.TrimSpace(t); t != "" {
				candidates = append(candidates, t)
			}
		}
	}

	var newTags []string
	for _, orig := range candidates {
		lower := strings.ToLower(orig)
		singleWordInTitle := contains(lowerTitleWords, lower)
		multiWordInTitle := strings.Contains(orig, " ") && strings.Contains(title, orig)

		switch {
		case lower == "utah":
			// Kept unless the title already says Utah.
			if !contains(titleWords, "Utah") && !contains(newTags, "Utah") {
				newTags = append(newTags, "Utah")
			}
		case sets.deny.Has(lower):
		case singleWordInTitle || multiWordInTitle:
		default:
			cased := tags.Normalize(orig, sets.upper, sets.articles)
			if !contains(newTags, cased) {
				newTags = append(newTags, cased)
			}
		}
	}

	groupTag := ""
	switch {
	case c.staticShelved == model.CategoryShelved:
		groupTag = ShelvedTag
	case c.newGroup != "":
		groupTag = strings.TrimPrefix(c.newGroup, SGIDGroupPrefix)
	}

	if groupTag != "" {
		if lowered := strings.ToLower(groupTag); contains(newTags, lowered) {
			newTags = remove(newTags, lowered)
			newTags = append(newTags, groupTag)
		} else if !contains(newTags, groupTag) {
			newTags = append(newTags, groupTag)
		}

		if c.staticShelved == model.CategoryStatic {
			if !contains(newTags, StaticTag) {
				newTags = append(newTags, StaticTag)
			}
			newTags = remove(newTags, ShelvedTag)
		}

		for _, t := range housekeepingTags {
			if !contains(newTags, t) {
				newTags = append(newTags, t)
			}
		}
	}

	report := model.TagsReport{Fix: model.FixNo, Old: c.state.Tags}
	if !sameSorted(newTags, c.state.Tags) {
		report.Fix = model.FixYes
		report.New = newTags
	}
	c.report.Tags = report
}

// Title compares the title with the published name and the deprecation marker.
func (c *Checker) Title() {
	current := c.state.Title
	report := model.ValueReport{Fix: model.FixNo, Old: current}

	newTitle := current
	existing := strings.TrimPrefix(current, DeprecatedMark)

	if c.titleFromTable != "" && c.titleFromTable != existing {
		newTitle = c.titleFromTable
		report = model.ValueReport{Fix: model.FixYes, Old: current, New: newTitle}
	}

	if c.authoritative == model.ContentStatusDeprecated &&
		!strings.Contains(strings.ToLower(newTitle), "deprecated") {
		newTitle = DeprecatedMark + newTitle
		report = model.ValueReport{Fix: model.FixYes, Old: current, New: newTitle}
	}

	c.report.Title = report
}

// Folder compares the item's folder, looked up in folders by item id, with
// the category folder.
func (c *Checker) Folder(folders map[string]string) {
	current := folders[c.state.ID]

	report := model.ValueReport{Fix: model.FixNo}
	if c.newFolder != "" && c.newFolder != current {
		report = model.ValueReport{Fix: model.FixYes, Old: current, New: c.newFolder}
	}
	c.report.Folder = report
}

// Groups checks the item is shared with its category group. A failed group
// lookup is reported, never fixed.
func (c *Checker) Groups() {
	report := model.GroupsReport{Fix: model.FixNo}

	switch {
	case c.state.GroupsErr != nil:
		report.Unavailable = true
	case c.newGroup != "" && !contains(c.state.SharedGroups, c.newGroup):
		report = model.GroupsReport{Fix: model.FixYes, Old: c.state.SharedGroups, New: c.newGroup}
	}
	c.report.Groups = report
}

// Downloads checks indexed items allow extracts.
func (c *Checker) Downloads() {
	props := c.state.Properties
	needed := c.indexed && props != nil && !props.HasCapability("Extract")
	c.report.Downloads = model.FlagReport{Fix: model.FlagOf(needed)}
}

// DeleteProtection checks indexed items are protected from deletion.
func (c *Checker) DeleteProtection() {
	needed := c.indexed && !c.state.Protected
	c.report.DeleteProtection = model.FlagReport{Fix: model.FlagOf(needed)}
}

// Metadata compares the item's metadata with its source document.
func (c *Checker) Metadata() {
	report := model.MetadataReport{Fix: model.FixNo}

	if c.doc != nil && c.doc.XML != strings.TrimSpace(c.state.Metadata) {
		report = model.MetadataReport{
			Fix: model.FixYes,
			Old: MetadataNotShown,
			New: c.doc.Path,
		}
		switch {
		case c.newGroup == ShelfGroup:
			report.Note = model.CategoryShelved
		case c.entry.IsStatic():
			report.Note = model.CategoryStatic
		}
	}
	c.report.Metadata = report
}

// DescriptionNote checks static and shelved items lead their description with
// the matching note.
func (c *Checker) DescriptionNote() {
	rules := c.suite.opts.Rules
	report := model.DescriptionNoteReport{Fix: model.FixNo}

	desc := c.state.Description
	switch {
	case c.staticShelved == model.CategoryStatic && !strings.HasPrefix(desc, rules.StaticNote):
		report = model.DescriptionNoteReport{Fix: model.FixYes, Source: model.CategoryStatic}
	case c.staticShelved == model.CategoryShelved && !strings.HasPrefix(desc, rules.ShelvedNote):
		report = model.DescriptionNoteReport{Fix: model.FixYes, Source: model.CategoryShelved}
	}
	c.report.DescriptionNote = report
}

// Thumbnail looks for the category thumbnail named after the last word of
// the group.
func (c *Checker) Thumbnail() {
	report := model.ThumbnailReport{Fix: model.FixNo}

	if words := strings.Fields(c.newGroup); len(words) > 0 {
		name := strings.ToLower(words[len(words)-1])
		path := filepath.Join(c.suite.opts.ThumbnailDir, name+".png")

		if _, err := os.Stat(path); err == nil {
			report = model.ThumbnailReport{Fix: model.FixYes, Path: path}
		} else {
			report = model.ThumbnailReport{Fix: model.FixNo, Path: "Thumbnail not found: " + path}
		}
	}
	c.report.Thumbnail = report
}

// Authoritative compares the content status with the reference flag.
func (c *Checker) Authoritative() {
	report := model.ValueReport{Fix: model.FixNo}

	current := c.state.ContentStatus
	if c.indexed && current != c.authoritative {
		report = model.ValueReport{Fix: model.FixYes, Old: current, New: c.authoritative}
		if current == "" {
			report.Old = "' '"
		}
	}
	c.report.Authoritative = report
}

// Visibility checks every readable layer is visible by default.
func (c *Checker) Visibility() {
	needed := false
	for _, layer := range c.state.Layers {
		if layer.DefaultVisibility != nil && !*layer.DefaultVisibility {
			needed = true
		}
	}
	c.report.Visibility = model.FlagReport{Fix: model.FlagOf(needed)}
}

// CacheAge compares the service's cacheMaxAge with the configured target.
func (c *Checker) CacheAge() {
	report := model.CacheAgeReport{Fix: model.FixNo}

	target := c.suite.opts.CacheMaxAge
	if props := c.state.Properties; c.indexed && props != nil && props.CacheMaxAge != target {
		report = model.CacheAgeReport{Fix: model.FixYes, Old: props.CacheMaxAge, New: target}
	}
	c.report.CacheAge = report
}

// Step is one named check. All returns the checks in the order they run.
type Step struct {
	Name string
	Run  func()
}

// All returns every check in run order. folders maps item id to folder title.
func (c *Checker) All(folders map[string]string) []Step {
	return []Step{
		{model.AttrTags, c.Tags},
		{model.AttrTitle, c.Title},
		{model.AttrFolder, func() { c.Folder(folders) }},
		{model.AttrGroups, c.Groups},
		{model.AttrDownloads, c.Downloads},
		{model.AttrDeleteProtection, c.DeleteProtection},
		{model.AttrMetadata, c.Metadata},
		{model.AttrDescriptionNote, c.DescriptionNote},
		{model.AttrThumbnail, c.Thumbnail},
		{model.AttrAuthoritative, c.Authoritative},
		{model.AttrVisibility, c.Visibility},
		{model.AttrCacheAge, c.CacheAge},
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// remove drops the first occurrence of s.
func remove(list []string, s string) []string {
	for i, v := range list {
		if v == s {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

func sameSorted(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
