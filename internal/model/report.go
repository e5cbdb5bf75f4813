package model

import (
	"sort"
	"strconv"
	"strings"
)

// Flag records whether a check found something to fix.
type Flag string

const (
	FixYes Flag = "Y"
	FixNo  Flag = "N"
)

// FlagOf converts a boolean decision into a Flag.
func FlagOf(needed bool) Flag {
	if needed {
		return FixYes
	}
	return FixNo
}

// Needed reports whether the flag calls for a fix.
func (f Flag) Needed() bool {
	return strings.EqualFold(string(f), string(FixYes))
}

// Attribute names used as report key prefixes.
const (
	AttrTags             = "tags"
	AttrTitle            = "title"
	AttrFolder           = "folder"
	AttrGroups           = "groups"
	AttrDownloads        = "downloads"
	AttrDeleteProtection = "delete_protection"
	AttrMetadata         = "metadata"
	AttrDescriptionNote  = "description_note"
	AttrThumbnail        = "thumbnail"
	AttrAuthoritative    = "authoritative"
	AttrVisibility       = "visibility"
	AttrCacheAge         = "cache_age"
)

// NoUpdatePrefix starts every result string written for an attribute that
// did not need fixing.
const NoUpdatePrefix = "No update needed for"

// NoUpdate returns the standard result for an attribute that needs no fix.
func NoUpdate(what string) string {
	return NoUpdatePrefix + " " + what
}

// IsNoUpdate reports whether result is a no-op result.
func IsNoUpdate(result string) bool {
	return strings.Contains(result, NoUpdatePrefix)
}

// GroupsUnavailable is reported as the old groups value when the platform
// could not list the item's groups.
const GroupsUnavailable = "Can't get group"

// TagsReport is the outcome of the tag check and fix.
type TagsReport struct {
	Fix Flag     `json:"fix"`
	Old []string `json:"old"`
	New []string `json:"new"`

	Result string `json:"result,omitempty"`
}

// ValueReport is the outcome of a check that replaces one string value.
type ValueReport struct {
	Fix Flag   `json:"fix"`
	Old string `json:"old"`
	New string `json:"new"`

	Result string `json:"result,omitempty"`
}

// GroupsReport is the outcome of the sharing group check and fix.
type GroupsReport struct {
	Fix         Flag     `json:"fix"`
	Old         []string `json:"old"`
	Unavailable bool     `json:"unavailable,omitempty"`
	New         string   `json:"new"`

	Result string `json:"result,omitempty"`
}

// FlagReport is the outcome of a check that only decides yes or no.
type FlagReport struct {
	Fix Flag `json:"fix"`

	Result string `json:"result,omitempty"`
}

// MetadataReport is the outcome of the metadata document check and fix.
// New holds the path of the source document; Note is "static", "shelved" or empty.
type MetadataReport struct {
	Fix  Flag   `json:"fix"`
	Old  string `json:"old"`
	New  string `json:"new"`
	Note string `json:"note"`

	Result string `json:"result,omitempty"`
}

// DescriptionNoteReport is the outcome of the description note check and fix.
type DescriptionNoteReport struct {
	Fix    Flag   `json:"fix"`
	Source string `json:"source"`

	Result string `json:"result,omitempty"`
}

// ThumbnailReport is the outcome of the thumbnail check and fix. Path holds
// either the thumbnail to upload or a "not found" note.
type ThumbnailReport struct {
	Fix  Flag   `json:"fix"`
	Path string `json:"path"`

	Result string `json:"result,omitempty"`
}

// CacheAgeReport is the outcome of the cacheMaxAge check and fix. Old and New
// are only meaningful when Fix is Y.
type CacheAgeReport struct {
	Fix Flag `json:"fix"`
	Old int  `json:"old"`
	New int  `json:"new"`

	Result string `json:"result,omitempty"`
}

// ReportEntry holds the check and fix outcomes for one item.
type ReportEntry struct {
	ItemID           string                `json:"item_id"`
	SourceName       string                `json:"sgid_name"`
	Tags             TagsReport            `json:"tags"`
	Title            ValueReport           `json:"title"`
	Folder           ValueReport           `json:"folder"`
	Groups           GroupsReport          `json:"groups"`
	Downloads        FlagReport            `json:"downloads"`
	DeleteProtection FlagReport            `json:"delete_protection"`
	Metadata         MetadataReport        `json:"metadata"`
	DescriptionNote  DescriptionNoteReport `json:"description_note"`
	Thumbnail        ThumbnailReport       `json:"thumbnail"`
	Authoritative    ValueReport           `json:"authoritative"`
	Visibility       FlagReport            `json:"visibility"`
	CacheAge         CacheAgeReport        `json:"cache_age"`

	// Error records a failure that stopped this item's checks or fixes.
	Error string `json:"error,omitempty"`
}

// NewReportEntry returns an empty entry for itemID.
func NewReportEntry(itemID string) *ReportEntry {
	return &ReportEntry{ItemID: itemID}
}

// AttributeResult pairs a result key with its result string.
type AttributeResult struct {
	Key   string
	Value string
}

// Results returns the fix results in the order the fixes run.
func (e *ReportEntry) Results() []AttributeResult {
	return []AttributeResult{
		{AttrMetadata + "_result", e.Metadata.Result},
		{AttrTags + "_result", e.Tags.Result},
		{AttrTitle + "_result", e.Title.Result},
		{AttrGroups + "_result", e.Groups.Result},
		{AttrFolder + "_result", e.Folder.Result},
		{AttrDeleteProtection + "_result", e.DeleteProtection.Result},
		{AttrDownloads + "_result", e.Downloads.Result},
		{AttrDescriptionNote + "_result", e.DescriptionNote.Result},
		{AttrThumbnail + "_result", e.Thumbnail.Result},
		{AttrAuthoritative + "_result", e.Authoritative.Result},
		{AttrVisibility + "_result", e.Visibility.Result},
		{AttrCacheAge + "_result", e.CacheAge.Result},
	}
}

// Fixed reports whether any fix result on the entry changed something.
func (e *ReportEntry) Fixed() bool {
	for _, r := range e.Results() {
		if r.Value != "" && !IsNoUpdate(r.Value) {
			return true
		}
	}
	return false
}

// checkColumns lists the flat report columns produced by the checks.
var checkColumns = []string{
	"SGID_Name",
	"tags_fix", "tags_old", "tags_new",
	"title_fix", "title_old", "title_new",
	"folder_fix", "folder_old", "folder_new",
	"groups_fix", "groups_old", "group_new",
	"downloads_fix",
	"delete_protection_fix",
	"metadata_fix", "metadata_old", "metadata_new", "metadata_note",
	"description_note_fix", "description_note_source",
	"thumbnail_fix", "thumbnail_path",
	"authoritative_fix", "authoritative_old", "authoritative_new",
	"visibility_fix",
	"cache_age_fix", "cache_age_old", "cache_age_new",
}

// Columns returns the flat report columns. Result columns are included when
// withResults is set.
func Columns(withResults bool) []string {
	cols := append([]string(nil), checkColumns...)
	if withResults {
		for _, r := range (&ReportEntry{}).Results() {
			cols = append(cols, r.Key)
		}
		cols = append(cols, "error")
	}
	return cols
}

// Row flattens the entry into string values matching Columns(withResults).
func (e *ReportEntry) Row(withResults bool) []string {
	groupsOld := ""
	switch {
	case e.Groups.Unavailable:
		groupsOld = GroupsUnavailable
	case e.Groups.Fix.Needed():
		groupsOld = FormatList(e.Groups.Old)
	}

	cacheOld, cacheNew := "", ""
	if e.CacheAge.Fix.Needed() {
		cacheOld = strconv.Itoa(e.CacheAge.Old)
		cacheNew = strconv.Itoa(e.CacheAge.New)
	}

	tagsNew := ""
	if e.Tags.Fix.Needed() {
		tagsNew = FormatList(e.Tags.New)
	}

	row := []string{
		e.SourceName,
		string(e.Tags.Fix), FormatList(e.Tags.Old), tagsNew,
		string(e.Title.Fix), e.Title.Old, e.Title.New,
		string(e.Folder.Fix), e.Folder.Old, e.Folder.New,
		string(e.Groups.Fix), groupsOld, e.Groups.New,
		string(e.Downloads.Fix),
		string(e.DeleteProtection.Fix),
		string(e.Metadata.Fix), e.Metadata.Old, e.Metadata.New, e.Metadata.Note,
		string(e.DescriptionNote.Fix), e.DescriptionNote.Source,
		string(e.Thumbnail.Fix), e.Thumbnail.Path,
		string(e.Authoritative.Fix), e.Authoritative.Old, e.Authoritative.New,
		string(e.Visibility.Fix),
		string(e.CacheAge.Fix), cacheOld, cacheNew,
	}
	if withResults {
		for _, r := range e.Results() {
			row = append(row, r.Value)
		}
		row = append(row, e.Error)
	}
	return row
}

// FormatList renders a list of strings for the flat report.
func FormatList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// RunReport accumulates report entries for one run in the order items were checked.
type RunReport struct {
	order   []string
	entries map[string]*ReportEntry
}

// NewRunReport returns an empty run report.
func NewRunReport() *RunReport {
	return &RunReport{entries: make(map[string]*ReportEntry)}
}

// Put stores entry, replacing any earlier entry for the same item.
func (r *RunReport) Put(entry *ReportEntry) {
	if _, ok := r.entries[entry.ItemID]; !ok {
		r.order = append(r.order, entry.ItemID)
	}
	r.entries[entry.ItemID] = entry
}

// Get returns the entry for itemID, or nil.
func (r *RunReport) Get(itemID string) *ReportEntry {
	return r.entries[itemID]
}

// IDs returns the item ids in insertion order.
func (r *RunReport) IDs() []string {
	return append([]string(nil), r.order...)
}

// Entries returns the entries in insertion order.
func (r *RunReport) Entries() []*ReportEntry {
	out := make([]*ReportEntry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

// Len returns the number of entries.
func (r *RunReport) Len() int {
	return len(r.order)
}

// FixCounters counts, per result key, the items that were actually changed.
type FixCounters map[string]int

// Tally increments the counter for every result on entry that is not a no-op.
// Empty results (fix never attempted) are skipped too.
func (c FixCounters) Tally(entry *ReportEntry) []AttributeResult {
	var changed []AttributeResult
	for _, r := range entry.Results() {
		if r.Value == "" || IsNoUpdate(r.Value) {
			continue
		}
		c[r.Key]++
		changed = append(changed, r)
	}
	return changed
}

// Keys returns the counter keys sorted alphabetically.
func (c FixCounters) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
