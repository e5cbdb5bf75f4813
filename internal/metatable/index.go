// Package metatable builds the authoritative index of desired item state from
// one or more reference tables.
package metatable

import (
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/auditor-cli/internal/model"
)

// ErrDuplicateKeys is returned by Index.Err when an item id appears more than
// once across the loaded tables.
var ErrDuplicateKeys = eris.New("metatable: duplicate item ids")

// Field lists for the two supported table schemas. The last field decides how
// a row is read.
var (
	SGIDFields = []string{"TABLENAME", "AGOL_ITEM_ID", "AGOL_PUBLISHED_NAME", "Authoritative"}
	AGOLFields = []string{"TABLENAME", "AGOL_ITEM_ID", "AGOL_PUBLISHED_NAME", "CATEGORY"}
)

// authoritativeField marks the SGID schema, whose rows carry a status flag
// instead of a category.
const authoritativeField = "authoritative"

// uncategorizedFlag is the authoritative value assumed for category-schema rows.
const uncategorizedFlag = "n"

// Index maps item ids to reference entries. A key is stored on first sighting
// only; later sightings are recorded as duplicates.
type Index struct {
	entries    map[string]model.ReferenceEntry
	duplicates []string
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{entries: make(map[string]model.ReferenceEntry)}
}

// Load adds rows shaped by fields to the index. Rows whose item id is not a
// well formed UUID are skipped. Load never fails; callers must check Err
// before using the index.
func (ix *Index) Load(rows [][]string, fields []string) {
	sgidSchema := len(fields) > 0 && strings.EqualFold(fields[len(fields)-1], authoritativeField)

	for _, row := range rows {
		sourceName, itemID, publishedName, last := cell(row, 0), cell(row, 1), cell(row, 2), cell(row, 3)

		if _, err := uuid.Parse(itemID); err != nil {
			continue
		}

		entry := model.ReferenceEntry{
			SourceName:    sourceName,
			PublishedName: publishedName,
		}
		if sgidSchema {
			entry.Category = model.CategorySGID
			entry.Authoritative = model.ParseAuthoritativeFlag(last)
		} else {
			entry.Category = last
			entry.Authoritative = model.ParseAuthoritativeFlag(uncategorizedFlag)
		}

		if _, seen := ix.entries[itemID]; seen {
			ix.duplicates = append(ix.duplicates, itemID)
			continue
		}
		ix.entries[itemID] = entry
	}
}

// Lookup returns the entry for itemID.
func (ix *Index) Lookup(itemID string) (model.ReferenceEntry, bool) {
	e, ok := ix.entries[itemID]
	return e, ok
}

// Contains reports whether itemID is indexed.
func (ix *Index) Contains(itemID string) bool {
	_, ok := ix.entries[itemID]
	return ok
}

// DuplicateKeys returns every repeated sighting in load order.
func (ix *Index) DuplicateKeys() []string {
	return append([]string(nil), ix.duplicates...)
}

// Len returns the number of indexed items.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Err returns an error wrapping ErrDuplicateKeys when any duplicate was seen.
func (ix *Index) Err() error {
	if len(ix.duplicates) == 0 {
		return nil
	}
	return eris.Wrapf(ErrDuplicateKeys, "duplicate AGOL item IDs found in metatables: %v", ix.duplicates)
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
