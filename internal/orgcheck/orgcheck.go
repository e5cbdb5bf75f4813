// Package orgcheck runs checks that span the whole item collection rather
// than a single item.
package orgcheck

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/auditor-cli/internal/model"
)

// DuplicateTitlesCheck names the duplicate title check in results and logs.
const DuplicateTitlesCheck = "check_for_duplicate_titles"

// Results maps a check name to its findings: title to the ids sharing it.
type Results map[string]map[string][]string

// DuplicateTitles returns every title shared by more than one item, with the
// ids in input order.
func DuplicateTitles(items []model.ItemSummary) map[string][]string {
	seen := make(map[string][]string)
	for _, item := range items {
		seen[item.Title] = append(seen[item.Title], item.ID)
	}

	dupes := make(map[string][]string)
	for title, ids := range seen {
		if len(ids) > 1 {
			dupes[title] = ids
		}
	}
	return dupes
}

// Run executes every organization-wide check.
func Run(items []model.ItemSummary) Results {
	return Results{
		DuplicateTitlesCheck: DuplicateTitles(items),
	}
}

// Lines renders results for the log and summary: a heading with the count
// followed by one "title: [ids]" line per finding, or a single line noting
// the check found nothing. Checks and titles are sorted.
func (r Results) Lines() []string {
	checks := make([]string, 0, len(r))
	for name := range r {
		checks = append(checks, name)
	}
	sort.Strings(checks)

	var lines []string
	for _, name := range checks {
		found := r[name]
		if len(found) == 0 {
			lines = append(lines, fmt.Sprintf("%s returned no results", name))
			continue
		}

		lines = append(lines, fmt.Sprintf("%s results (%d):", name, len(found)))
		titles := make([]string, 0, len(found))
		for title := range found {
			titles = append(titles, title)
		}
		sort.Strings(titles)
		for _, title := range titles {
			lines = append(lines, fmt.Sprintf("%s: [%s]", title, strings.Join(found[title], ", ")))
		}
	}
	return lines
}

// Log writes the rendered results to the global logger.
func (r Results) Log() {
	for _, line := range r.Lines() {
		zap.L().Info(line)
	}
}
