// Package auditor drives a reconciliation run: it loads the reference
// index, checks every monitored item, applies the fixes and tallies what
// changed.
package auditor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/auditor-cli/internal/checks"
	"github.com/sells-group/auditor-cli/internal/fixes"
	"github.com/sells-group/auditor-cli/internal/metadata"
	"github.com/sells-group/auditor-cli/internal/metatable"
	"github.com/sells-group/auditor-cli/internal/model"
	"github.com/sells-group/auditor-cli/internal/orgcheck"
	"github.com/sells-group/auditor-cli/internal/platform"
	"github.com/sells-group/auditor-cli/internal/resilience"
)

// DefaultMonitoredType is the item type audited when none is configured.
const DefaultMonitoredType = "Feature Service"

// ErrInterrupted is returned when the run is cancelled during the fix phase.
var ErrInterrupted = eris.New("auditor: interrupted")

// Sink receives the run report when the driver flushes it.
type Sink interface {
	Write(ctx context.Context, report *model.RunReport) error
}

// Options configures a run.
type Options struct {
	// Tables are loaded into the index in order; the first sighting of an
	// item id wins.
	Tables        []metatable.Table
	Rules         checks.Rules
	ThumbnailDir  string
	CacheMaxAge   int
	Metadata      metadata.Source
	MonitoredType string
	// ItemIDs limits the run to these items instead of every monitored item.
	ItemIDs []string
	// RunID names the run; a new id is generated when empty.
	RunID   string
	Retry   resilience.RetryConfig
	Verbose bool
	Sinks   []Sink
}

// Auditor owns the state of one run. It is not safe for concurrent use.
type Auditor struct {
	portal platform.Portal
	opts   Options

	index       *metatable.Index
	suite       *checks.Suite
	folders     map[string]string
	itemFolders map[string]string
	groups      map[string]string
	items       []platform.Summary

	report   *model.RunReport
	counters model.FixCounters
	org      orgcheck.Results
	flushed  bool
}

// New returns an Auditor working against portal.
func New(portal platform.Portal, opts Options) *Auditor {
	if opts.MonitoredType == "" {
		opts.MonitoredType = DefaultMonitoredType
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	return &Auditor{
		portal:   portal,
		opts:     opts,
		report:   model.NewRunReport(),
		counters: make(model.FixCounters),
	}
}

func (a *Auditor) retry(op string) resilience.RetryConfig {
	return a.opts.Retry.WithLogger("arcgis", op)
}

// Setup builds the reference index, captures the folder and group maps and
// resolves the items to audit. Duplicate item ids in the metatables abort
// the run.
func (a *Auditor) Setup(ctx context.Context) error {
	index, err := a.loadIndex(ctx)
	if err != nil {
		return err
	}
	a.index = index
	a.suite = checks.NewSuite(checks.Options{
		Index:        index,
		Rules:        a.opts.Rules,
		ThumbnailDir: a.opts.ThumbnailDir,
		CacheMaxAge:  a.opts.CacheMaxAge,
		Metadata:     a.opts.Metadata,
	})

	a.folders, err = resilience.DoVal(ctx, a.retry("folders"), a.portal.Folders)
	if err != nil {
		return eris.Wrap(err, "auditor: list folders")
	}
	a.groups, err = resilience.DoVal(ctx, a.retry("groups"), a.portal.Groups)
	if err != nil {
		return eris.Wrap(err, "auditor: list groups")
	}

	monitored, err := a.listFolders(ctx)
	if err != nil {
		return err
	}

	if len(a.opts.ItemIDs) > 0 {
		a.items, err = a.resolveItems(ctx)
		if err != nil {
			return err
		}
	} else {
		a.items = monitored
	}

	zap.L().Info("auditor: setup complete",
		zap.Int("indexed", index.Len()),
		zap.Int("folders", len(a.folders)),
		zap.Int("groups", len(a.groups)),
		zap.Int("items", len(a.items)),
	)
	return nil
}

// loadIndex reads every table concurrently, then loads the rows in table
// order.
func (a *Auditor) loadIndex(ctx context.Context) (*metatable.Index, error) {
	rows := make([][][]string, len(a.opts.Tables))

	g, gctx := errgroup.WithContext(ctx)
	for i, table := range a.opts.Tables {
		g.Go(func() error {
			r, err := resilience.DoVal(gctx, a.retry("metatable"), func(ctx context.Context) ([][]string, error) {
				return table.Reader.ReadTable(ctx, table.Fields)
			})
			if err != nil {
				return eris.Wrapf(err, "auditor: read metatable %s", table.Name)
			}
			rows[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	index := metatable.NewIndex()
	for i, table := range a.opts.Tables {
		index.Load(rows[i], table.Fields)
		zap.L().Debug("auditor: loaded metatable", zap.String("table", table.Name), zap.Int("rows", len(rows[i])))
	}
	if err := index.Err(); err != nil {
		return nil, err
	}
	return index, nil
}

// listFolders maps every item the user owns to its folder title and returns
// the items of the monitored type.
func (a *Auditor) listFolders(ctx context.Context) ([]platform.Summary, error) {
	a.itemFolders = make(map[string]string)

	folderIDs := make([]string, 0, len(a.folders))
	for id := range a.folders {
		folderIDs = append(folderIDs, id)
	}
	sort.Strings(folderIDs)

	var monitored []platform.Summary
	for _, folderID := range folderIDs {
		title := a.folders[folderID]
		items, err := resilience.DoVal(ctx, a.retry("user_items"), func(ctx context.Context) ([]platform.Summary, error) {
			return a.portal.UserItems(ctx, folderID)
		})
		if err != nil {
			return nil, eris.Wrapf(err, "auditor: list items in folder %q", title)
		}
		for _, it := range items {
			a.itemFolders[it.ID] = title
			if it.Type == a.opts.MonitoredType {
				monitored = append(monitored, it)
			}
		}
	}
	return monitored, nil
}

// resolveItems looks up the explicit item list.
func (a *Auditor) resolveItems(ctx context.Context) ([]platform.Summary, error) {
	items := make([]platform.Summary, 0, len(a.opts.ItemIDs))
	for _, id := range a.opts.ItemIDs {
		item, err := resilience.DoVal(ctx, a.retry("item"), func(ctx context.Context) (platform.Item, error) {
			return a.portal.Item(ctx, id)
		})
		if eris.Is(err, platform.ErrItemNotFound) {
			return nil, eris.Wrapf(err, "auditor: Item %s not found", id)
		}
		if err != nil {
			return nil, eris.Wrapf(err, "auditor: get item %s", id)
		}
		if _, ok := a.folders[item.OwnerFolder()]; !ok {
			return nil, eris.Wrapf(platform.ErrFolderNotFound, "auditor: Folder id %s not found (wrong user?)", item.OwnerFolder())
		}
		items = append(items, platform.Summary{
			ID:          item.ID(),
			Title:       item.Title(),
			Type:        item.Type(),
			OwnerFolder: item.OwnerFolder(),
		})
	}
	return items, nil
}

// CheckItems runs every check against every item. A failure on one item is
// recorded on its entry and the run moves on.
func (a *Auditor) CheckItems(ctx context.Context) error {
	total := len(a.items)
	for i, summary := range a.items {
		if err := ctx.Err(); err != nil {
			return err
		}

		log := zap.L().With(zap.String("item_id", summary.ID), zap.String("title", summary.Title))
		log.Debug(fmt.Sprintf("auditor: checking item %d/%d", i+1, total))

		entry, err := a.checkItem(ctx, summary.ID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("auditor: check failed", zap.Error(err))
			entry = model.NewReportEntry(summary.ID)
			entry.Error = err.Error()
		}
		a.report.Put(entry)
	}
	return nil
}

func (a *Auditor) checkItem(ctx context.Context, id string) (*model.ReportEntry, error) {
	state, err := resilience.DoVal(ctx, a.retry("item_state"), func(ctx context.Context) (*model.ItemState, error) {
		item, err := a.portal.Item(ctx, id)
		if err != nil {
			return nil, err
		}
		return item.State(ctx)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "auditor: read item %s", id)
	}

	checker := a.suite.Checker(state)
	if err := checker.Setup(); err != nil {
		return nil, err
	}
	for _, step := range checker.All(a.itemFolders) {
		step.Run()
	}
	return checker.Report(), nil
}

// FixItems applies every checked entry. A cancelled context stops the run
// after flushing the report; ErrInterrupted is returned.
func (a *Auditor) FixItems(ctx context.Context) error {
	rules := a.suite.Rules()
	fixOpts := fixes.Options{
		Groups:      a.groups,
		StaticNote:  rules.StaticNote,
		ShelvedNote: rules.ShelvedNote,
		Metadata:    a.opts.Metadata,
	}

	for _, id := range a.report.IDs() {
		if ctx.Err() != nil {
			return a.interrupted(ctx)
		}

		entry := a.report.Get(id)
		if entry.Error != "" {
			continue
		}

		log := zap.L().With(zap.String("item_id", id))
		err := a.fixItem(ctx, entry, fixOpts)
		if err != nil {
			if ctx.Err() != nil {
				return a.interrupted(ctx)
			}
			log.Error("auditor: fix failed", zap.Error(err))
			entry.Error = err.Error()
		}

		changed := a.counters.Tally(entry)
		if a.opts.Verbose {
			for _, r := range changed {
				log.Info(r.Value, zap.String("result", r.Key))
			}
		}
	}
	return nil
}

func (a *Auditor) fixItem(ctx context.Context, entry *model.ReportEntry, opts fixes.Options) error {
	item, err := resilience.DoVal(ctx, a.retry("item"), func(ctx context.Context) (platform.Item, error) {
		return a.portal.Item(ctx, entry.ItemID)
	})
	if err != nil {
		return eris.Wrapf(err, "auditor: get item %s", entry.ItemID)
	}

	fixer := fixes.New(item, entry, opts)
	for _, step := range fixer.All() {
		if err := resilience.Do(ctx, a.retry("fix_"+step.Name), step.Run); err != nil {
			return eris.Wrapf(err, "auditor: fix %s", step.Name)
		}
	}
	return nil
}

func (a *Auditor) interrupted(ctx context.Context) error {
	zap.L().Warn("Interrupted by Ctrl-c")
	// The caller's context is already done; the flush gets its own.
	if err := a.Flush(context.WithoutCancel(ctx)); err != nil {
		zap.L().Error("auditor: flush report after interrupt", zap.Error(err))
	}
	return ErrInterrupted
}

// CheckOrganizationWide runs the checks that span every audited item and
// logs their results.
func (a *Auditor) CheckOrganizationWide() orgcheck.Results {
	summaries := make([]model.ItemSummary, len(a.items))
	for i, it := range a.items {
		summaries[i] = model.ItemSummary{ID: it.ID, Title: it.Title}
	}
	a.org = orgcheck.Run(summaries)
	a.org.Log()
	return a.org
}

// Summary renders the fix counters, one line per changed attribute.
// Thumbnail counts are left out.
func (a *Auditor) Summary() []string {
	var lines []string
	for _, key := range a.counters.Keys() {
		if key == model.AttrThumbnail+"_result" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%d items updated for %s", a.counters[key], key))
	}
	if len(lines) == 0 {
		lines = []string{"No items fixed."}
	}
	return lines
}

// Flush writes the report to every sink once per run.
func (a *Auditor) Flush(ctx context.Context) error {
	if a.flushed {
		return nil
	}
	a.flushed = true

	var errs []error
	for _, sink := range a.opts.Sinks {
		if err := sink.Write(ctx, a.report); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return eris.Wrapf(errs[0], "auditor: flush report (%d sink errors)", len(errs))
	}
	return nil
}

// Run performs a whole reconciliation: setup, checks, fixes unless dry, the
// organization-wide checks and a final flush.
func (a *Auditor) Run(ctx context.Context, dry bool) (*model.Run, error) {
	run := &model.Run{
		ID:        a.opts.RunID,
		Status:    model.RunStatusRunning,
		Dry:       dry,
		ItemIDs:   a.opts.ItemIDs,
		StartedAt: time.Now().UTC(),
	}
	finish := func(status model.RunStatus, err error) (*model.Run, error) {
		now := time.Now().UTC()
		run.Status = status
		run.FinishedAt = &now
		run.ItemCount = a.report.Len()
		run.FixCounts = a.counters
		if err != nil {
			run.Error = err.Error()
		}
		return run, err
	}

	if err := a.Setup(ctx); err != nil {
		return finish(model.RunStatusFailed, err)
	}
	if err := a.CheckItems(ctx); err != nil {
		return finish(model.RunStatusInterrupted, a.interrupted(ctx))
	}

	status := model.RunStatusChecked
	if !dry {
		if err := a.FixItems(ctx); err != nil {
			return finish(model.RunStatusInterrupted, err)
		}
		status = model.RunStatusComplete
	}

	run.DuplicateTitles = a.CheckOrganizationWide()[orgcheck.DuplicateTitlesCheck]
	lines := a.Summary()
	for _, line := range lines {
		zap.L().Info(line)
	}
	run.Summary = SummaryText(lines, a.org)

	if err := a.Flush(ctx); err != nil {
		return finish(model.RunStatusFailed, err)
	}
	return finish(status, nil)
}

// SummaryText joins the fix summary and organization-wide results into the
// free text sent to notifications.
func SummaryText(fixLines []string, org orgcheck.Results) string {
	lines := append(append([]string(nil), fixLines...), org.Lines()...)
	return strings.Join(lines, "\n")
}

// Report returns the accumulated run report.
func (a *Auditor) Report() *model.RunReport {
	return a.report
}

// Counters returns the per-attribute fix counts.
func (a *Auditor) Counters() model.FixCounters {
	return a.counters
}

// Items returns the items selected for the run.
func (a *Auditor) Items() []platform.Summary {
	return a.items
}

// RunID returns the id of the run.
func (a *Auditor) RunID() string {
	return a.opts.RunID
}
