package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/auditor-cli/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for audit runs.
type Store interface {
	// Runs
	SaveRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Report entries
	SaveEntries(ctx context.Context, runID string, entries []*model.ReportEntry) error
	ListEntries(ctx context.Context, runID string) ([]model.ReportEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Sink saves a run report's entries under one run id.
type Sink struct {
	Store Store
	RunID string
}

// Write saves every entry in report.
func (s *Sink) Write(ctx context.Context, report *model.RunReport) error {
	return s.Store.SaveEntries(ctx, s.RunID, report.Entries())
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
