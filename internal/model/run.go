package model

import "time"

// RunStatus represents the current state of an audit run.
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusChecked     RunStatus = "checked"
	RunStatusComplete    RunStatus = "complete"
	RunStatusFailed      RunStatus = "failed"
	RunStatusInterrupted RunStatus = "interrupted"
)

// Run is the persisted record of one audit run.
type Run struct {
	ID              string              `json:"id"`
	Status          RunStatus           `json:"status"`
	Dry             bool                `json:"dry"`
	ItemIDs         []string            `json:"item_ids,omitempty"`
	ItemCount       int                 `json:"item_count"`
	FixCounts       FixCounters         `json:"fix_counts,omitempty"`
	DuplicateTitles map[string][]string `json:"duplicate_titles,omitempty"`
	Summary         string              `json:"summary,omitempty"`
	Error           string              `json:"error,omitempty"`
	StartedAt       time.Time           `json:"started_at"`
	FinishedAt      *time.Time          `json:"finished_at,omitempty"`
}
