// Package state records migration run history in SQLite.
//
// Each batch run gets a row in runs, and every source file processed in it
// gets a row in file_results. The schema is managed with goose migrations
// embedded in the binary.
package state

import (
	"context"
	"time"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run is one batch migration.
type Run struct {
	ID          string
	Status      RunStatus
	InputCount  int
	Successful  int
	Failed      int
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// FileResult is the outcome of one source file within a run.
type FileResult struct {
	RunID              string
	SourceFile         string
	Fingerprint        string
	Success            bool
	Error              string
	MeasuresTranslated int
	MeasuresFlagged    int
	VisualsMapped      int
	Unsupported        int
	Duration           time.Duration
	RecordedAt         time.Time
}

// Store is the run history used by the pipeline.
type Store interface {
	CreateRun(ctx context.Context, inputs int) (*Run, error)
	RecordFile(ctx context.Context, r *FileResult) error
	CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error
	Close() error
}
