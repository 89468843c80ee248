// Package run defines primitives for tracking orchestration run executions.
// A run is one end-to-end pipeline execution producing at most one article;
// its metadata is persisted for observability and lookup, independently of
// the event stream delivered to the caller.
package run

import (
	"context"
	"time"
)

type (
	// Record captures persistent metadata associated with an orchestration
	// run. Each record represents a single run execution.
	Record struct {
		// RunID is the unique run identifier.
		RunID string
		// Status indicates the current lifecycle state.
		Status Status
		// Revisions is the number of editorial revision cycles consumed.
		Revisions int
		// Error holds the terminal error message for failed runs.
		Error string
		// StartedAt records when the run began.
		StartedAt time.Time
		// UpdatedAt records when the run metadata was last updated.
		UpdatedAt time.Time
		// Labels stores caller-provided metadata.
		Labels map[string]string
	}

	// Store persists run metadata for observability and lookup.
	Store interface {
		// Upsert stores or replaces the record keyed by its RunID.
		Upsert(ctx context.Context, record Record) error
		// Load retrieves the record for the given run ID. A missing run
		// yields a zero Record and no error.
		Load(ctx context.Context, runID string) (Record, error)
	}

	// Status represents the lifecycle state of a run.
	Status string
)

const (
	// StatusPending indicates the run has been accepted but not started yet.
	StatusPending Status = "pending"
	// StatusRunning indicates the run is actively executing.
	StatusRunning Status = "running"
	// StatusCompleted indicates the run finished with an accepted article.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the run terminated with an error.
	StatusFailed Status = "failed"
	// StatusCanceled indicates the run was canceled by the caller.
	StatusCanceled Status = "canceled"
)
