// Package engine defines the execution backend abstraction for background
// evaluation jobs. The web layer submits a job after each successful run and
// returns immediately; the engine decides where the evaluation actually
// executes (an in-process worker or a Temporal workflow).
package engine

import (
	"context"

	"github.com/draftforge/draftforge/pipeline/eval"
)

// Engine schedules evaluation jobs for asynchronous execution.
type Engine interface {
	// Submit enqueues the job and returns without waiting for evaluation to
	// finish. The job outlives the submitting request's context.
	Submit(ctx context.Context, job eval.Job) error

	// Close stops accepting jobs and waits for in-flight evaluations to
	// drain, bounded by ctx.
	Close(ctx context.Context) error
}
