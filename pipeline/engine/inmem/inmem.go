// Package inmem executes evaluation jobs on in-process goroutines. It is the
// default engine for single-node deployments; features/eval/temporal provides
// the durable alternative.
package inmem

import (
	"context"
	"errors"
	"sync"

	"github.com/draftforge/draftforge/pipeline/eval"
	"github.com/draftforge/draftforge/pipeline/telemetry"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("engine: closed")

// Engine runs each submitted job on its own goroutine. Jobs are detached from
// the submitting request context so a client disconnect after run completion
// does not cancel the evaluation.
type Engine struct {
	runner *eval.Runner
	logger telemetry.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New constructs an Engine over the given runner.
func New(runner *eval.Runner, logger telemetry.Logger) (*Engine, error) {
	if runner == nil {
		return nil, errors.New("engine: runner is required")
	}
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Engine{runner: runner, logger: logger}, nil
}

// Submit implements engine.Engine.
func (e *Engine) Submit(ctx context.Context, job eval.Job) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.wg.Add(1)
	e.mu.Unlock()

	// Detach from the request context: evaluation continues after the
	// submitting handler returns. Request-scoped values (trace, logger)
	// remain available.
	bg := context.WithoutCancel(ctx)
	go func() {
		defer e.wg.Done()
		if _, err := e.runner.Evaluate(bg, job); err != nil {
			e.logger.Error(bg, "background evaluation failed", "run_id", job.RunID, "err", err)
		}
	}()
	return nil
}

// Close implements engine.Engine: stop accepting jobs and wait for in-flight
// evaluations, bounded by ctx.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
