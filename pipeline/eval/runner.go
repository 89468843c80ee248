package eval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/draftforge/draftforge/pipeline/telemetry"
)

// Runner drives a set of evaluators over submitted jobs and persists their
// verdicts. A single evaluator failure is recorded as a failed evaluation and
// never aborts the remaining dimensions.
type Runner struct {
	evaluators []Evaluator
	store      Store
	logger     telemetry.Logger
	metrics    telemetry.Metrics
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(l telemetry.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithMetrics sets the runner metrics recorder.
func WithMetrics(m telemetry.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner constructs a Runner over the given evaluators and store.
func NewRunner(evaluators []Evaluator, store Store, opts ...RunnerOption) (*Runner, error) {
	if len(evaluators) == 0 {
		return nil, errors.New("eval: at least one evaluator is required")
	}
	if store == nil {
		return nil, errors.New("eval: store is required")
	}
	seen := make(map[string]struct{}, len(evaluators))
	for _, e := range evaluators {
		if _, ok := seen[e.Name()]; ok {
			return nil, fmt.Errorf("eval: duplicate evaluator %q", e.Name())
		}
		seen[e.Name()] = struct{}{}
	}
	r := &Runner{
		evaluators: evaluators,
		store:      store,
		logger:     telemetry.NewNoopLogger(),
		metrics:    telemetry.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Names returns the evaluator dimension names in registration order.
func (r *Runner) Names() []string {
	names := make([]string, len(r.evaluators))
	for i, e := range r.evaluators {
		names[i] = e.Name()
	}
	return names
}

// Evaluate scores the job on every dimension and appends one record per
// evaluator. Evaluator failures are captured in their records; the returned
// error reflects store failures only.
func (r *Runner) Evaluate(ctx context.Context, job Job) ([]Record, error) {
	records := make([]Record, 0, len(r.evaluators))
	for _, e := range r.evaluators {
		rec, err := r.EvaluateOne(ctx, job, e.Name())
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// EvaluateOne scores the job on a single named dimension and appends the
// resulting record. An evaluator failure is persisted in the record's Error
// field and is not returned as an error; only unknown dimensions and store
// failures are.
func (r *Runner) EvaluateOne(ctx context.Context, job Job, name string) (Record, error) {
	evaluator := r.find(name)
	if evaluator == nil {
		return Record{}, fmt.Errorf("eval: unknown evaluator %q", name)
	}

	started := time.Now()
	score, err := evaluator.Evaluate(ctx, job)
	r.metrics.RecordTimer("eval_dimension_duration", time.Since(started), "dimension", name)

	rec := Record{
		ID:        uuid.NewString(),
		RunID:     job.RunID,
		Evaluator: name,
		CreatedAt: time.Now().UTC(),
	}
	if err != nil {
		rec.Error = err.Error()
		r.metrics.IncCounter("eval_dimension_failures", 1, "dimension", name)
		r.logger.Warn(ctx, "evaluation failed", "run_id", job.RunID, "dimension", name, "err", err)
	} else {
		rec.Score = score.Value
		rec.Reasoning = score.Reasoning
		r.metrics.IncCounter("eval_dimension_completed", 1, "dimension", name)
	}

	if err := r.store.Append(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("eval: append record: %w", err)
	}
	return rec, nil
}

func (r *Runner) find(name string) Evaluator {
	for _, e := range r.evaluators {
		if e.Name() == name {
			return e
		}
	}
	return nil
}
