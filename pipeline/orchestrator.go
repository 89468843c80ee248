package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/draftforge/draftforge/pipeline/run"
	"github.com/draftforge/draftforge/pipeline/stream"
	"github.com/draftforge/draftforge/pipeline/telemetry"
)

type (
	// Orchestrator sequences the four pipeline agents for one run and emits
	// workflow events as they occur. It is a single-threaded coordinator: no
	// two agent calls execute concurrently within a run, and concurrent runs
	// share no mutable state.
	Orchestrator struct {
		researcher Agent
		product    Agent
		writer     Agent
		editor     Agent

		maxRevisions int
		runs         run.Store
		logger       telemetry.Logger
		metrics      telemetry.Metrics
		tracer       telemetry.Tracer
	}

	// Options configures an Orchestrator.
	Options struct {
		// Researcher, Product, Writer and Editor are the four role agents.
		// All are required.
		Researcher Agent
		Product    Agent
		Writer     Agent
		Editor     Agent

		// MaxRevisions bounds the editorial loop: the writer drafts at most
		// 1+MaxRevisions times before the run terminates with a
		// revisions-exhausted error. Negative values are rejected; zero
		// means the first draft must be accepted.
		MaxRevisions int

		// Runs persists run metadata. Required.
		Runs run.Store

		// Logger, Metrics and Tracer default to no-op implementations.
		Logger  telemetry.Logger
		Metrics telemetry.Metrics
		Tracer  telemetry.Tracer
	}
)

// errDeliveryStopped marks a run aborted because the event sink stopped
// accepting events (client disconnect). The in-flight agent call completed;
// its result was not delivered.
var errDeliveryStopped = errors.New("pipeline: event delivery stopped")

// New constructs an Orchestrator from the provided options.
func New(opts Options) (*Orchestrator, error) {
	for _, a := range []struct {
		agent Agent
		role  Role
	}{
		{opts.Researcher, RoleResearcher},
		{opts.Product, RoleProduct},
		{opts.Writer, RoleWriter},
		{opts.Editor, RoleEditor},
	} {
		if a.agent == nil {
			return nil, fmt.Errorf("pipeline: %s agent is required", a.role)
		}
	}
	if opts.MaxRevisions < 0 {
		return nil, errors.New("pipeline: max revisions must be >= 0")
	}
	if opts.Runs == nil {
		return nil, errors.New("pipeline: run store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	return &Orchestrator{
		researcher:   opts.Researcher,
		product:      opts.Product,
		writer:       opts.Writer,
		editor:       opts.Editor,
		maxRevisions: opts.MaxRevisions,
		runs:         opts.Runs,
		logger:       logger,
		metrics:      metrics,
		tracer:       tracer,
	}, nil
}

// MaxRevisions returns the configured editorial loop bound.
func (o *Orchestrator) MaxRevisions() int { return o.maxRevisions }

// Run executes one orchestration run: researcher → product → writer/editor
// loop. Events are sent to sink in emission order; exactly one terminal event
// (RunComplete or RunError) is emitted per run unless delivery itself stops
// first. On success the accepted Article is returned.
//
// The orchestrator does not retry remote failures: the first agent error
// terminates the run with a RunError event. Sink errors (client disconnect)
// stop the run without a terminal event on the wire; the run record still
// reflects the outcome.
func (o *Orchestrator) Run(ctx context.Context, runID string, briefs Briefs, sink stream.Sink) (*Article, error) {
	started := time.Now().UTC()
	o.metrics.IncCounter("pipeline_runs_started", 1)
	o.record(ctx, run.Record{RunID: runID, Status: run.StatusRunning, StartedAt: started})

	article, revisions, err := o.execute(ctx, runID, briefs, sink)
	switch {
	case err == nil:
		o.record(ctx, run.Record{RunID: runID, Status: run.StatusCompleted, Revisions: revisions, StartedAt: started})
		o.metrics.IncCounter("pipeline_runs_completed", 1)
		o.metrics.RecordTimer("pipeline_run_duration", time.Since(started))
		if serr := sink.Send(ctx, stream.NewRunComplete(runID, article.Content, revisions)); serr != nil {
			o.logger.Warn(ctx, "terminal event not delivered", "run_id", runID, "err", serr)
		}
		return article, nil

	case errors.Is(err, errDeliveryStopped):
		o.record(ctx, run.Record{RunID: runID, Status: run.StatusCanceled, Revisions: revisions, Error: err.Error(), StartedAt: started})
		o.metrics.IncCounter("pipeline_runs_canceled", 1)
		o.logger.Info(ctx, "run canceled by client", "run_id", runID)
		return nil, err

	default:
		o.record(ctx, run.Record{RunID: runID, Status: run.StatusFailed, Revisions: revisions, Error: err.Error(), StartedAt: started})
		o.metrics.IncCounter("pipeline_runs_failed", 1)
		o.logger.Error(ctx, "run failed", "run_id", runID, "err", err)
		role, kind := classify(err)
		if serr := sink.Send(ctx, stream.NewRunError(runID, role, err.Error(), kind)); serr != nil {
			o.logger.Warn(ctx, "terminal error event not delivered", "run_id", runID, "err", serr)
		}
		return nil, err
	}
}

// execute runs the agent sequence and editorial loop, emitting per-agent
// events. It returns the accepted article and the revision count consumed.
func (o *Orchestrator) execute(ctx context.Context, runID string, briefs Briefs, sink stream.Sink) (*Article, int, error) {
	task := Task{Briefs: briefs}

	research, err := o.invoke(ctx, runID, o.researcher, task, sink)
	if err != nil {
		return nil, 0, err
	}
	task.ResearchFindings = research.Content

	product, err := o.invoke(ctx, runID, o.product, task, sink)
	if err != nil {
		return nil, 0, err
	}
	task.ProductFindings = product.Content

	// Editorial loop: the writer drafts, the editor critiques. Rejection
	// feeds the editor's feedback into the next draft. Bounded by
	// maxRevisions; transport failures are never retried.
	for cycle := 0; cycle <= o.maxRevisions; cycle++ {
		task.Revision = cycle

		draft, err := o.invoke(ctx, runID, o.writer, task, sink)
		if err != nil {
			return nil, cycle, err
		}
		task.Draft = draft.Content

		verdict, err := o.invoke(ctx, runID, o.editor, task, sink)
		if err != nil {
			return nil, cycle, err
		}
		if verdict.Accepted {
			return &Article{
				RunID:     runID,
				Content:   draft.Content,
				Revisions: cycle,
				CreatedAt: time.Now().UTC(),
			}, cycle, nil
		}
		feedback := verdict.Feedback
		if feedback == "" {
			feedback = verdict.Content
		}
		task.EditorFeedback = feedback
		o.metrics.IncCounter("pipeline_revision_cycles", 1)
	}
	return nil, o.maxRevisions, ErrRevisionsExhausted
}

// invoke emits the start event, performs the agent call under a span and
// emits the completion event carrying the result.
func (o *Orchestrator) invoke(ctx context.Context, runID string, agent Agent, task Task, sink stream.Sink) (*Result, error) {
	role := agent.Role()
	if err := sink.Send(ctx, stream.NewAgentStart(runID, string(role), task.Revision)); err != nil {
		return nil, fmt.Errorf("%w: %w", errDeliveryStopped, err)
	}

	callCtx, span := o.tracer.Start(ctx, "pipeline."+string(role))
	started := time.Now()
	result, err := agent.Generate(callCtx, task)
	o.metrics.RecordTimer("pipeline_agent_duration", time.Since(started), "role", string(role))
	if err != nil {
		span.RecordError(err)
		span.End()
		return nil, &AgentError{AgentRole: role, Err: err}
	}
	span.End()

	if err := sink.Send(ctx, stream.NewAgentComplete(runID, stream.AgentCompletePayload{
		Role:     string(role),
		Content:  result.Content,
		Feedback: result.Feedback,
		Accepted: result.Accepted,
		Revision: task.Revision,
	})); err != nil {
		return nil, fmt.Errorf("%w: %w", errDeliveryStopped, err)
	}
	return result, nil
}

// record best-effort persists run metadata; store failures are logged, never
// fatal to the run.
func (o *Orchestrator) record(ctx context.Context, r run.Record) {
	r.UpdatedAt = time.Now().UTC()
	if err := o.runs.Upsert(ctx, r); err != nil {
		o.logger.Warn(ctx, "run record upsert failed", "run_id", r.RunID, "err", err)
	}
}

// classify maps a run failure onto the wire error taxonomy.
func classify(err error) (role, kind string) {
	if errors.Is(err, ErrRevisionsExhausted) {
		return "", stream.ErrorKindRevisionsExhausted
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", stream.ErrorKindCanceled
	}
	if ae, ok := AsAgentError(err); ok {
		return string(ae.AgentRole), stream.ErrorKindRemote
	}
	return "", stream.ErrorKindRemote
}
