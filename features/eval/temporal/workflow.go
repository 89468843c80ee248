package temporal

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/draftforge/draftforge/pipeline/eval"
)

// Activities hosts the activity implementations backing the evaluation
// workflow. One instance wraps the judge runner and its store.
type Activities struct {
	runner *eval.Runner
}

// NewActivities builds the activity host for the given runner.
func NewActivities(runner *eval.Runner) *Activities {
	return &Activities{runner: runner}
}

// EvaluateDimension scores the article on a single dimension and persists the
// record. Judge failures are recorded by the runner and do not fail the
// activity; only store failures surface as retryable activity errors.
func (a *Activities) EvaluateDimension(ctx context.Context, in activityInput) error {
	_, err := a.runner.EvaluateOne(ctx, in.Job, in.Dimension)
	return err
}

// EvaluateArticleWorkflow scores a completed article on every configured
// dimension. Dimensions are evaluated sequentially to keep judge model load
// predictable; each activity retries on store failures before the workflow
// gives up on that dimension.
func EvaluateArticleWorkflow(ctx workflow.Context, in workflowInput) error {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	logger := workflow.GetLogger(ctx)
	for _, dim := range in.Dimensions {
		err := workflow.ExecuteActivity(ctx, ActivityName, activityInput{
			Job:       in.Job,
			Dimension: dim,
		}).Get(ctx, nil)
		if err != nil {
			// One dimension failing to persist must not lose the rest.
			logger.Error("dimension evaluation failed", "run_id", in.Job.RunID, "dimension", dim, "error", err)
		}
	}
	return nil
}

// RegisterWorker registers the evaluation workflow and activities on the
// given worker. Call before starting the worker.
func RegisterWorker(w worker.Worker, runner *eval.Runner) {
	w.RegisterWorkflowWithOptions(EvaluateArticleWorkflow, workflow.RegisterOptions{Name: WorkflowName})
	w.RegisterActivityWithOptions(NewActivities(runner).EvaluateDimension, activity.RegisterOptions{Name: ActivityName})
}
