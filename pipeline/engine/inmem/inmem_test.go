package inmem

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/draftforge/pipeline/eval"
	evalmem "github.com/draftforge/draftforge/pipeline/eval/inmem"
)

type blockingEvaluator struct {
	mu      sync.Mutex
	release chan struct{}
	started chan struct{}
	ctxErr  error
}

func (b *blockingEvaluator) Name() string { return "relevance" }

func (b *blockingEvaluator) Evaluate(ctx context.Context, _ eval.Job) (*eval.Score, error) {
	close(b.started)
	<-b.release
	b.mu.Lock()
	b.ctxErr = ctx.Err()
	b.mu.Unlock()
	return &eval.Score{Value: 3, Reasoning: "fine"}, nil
}

func newEngine(t *testing.T, evaluators []eval.Evaluator, store eval.Store) *Engine {
	t.Helper()
	runner, err := eval.NewRunner(evaluators, store)
	require.NoError(t, err)
	e, err := New(runner, nil)
	require.NoError(t, err)
	return e
}

func TestSubmitRunsEvaluationAsynchronously(t *testing.T) {
	store := evalmem.New()
	b := &blockingEvaluator{release: make(chan struct{}), started: make(chan struct{})}
	e := newEngine(t, []eval.Evaluator{b}, store)

	require.NoError(t, e.Submit(context.Background(), eval.Job{RunID: "run-1", Article: "a"}))

	// Submit returned while the evaluator is still blocked.
	<-b.started
	recs, err := store.ListByRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Empty(t, recs)

	close(b.release)
	require.NoError(t, e.Close(context.Background()))

	recs, err = store.ListByRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 3.0, recs[0].Score)
}

func TestSubmitSurvivesRequestCancellation(t *testing.T) {
	store := evalmem.New()
	b := &blockingEvaluator{release: make(chan struct{}), started: make(chan struct{})}
	e := newEngine(t, []eval.Evaluator{b}, store)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, e.Submit(ctx, eval.Job{RunID: "run-2", Article: "a"}))
	<-b.started

	// The submitting request goes away; the evaluation must not observe it.
	cancel()
	close(b.release)
	require.NoError(t, e.Close(context.Background()))

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.NoError(t, b.ctxErr)

	recs, err := store.ListByRun(context.Background(), "run-2")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestSubmitAfterClose(t *testing.T) {
	e := newEngine(t, []eval.Evaluator{&blockingEvaluator{release: make(chan struct{}), started: make(chan struct{})}}, evalmem.New())
	require.NoError(t, e.Close(context.Background()))
	err := e.Submit(context.Background(), eval.Job{RunID: "run-3"})
	require.ErrorIs(t, err, ErrClosed)
}

func TestCloseHonorsDeadline(t *testing.T) {
	b := &blockingEvaluator{release: make(chan struct{}), started: make(chan struct{})}
	e := newEngine(t, []eval.Evaluator{b}, evalmem.New())
	require.NoError(t, e.Submit(context.Background(), eval.Job{RunID: "run-4"}))
	<-b.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, e.Close(ctx), context.DeadlineExceeded)

	close(b.release)
}
