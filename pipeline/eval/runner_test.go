package eval_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/draftforge/pipeline/eval"
	"github.com/draftforge/draftforge/pipeline/eval/inmem"
)

// stubEvaluator scores a fixed value or fails.
type stubEvaluator struct {
	name  string
	score float64
	err   error
	calls int
}

func (s *stubEvaluator) Name() string { return s.name }

func (s *stubEvaluator) Evaluate(context.Context, eval.Job) (*eval.Score, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &eval.Score{Value: s.score, Reasoning: "because"}, nil
}

func TestRunnerEvaluateAllDimensions(t *testing.T) {
	store := inmem.New()
	relevance := &stubEvaluator{name: "relevance", score: 4}
	fluency := &stubEvaluator{name: "fluency", score: 5}
	r, err := eval.NewRunner([]eval.Evaluator{relevance, fluency}, store)
	require.NoError(t, err)
	assert.Equal(t, []string{"relevance", "fluency"}, r.Names())

	records, err := r.Evaluate(context.Background(), eval.Job{RunID: "run-1", Article: "a"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "relevance", records[0].Evaluator)
	assert.Equal(t, 4.0, records[0].Score)
	assert.Equal(t, "fluency", records[1].Evaluator)
	assert.Equal(t, 5.0, records[1].Score)
	assert.NotEqual(t, records[0].ID, records[1].ID)

	stored, err := store.ListByRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestRunnerEvaluatorFailureIsRecorded(t *testing.T) {
	store := inmem.New()
	failing := &stubEvaluator{name: "groundedness", err: errors.New("judge timeout")}
	ok := &stubEvaluator{name: "safety", score: 5}
	r, err := eval.NewRunner([]eval.Evaluator{failing, ok}, store)
	require.NoError(t, err)

	records, err := r.Evaluate(context.Background(), eval.Job{RunID: "run-2", Article: "a"})
	require.NoError(t, err)
	require.Len(t, records, 2)

	// The failure is persisted, and the remaining dimension still ran.
	assert.Contains(t, records[0].Error, "judge timeout")
	assert.Zero(t, records[0].Score)
	assert.Equal(t, 5.0, records[1].Score)
	assert.Equal(t, 1, ok.calls)
}

func TestRunnerEvaluateOneUnknownDimension(t *testing.T) {
	r, err := eval.NewRunner([]eval.Evaluator{&stubEvaluator{name: "relevance", score: 3}}, inmem.New())
	require.NoError(t, err)

	_, err = r.EvaluateOne(context.Background(), eval.Job{RunID: "run-3"}, "sentiment")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown evaluator")
}

func TestRunnerAppendOnly(t *testing.T) {
	store := inmem.New()
	e := &stubEvaluator{name: "relevance", score: 3}
	r, err := eval.NewRunner([]eval.Evaluator{e}, store)
	require.NoError(t, err)

	job := eval.Job{RunID: "run-4", Article: "a"}
	_, err = r.EvaluateOne(context.Background(), job, "relevance")
	require.NoError(t, err)
	e.score = 4
	_, err = r.EvaluateOne(context.Background(), job, "relevance")
	require.NoError(t, err)

	// Re-evaluation appends a second record instead of overwriting.
	records, err := store.ListByRun(context.Background(), "run-4")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 3.0, records[0].Score)
	assert.Equal(t, 4.0, records[1].Score)
}

func TestNewRunnerValidation(t *testing.T) {
	_, err := eval.NewRunner(nil, inmem.New())
	require.Error(t, err)

	_, err = eval.NewRunner([]eval.Evaluator{&stubEvaluator{name: "relevance"}}, nil)
	require.Error(t, err)

	_, err = eval.NewRunner([]eval.Evaluator{
		&stubEvaluator{name: "relevance"},
		&stubEvaluator{name: "relevance"},
	}, inmem.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}
