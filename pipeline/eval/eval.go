// Package eval implements the background quality-evaluation pipeline. After a
// run completes with an accepted article, an evaluation job is submitted to an
// engine (in-process or Temporal) which scores the article along several
// quality dimensions using model-judged evaluators. Results are appended to an
// evaluation store; they never influence the run that produced the article.
package eval

import (
	"context"
	"time"

	"github.com/draftforge/draftforge/pipeline"
)

type (
	// Job carries everything an evaluator needs to score one accepted
	// article. Jobs are immutable once submitted.
	Job struct {
		// RunID identifies the run that produced the article.
		RunID string `json:"run_id"`
		// Article is the accepted article body.
		Article string `json:"article"`
		// Briefs are the original caller inputs to the run.
		Briefs pipeline.Briefs `json:"briefs"`
		// ResearchFindings is the researcher output the article was written
		// from, used by groundedness-style evaluators.
		ResearchFindings string `json:"research_findings,omitempty"`
		// ProductFindings is the product agent output the article was
		// written from.
		ProductFindings string `json:"product_findings,omitempty"`
	}

	// Score is a single evaluator verdict.
	Score struct {
		// Value is the evaluator's score on its dimension scale (1 to 5).
		Value float64 `json:"score"`
		// Reasoning is the judge's explanation for the score.
		Reasoning string `json:"reasoning"`
	}

	// Evaluator scores one quality dimension of an article.
	Evaluator interface {
		// Name returns the dimension name (e.g. "relevance").
		Name() string
		// Evaluate scores the article in job. Blocking; honors ctx.
		Evaluate(ctx context.Context, job Job) (*Score, error)
	}

	// Record is one persisted evaluation result. Records are append-only: a
	// re-evaluation of the same run and dimension produces a new record
	// rather than overwriting the old one.
	Record struct {
		// ID uniquely identifies the record.
		ID string
		// RunID identifies the evaluated run.
		RunID string
		// Evaluator is the dimension name that produced this record.
		Evaluator string
		// Score is the verdict value. Zero when Error is set.
		Score float64
		// Reasoning is the judge's explanation.
		Reasoning string
		// Error holds the evaluator failure message, if the evaluation
		// itself failed.
		Error string
		// CreatedAt records when the evaluation finished (UTC).
		CreatedAt time.Time
	}

	// Store persists evaluation records.
	Store interface {
		// Append stores a new record. Existing records are never modified.
		Append(ctx context.Context, rec Record) error
		// ListByRun returns all records for the given run in append order.
		ListByRun(ctx context.Context, runID string) ([]Record, error)
	}
)

// Canonical evaluation dimensions.
const (
	DimensionRelevance    = "relevance"
	DimensionGroundedness = "groundedness"
	DimensionFluency      = "fluency"
	DimensionCoherence    = "coherence"
	DimensionSafety       = "safety"
	DimensionFriendliness = "friendliness"
)
