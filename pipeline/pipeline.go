// Package pipeline implements the content-generation orchestrator: a
// single-threaded coordinator that sequences the researcher, product, writer
// and editor agents for one run, carries accumulated context between them,
// enforces the bounded editorial revision loop and emits workflow events in
// order as they occur.
//
// Remote reliability is explicitly out of scope here: a failed agent call
// surfaces immediately as the run's terminal error event. The only retry the
// orchestrator performs is the editorial-quality loop between writer and
// editor, bounded by MaxRevisions.
package pipeline

import (
	"context"
	"time"
)

type (
	// Role identifies one of the four pipeline agents.
	Role string

	// Briefs are the free-form caller inputs to one orchestration run. They
	// are immutable for the lifetime of the run.
	Briefs struct {
		// Research directs the researcher agent (topic, angle, audience).
		Research string `json:"research"`
		// Products directs the product agent (catalog query).
		Products string `json:"products"`
		// Assignment is the writing brief given to the writer.
		Assignment string `json:"assignment"`
	}

	// Task is the input to a single agent invocation. The orchestrator fills
	// in the fields accumulated from upstream agents; agents read only the
	// fields relevant to their role.
	Task struct {
		// Briefs are the original caller inputs.
		Briefs Briefs
		// ResearchFindings is the researcher's output, available to the
		// writer and editor.
		ResearchFindings string
		// ProductFindings is the product agent's output, available to the
		// writer and editor.
		ProductFindings string
		// Draft is the writer's current draft, available to the editor.
		Draft string
		// EditorFeedback carries the editor's critique from the previous
		// cycle into the next writer invocation. Empty on the first draft.
		EditorFeedback string
		// Revision is the zero-based writer/editor cycle index.
		Revision int
	}

	// Result is the outcome of one agent invocation. Results are never
	// mutated after creation; a retry produces a new Result.
	Result struct {
		// Role tags the agent that produced the result.
		Role Role
		// Content is the agent's primary output.
		Content string
		// Feedback is optional guidance directed at another agent.
		Feedback string
		// Accepted reports the editor's verdict; meaningful only for
		// RoleEditor results.
		Accepted bool
	}

	// Agent is the uniform capability interface behind which each remote
	// call (grounded research, similarity search, generation, critique) is
	// abstracted so the orchestrator is testable with deterministic
	// stand-ins.
	Agent interface {
		// Role returns the pipeline role this agent fills.
		Role() Role

		// Generate performs the agent's single remote invocation for the
		// given task. Blocking; honors ctx cancellation.
		Generate(ctx context.Context, task Task) (*Result, error)
	}

	// Article is the accepted output of a successful run.
	Article struct {
		// RunID identifies the run that produced the article.
		RunID string
		// Content is the accepted article body.
		Content string
		// Revisions is the number of editorial revision cycles consumed
		// beyond the initial draft.
		Revisions int
		// CreatedAt records acceptance time (UTC).
		CreatedAt time.Time
	}
)

const (
	// RoleResearcher performs grounded web research.
	RoleResearcher Role = "researcher"
	// RoleProduct retrieves product findings from the catalog index.
	RoleProduct Role = "product"
	// RoleWriter drafts the article.
	RoleWriter Role = "writer"
	// RoleEditor critiques drafts and decides acceptance.
	RoleEditor Role = "editor"
)
