// Package stream defines the workflow event model for content-generation
// runs and the Sink abstraction used to deliver events to clients. Events are
// produced by the pipeline orchestrator in emission order and consumed exactly
// once by a transport (SSE, Pulse mirror, test collector).
//
// All event types embed Base to provide standard metadata (type, run ID,
// timestamp, payload). Sinks marshal events generically via the Event
// interface; consumers that need structured field access type-assert to the
// concrete types.
package stream

import (
	"context"
	"time"
)

type (
	// Sink delivers workflow events to a transport. Implementations must be
	// safe for use by a single producer goroutine; the orchestrator emits
	// events strictly sequentially and calls Close exactly once after the
	// terminal event.
	Sink interface {
		// Send publishes an event to the sink's underlying transport. Send
		// returns an error when delivery fails (connection closed, sink
		// closed, serialization error). The orchestrator stops emitting once
		// Send fails; the in-flight agent call is allowed to complete but its
		// result is not delivered.
		Send(ctx context.Context, event Event) error

		// Close releases resources owned by the sink. Close is idempotent;
		// Send calls made after Close must return an error.
		Close(ctx context.Context) error
	}

	// Event describes a workflow event delivered to clients through a Sink.
	// Implementations are immutable after construction.
	Event interface {
		// Type returns the event type constant (e.g. EventAgentStart).
		Type() EventType

		// RunID returns the orchestration run identifier that produced this
		// event. All events within a single run share the same run ID.
		RunID() string

		// Occurred returns the event creation time (UTC).
		Occurred() time.Time

		// Payload returns the event-specific data in a JSON-serializable
		// form. Sinks use this for generic marshaling; type-assert the Event
		// for type-safe field access.
		Payload() any
	}

	// AgentStart signals that the orchestrator is about to invoke an agent.
	AgentStart struct {
		Base
		Data AgentStartPayload
	}

	// AgentComplete carries the result of a finished agent invocation.
	AgentComplete struct {
		Base
		Data AgentCompletePayload
	}

	// RunComplete is the terminal event of a successful run. It carries the
	// accepted article and the number of revision cycles consumed.
	RunComplete struct {
		Base
		Data RunCompletePayload
	}

	// RunError is the terminal event of a failed run. Exactly one terminal
	// event (RunComplete or RunError) is emitted per run.
	RunError struct {
		Base
		Data RunErrorPayload
	}

	// AgentStartPayload is the typed wire payload for agent start events.
	AgentStartPayload struct {
		// Role identifies the agent being invoked (researcher, product,
		// writer, editor).
		Role string `json:"role"`
		// Revision is the zero-based writer/editor cycle index. Always zero
		// for researcher and product invocations.
		Revision int `json:"revision,omitempty"`
	}

	// AgentCompletePayload is the typed wire payload for agent completion
	// events.
	AgentCompletePayload struct {
		// Role identifies the agent that produced the result.
		Role string `json:"role"`
		// Content is the agent's primary output (findings, draft, critique).
		Content string `json:"content,omitempty"`
		// Feedback is optional guidance directed at another agent, for
		// example editor notes fed back into the next writer cycle.
		Feedback string `json:"feedback,omitempty"`
		// Accepted reports the editor's verdict. Only meaningful on editor
		// completions.
		Accepted bool `json:"accepted,omitempty"`
		// Revision is the zero-based writer/editor cycle index.
		Revision int `json:"revision,omitempty"`
	}

	// RunCompletePayload is the typed wire payload for the terminal success
	// event.
	RunCompletePayload struct {
		// Article is the accepted article body.
		Article string `json:"article"`
		// Revisions is the number of editorial revision cycles consumed
		// beyond the initial draft.
		Revisions int `json:"revisions"`
	}

	// RunErrorPayload is the typed wire payload for the terminal error event.
	RunErrorPayload struct {
		// Role identifies the agent whose invocation failed, when the error
		// is attributable to a single agent. Empty for run-level failures
		// such as revision exhaustion.
		Role string `json:"role,omitempty"`
		// Message is a user-safe error description.
		Message string `json:"message"`
		// Kind classifies the failure ("remote", "revisions_exhausted",
		// "canceled").
		Kind string `json:"kind"`
	}

	// Base provides a default implementation of Event. Embed it in concrete
	// event types to inherit Type, RunID, Occurred and Payload.
	Base struct {
		t  EventType
		r  string
		ts time.Time
		p  any
	}
)

// EventType enumerates workflow event flavors.
type EventType string

const (
	// EventAgentStart is emitted immediately before an agent invocation.
	EventAgentStart EventType = "agent_start"

	// EventAgentComplete is emitted when an agent invocation returns
	// successfully. Every AgentStart is followed by either an AgentComplete
	// or the terminal RunError.
	EventAgentComplete EventType = "agent_complete"

	// EventRunComplete is the terminal event of a successful run.
	EventRunComplete EventType = "run_complete"

	// EventRunError is the terminal event of a failed run.
	EventRunError EventType = "run_error"
)

// Error kinds carried by RunErrorPayload.Kind.
const (
	// ErrorKindRemote marks a remote agent call failure surfaced as-is; the
	// orchestrator does not retry transport failures.
	ErrorKindRemote = "remote"

	// ErrorKindRevisionsExhausted marks an editorial loop that hit the
	// configured revision bound without acceptance.
	ErrorKindRevisionsExhausted = "revisions_exhausted"

	// ErrorKindCanceled marks a run canceled by the caller.
	ErrorKindCanceled = "canceled"
)

// NewBase constructs a Base event with the given type, run ID and payload.
// The event timestamp is captured at construction time.
func NewBase(t EventType, runID string, payload any) Base {
	return Base{t: t, r: runID, ts: time.Now().UTC(), p: payload}
}

// Type implements Event.Type.
func (e Base) Type() EventType { return e.t }

// RunID implements Event.RunID.
func (e Base) RunID() string { return e.r }

// Occurred implements Event.Occurred.
func (e Base) Occurred() time.Time { return e.ts }

// Payload implements Event.Payload.
func (e Base) Payload() any { return e.p }

// NewAgentStart constructs an agent start event.
func NewAgentStart(runID, role string, revision int) *AgentStart {
	data := AgentStartPayload{Role: role, Revision: revision}
	return &AgentStart{Base: NewBase(EventAgentStart, runID, data), Data: data}
}

// NewAgentComplete constructs an agent completion event.
func NewAgentComplete(runID string, data AgentCompletePayload) *AgentComplete {
	return &AgentComplete{Base: NewBase(EventAgentComplete, runID, data), Data: data}
}

// NewRunComplete constructs the terminal success event.
func NewRunComplete(runID, article string, revisions int) *RunComplete {
	data := RunCompletePayload{Article: article, Revisions: revisions}
	return &RunComplete{Base: NewBase(EventRunComplete, runID, data), Data: data}
}

// NewRunError constructs the terminal error event.
func NewRunError(runID, role, message, kind string) *RunError {
	data := RunErrorPayload{Role: role, Message: message, Kind: kind}
	return &RunError{Base: NewBase(EventRunError, runID, data), Data: data}
}

// Terminal reports whether the event ends its run's event sequence.
func Terminal(e Event) bool {
	switch e.Type() {
	case EventRunComplete, EventRunError:
		return true
	default:
		return false
	}
}
