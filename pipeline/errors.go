package pipeline

import (
	"errors"
	"fmt"
)

// ErrRevisionsExhausted terminates a run whose editor never accepted within
// the configured revision bound. It is a quality outcome, not a transport
// failure.
var ErrRevisionsExhausted = errors.New("pipeline: editorial revisions exhausted")

// AgentError wraps a remote agent call failure with the role it is
// attributable to. The orchestrator surfaces it as the run's terminal error
// without retrying.
type AgentError struct {
	// AgentRole identifies the failed agent.
	AgentRole Role
	// Err is the underlying failure.
	Err error
}

// Error implements error.
func (e *AgentError) Error() string {
	return fmt.Sprintf("pipeline: %s agent: %v", e.AgentRole, e.Err)
}

// Unwrap preserves the underlying error chain.
func (e *AgentError) Unwrap() error { return e.Err }

// AsAgentError returns the first AgentError in err's chain, if any.
func AsAgentError(err error) (*AgentError, bool) {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
