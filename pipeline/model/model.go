// Package model defines the provider-neutral model client abstraction used by
// the writer, editor and evaluator components. Provider adapters
// (features/model/openai, features/model/anthropic, features/model/bedrock)
// translate Request/Response into their SDK's native structures.
package model

import (
	"context"
	"errors"
)

// ErrRateLimited wraps provider throttling failures so middleware (adaptive
// rate limiting) and callers can detect them with errors.Is.
var ErrRateLimited = errors.New("model: rate limited")

type (
	// Client issues completion requests against a hosted model provider.
	// Implementations must be safe for concurrent use.
	Client interface {
		// Complete renders a single completion for the request. Blocking;
		// honors ctx cancellation. Errors are wrapped in *ProviderError when
		// the provider reported a structured failure.
		Complete(ctx context.Context, req *Request) (*Response, error)
	}

	// Request describes a completion request. Model may be empty, in which
	// case the adapter's configured default is used.
	Request struct {
		// Model is the provider-specific model identifier.
		Model string
		// System is the system prompt, prepended per provider convention.
		System string
		// Messages is the ordered conversation to complete.
		Messages []Message
		// MaxTokens caps the completion length. Zero uses the adapter
		// default.
		MaxTokens int
		// Temperature is the sampling temperature. Zero uses the adapter
		// default.
		Temperature float64
	}

	// Message is a single conversation entry.
	Message struct {
		Role    Role
		Content string
	}

	// Response is the provider-neutral completion result.
	Response struct {
		// Text is the concatenated assistant output.
		Text string
		// Model identifies the model that produced the completion.
		Model string
		// StopReason is the provider's stop reason verbatim.
		StopReason string
		// Usage reports attributed token counts.
		Usage TokenUsage
	}

	// TokenUsage carries token accounting for one completion.
	TokenUsage struct {
		InputTokens  int
		OutputTokens int
		TotalTokens  int
	}

	// Role identifies the author of a conversation message.
	Role string
)

const (
	// RoleUser marks caller-authored messages.
	RoleUser Role = "user"
	// RoleAssistant marks model-authored messages.
	RoleAssistant Role = "assistant"
)

// Text is a convenience constructor for a user message.
func Text(content string) Message {
	return Message{Role: RoleUser, Content: content}
}
