package model

import (
	"errors"
	"strconv"
	"strings"
)

// ProviderErrorKind buckets provider failures into the handful of categories
// the pipeline acts on: whether to surface the failure, log it, or let the
// rate limiter react.
type ProviderErrorKind string

const (
	// ProviderErrorKindAuth covers authentication and authorization
	// rejections.
	ProviderErrorKindAuth ProviderErrorKind = "auth"

	// ProviderErrorKindInvalidRequest covers requests the provider rejects
	// as malformed; resending the same request cannot succeed.
	ProviderErrorKindInvalidRequest ProviderErrorKind = "invalid_request"

	// ProviderErrorKindRateLimited covers throttling responses.
	ProviderErrorKindRateLimited ProviderErrorKind = "rate_limited"

	// ProviderErrorKindUnavailable covers transient failures (5xx, network)
	// where a retry may succeed.
	ProviderErrorKindUnavailable ProviderErrorKind = "unavailable"

	// ProviderErrorKindUnknown covers everything the adapter could not
	// classify.
	ProviderErrorKindUnknown ProviderErrorKind = "unknown"
)

// ProviderError is the stable failure shape the provider adapters hand to the
// rest of the pipeline. Callers inspect it instead of unwrapping SDK-specific
// error types.
type ProviderError struct {
	provider  string
	operation string
	http      int
	kind      ProviderErrorKind
	code      string
	message   string
	retryable bool
	cause     error
}

// NewProviderError builds a ProviderError. An empty kind is stored as
// ProviderErrorKindUnknown; cause may be nil but keeping it preserves the
// SDK error chain for errors.As.
func NewProviderError(provider, operation string, httpStatus int, kind ProviderErrorKind, code, message string, retryable bool, cause error) *ProviderError {
	if kind == "" {
		kind = ProviderErrorKindUnknown
	}
	return &ProviderError{
		provider:  provider,
		operation: operation,
		http:      httpStatus,
		kind:      kind,
		code:      code,
		message:   message,
		retryable: retryable,
		cause:     cause,
	}
}

// AsProviderError returns the first ProviderError in err's chain, if any.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// Provider identifies the adapter that produced the error, e.g. "bedrock".
func (e *ProviderError) Provider() string { return e.provider }

// Operation is the provider operation that failed, when known.
func (e *ProviderError) Operation() string { return e.operation }

// HTTPStatus is the provider HTTP status, or 0 when none applies.
func (e *ProviderError) HTTPStatus() int { return e.http }

// Kind is the coarse failure classification.
func (e *ProviderError) Kind() ProviderErrorKind { return e.kind }

// Code is the provider-specific error code, when available.
func (e *ProviderError) Code() string { return e.code }

// Message is the provider error message, when available.
func (e *ProviderError) Message() string { return e.message }

// Retryable reports whether resending the unchanged request may succeed.
func (e *ProviderError) Retryable() bool { return e.retryable }

// Error renders "<provider> <operation>: <kind> (<status> <code>): <message>"
// with the optional pieces omitted.
func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.provider)
	b.WriteByte(' ')
	if e.operation != "" {
		b.WriteString(e.operation)
	} else {
		b.WriteString("request")
	}
	b.WriteString(": ")
	b.WriteString(string(e.kind))
	if e.http > 0 || e.code != "" {
		b.WriteString(" (")
		if e.http > 0 {
			b.WriteString(strconv.Itoa(e.http))
		}
		if e.code != "" {
			if e.http > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(e.code)
		}
		b.WriteByte(')')
	}
	msg := e.message
	if msg == "" && e.cause != nil {
		msg = e.cause.Error()
	}
	if msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	return b.String()
}

// Unwrap exposes the original SDK error.
func (e *ProviderError) Unwrap() error { return e.cause }
