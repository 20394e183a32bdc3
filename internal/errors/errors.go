// Package errors defines the agent core's error taxonomy: a small fixed set
// of machine-classifiable error kinds, each carrying a human-readable message
// and an optional wrapped cause.
package errors

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error classification tag.
type Kind string

const (
	// ProviderUnavailable indicates a transport/5xx failure from the LLM capability.
	ProviderUnavailable Kind = "provider_unavailable"
	// ToolExecutionFailed indicates a tool call failed; never fatal to the session.
	ToolExecutionFailed Kind = "tool_execution_failed"
	// PermissionDenied indicates an approval request was denied.
	PermissionDenied Kind = "permission_denied"
	// ContextWindowExceeded indicates pruning could not reduce history enough.
	ContextWindowExceeded Kind = "context_window_exceeded"
	// ParseExhausted indicates parse_failure_count crossed the recovery threshold.
	ParseExhausted Kind = "parse_exhausted"
	// Interrupted indicates a clean user-initiated cancellation.
	Interrupted Kind = "interrupted"
	// Internal indicates an invariant violation.
	Internal Kind = "internal"
)

// Retryable reports whether an error of this kind may plausibly succeed on
// retry. Only ProviderUnavailable and ToolExecutionFailed are retryable; the
// rest are terminal for the current turn. runtime.RetryingTool does not
// consult it: it retries every error or failed result.
func (k Kind) Retryable() bool {
	switch k {
	case ProviderUnavailable, ToolExecutionFailed:
		return true
	default:
		return false
	}
}

// CoreError is the structured error type carried by AgentDecision.Error and
// propagated through OutputEvent.Error.
type CoreError struct {
	Kind    Kind
	Message string
	Cause   error
}

// New builds a CoreError of the given kind with a message.
func New(kind Kind, message string) *CoreError {
	return &CoreError{Kind: kind, Message: message}
}

// Wrap builds a CoreError of the given kind wrapping cause, using cause's
// message when message is empty.
func Wrap(kind Kind, message string, cause error) *CoreError {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &CoreError{Kind: kind, Message: message, Cause: cause}
}

func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause, enabling errors.Is/errors.As traversal.
func (e *CoreError) Unwrap() error {
	return e.Cause
}

// As extracts a *CoreError from err's chain.
func As(err error) (*CoreError, bool) {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is (or wraps) a *CoreError, otherwise Internal.
func KindOf(err error) Kind {
	if ce, ok := As(err); ok {
		return ce.Kind
	}
	return Internal
}
