package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/shellmind/agentcore/internal/backoff"
	"github.com/shellmind/agentcore/internal/core"
)

// RetryPolicy configures the retry-wrapper capability installed between the
// dispatcher and a concrete tool (spec §4.3, Open Question (c) in §9). One
// policy applies to every call through a RetryingTool, whatever the tool name.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     backoff.Policy
}

// DefaultRetryPolicy allows up to 3 attempts with the standard backoff curve.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: backoff.Default()}
}

// RetryingTool wraps a ToolCapability with bounded exponential backoff with
// jitter, a direct port of the teacher's internal/backoff formula onto the
// capability boundary.
type RetryingTool struct {
	Inner  ToolCapability
	Policy RetryPolicy
	Logger *slog.Logger
}

func NewRetryingTool(inner ToolCapability, policy RetryPolicy) *RetryingTool {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	return &RetryingTool{Inner: inner, Policy: policy}
}

func (r *RetryingTool) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *RetryingTool) Execute(ctx context.Context, call core.ToolCall) (core.ToolResult, error) {
	var lastRes core.ToolResult
	var lastErr error

	for attempt := 1; attempt <= r.Policy.MaxAttempts; attempt++ {
		res, err := r.Inner.Execute(ctx, call)
		lastRes, lastErr = res, err
		if err == nil && !res.IsFailure() {
			return res, nil
		}

		if attempt == r.Policy.MaxAttempts {
			break
		}

		wait := backoff.Compute(r.Policy.Backoff, attempt)
		r.logger().Warn("tool execution failed, retrying", "tool", call.Name, "attempt", attempt, "wait", wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return core.ToolResult{CallID: call.ID, OK: false, Content: "cancelled during retry backoff"}, ctx.Err()
		}
	}

	return lastRes, lastErr
}
