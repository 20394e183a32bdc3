package runtime

import (
	"context"
	"testing"

	"github.com/shellmind/agentcore/internal/backoff"
	"github.com/shellmind/agentcore/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBackoff() backoff.Policy {
	return backoff.Policy{InitialMs: 1, MaxMs: 2, Factor: 1, Jitter: 0}
}

func TestRetryingToolSucceedsWithoutRetryOnFirstAttempt(t *testing.T) {
	attempts := 0
	tool := fakeTool{execute: func(ctx context.Context, call core.ToolCall) (core.ToolResult, error) {
		attempts++
		return core.ToolResult{OK: true}, nil
	}}
	r := NewRetryingTool(tool, RetryPolicy{MaxAttempts: 3, Backoff: fastBackoff()})

	res, err := r.Execute(context.Background(), core.ToolCall{ID: "c1"})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 1, attempts)
}

func TestRetryingToolRetriesOnFailureUntilSuccess(t *testing.T) {
	attempts := 0
	tool := fakeTool{execute: func(ctx context.Context, call core.ToolCall) (core.ToolResult, error) {
		attempts++
		if attempts < 3 {
			return core.ToolResult{OK: false, Content: "transient"}, nil
		}
		return core.ToolResult{OK: true}, nil
	}}
	r := NewRetryingTool(tool, RetryPolicy{MaxAttempts: 5, Backoff: fastBackoff()})

	res, err := r.Execute(context.Background(), core.ToolCall{ID: "c1"})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 3, attempts)
}

func TestRetryingToolExhaustsAttemptsAndReturnsLastFailure(t *testing.T) {
	attempts := 0
	tool := fakeTool{execute: func(ctx context.Context, call core.ToolCall) (core.ToolResult, error) {
		attempts++
		return core.ToolResult{OK: false, Content: "still failing"}, nil
	}}
	r := NewRetryingTool(tool, RetryPolicy{MaxAttempts: 3, Backoff: fastBackoff()})

	res, err := r.Execute(context.Background(), core.ToolCall{ID: "c1"})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "still failing", res.Content)
	assert.Equal(t, 3, attempts)
}

func TestRetryingToolCancelledDuringBackoffReturnsContextError(t *testing.T) {
	tool := fakeTool{execute: func(ctx context.Context, call core.ToolCall) (core.ToolResult, error) {
		return core.ToolResult{OK: false}, nil
	}}
	r := NewRetryingTool(tool, RetryPolicy{MaxAttempts: 3, Backoff: backoff.Policy{InitialMs: 10000, MaxMs: 20000, Factor: 1, Jitter: 0}})

	ctx, cancel := context.WithCancel(context.Background())
	go cancel()

	_, err := r.Execute(ctx, core.ToolCall{ID: "c1"})
	require.Error(t, err)
}

func TestNewRetryingToolDefaultsMaxAttempts(t *testing.T) {
	r := NewRetryingTool(fakeTool{}, RetryPolicy{MaxAttempts: 0})
	assert.Equal(t, 1, r.Policy.MaxAttempts)
}
