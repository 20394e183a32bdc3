package runtime

import (
	"context"
	"fmt"
	"testing"

	"github.com/shellmind/agentcore/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTool struct {
	execute func(ctx context.Context, call core.ToolCall) (core.ToolResult, error)
}

func (f fakeTool) Execute(ctx context.Context, call core.ToolCall) (core.ToolResult, error) {
	return f.execute(ctx, call)
}

func TestExecutorExecuteSingleSuccess(t *testing.T) {
	tool := fakeTool{execute: func(ctx context.Context, call core.ToolCall) (core.ToolResult, error) {
		return core.ToolResult{OK: true, Content: "done"}, nil
	}}
	ex := NewExecutor(tool, ExecutorConfig{MaxConcurrency: 2})

	res := ex.ExecuteSingle(context.Background(), core.ToolCall{ID: "c1", Name: "fs:read"})
	assert.True(t, res.OK)
	assert.Equal(t, "c1", res.CallID)
	assert.Equal(t, "done", res.Content)
}

func TestExecutorExecuteSingleWrapsError(t *testing.T) {
	tool := fakeTool{execute: func(ctx context.Context, call core.ToolCall) (core.ToolResult, error) {
		return core.ToolResult{}, fmt.Errorf("boom")
	}}
	ex := NewExecutor(tool, ExecutorConfig{MaxConcurrency: 1})

	res := ex.ExecuteSingle(context.Background(), core.ToolCall{ID: "c1", Name: "fs:read"})
	assert.False(t, res.OK)
	assert.Equal(t, "boom", res.Content)
}

func TestExecutorExecuteAllPreservesCallOrderRegardlessOfCompletionOrder(t *testing.T) {
	tool := fakeTool{execute: func(ctx context.Context, call core.ToolCall) (core.ToolResult, error) {
		// Reverse-numbered calls finish in reverse order under a 1-permit pool
		// only if run sequentially; with enough concurrency and no artificial
		// delay the race is harmless here -- we only assert final ordering.
		return core.ToolResult{OK: true, Content: call.Name}, nil
	}}
	ex := NewExecutor(tool, ExecutorConfig{MaxConcurrency: 4})

	calls := []core.ToolCall{
		{ID: "c1", Name: "a"},
		{ID: "c2", Name: "b"},
		{ID: "c3", Name: "c"},
	}
	results := ex.ExecuteAll(context.Background(), calls)
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].Content)
	assert.Equal(t, "b", results[1].Content)
	assert.Equal(t, "c", results[2].Content)
	assert.Equal(t, "c1", results[0].CallID)
	assert.Equal(t, "c2", results[1].CallID)
	assert.Equal(t, "c3", results[2].CallID)
}

func TestExecutorExecuteSingleCancelledBeforeAcquire(t *testing.T) {
	tool := fakeTool{execute: func(ctx context.Context, call core.ToolCall) (core.ToolResult, error) {
		t.Fatal("tool should not run once the context is already cancelled")
		return core.ToolResult{}, nil
	}}
	ex := NewExecutor(tool, ExecutorConfig{MaxConcurrency: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := ex.ExecuteSingle(ctx, core.ToolCall{ID: "c1", Name: "fs:read"})
	assert.False(t, res.OK)
	assert.Contains(t, res.Content, "cancelled")
}

func TestNewExecutorDefaultsConcurrency(t *testing.T) {
	ex := NewExecutor(fakeTool{}, ExecutorConfig{MaxConcurrency: 0})
	assert.Equal(t, int64(5), ex.cfg.MaxConcurrency)
}
