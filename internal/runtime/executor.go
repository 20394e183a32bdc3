package runtime

import (
	"context"
	"sync"

	"github.com/shellmind/agentcore/internal/core"
	"golang.org/x/sync/semaphore"
)

// ExecutorConfig bounds parallel tool execution, grounded on the teacher's
// executor.go ExecutorConfig.
type ExecutorConfig struct {
	MaxConcurrency int64
}

// DefaultExecutorConfig mirrors the teacher's defaults (MaxConcurrency: 5).
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{MaxConcurrency: 5}
}

// Executor runs tool calls under a bounded weighted-semaphore permit pool,
// reassembling results in call order regardless of completion order (spec
// §4.3, §5, §8). This consolidates the teacher's two parallel executor
// abstractions (executor.go's Executor and tool_exec.go's ToolExecutor) into
// a single type per the §9 "dual-agent legacy" note.
type Executor struct {
	cfg  ExecutorConfig
	sem  *semaphore.Weighted
	tool ToolCapability
}

// NewExecutor builds an Executor bounded by cfg against the given tool
// capability.
func NewExecutor(tool ToolCapability, cfg ExecutorConfig) *Executor {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 5
	}
	return &Executor{cfg: cfg, sem: semaphore.NewWeighted(cfg.MaxConcurrency), tool: tool}
}

// indexedResult pairs a tool result with its original position, so results
// can be reassembled in call order after concurrent completion.
type indexedResult struct {
	index  int
	result core.ToolResult
}

// ExecuteAll runs calls concurrently, bounded by the executor's permit pool,
// cancellable via ctx (queued-but-not-started calls observe ctx.Done before
// acquiring a permit, satisfying the Interrupt cancellation contract in
// spec §5). Results come back in the same order as calls.
func (e *Executor) ExecuteAll(ctx context.Context, calls []core.ToolCall) []core.ToolResult {
	results := make([]core.ToolResult, len(calls))
	out := make(chan indexedResult, len(calls))
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(idx int, c core.ToolCall) {
			defer wg.Done()

			if err := e.sem.Acquire(ctx, 1); err != nil {
				out <- indexedResult{idx, core.ToolResult{CallID: c.ID, OK: false, Content: "cancelled before execution"}}
				return
			}
			defer e.sem.Release(1)

			res, err := e.executeOne(ctx, c)
			out <- indexedResult{idx, res}
			_ = err
		}(i, call)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	for r := range out {
		results[r.index] = r.result
	}
	return results
}

// ExecuteSingle runs exactly one tool call, for the N=1 dispatch path (spec
// §4.3).
func (e *Executor) ExecuteSingle(ctx context.Context, call core.ToolCall) core.ToolResult {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return core.ToolResult{CallID: call.ID, OK: false, Content: "cancelled before execution"}
	}
	defer e.sem.Release(1)
	res, _ := e.executeOne(ctx, call)
	return res
}

// executeOne wraps a transport/timeout/tool-internal failure into a failed
// ToolResult rather than propagating the error, per spec §4.3 "Failure
// handling per tool" -- cognition, not the dispatcher, decides whether to
// retry.
func (e *Executor) executeOne(ctx context.Context, call core.ToolCall) (core.ToolResult, error) {
	res, err := e.tool.Execute(ctx, call)
	if err != nil {
		return core.ToolResult{CallID: call.ID, OK: false, Content: err.Error()}, err
	}
	res.CallID = call.ID
	return res, nil
}
