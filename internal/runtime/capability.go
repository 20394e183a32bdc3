// Package runtime implements the runtime dispatcher: the asynchronous
// interpreter that turns a core.Decision into observable side effects
// through a capability-graph abstraction (spec §4.3).
package runtime

import (
	"context"

	"github.com/shellmind/agentcore/internal/core"
)

// LLMCapability performs the actual LLM call a RequestLLM decision
// describes. Implementations must be cancel-safe and retryable on
// transport failure (spec §6).
type LLMCapability interface {
	Complete(ctx context.Context, envelope core.PromptEnvelope) (core.LLMResponse, error)
}

// ToolCapability executes a single tool call. May be long-running; any
// child process it owns must be reaped by the time Execute returns.
type ToolCapability interface {
	Execute(ctx context.Context, call core.ToolCall) (core.ToolResult, error)
}

// ApprovalOutcomeResult is what the approval capability resolves a request to.
type ApprovalOutcomeResult struct {
	Approved bool
	Reason   string
}

// ApprovalCapability suspends until a user or timeout resolves the request.
// Implementations must not hold locks across the suspend and must be
// cancel-safe (spec §4.3, §5).
type ApprovalCapability interface {
	Request(ctx context.Context, callID, tool string, args map[string]any) (ApprovalOutcomeResult, error)
}

// WorkerHandle identifies a spawned worker's job registry entry.
type WorkerHandle struct {
	JobID string
}

// WorkerCapability spawns a subordinate worker and registers a JobRecord.
type WorkerCapability interface {
	Spawn(ctx context.Context, spec core.WorkerSpec) (WorkerHandle, error)
}

// TelemetryCapability is a best-effort metric/log sink; it must never fail
// the turn (spec §4.3).
type TelemetryCapability interface {
	RecordDecision(kind string)
	RecordResult(kind string, ok bool)
}

// MemoryStore is the optional external memory capability used by
// auto_extract_memories (spec §4.4, §6).
type MemoryStore interface {
	Store(ctx context.Context, entry string) error
	Recall(ctx context.Context, query string, k int) ([]string, error)
}

// NopTelemetry discards every call; satisfies "must not fail the turn"
// trivially.
type NopTelemetry struct{}

func (NopTelemetry) RecordDecision(string)       {}
func (NopTelemetry) RecordResult(string, bool)   {}
