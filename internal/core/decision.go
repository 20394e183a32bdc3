package core

import "github.com/shellmind/agentcore/internal/errors"

// Decision is the tagged-union AgentDecision from spec §3: the declarative
// output of cognition describing what runtime should do next, without
// performing it.
type Decision interface {
	decisionKind() string
}

// NoDecision means no side effect is requested this step.
type NoDecision struct{}

func (NoDecision) decisionKind() string { return "none" }

// EmitResponse publishes an intermediate assistant message without ending
// the turn.
type EmitResponse struct {
	Text string
}

func (EmitResponse) decisionKind() string { return "emit_response" }

// ToolCallRequest is one entry of an ExecuteTools batch. Async marks a
// fire-and-forget job (the supplemental async-tool-gating feature from
// SPEC_FULL.md) that should be registered in the job registry rather than
// awaited inline.
type ToolCallRequest struct {
	Call  ToolCall
	Async bool
}

// ExecuteTools requests execution of 1..N tool calls; N>1 requests parallel
// execution under the dispatcher's bounded permit pool.
type ExecuteTools struct {
	Calls []ToolCallRequest
}

func (ExecuteTools) decisionKind() string { return "execute_tools" }

// RequestApproval asks the dispatcher to register an ApprovalRequest for a
// single gated tool call.
type RequestApproval struct {
	CallID string
	Tool   string
	Args   map[string]any
}

func (RequestApproval) decisionKind() string { return "request_approval" }

// WorkerSpec describes a worker to spawn. ContextShare selects how much
// parent context the worker inherits (spec §9; default "summary").
type WorkerSpec struct {
	Objective      string
	ParentID       string
	ContextShare   string // "full" | "summary" | "none"
	ContextPayload string
	AllowTools     bool // open question (a): default false, see DESIGN.md
}

// SpawnWorker requests a subordinate worker be registered and started.
type SpawnWorker struct {
	Spec WorkerSpec
}

func (SpawnWorker) decisionKind() string { return "spawn_worker" }

// RequestLLM asks runtime to invoke the LLM capability with the given
// envelope. This decision is an addition over the literal spec.md list,
// required by the §9 cognition/runtime split: cognition may never call the
// LLM directly, so it hands the call itself to runtime as a decision.
type PromptEnvelope struct {
	SystemPrompt string
	History      []Message
	ToolSchemas  []string
	Corrective   string // non-empty when re-requesting after a parse failure
}

type RequestLLM struct {
	Envelope PromptEnvelope
}

func (RequestLLM) decisionKind() string { return "request_llm" }

// Done is the terminal successful decision.
type Done struct {
	FinalText string
}

func (Done) decisionKind() string { return "done" }

// ErrorDecision is the terminal failure decision.
type ErrorDecision struct {
	Err *errors.CoreError
}

func (ErrorDecision) decisionKind() string { return "error" }

// Transition is the result of one cognitive step: the committed next state
// plus the decision runtime must interpret.
type Transition struct {
	NextState State
	Decision  Decision
}
