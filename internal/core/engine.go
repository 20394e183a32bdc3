package core

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/shellmind/agentcore/internal/errors"
)

// Engine is the cognitive engine's public contract: a synchronous
// state-transition function that performs no I/O other than logging. Steps
// are not fully deterministic: each appended message is stamped with the
// wall clock, and tool calls that arrive without an ID (every short-key
// action among them) get a random UUID, so two steps over the same
// (state, input) can differ in those fields.
type Engine interface {
	Step(state State, in Input) (Transition, error)
}

// ApprovalPredicate decides whether a tool call requires user approval
// before execution (spec §4.2 "Approval policy").
type ApprovalPredicate func(tool string, args map[string]any) bool

// AlwaysApprove is the default predicate: nothing requires approval.
func AlwaysApprove(string, map[string]any) bool { return false }

// StubEngine is the deterministic testing engine from spec §4.2: it echoes
// user messages back, and emits Done on an empty input.
type StubEngine struct {
	Estimator TokenEstimator
}

func (e StubEngine) Step(state State, in Input) (Transition, error) {
	est := e.Estimator
	if est == nil {
		est = CharEstimator{}
	}
	if in == nil {
		return Transition{NextState: state, Decision: Done{FinalText: ""}}, nil
	}
	switch v := in.(type) {
	case UserMessage:
		next := state.appendMessage(NewMessage(RoleUser, v.Text, est))
		return Transition{NextState: next, Decision: Done{FinalText: v.Text}}, nil
	case Interrupt:
		return Transition{NextState: state, Decision: ErrorDecision{Err: errors.New(errors.Interrupted, "interrupted")}}, nil
	default:
		return Transition{NextState: state, Decision: NoDecision{}}, nil
	}
}

// LLMEngine is the LLM-backed cognitive engine. Per the cognition/runtime
// split mandated in spec §9, Step never calls an LLM capability: it returns
// RequestLLM as a decision and lets runtime perform the call. This is the
// corrected shape versus the teacher's loop.go, which calls the provider
// inline from within the equivalent of this method.
type LLMEngine struct {
	SystemPrompt      string
	ToolSchemas       []string
	RequiresApproval  ApprovalPredicate
	MaxParseFailures  int
	Estimator         TokenEstimator
	Logger            *slog.Logger
}

func (e *LLMEngine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *LLMEngine) estimator() TokenEstimator {
	if e.Estimator != nil {
		return e.Estimator
	}
	return CharEstimator{}
}

func (e *LLMEngine) approvalPredicate() ApprovalPredicate {
	if e.RequiresApproval != nil {
		return e.RequiresApproval
	}
	return AlwaysApprove
}

func (e *LLMEngine) envelope(state State, corrective string) PromptEnvelope {
	return PromptEnvelope{
		SystemPrompt: e.SystemPrompt,
		History:      append([]Message(nil), state.History...),
		ToolSchemas:  e.ToolSchemas,
		Corrective:   corrective,
	}
}

func (e *LLMEngine) Step(state State, in Input) (Transition, error) {
	est := e.estimator()

	switch v := in.(type) {
	case nil:
		return Transition{NextState: state, Decision: NoDecision{}}, nil

	case UserMessage:
		next := state.appendMessage(NewMessage(RoleUser, v.Text, est))
		return Transition{NextState: next, Decision: RequestLLM{Envelope: e.envelope(next, "")}}, nil

	case LLMResponse:
		return e.stepLLMResponse(state, v)

	case ToolResult:
		return e.stepToolResult(state, v, est)

	case ApprovalOutcome:
		return e.stepApprovalOutcome(state, v, est)

	case WorkerEvent:
		// WorkerEvent observation is bookkeeping only; cognition does not
		// change course on it beyond keeping history state as-is.
		return Transition{NextState: state, Decision: NoDecision{}}, nil

	case Interrupt:
		last := lastAssistantText(state.History)
		if last == "" {
			return Transition{NextState: state, Decision: ErrorDecision{Err: errors.New(errors.Interrupted, "interrupted with no assistant content")}}, nil
		}
		return Transition{NextState: state, Decision: Done{FinalText: last}}, nil

	default:
		return Transition{NextState: state}, errors.New(errors.Internal, "unrecognized input kind")
	}
}

func lastAssistantText(history []Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleAssistant {
			return history[i].Content
		}
	}
	return ""
}

// spawnWorkerToolName is the reserved action name cognition recognizes (via
// a native tool call or a short-key ACTION block) to request a subordinate
// worker instead of an ordinary tool execution.
const spawnWorkerToolName = "spawn_worker"

func (e *LLMEngine) stepLLMResponse(state State, v LLMResponse) (Transition, error) {
	est := e.estimator()
	msg := NewMessage(RoleAssistant, v.Content, est)

	actions, ok := ParseShortKeyActions(v.Content)

	calls := append([]ToolCall(nil), v.ToolCalls...)
	calls = append(calls, actions...)
	calls = dedupeToolCalls(calls)

	// msg.ToolCalls must reflect every call cognition recognized, native or
	// short-key, so lastAssistantToolCallIDs validates ToolResults for both.
	msg.ToolCalls = calls

	next := state.appendMessage(msg)

	if len(calls) == 0 && !ok {
		next.ParseFailureCount = state.ParseFailureCount + 1
		if next.ParseFailureCount > next.MaxParseFailures {
			return Transition{NextState: next, Decision: ErrorDecision{
				Err: errors.New(errors.ParseExhausted, "parse_failure_count exceeded max_parse_failures"),
			}}, nil
		}
		return Transition{NextState: next, Decision: RequestLLM{
			Envelope: e.envelope(next, "your last response could not be parsed into an action or a final answer; reply with either a plain answer or a well-formed ACTION block"),
		}}, nil
	}

	next.ParseFailureCount = 0

	if len(calls) == 0 {
		// Plain final answer.
		return Transition{NextState: next, Decision: Done{FinalText: v.Content}}, nil
	}

	spawnCalls, toolCalls := splitSpawnCalls(calls)
	if len(spawnCalls) > 0 {
		if len(spawnCalls) > 1 || len(toolCalls) > 0 {
			e.logger().Warn("spawn_worker must be the sole action in a response; honoring only the first and dropping the rest",
				"spawn_count", len(spawnCalls), "other_calls", len(toolCalls))
		}
		return Transition{NextState: next, Decision: SpawnWorker{Spec: workerSpecFromArgs(spawnCalls[0].Args)}}, nil
	}

	var gated, ungated []ToolCall
	for _, c := range toolCalls {
		if e.approvalPredicate()(c.Name, c.Args) {
			gated = append(gated, c)
		} else {
			ungated = append(ungated, c)
		}
	}
	next.PendingApprovals = append([]ToolCall(nil), gated...)

	if len(ungated) > 0 {
		// Approval-free calls dispatch immediately; gated calls in this same
		// batch are sequenced one at a time as the ungated ones settle.
		next.PendingToolCalls = append([]ToolCall(nil), ungated...)
		requests := make([]ToolCallRequest, 0, len(ungated))
		for _, c := range ungated {
			requests = append(requests, ToolCallRequest{Call: c})
		}
		return Transition{NextState: next, Decision: ExecuteTools{Calls: requests}}, nil
	}

	return e.beginNextApproval(next)
}

// beginNextApproval pops the next gated call off PendingApprovals and
// dispatches it, moving it into PendingToolCalls as now in flight. Callers
// must only invoke this once PendingToolCalls holds no other in-flight
// calls, so at most one gated call is ever awaiting approval at a time.
func (e *LLMEngine) beginNextApproval(next State) (Transition, error) {
	c := next.PendingApprovals[0]
	next.PendingApprovals = append([]ToolCall(nil), next.PendingApprovals[1:]...)
	next.PendingToolCalls = append(next.PendingToolCalls, c)
	return Transition{NextState: next, Decision: RequestApproval{CallID: c.ID, Tool: c.Name, Args: c.Args}}, nil
}

// settle is invoked once a batch of in-flight calls (PendingToolCalls) has
// entirely drained: it either sequences the next gated approval still
// queued, or closes the turn out to the LLM. Both stepToolResult and
// stepApprovalOutcome funnel through here so a mixed batch's gated tail
// never deadlocks once its approval-free half has returned.
func (e *LLMEngine) settle(next State) (Transition, error) {
	if len(next.PendingApprovals) > 0 {
		return e.beginNextApproval(next)
	}
	return Transition{NextState: next, Decision: RequestLLM{Envelope: e.envelope(next, "")}}, nil
}

func (e *LLMEngine) stepToolResult(state State, v ToolResult, est TokenEstimator) (Transition, error) {
	content := v.Content
	msg := Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: v.CallID,
		Tokens:     est.Estimate(content),
	}

	if !state.lastAssistantToolCallIDs()[v.CallID] {
		return Transition{NextState: state}, errors.New(errors.Internal, "tool result for unknown call_id: "+v.CallID)
	}

	next := state.appendMessage(msg)
	next.PendingToolCalls = removeCall(state.PendingToolCalls, v.CallID)

	if len(next.PendingToolCalls) > 0 {
		// Still accumulating results from this parallel batch.
		return Transition{NextState: next, Decision: NoDecision{}}, nil
	}

	return e.settle(next)
}

func (e *LLMEngine) stepApprovalOutcome(state State, v ApprovalOutcome, est TokenEstimator) (Transition, error) {
	if v.Approved {
		// The dispatcher re-executes the approved call directly and feeds
		// its ToolResult back through stepToolResult, so there is usually
		// nothing further to settle here; still check PendingToolCalls the
		// way stepToolResult does in case this outcome arrives with no
		// in-flight call left to wait on.
		if len(state.PendingToolCalls) > 0 {
			return Transition{NextState: state, Decision: NoDecision{}}, nil
		}
		return e.settle(state)
	}

	content := "denied: " + v.Reason
	msg := Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: v.CallID,
		Tokens:     est.Estimate(content),
	}
	next := state.appendMessage(msg)
	next.PendingToolCalls = removeCall(state.PendingToolCalls, v.CallID)

	if len(next.PendingToolCalls) > 0 {
		return Transition{NextState: next, Decision: NoDecision{}}, nil
	}
	return e.settle(next)
}

// splitSpawnCalls separates the reserved spawn_worker action from ordinary
// tool calls in a parsed batch.
func splitSpawnCalls(calls []ToolCall) (spawn, rest []ToolCall) {
	for _, c := range calls {
		if c.Name == spawnWorkerToolName {
			spawn = append(spawn, c)
		} else {
			rest = append(rest, c)
		}
	}
	return spawn, rest
}

// workerSpecFromArgs builds a WorkerSpec from a spawn_worker call's args,
// defaulting ContextShare to "summary" when the field is absent.
func workerSpecFromArgs(args map[string]any) WorkerSpec {
	spec := WorkerSpec{ContextShare: "summary"}
	if v, ok := args["objective"].(string); ok {
		spec.Objective = v
	}
	if v, ok := args["context_share"].(string); ok && v != "" {
		spec.ContextShare = v
	}
	if v, ok := args["context_payload"].(string); ok {
		spec.ContextPayload = v
	}
	if v, ok := args["allow_tools"].(bool); ok {
		spec.AllowTools = v
	}
	return spec
}

func removeCall(calls []ToolCall, id string) []ToolCall {
	out := make([]ToolCall, 0, len(calls))
	for _, c := range calls {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

func dedupeToolCalls(calls []ToolCall) []ToolCall {
	seen := map[string]bool{}
	out := make([]ToolCall, 0, len(calls))
	for _, c := range calls {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		key := c.Name + "|" + argsKey(c.Args)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}
