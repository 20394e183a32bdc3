// Package core holds the agent execution core's data model, cognitive
// engine, and session loop: the pure state-transition layer described by
// the agent execution core specification.
package core

import (
	"time"

	"github.com/google/uuid"
)

// Role tags a Message's position in the conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a single requested tool invocation, native or parsed from a
// short-key action block.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// Message is one entry in the conversation history. Token count is computed
// once at construction and cached, never recomputed.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall // set only when Role == RoleAssistant and calls were made
	ToolCallID string     // set only when Role == RoleTool
	Timestamp  time.Time
	Tokens     int
}

// NewMessage constructs a Message with its token count estimated immediately.
func NewMessage(role Role, content string, estimator TokenEstimator) Message {
	if estimator == nil {
		estimator = CharEstimator{}
	}
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Tokens:    estimator.Estimate(content),
	}
}

// TokenEstimator estimates the token cost of a string. Pluggable per spec
// §4.4; CharEstimator is the character-based heuristic usable without a real
// tokenizer.
type TokenEstimator interface {
	Estimate(text string) int
}

// CharEstimator approximates token count as roughly four characters per
// token, the same heuristic the teacher's context/pruning.go estimators use
// when no tokenizer is configured.
type CharEstimator struct{}

func (CharEstimator) Estimate(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

// Scratchpad is an opaque handle threaded through State; concrete behavior
// lives in package scratchpad. State only needs an identifier to reference
// the process-wide store.
type ScratchpadRef struct {
	ID string
}

// State is the immutable snapshot threaded through each cognitive step.
// Mutation happens only via withHistory/appendMessage returning a new value; the session
// loop is the sole writer of the authoritative copy.
type State struct {
	StepCounter      uint64
	History          []Message
	PendingToolCalls []ToolCall
	// PendingApprovals queues gated calls from the current batch that have
	// not yet been sequenced as a RequestApproval decision: approval-free
	// calls in the same batch dispatch immediately, while gated ones are
	// asked about one at a time as the batch drains.
	PendingApprovals  []ToolCall
	ParseFailureCount int
	MaxParseFailures  int
	ScratchpadRef     ScratchpadRef
	SessionID         string
}

// NewState constructs an initial state for a new session.
func NewState(maxParseFailures int) State {
	if maxParseFailures <= 0 {
		maxParseFailures = 3
	}
	return State{
		SessionID:        uuid.NewString(),
		MaxParseFailures: maxParseFailures,
		ScratchpadRef:    ScratchpadRef{ID: uuid.NewString()},
	}
}

// clone returns a State sharing no backing arrays with the receiver, so
// callers may append freely without mutating the original snapshot.
func (s State) clone() State {
	next := s
	next.History = append([]Message(nil), s.History...)
	next.PendingToolCalls = append([]ToolCall(nil), s.PendingToolCalls...)
	next.PendingApprovals = append([]ToolCall(nil), s.PendingApprovals...)
	return next
}

// withHistory returns a copy of s with history replaced and step_counter
// advanced by one, preserving the spec §8 invariant
// next_state.step_counter = state.step_counter + 1.
func (s State) withHistory(history []Message) State {
	next := s
	next.PendingToolCalls = append([]ToolCall(nil), s.PendingToolCalls...)
	next.PendingApprovals = append([]ToolCall(nil), s.PendingApprovals...)
	next.History = history
	next.StepCounter = s.StepCounter + 1
	return next
}

// appendMessage returns a copy of s with msg appended to history and
// step_counter advanced.
func (s State) appendMessage(msg Message) State {
	return s.withHistory(append(append([]Message(nil), s.History...), msg))
}

// TotalTokens sums the cached token counts across history.
func (s State) TotalTokens() int {
	total := 0
	for _, m := range s.History {
		total += m.Tokens
	}
	return total
}

// lastAssistantToolCallIDs collects tool_call_ids from the most recent
// assistant message, used to validate Tool messages per the
// no-tool-without-matching-call invariant (spec §3, §8).
func (s State) lastAssistantToolCallIDs() map[string]bool {
	ids := map[string]bool{}
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Role == RoleAssistant {
			for _, tc := range s.History[i].ToolCalls {
				ids[tc.ID] = true
			}
			return ids
		}
	}
	return ids
}
