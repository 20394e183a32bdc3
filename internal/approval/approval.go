// Package approval implements the ApprovalRequest rendezvous from spec §3:
// a single-shot reply_slot resolved to an ApprovalOutcome exactly once.
//
// Adapted from the teacher's internal/agent/approval.go: the policy
// evaluation (Check, wildcard matching including the mcp:* special case) is
// kept in spirit, but the store-based Approve/Deny is replaced with a true
// channel rendezvous so an Interrupt can resolve every outstanding request
// with Cancelled without racing a late Approve/Deny call (spec §5).
package approval

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Outcome is the resolved value of a Request's reply slot.
type Outcome struct {
	Approved bool
	Reason   string
}

// Request is the spec §3 ApprovalRequest: call_id, tool, args, and a
// single-shot reply_slot.
type Request struct {
	CallID    string
	Tool      string
	Args      map[string]any
	replySlot chan Outcome
	resolved  bool
}

// Policy configures which tool calls require approval and the fallback
// decision, grounded on the teacher's ApprovalPolicy (Allowlist/Denylist/
// RequireApproval/SafeBins ordered evaluation).
type Policy struct {
	Denylist        []string
	Allowlist       []string
	RequireApproval []string
	SafeBins        []string
	DefaultRequire  bool
}

// DefaultPolicy requires approval for nothing by default; callers populate
// RequireApproval with the tool patterns their deployment gates.
func DefaultPolicy() Policy {
	return Policy{}
}

// Requires evaluates whether tool requires approval, using the teacher's
// ordered policy evaluation: denylist (always true) -> allowlist (never
// requires) -> explicit RequireApproval patterns -> SafeBins (never
// requires) -> DefaultRequire fallback.
func (p Policy) Requires(tool string) bool {
	for _, pat := range p.Denylist {
		if matchPattern(pat, tool) {
			return true
		}
	}
	for _, pat := range p.Allowlist {
		if matchPattern(pat, tool) {
			return false
		}
	}
	for _, pat := range p.RequireApproval {
		if matchPattern(pat, tool) {
			return true
		}
	}
	for _, pat := range p.SafeBins {
		if matchPattern(pat, tool) {
			return false
		}
	}
	return p.DefaultRequire
}

func matchPattern(pattern, tool string) bool {
	if pattern == "" || tool == "" {
		return false
	}
	if pattern == "mcp:*" {
		return strings.HasPrefix(tool, "mcp:")
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(tool, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == tool
}

// Registry holds outstanding approval requests and resolves their reply
// slots exactly once.
type Registry struct {
	mu       sync.Mutex
	pending  map[string]*Request
	policy   Policy
}

func NewRegistry(policy Policy) *Registry {
	return &Registry{pending: make(map[string]*Request), policy: policy}
}

// Requires reports whether tool requires approval under the registry's
// policy.
func (r *Registry) Requires(tool string) bool {
	return r.policy.Requires(tool)
}

// Await registers a request and blocks until its reply slot resolves, the
// context is cancelled, or CancelAll is called. It never holds a lock
// across the suspend (spec §5's deadlock-avoidance requirement).
func (r *Registry) Await(ctx context.Context, callID, tool string, args map[string]any) (Outcome, error) {
	req := &Request{CallID: callID, Tool: tool, Args: args, replySlot: make(chan Outcome, 1)}
	if req.CallID == "" {
		req.CallID = uuid.NewString()
	}

	r.mu.Lock()
	r.pending[req.CallID] = req
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.pending, req.CallID)
		r.mu.Unlock()
	}()

	select {
	case outcome := <-req.replySlot:
		return outcome, nil
	case <-ctx.Done():
		return Outcome{Approved: false, Reason: "cancelled"}, ctx.Err()
	}
}

// Resolve delivers an outcome to a pending request's reply slot exactly
// once; later calls for the same callID are no-ops.
func (r *Registry) Resolve(callID string, outcome Outcome) bool {
	r.mu.Lock()
	req, ok := r.pending[callID]
	if !ok || req.resolved {
		r.mu.Unlock()
		return false
	}
	req.resolved = true
	r.mu.Unlock()

	select {
	case req.replySlot <- outcome:
		return true
	default:
		return false
	}
}

// Approve resolves callID's reply slot with an approval.
func (r *Registry) Approve(callID string) bool {
	return r.Resolve(callID, Outcome{Approved: true})
}

// Deny resolves callID's reply slot with a denial.
func (r *Registry) Deny(callID, reason string) bool {
	return r.Resolve(callID, Outcome{Approved: false, Reason: reason})
}

// CancelAll resolves every outstanding reply slot with Cancelled, for use
// when an Interrupt input arrives (spec §5).
func (r *Registry) CancelAll() {
	r.mu.Lock()
	reqs := make([]*Request, 0, len(r.pending))
	for _, req := range r.pending {
		if !req.resolved {
			req.resolved = true
			reqs = append(reqs, req)
		}
	}
	r.mu.Unlock()

	for _, req := range reqs {
		select {
		case req.replySlot <- Outcome{Approved: false, Reason: "cancelled"}:
		default:
		}
	}
}

// Pending returns a snapshot of outstanding requests, for UI display.
func (r *Registry) Pending() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Request, 0, len(r.pending))
	for _, req := range r.pending {
		out = append(out, *req)
	}
	return out
}
