package runtime

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shellmind/agentcore/internal/approval"
	coreerrors "github.com/shellmind/agentcore/internal/errors"
	"github.com/shellmind/agentcore/internal/core"
	"github.com/shellmind/agentcore/internal/jobs"
)

// Dispatcher is the runtime dispatcher from spec §4.3: it turns a
// core.Decision into observable side effects via the capability graph,
// returning either nil (side effects scheduled, loop awaits events on
// Feedback) or an immediate core.Input for the rare synchronous path.
type Dispatcher struct {
	LLM        LLMCapability
	Executor   *Executor
	Approvals  *approval.Registry
	Jobs       jobs.Store
	Workers    *WorkerPool
	Telemetry  TelemetryCapability
	Logger     *slog.Logger

	// Feedback is where asynchronous results (tool results completing after
	// Interpret has returned, approval outcomes, worker events) are
	// delivered; the Session merges this with its external input channel.
	Feedback chan core.Input
}

// NewDispatcher wires the capability graph into a single Dispatcher.
func NewDispatcher(llm LLMCapability, executor *Executor, approvals *approval.Registry, jobStore jobs.Store, workers *WorkerPool, telemetry TelemetryCapability) *Dispatcher {
	if telemetry == nil {
		telemetry = NopTelemetry{}
	}
	return &Dispatcher{
		LLM: llm, Executor: executor, Approvals: approvals, Jobs: jobStore, Workers: workers,
		Telemetry: telemetry, Feedback: make(chan core.Input, 64),
	}
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d *Dispatcher) emit(in core.Input) {
	select {
	case d.Feedback <- in:
	default:
		// Feedback channel is a bounded queue; a full channel means the
		// session loop is backed up. Block rather than drop -- losing a
		// tool result would violate the "all results observed" invariant.
		d.Feedback <- in
	}
}

// Interpret dispatches decision, per spec §4.3's dispatch-by-decision-kind table.
func (d *Dispatcher) Interpret(ctx context.Context, decision core.Decision, state core.State) (core.Input, error) {
	d.Telemetry.RecordDecision(decisionLabel(decision))

	switch dec := decision.(type) {
	case core.RequestLLM:
		return d.interpretRequestLLM(ctx, dec)

	case core.ExecuteTools:
		return d.interpretExecuteTools(ctx, dec)

	case core.RequestApproval:
		go d.awaitApproval(ctx, dec)
		return nil, nil

	case core.SpawnWorker:
		return d.interpretSpawnWorker(ctx, dec)

	default:
		return nil, nil
	}
}

// decisionLabel returns the telemetry label for d's kind. core.Decision's
// kind method is unexported, so the label is derived from the concrete type.
func decisionLabel(d core.Decision) string {
	switch d.(type) {
	case core.NoDecision:
		return "none"
	case core.EmitResponse:
		return "emit_response"
	case core.ExecuteTools:
		return "execute_tools"
	case core.RequestApproval:
		return "request_approval"
	case core.SpawnWorker:
		return "spawn_worker"
	case core.RequestLLM:
		return "request_llm"
	case core.Done:
		return "done"
	case core.ErrorDecision:
		return "error"
	}
	return "unknown"
}

// interpretRequestLLM performs the LLM call cognition deferred to runtime,
// per the §9 cognition/runtime split.
func (d *Dispatcher) interpretRequestLLM(ctx context.Context, dec core.RequestLLM) (core.Input, error) {
	resp, err := d.LLM.Complete(ctx, dec.Envelope)
	if err != nil {
		d.Telemetry.RecordResult("llm", false)
		return core.LLMResponse{}, coreerrors.Wrap(coreerrors.ProviderUnavailable, "", err)
	}
	d.Telemetry.RecordResult("llm", true)
	return resp, nil
}

// interpretExecuteTools runs calls sequentially (N=1) or in parallel (N>=2)
// under the bounded permit pool. A single call's result is returned directly;
// for N>=2 one feedback Input per call is emitted in call order (spec §4.3, §8).
func (d *Dispatcher) interpretExecuteTools(ctx context.Context, dec core.ExecuteTools) (core.Input, error) {
	if len(dec.Calls) == 0 {
		return nil, coreerrors.New(coreerrors.Internal, "ExecuteTools with zero calls")
	}

	var async, sync []core.ToolCallRequest
	for _, c := range dec.Calls {
		if c.Async {
			async = append(async, c)
		} else {
			sync = append(sync, c)
		}
	}

	for _, a := range async {
		if _, err := d.enqueueAsyncJob(ctx, a.Call); err != nil {
			d.logger().Warn("failed to enqueue async tool job", "tool", a.Call.Name, "error", err)
		}
	}

	if len(sync) == 0 {
		return nil, nil
	}

	calls := make([]core.ToolCall, len(sync))
	for i, c := range sync {
		calls[i] = c.Call
	}

	if len(calls) == 1 {
		res := d.Executor.ExecuteSingle(ctx, calls[0])
		d.Telemetry.RecordResult("tool", res.OK)
		return res, nil
	}

	results := d.Executor.ExecuteAll(ctx, calls)
	go func() {
		for _, res := range results {
			d.Telemetry.RecordResult("tool", res.OK)
			d.emit(res)
		}
	}()
	return nil, nil
}

func (d *Dispatcher) enqueueAsyncJob(ctx context.Context, call core.ToolCall) (jobs.Job, error) {
	job := jobs.Job{
		ID:          uuid.NewString(),
		Description: "async tool: " + call.Name,
		Status:      jobs.StatusQueued,
		IsWorker:    false,
		ToolCallID:  call.ID,
	}
	if err := d.Jobs.Create(ctx, &job); err != nil {
		return job, err
	}
	go func() {
		res := d.Executor.ExecuteSingle(ctx, call)
		job.Status = jobs.StatusSucceeded
		if res.IsFailure() {
			job.Status = jobs.StatusFailed
		}
		_ = d.Jobs.Update(ctx, &job)
		d.emit(res)
	}()
	return job, nil
}

// awaitApproval registers the request and waits on the reply_slot; it
// publishes no ApprovalRequested event. A denial or a failed wait is fed back
// as an ApprovalOutcome with Approved=false; on approval the call is executed
// and its ToolResult is fed back.
func (d *Dispatcher) awaitApproval(ctx context.Context, dec core.RequestApproval) {
	outcome, err := d.Approvals.Await(ctx, dec.CallID, dec.Tool, dec.Args)
	if err != nil {
		d.emit(core.ApprovalOutcome{CallID: dec.CallID, Approved: false, Reason: err.Error()})
		return
	}
	if !outcome.Approved {
		d.emit(core.ApprovalOutcome{CallID: dec.CallID, Approved: false, Reason: outcome.Reason})
		return
	}
	res := d.Executor.ExecuteSingle(ctx, core.ToolCall{ID: dec.CallID, Name: dec.Tool, Args: dec.Args})
	d.emit(res)
}

func (d *Dispatcher) interpretSpawnWorker(ctx context.Context, dec core.SpawnWorker) (core.Input, error) {
	handle, err := d.Workers.Spawn(ctx, dec.Spec, d.emit)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.Internal, "failed to spawn worker", err)
	}
	d.logger().Info("worker spawned", "job_id", handle.JobID)
	return nil, nil
}
