package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/shellmind/agentcore/internal/errors"
)

// Dispatcher turns a committed Decision into observable side effects. It
// returns a non-nil Input when the side effect completed synchronously
// (spec §4.1 step 7, e.g. an immediate RequestLLM answer); otherwise it
// returns nil and the session awaits further inputs from the external
// channel or from events the dispatcher feeds back asynchronously via
// Feedback.
type Dispatcher interface {
	Interpret(ctx context.Context, decision Decision, state State) (Input, error)
}

// ContextManager mirrors committed history into the pruning/archive
// subsystem. Commit may synchronously produce a ContextPruned event; the
// returned State may differ from the input if pruning occurred.
type ContextManager interface {
	Commit(ctx context.Context, state State) (State, *OutputEvent)
	// AutoRestore scans an incoming user message for archive keyword
	// matches and, if any match, returns an updated state with the
	// matched segment's messages restored plus a Remembering event.
	AutoRestore(ctx context.Context, state State, userText string) (State, *OutputEvent)
	// ListArchive returns a read-only summary of every archived segment,
	// for the "list_archive" manual command.
	ListArchive() []ArchiveSegmentSummary
	// Restore force-restores a specific segment by ID for the "restore"
	// manual command; idempotent per spec §8.
	Restore(ctx context.Context, state State, segmentID string) (State, *OutputEvent)
}

// Canceler lets Session abandon in-flight runtime work the moment an
// Interrupt arrives: every pending approval reply_slot resolves Cancelled
// instead of waiting out its context. approval.Registry implements this
// directly.
type Canceler interface {
	CancelAll()
}

// JobSweeper periodically transitions stalled running jobs to Stalled.
// jobs.Store implements this directly.
type JobSweeper interface {
	SweepStalled(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SessionConfig bundles the collaborators a Session needs, grounded on the
// teacher's AgenticLoop constructor parameters in loop.go.
type SessionConfig struct {
	Engine     Engine
	Dispatcher Dispatcher
	Context    ContextManager
	Bus        EventBus
	Logger     *slog.Logger
	State      State
	// Feedback receives asynchronous Inputs produced by the dispatcher
	// after Interpret has returned control to the session (e.g. a tool result
	// completing after the turn that launched it). The session merges
	// this with the external input channel.
	Feedback <-chan Input
	// Approvals, when set, is cancelled wholesale the moment an Interrupt
	// input is processed.
	Approvals Canceler
	// Jobs and SweepInterval, when both set, make Run invoke SweepStalled
	// on a ticker for the lifetime of the session. StallThreshold defaults
	// to 2 minutes when SweepInterval is set but StallThreshold is zero.
	Jobs           JobSweeper
	SweepInterval  time.Duration
	StallThreshold time.Duration
}

// Session drives (state, input) -> state' until a terminal decision or
// channel closure, per spec §4.1. It is the sole mutator of the
// authoritative AgentState.
type Session struct {
	cfg   SessionConfig
	state State
}

// NewSession constructs a Session ready to Run.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Bus == nil {
		cfg.Bus = NopBus{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SweepInterval > 0 && cfg.StallThreshold <= 0 {
		cfg.StallThreshold = 2 * time.Minute
	}
	return &Session{cfg: cfg, state: cfg.State}
}

// State returns the session's current committed state snapshot.
func (s *Session) State() State { return s.state }

// handleManualCommand intercepts list_archive/restore commands before they
// would otherwise reach cognition; these are not part of the cognitive
// engine's contract (spec §4.4).
func (s *Session) handleManualCommand(in Input) bool {
	switch v := in.(type) {
	case ListArchive:
		s.cfg.Bus.Publish(ArchiveListing{Segments: s.cfg.Context.ListArchive()})
		return true
	case RestoreSegment:
		restored, ev := s.cfg.Context.Restore(context.Background(), s.state, v.SegmentID)
		s.state = restored
		if ev != nil {
			s.cfg.Bus.Publish(*ev)
		}
		return true
	default:
		return false
	}
}

// Run drives the loop until a Done/Error decision, an Interrupt, or closure
// of the input channel. On closure it returns as soon as its own follow-up
// queue is empty; runtime work still in flight is not awaited. It returns
// the final error, if any (nil on clean Done or clean channel closure).
func (s *Session) Run(ctx context.Context, inputs <-chan Input) error {
	// runCtx is cancelled the moment an Interrupt is processed, so any
	// dispatcher work still in flight for the current turn (an
	// awaitApproval goroutine, a queued-but-not-started tool execution)
	// observes cancellation without tearing down the caller's ctx.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	if s.cfg.Jobs != nil && s.cfg.SweepInterval > 0 {
		go s.sweepLoop(runCtx)
	}

	// queue holds inputs to process next: the synchronous follow-up path
	// (step 7 of spec §4.1) appends here ahead of waiting on the external
	// channels again.
	var queue []Input

	nextInput := func() (Input, bool) {
		if len(queue) > 0 {
			in := queue[0]
			queue = queue[1:]
			return in, true
		}
		select {
		case in, ok := <-inputs:
			return in, ok
		case in, ok := <-s.cfg.Feedback:
			return in, ok
		case <-ctx.Done():
			return nil, false
		}
	}

	for {
		in, ok := nextInput()
		if !ok {
			return nil
		}

		// Manual archive commands (spec §4.4 "Manual commands") are handled
		// directly against the context manager; they never reach cognition.
		if handled := s.handleManualCommand(in); handled {
			continue
		}

		if _, isInterrupt := in.(Interrupt); isInterrupt {
			// Cancel the turn's runCtx first so queued-but-not-started tool
			// executions and awaitApproval goroutines observe it, then
			// explicitly resolve every pending approval so none are left
			// waiting out ctx propagation.
			cancelRun()
			if s.cfg.Approvals != nil {
				s.cfg.Approvals.CancelAll()
			}
		}

		if um, isUser := in.(UserMessage); isUser {
			restored, ev := s.cfg.Context.AutoRestore(runCtx, s.state, um.Text)
			s.state = restored
			if ev != nil {
				s.cfg.Bus.Publish(*ev)
			}
		}

		tr, err := s.cfg.Engine.Step(s.state, in)
		if err != nil {
			s.cfg.Logger.Error("cognitive step failed", "error", err, "session_id", s.state.SessionID)
			s.cfg.Bus.Publish(ErrorEvent{Kind: errors.Internal, Message: err.Error()})
			return err
		}

		s.state = tr.NextState

		if s.cfg.Context != nil {
			pruned, ev := s.cfg.Context.Commit(runCtx, s.state)
			s.state = pruned
			if ev != nil {
				s.cfg.Bus.Publish(*ev)
			}
		}

		switch d := tr.Decision.(type) {
		case Done:
			s.cfg.Bus.Publish(DoneEvent{Text: d.FinalText})
			return nil

		case ErrorDecision:
			s.cfg.Bus.Publish(ErrorEvent{Kind: d.Err.Kind, Message: d.Err.Message})
			return d.Err

		case NoDecision:
			continue

		case EmitResponse:
			s.cfg.Bus.Publish(AssistantMessage{Text: d.Text})
			continue

		default:
			follow, err := s.cfg.Dispatcher.Interpret(runCtx, tr.Decision, s.state)
			if err != nil {
				s.cfg.Logger.Warn("dispatch failed", "error", err, "session_id", s.state.SessionID)
				continue
			}
			if follow != nil {
				queue = append(queue, follow)
			}
		}
	}
}

// sweepLoop invokes JobSweeper.SweepStalled on a ticker for the lifetime of
// ctx, transitioning running jobs whose heartbeat has gone quiet past
// StallThreshold. It runs independently of the input loop, since a stalled
// async job or worker may need sweeping mid-turn or between turns alike.
func (s *Session) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.cfg.Jobs.SweepStalled(ctx, s.cfg.StallThreshold); err != nil {
				s.cfg.Logger.Warn("stalled job sweep failed", "error", err)
			} else if n > 0 {
				s.cfg.Logger.Info("swept stalled jobs", "count", n)
			}
		}
	}
}
