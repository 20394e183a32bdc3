package core

import "github.com/shellmind/agentcore/internal/errors"

// OutputEvent is the tagged-union event published on the session's event
// bus (spec §4.1, §6).
type OutputEvent interface {
	outputKind() string
}

type Thinking struct{}

func (Thinking) outputKind() string { return "thinking" }

type AssistantMessage struct {
	Text  string
	Usage Usage
}

func (AssistantMessage) outputKind() string { return "assistant_message" }

type ToolStarted struct {
	CallID string
	Tool   string
	Args   map[string]any
}

func (ToolStarted) outputKind() string { return "tool_started" }

type ToolFinished struct {
	CallID  string
	OK      bool
	Content string
}

func (ToolFinished) outputKind() string { return "tool_finished" }

type ApprovalRequested struct {
	CallID string
	Tool   string
	Args   map[string]any
}

func (ApprovalRequested) outputKind() string { return "approval_requested" }

type ContextPruned struct {
	SegmentID     string
	MessageCount  int
	TokensSaved   int
	Summary       string
}

func (ContextPruned) outputKind() string { return "context_pruned" }

type Remembering struct {
	SegmentID string
}

func (Remembering) outputKind() string { return "remembering" }

type WorkerEventOut struct {
	JobID   string
	Status  WorkerStatus
	Payload string
}

func (WorkerEventOut) outputKind() string { return "worker_event" }

type DoneEvent struct {
	Text string
}

func (DoneEvent) outputKind() string { return "done" }

type ErrorEvent struct {
	Kind    errors.Kind
	Message string
}

func (ErrorEvent) outputKind() string { return "error" }

// ArchiveListing is published in response to the list_archive manual command.
type ArchiveListing struct {
	Segments []ArchiveSegmentSummary
}

func (ArchiveListing) outputKind() string { return "archive_listing" }

// ArchiveSegmentSummary is the read-only view of an archived PrunedSegment
// exposed to the UI/driver boundary.
type ArchiveSegmentSummary struct {
	ID      string
	Summary string
	Count   int
}

// EventBus publishes OutputEvents. Implementations must not block the
// session loop indefinitely.
type EventBus interface {
	Publish(OutputEvent)
}

// NopBus discards every event; useful in tests.
type NopBus struct{}

func (NopBus) Publish(OutputEvent) {}
