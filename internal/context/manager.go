package context

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shellmind/agentcore/internal/core"
	coreerrors "github.com/shellmind/agentcore/internal/errors"
)

// Settings are the context manager's configuration options, enumerated in
// spec §4.4.
type Settings struct {
	MaxTokens         int
	PruneThreshold    float64 // fraction of MaxTokens that triggers pruning, default 0.80
	TargetFraction    float64 // fraction pruning drains to, spec names 0.60 explicitly
	KeepFirst         int
	KeepLast          int
	PreservePatterns  []string
	AutoExtractMemories bool
	MaxArchiveSize    int
}

// DefaultSettings mirrors the teacher's config-struct-with-defaults idiom
// (ContextPruningSettings/DefaultContextPruningSettings in pruning.go),
// generalized to spec §4.4's exact option set.
func DefaultSettings() Settings {
	return Settings{
		MaxTokens:           8000,
		PruneThreshold:      0.80,
		TargetFraction:      0.60,
		KeepFirst:           2,
		KeepLast:            4,
		PreservePatterns:    []string{"remember", "important", "critical"},
		AutoExtractMemories: false,
		MaxArchiveSize:      10,
	}
}

// MemoryCapability is the fire-and-forget sink auto_extract_memories feeds,
// grounded on the teacher's compaction.go SetFlushCallback pattern.
type MemoryCapability interface {
	Store(ctx context.Context, entry string) error
}

// Manager implements core.ContextManager.
type Manager struct {
	settings  Settings
	archive   *Archive
	estimator core.TokenEstimator
	memory    MemoryCapability
	logger    *slog.Logger

	restored map[string]bool // segment IDs already auto-restored this session, idempotency guard
}

// NewManager constructs a Manager with the given settings.
func NewManager(settings Settings, memory MemoryCapability, logger *slog.Logger) *Manager {
	if settings.MaxArchiveSize <= 0 {
		settings.MaxArchiveSize = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		settings: settings,
		archive:  NewArchive(settings.MaxArchiveSize),
		estimator: core.CharEstimator{},
		memory:   memory,
		logger:   logger,
		restored: make(map[string]bool),
	}
}

// Commit mirrors state.History and runs the pruning algorithm when the
// configured threshold is crossed (spec §4.4 "Pruning algorithm").
func (m *Manager) Commit(ctx context.Context, state core.State) (core.State, *core.OutputEvent) {
	threshold := m.settings.PruneThreshold
	if threshold <= 0 {
		threshold = 0.80
	}
	budget := float64(m.settings.MaxTokens) * threshold
	if m.settings.MaxTokens <= 0 || float64(state.TotalTokens()) < budget {
		return state, nil
	}
	return m.prune(ctx, state)
}

// prune executes the eight numbered steps of spec §4.4's pruning algorithm.
func (m *Manager) prune(ctx context.Context, state core.State) (core.State, *core.OutputEvent) {
	history := state.History
	keepFirst := clampRange(m.settings.KeepFirst, len(history))
	keepLast := clampRange(m.settings.KeepLast, len(history)-keepFirst)

	head := history[:keepFirst]
	tail := history[len(history)-keepLast:]
	middle := history[keepFirst : len(history)-keepLast]

	// Step 2: partition middle into important vs evictable.
	var important, evictable []core.Message
	for _, msg := range middle {
		if m.isImportant(msg) {
			important = append(important, msg)
		} else {
			evictable = append(evictable, msg)
		}
	}

	if len(evictable) == 0 {
		// Nothing evictable; pruning cannot reduce history further this
		// round. Surfaced as a non-fatal ContextWindowExceeded event --
		// the session continues with a truncated effective context
		// (spec §7).
		var ev core.OutputEvent = core.ErrorEvent{
			Kind:    coreerrors.ContextWindowExceeded,
			Message: "history above prune_threshold but no evictable messages remain",
		}
		return state, &ev
	}

	// Step 3: choose a contiguous evictable prefix of middle whose token
	// sum brings the total below target * max_tokens. We walk `middle` in
	// order (not the separated `evictable` slice), skipping important
	// messages, so the evicted messages keep their original order and the
	// important ones stay inline.
	target := float64(m.settings.MaxTokens) * nonZero(m.settings.TargetFraction, 0.60)
	runningTotal := sumTokens(head) + sumTokens(tail) + sumTokens(important) + sumTokens(evictable)

	var toEvict []core.Message
	var toEvictIdx int
	for i, msg := range middle {
		if m.isImportant(msg) {
			continue
		}
		toEvict = append(toEvict, msg)
		runningTotal -= msg.Tokens
		toEvictIdx = i
		if float64(runningTotal) < target {
			break
		}
	}

	if len(toEvict) == 0 {
		return state, nil
	}

	// Step 4: build the PrunedSegment with an extractive summary.
	segment := Segment{
		ID:            uuid.NewString(),
		CreatedAt:     time.Now(),
		Messages:      toEvict,
		TokenEstimate: sumTokens(toEvict),
		Summary:       extractiveSummary(toEvict),
	}

	// Step 5: push to archive (oldest-first eviction handled inside Archive.Push).
	m.archive.Push(segment)

	// Step 6: replace evicted messages in history with a single synthetic
	// "context_pruned" assistant note.
	note := core.Message{
		Role:    core.RoleAssistant,
		Content: "context_pruned: segment=" + segment.ID + " summary=" + segment.Summary,
		Tokens:  m.estimator.Estimate(segment.Summary),
	}

	// The evicted messages are exactly the non-important ones at or before
	// toEvictIdx in middle.
	newMiddle := make([]core.Message, 0, len(middle))
	inserted := false
	for i, msg := range middle {
		if i <= toEvictIdx && !m.isImportant(msg) {
			if !inserted {
				newMiddle = append(newMiddle, note)
				inserted = true
			}
			continue
		}
		newMiddle = append(newMiddle, msg)
	}

	newHistory := make([]core.Message, 0, len(head)+len(newMiddle)+len(tail))
	newHistory = append(newHistory, head...)
	newHistory = append(newHistory, newMiddle...)
	newHistory = append(newHistory, tail...)

	next := state
	next.History = newHistory

	// Step 7: fire-and-forget important messages to the memory capability.
	if m.settings.AutoExtractMemories && m.memory != nil {
		for _, msg := range important {
			go func(content string) {
				if err := m.memory.Store(context.Background(), content); err != nil {
					m.logger.Warn("auto_extract_memories: store failed", "error", err)
				}
			}(msg.Content)
		}
	}

	// Step 8: publish ContextPruned.
	var ev core.OutputEvent = core.ContextPruned{
		SegmentID:    segment.ID,
		MessageCount: len(toEvict),
		TokensSaved:  segment.TokenEstimate,
		Summary:      segment.Summary,
	}
	return next, &ev
}

func (m *Manager) isImportant(msg core.Message) bool {
	lower := strings.ToLower(msg.Content)
	for _, pat := range m.settings.PreservePatterns {
		if pat != "" && strings.Contains(lower, strings.ToLower(pat)) {
			return true
		}
	}
	return false
}

// AutoRestore scans userText for archive keyword matches before it reaches
// cognition (spec §4.4 "Auto-restore"). Restoration is idempotent by
// segment ID and never pops the archive (spec §9 Open Question (b)).
func (m *Manager) AutoRestore(ctx context.Context, state core.State, userText string) (core.State, *core.OutputEvent) {
	segment, ok := m.archive.MatchByKeyword(userText)
	if !ok {
		return state, nil
	}
	if m.restored[segment.ID] {
		return state, nil
	}
	return m.insertRestoredSegment(state, segment)
}

// Restore force-restores a specific segment by ID for the "restore" manual
// command (spec §4.4). Idempotent: restoring twice leaves history identical
// to restoring once (spec §8).
func (m *Manager) Restore(ctx context.Context, state core.State, segmentID string) (core.State, *core.OutputEvent) {
	segment, ok := m.archive.Find(segmentID)
	if !ok {
		return state, nil
	}
	if m.restored[segment.ID] {
		return state, nil
	}
	return m.insertRestoredSegment(state, segment)
}

func (m *Manager) insertRestoredSegment(state core.State, segment Segment) (core.State, *core.OutputEvent) {
	m.restored[segment.ID] = true

	keepFirst := clampRange(m.settings.KeepFirst, len(state.History))
	newHistory := make([]core.Message, 0, len(state.History)+len(segment.Messages))
	newHistory = append(newHistory, state.History[:keepFirst]...)
	newHistory = append(newHistory, segment.Messages...)
	newHistory = append(newHistory, state.History[keepFirst:]...)

	next := state
	next.History = newHistory

	var ev core.OutputEvent = core.Remembering{SegmentID: segment.ID}
	return next, &ev
}

// ListArchive returns a read-only summary of every archived segment.
func (m *Manager) ListArchive() []core.ArchiveSegmentSummary {
	return m.archive.List()
}

func clampRange(n, max int) int {
	if n < 0 {
		n = 0
	}
	if n > max {
		n = max
	}
	return n
}

func sumTokens(msgs []core.Message) int {
	total := 0
	for _, m := range msgs {
		total += m.Tokens
	}
	return total
}

func nonZero(v, fallback float64) float64 {
	if v <= 0 {
		return fallback
	}
	return v
}

// extractiveSummary builds a short summary from the first sentence of each
// user/assistant message, concatenated and truncated (spec §4.4 step 4).
func extractiveSummary(msgs []core.Message) string {
	var sentences []string
	for _, msg := range msgs {
		if msg.Role != core.RoleUser && msg.Role != core.RoleAssistant {
			continue
		}
		first := firstSentence(msg.Content)
		if first != "" {
			sentences = append(sentences, first)
		}
	}
	summary := strings.Join(sentences, " ")
	const maxLen = 200
	if len(summary) > maxLen {
		summary = summary[:maxLen]
	}
	return summary
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	for _, sep := range []string{". ", "! ", "? ", "\n"} {
		if idx := strings.Index(text, sep); idx > 0 {
			return text[:idx]
		}
	}
	if len(text) > 80 {
		return text[:80]
	}
	return text
}
