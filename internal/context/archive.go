// Package context implements the context manager from spec §4.4: bounded
// history, importance-aware pruning, an archive of pruned segments with
// auto-restore, and token accounting.
//
// Grounded on the teacher's internal/agent/context/pruning.go config-struct-
// with-defaults idiom and char-budget estimators, but the archive/restore
// machinery is newly designed: the teacher's pruning.go only soft-trims or
// hard-clears oversized tool results, it never retains evicted messages for
// later restoration.
package context

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shellmind/agentcore/internal/core"
)

// Segment is spec §3's PrunedSegment.
type Segment struct {
	ID            string
	CreatedAt     time.Time
	Messages      []core.Message
	TokenEstimate int
	Summary       string
}

// Archive is the ordered FIFO bounded by max_archive_size; eviction is
// oldest-first (spec §3, §8).
type Archive struct {
	maxSize  int
	segments []Segment
}

// NewArchive builds an Archive bounded to maxSize segments (default 10 per
// spec §4.4).
func NewArchive(maxSize int) *Archive {
	if maxSize <= 0 {
		maxSize = 10
	}
	return &Archive{maxSize: maxSize}
}

// Push appends segment, evicting the oldest if the archive exceeds its
// bound.
func (a *Archive) Push(segment Segment) {
	if segment.ID == "" {
		segment.ID = uuid.NewString()
	}
	a.segments = append(a.segments, segment)
	if len(a.segments) > a.maxSize {
		a.segments = a.segments[len(a.segments)-a.maxSize:]
	}
}

// Find returns the segment with the given ID, if present.
func (a *Archive) Find(id string) (Segment, bool) {
	for _, s := range a.segments {
		if s.ID == id {
			return s, true
		}
	}
	return Segment{}, false
}

// MatchByKeyword returns the first segment whose summary has a word of at
// least four characters (case-insensitive, trailing punctuation trimmed)
// that appears as a substring of text, for auto-restore (spec §4.4).
func (a *Archive) MatchByKeyword(text string) (Segment, bool) {
	lower := strings.ToLower(text)
	for _, s := range a.segments {
		if summaryMatches(s.Summary, lower) {
			return s, true
		}
	}
	return Segment{}, false
}

func summaryMatches(summary, lowerQuery string) bool {
	if summary == "" {
		return false
	}
	words := strings.Fields(strings.ToLower(summary))
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:")
		if len(w) >= 4 && strings.Contains(lowerQuery, w) {
			return true
		}
	}
	return false
}

// List returns a read-only summary view of the archive, for the
// list_archive manual command.
func (a *Archive) List() []core.ArchiveSegmentSummary {
	out := make([]core.ArchiveSegmentSummary, 0, len(a.segments))
	for _, s := range a.segments {
		out = append(out, core.ArchiveSegmentSummary{ID: s.ID, Summary: s.Summary, Count: len(s.Messages)})
	}
	return out
}

// Len reports the current archive size.
func (a *Archive) Len() int { return len(a.segments) }
