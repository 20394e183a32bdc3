// Package scratchpad implements the process-wide, lock-guarded Scratchpad
// from spec §3: a structured entry store with TTL and tags, replacing the
// teacher's "legacy string" scratchpad per the design note in spec §9 (the
// structured form is adopted as the only form the core supports).
package scratchpad

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Entry is a single scratchpad record (spec §3).
type Entry struct {
	ID         uint64
	Timestamp  time.Time
	Content    string
	TTL        time.Duration // zero means no expiry
	Tags       []string
	Persistent bool
}

func (e Entry) expired(now time.Time) bool {
	if e.Persistent || e.TTL <= 0 {
		return false
	}
	return now.After(e.Timestamp.Add(e.TTL))
}

// Store is the lock-guarded scratchpad. Readers take the read lock, snapshot
// entries, and release; writers take the write lock, mutate, purge-expired,
// and release (spec §5). A recovered panic inside a locked section is
// treated as a recoverable error: it logs a warning and the call returns an
// empty snapshot / no-op rather than propagating, per spec §5's
// poisoned-lock tolerance requirement.
type Store struct {
	mu      sync.RWMutex
	entries map[uint64]Entry
	nextID  uint64
	logger  *slog.Logger
	cron    *cron.Cron

	softSizeWarn int
	hardSizeWarn int
}

// New constructs an empty Store. softWarn/hardWarn configure get_size
// soft/hard thresholds (warnings only, never enforced, per spec §5).
func New(softWarn, hardWarn int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		entries:      make(map[uint64]Entry),
		logger:       logger,
		softSizeWarn: softWarn,
		hardSizeWarn: hardWarn,
	}
}

// StartTimerPurge runs purge_expired on the given interval using
// github.com/robfig/cron/v3, the optional timer path spec §3 allows
// ("purge runs on every mutation and may run on timer"). spec is a standard
// cron expression, e.g. "@every 1m".
func (s *Store) StartTimerPurge(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		s.cron.Stop()
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, s.PurgeExpired); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	return nil
}

// StopTimerPurge stops the background purge timer, if running.
func (s *Store) StopTimerPurge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
}

func (s *Store) recover(op string) {
	if r := recover(); r != nil {
		s.logger.Warn("scratchpad operation recovered from panic, treating as no-op", "op", op, "panic", r)
	}
}

// Append adds a new entry and returns its assigned monotonic ID.
func (s *Store) Append(content string, ttl time.Duration, tags []string, persistent bool) (id uint64) {
	defer s.recover("append")
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id = s.nextID
	s.entries[id] = Entry{
		ID: id, Timestamp: time.Now(), Content: content,
		TTL: ttl, Tags: append([]string(nil), tags...), Persistent: persistent,
	}
	s.purgeExpiredLocked()
	s.warnIfOversizeLocked()
	return id
}

// Remove deletes an entry by ID. If force is false and the entry is
// Persistent, Remove is a no-op (callers must pass force=true to remove
// persistent entries deliberately).
func (s *Store) Remove(id uint64, force bool) (removed bool) {
	defer s.recover("remove")
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return false
	}
	if entry.Persistent && !force {
		return false
	}
	delete(s.entries, id)
	s.purgeExpiredLocked()
	return true
}

// ListByAge returns non-expired entries ordered oldest-first.
func (s *Store) ListByAge() []Entry {
	defer s.recover("list_by_age")
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if !e.expired(now) {
			out = append(out, e)
		}
	}
	sortByAge(out)
	return out
}

// ListByTag returns non-expired entries carrying tag.
func (s *Store) ListByTag(tag string) []Entry {
	defer s.recover("list_by_tag")
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var out []Entry
	for _, e := range s.entries {
		if e.expired(now) {
			continue
		}
		for _, t := range e.Tags {
			if strings.EqualFold(t, tag) {
				out = append(out, e)
				break
			}
		}
	}
	sortByAge(out)
	return out
}

// SummarizeOld concatenates the content of the `n` oldest non-expired
// entries into a short extractive summary, for callers that want to compact
// the scratchpad without deleting anything outright.
func (s *Store) SummarizeOld(n int) string {
	entries := s.ListByAge()
	if n > len(entries) {
		n = len(entries)
	}
	parts := make([]string, 0, n)
	for _, e := range entries[:n] {
		parts = append(parts, e.Content)
	}
	return strings.Join(parts, " ")
}

// GetSize returns the current non-expired entry count. The soft/hard size
// warnings (never an enforced limit) are logged by Append, not by GetSize.
func (s *Store) GetSize() int {
	defer s.recover("get_size")
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	n := 0
	for _, e := range s.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Clear removes every entry, including persistent ones.
func (s *Store) Clear() {
	defer s.recover("clear")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[uint64]Entry)
}

// PurgeExpired removes every expired, non-persistent entry. Safe to call on
// a timer or after any mutation (spec §3).
func (s *Store) PurgeExpired() {
	defer s.recover("purge_expired")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeExpiredLocked()
}

func (s *Store) purgeExpiredLocked() {
	now := time.Now()
	for id, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, id)
		}
	}
}

func (s *Store) warnIfOversizeLocked() {
	n := len(s.entries)
	if s.hardSizeWarn > 0 && n >= s.hardSizeWarn {
		s.logger.Warn("scratchpad size exceeds hard threshold", "size", n, "threshold", s.hardSizeWarn)
	} else if s.softSizeWarn > 0 && n >= s.softSizeWarn {
		s.logger.Warn("scratchpad size exceeds soft threshold", "size", n, "threshold", s.softSizeWarn)
	}
}

func sortByAge(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
}
