package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCreateAssignsDefaults(t *testing.T) {
	s := NewMemoryStore()
	job := &Job{ID: "j1"}
	require.NoError(t, s.Create(context.Background(), job))

	got, err := s.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestMemoryStoreGetReturnsACloneNotAnAlias(t *testing.T) {
	s := NewMemoryStore()
	job := &Job{ID: "j1", Status: StatusRunning}
	require.NoError(t, s.Create(context.Background(), job))

	got, err := s.Get(context.Background(), "j1")
	require.NoError(t, err)
	got.Status = StatusFailed

	again, err := s.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, again.Status, "mutating a returned clone must not affect the store")
}

func TestMemoryStoreUpdateCannotRevertFromSucceeded(t *testing.T) {
	s := NewMemoryStore()
	job := &Job{ID: "j1", Status: StatusSucceeded}
	require.NoError(t, s.Create(context.Background(), job))

	require.NoError(t, s.Update(context.Background(), &Job{ID: "j1", Status: StatusRunning}))

	got, err := s.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, got.Status, "a terminal status must never revert")
}

func TestMemoryStoreUpdateCannotRevertFromFailed(t *testing.T) {
	s := NewMemoryStore()
	job := &Job{ID: "j1", Status: StatusFailed}
	require.NoError(t, s.Create(context.Background(), job))

	require.NoError(t, s.Update(context.Background(), &Job{ID: "j1", Status: StatusSucceeded}))

	got, err := s.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
}

func TestMemoryStoreUpdateAllowsNonTerminalTransitions(t *testing.T) {
	s := NewMemoryStore()
	job := &Job{ID: "j1", Status: StatusPending}
	require.NoError(t, s.Create(context.Background(), job))

	require.NoError(t, s.Update(context.Background(), &Job{ID: "j1", Status: StatusRunning}))

	got, err := s.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)
}

func TestMemoryStoreListPagination(t *testing.T) {
	s := NewMemoryStore()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Create(context.Background(), &Job{ID: string(rune('a' + i))}))
	}

	page, err := s.List(context.Background(), 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].ID)
	assert.Equal(t, "c", page[1].ID)
}

func TestMemoryStoreListOffsetBeyondLengthReturnsEmpty(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Create(context.Background(), &Job{ID: "a"}))

	page, err := s.List(context.Background(), 10, 5)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestMemoryStoreSweepStalledTransitionsOldRunningJobs(t *testing.T) {
	s := NewMemoryStore()
	job := &Job{ID: "j1", Status: StatusRunning, LastHeartbeat: time.Now().Add(-time.Hour)}
	require.NoError(t, s.Create(context.Background(), job))

	count, err := s.SweepStalled(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := s.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, StatusStalled, got.Status)
}

func TestMemoryStoreSweepStalledIgnoresFreshHeartbeats(t *testing.T) {
	s := NewMemoryStore()
	job := &Job{ID: "j1", Status: StatusRunning, LastHeartbeat: time.Now()}
	require.NoError(t, s.Create(context.Background(), job))

	count, err := s.SweepStalled(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestMemoryStoreSweepStalledIgnoresNonRunningJobs(t *testing.T) {
	s := NewMemoryStore()
	job := &Job{ID: "j1", Status: StatusSucceeded, LastHeartbeat: time.Now().Add(-time.Hour)}
	require.NoError(t, s.Create(context.Background(), job))

	count, err := s.SweepStalled(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestMemoryStoreHeartbeatUpdatesLastHeartbeat(t *testing.T) {
	s := NewMemoryStore()
	job := &Job{ID: "j1", Status: StatusRunning, LastHeartbeat: time.Now().Add(-time.Hour)}
	require.NoError(t, s.Create(context.Background(), job))

	s.Heartbeat("j1")

	count, err := s.SweepStalled(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "a fresh heartbeat must prevent the sweep from stalling the job")
}

func TestMemoryStoreCancelRunningJobInvokesCancelFunc(t *testing.T) {
	s := NewMemoryStore()
	job := &Job{ID: "j1", Status: StatusRunning}
	require.NoError(t, s.Create(context.Background(), job))

	called := false
	s.SetCancelFunc("j1", func() { called = true })

	require.NoError(t, s.Cancel(context.Background(), "j1"))
	assert.True(t, called)

	got, err := s.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
}

func TestMemoryStoreCancelUnknownJobIsNoop(t *testing.T) {
	s := NewMemoryStore()
	assert.NoError(t, s.Cancel(context.Background(), "ghost"))
}
