package context

import (
	"testing"

	"github.com/shellmind/agentcore/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchivePushEvictsOldestBeyondMaxSize(t *testing.T) {
	a := NewArchive(2)
	a.Push(Segment{ID: "s1"})
	a.Push(Segment{ID: "s2"})
	a.Push(Segment{ID: "s3"})

	assert.Equal(t, 2, a.Len())
	_, ok := a.Find("s1")
	assert.False(t, ok, "oldest segment must be evicted first")
	_, ok = a.Find("s3")
	assert.True(t, ok)
}

func TestArchivePushAssignsIDWhenMissing(t *testing.T) {
	a := NewArchive(10)
	a.Push(Segment{})
	require.Len(t, a.List(), 1)
	assert.NotEmpty(t, a.List()[0].ID)
}

func TestArchiveFindMissingReturnsFalse(t *testing.T) {
	a := NewArchive(10)
	_, ok := a.Find("ghost")
	assert.False(t, ok)
}

func TestArchiveMatchByKeywordMatchesSummaryWord(t *testing.T) {
	a := NewArchive(10)
	a.Push(Segment{ID: "s1", Summary: "discussed the deployment pipeline"})

	seg, ok := a.MatchByKeyword("tell me about the deployment again")
	require.True(t, ok)
	assert.Equal(t, "s1", seg.ID)
}

func TestArchiveMatchByKeywordIgnoresShortWords(t *testing.T) {
	a := NewArchive(10)
	a.Push(Segment{ID: "s1", Summary: "the cat sat"})

	_, ok := a.MatchByKeyword("the")
	assert.False(t, ok, "words shorter than 4 chars must not drive a match")
}

func TestArchiveMatchByKeywordNoMatch(t *testing.T) {
	a := NewArchive(10)
	a.Push(Segment{ID: "s1", Summary: "discussed the deployment pipeline"})

	_, ok := a.MatchByKeyword("totally unrelated question")
	assert.False(t, ok)
}

func TestArchiveListReturnsReadOnlySummaries(t *testing.T) {
	a := NewArchive(10)
	a.Push(Segment{ID: "s1", Summary: "sum", Messages: []core.Message{{Role: core.RoleUser, Content: "hi"}}})
	list := a.List()
	require.Len(t, list, 1)
	assert.Equal(t, "s1", list[0].ID)
	assert.Equal(t, "sum", list[0].Summary)
}
