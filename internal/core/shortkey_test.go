package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseShortKeyActionsPlainProseIsNotAFailure(t *testing.T) {
	calls, ok := ParseShortKeyActions("just a normal final answer, no actions here")
	assert.True(t, ok)
	assert.Empty(t, calls)
}

func TestParseShortKeyActionsSingleBlock(t *testing.T) {
	calls, ok := ParseShortKeyActions(`ACTION: fs:read | ARGS: {"path": "a.txt"}`)
	assert.True(t, ok)
	assert.Len(t, calls, 1)
	assert.Equal(t, "fs:read", calls[0].Name)
	assert.Equal(t, "a.txt", calls[0].Args["path"])
}

func TestParseShortKeyActionsNoArgs(t *testing.T) {
	calls, ok := ParseShortKeyActions("ACTION: fs:list")
	assert.True(t, ok)
	require := assert.New(t)
	require.Len(calls, 1)
	require.Equal("fs:list", calls[0].Name)
	require.Empty(calls[0].Args)
}

func TestParseShortKeyActionsMultipleBlocksInterleavedWithProse(t *testing.T) {
	text := "First I'll check the file.\n" +
		`ACTION: fs:read | ARGS: {"path": "a.txt"}` + "\n" +
		"Then I'll list the directory.\n" +
		`ACTION: fs:list | ARGS: {"path": "."}`
	calls, ok := ParseShortKeyActions(text)
	assert.True(t, ok)
	assert.Len(t, calls, 2)
	assert.Equal(t, "fs:read", calls[0].Name)
	assert.Equal(t, "fs:list", calls[1].Name)
}

func TestParseShortKeyActionsMissingToolNameSkipped(t *testing.T) {
	calls, ok := ParseShortKeyActions("ACTION: | ARGS: {}")
	assert.False(t, ok, "marker present but zero well-formed blocks is a parse failure")
	assert.Empty(t, calls)
}

func TestParseShortKeyActionsMalformedJSONSkipped(t *testing.T) {
	calls, ok := ParseShortKeyActions(`ACTION: fs:read | ARGS: {not json}`)
	assert.False(t, ok)
	assert.Empty(t, calls)
}

func TestParseShortKeyActionsOneGoodOneBadStillWellFormed(t *testing.T) {
	text := `ACTION: fs:read | ARGS: {"path": "a.txt"}` + "\n" + `ACTION: | ARGS: {}`
	calls, ok := ParseShortKeyActions(text)
	assert.True(t, ok)
	assert.Len(t, calls, 1)
}

func TestArgsKeyDeterministicOrdering(t *testing.T) {
	a := map[string]any{"b": 1, "a": 2}
	b := map[string]any{"a": 2, "b": 1}
	assert.Equal(t, argsKey(a), argsKey(b))
}

func TestArgsKeyEmptyMap(t *testing.T) {
	assert.Equal(t, "", argsKey(nil))
	assert.Equal(t, "", argsKey(map[string]any{}))
}

func TestDedupeToolCallsRemovesDuplicateNameArgsPairs(t *testing.T) {
	calls := []ToolCall{
		{ID: "c1", Name: "fs:read", Args: map[string]any{"path": "a.txt"}},
		{ID: "c2", Name: "fs:read", Args: map[string]any{"path": "a.txt"}},
		{ID: "c3", Name: "fs:read", Args: map[string]any{"path": "b.txt"}},
	}
	out := dedupeToolCalls(calls)
	assert.Len(t, out, 2)
}

func TestDedupeToolCallsAssignsMissingIDs(t *testing.T) {
	calls := []ToolCall{{Name: "fs:read"}}
	out := dedupeToolCalls(calls)
	assert.NotEmpty(t, out[0].ID)
}
