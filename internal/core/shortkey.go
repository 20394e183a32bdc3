package core

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ParseShortKeyActions recognizes the compact inline action-block syntax
// spec §4.2 names: one or more lines of the form
//
//	ACTION: tool | ARGS: {"key": "value"}
//
// Multiple blocks may appear per response, interleaved with prose. Malformed
// blocks (unparseable JSON, or a block with no tool name) are skipped with a
// warning rather than aborting the whole parse, mirroring the teacher's
// tolerant-parsing idiom in transcript_repair.go. The second return value is
// true when at least one well-formed block was found OR the text contains no
// ACTION markers at all (a plain prose answer is not a parse failure); it is
// false only when an ACTION marker was present but zero blocks parsed
// cleanly, which is the spec's "zero well-formed blocks and no prose answer"
// failure condition.
func ParseShortKeyActions(text string) ([]ToolCall, bool) {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var calls []ToolCall
	sawMarker := false
	wellFormed := 0

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "ACTION:") {
			continue
		}
		sawMarker = true

		rest := strings.TrimPrefix(line, "ACTION:")
		parts := strings.SplitN(rest, "| ARGS:", 2)
		tool := strings.TrimSpace(parts[0])
		if tool == "" {
			slog.Warn("short-key action block missing tool name, skipping", "line", line)
			continue
		}

		args := map[string]any{}
		if len(parts) == 2 {
			raw := strings.TrimSpace(parts[1])
			if raw != "" {
				if err := json.Unmarshal([]byte(raw), &args); err != nil {
					slog.Warn("short-key action block has malformed ARGS json, skipping", "tool", tool, "error", err)
					continue
				}
			}
		}

		wellFormed++
		calls = append(calls, ToolCall{ID: uuid.NewString(), Name: tool, Args: args})
	}

	if !sawMarker {
		// No ACTION markers at all: this is prose, not a parse failure.
		return nil, true
	}
	return calls, wellFormed > 0
}

// argsKey produces a deterministic string key for an args map so that
// duplicate (tool, args) tool calls can be detected per spec §4.2.
func argsKey(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v;", k, args[k])
	}
	return b.String()
}
