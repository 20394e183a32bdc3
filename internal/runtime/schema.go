package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shellmind/agentcore/internal/core"
)

// SchemaValidatingTool wraps a ToolCapability and rejects any call whose
// Args don't satisfy the tool's registered JSON schema before Inner ever
// runs, mirroring the teacher's schema-carrying gateway and plugin
// validation paths.
type SchemaValidatingTool struct {
	Inner   ToolCapability
	mu      sync.RWMutex
	schemas map[string]*jsonschema.Schema
}

// NewSchemaValidatingTool compiles each tool's schema once at construction
// so Execute never pays compilation cost on the hot path.
func NewSchemaValidatingTool(inner ToolCapability, rawSchemas map[string]string) (*SchemaValidatingTool, error) {
	compiled := make(map[string]*jsonschema.Schema, len(rawSchemas))
	for name, raw := range rawSchemas {
		schema, err := jsonschema.CompileString(name+".schema.json", raw)
		if err != nil {
			return nil, fmt.Errorf("compile schema for tool %q: %w", name, err)
		}
		compiled[name] = schema
	}
	return &SchemaValidatingTool{Inner: inner, schemas: compiled}, nil
}

// RegisterSchema compiles and installs (or replaces) the schema for a tool
// name at runtime, for tools discovered after construction.
func (s *SchemaValidatingTool) RegisterSchema(name, raw string) error {
	schema, err := jsonschema.CompileString(name+".schema.json", raw)
	if err != nil {
		return fmt.Errorf("compile schema for tool %q: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemas[name] = schema
	return nil
}

func (s *SchemaValidatingTool) schemaFor(name string) (*jsonschema.Schema, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	schema, ok := s.schemas[name]
	return schema, ok
}

func (s *SchemaValidatingTool) Execute(ctx context.Context, call core.ToolCall) (core.ToolResult, error) {
	schema, ok := s.schemaFor(call.Name)
	if !ok {
		return s.Inner.Execute(ctx, call)
	}

	payload, err := json.Marshal(call.Args)
	if err != nil {
		return core.ToolResult{CallID: call.ID, OK: false, Content: fmt.Sprintf("encode args: %v", err)}, nil
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return core.ToolResult{CallID: call.ID, OK: false, Content: fmt.Sprintf("decode args: %v", err)}, nil
	}
	if err := schema.Validate(decoded); err != nil {
		return core.ToolResult{CallID: call.ID, OK: false, Content: fmt.Sprintf("args invalid for %s: %v", call.Name, err)}, nil
	}

	return s.Inner.Execute(ctx, call)
}
