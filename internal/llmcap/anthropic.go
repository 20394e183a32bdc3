// Package llmcap provides thin runtime.LLMCapability adapters over the two
// provider SDKs the teacher already depends on (anthropic-sdk-go and
// sashabaranov/go-openai), so the same capability-graph wiring in
// cmd/agentcore can point at either backend.
package llmcap

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/shellmind/agentcore/internal/core"
)

// AnthropicCapability adapts anthropic-sdk-go's Messages API to
// runtime.LLMCapability.
type AnthropicCapability struct {
	client anthropic.Client
	model  string
}

// NewAnthropicCapability builds a capability against model (e.g.
// anthropic.ModelClaude3_7SonnetLatest), authenticating via the SDK's usual
// ANTHROPIC_API_KEY environment lookup unless opts override it.
func NewAnthropicCapability(model string, opts ...option.RequestOption) *AnthropicCapability {
	return &AnthropicCapability{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

// Complete implements runtime.LLMCapability.
func (a *AnthropicCapability) Complete(ctx context.Context, envelope core.PromptEnvelope) (core.LLMResponse, error) {
	system := envelope.SystemPrompt
	messages := make([]anthropic.MessageParam, 0, len(envelope.History))
	for _, m := range envelope.History {
		text := m.Content
		if envelope.Corrective != "" && m.Role == core.RoleUser {
			text = text + "\n\n" + envelope.Corrective
		}
		switch m.Role {
		case core.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
		case core.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(text)))
		default:
			// tool/system turns are folded into the system prompt below;
			// the Anthropic Messages API has no generic "tool" role.
			system += "\n\n[" + string(m.Role) + "] " + text
		}
	}

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 4096,
		System:    []anthropic.TextBlockParam{{Type: "text", Text: system}},
		Messages:  messages,
	})
	if err != nil {
		return core.LLMResponse{}, fmt.Errorf("llmcap: anthropic completion: %w", err)
	}

	out := core.LLMResponse{
		Usage: core.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
		},
	}
	for _, block := range resp.Content {
		if text := block.Text; text != "" {
			out.Content += text
		}
	}
	return out, nil
}
