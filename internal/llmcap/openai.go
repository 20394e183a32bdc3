package llmcap

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/shellmind/agentcore/internal/core"
)

// OpenAICapability adapts sashabaranov/go-openai's chat completion API to
// runtime.LLMCapability.
type OpenAICapability struct {
	client *openai.Client
	model  string
}

// NewOpenAICapability builds a capability against model using apiKey.
func NewOpenAICapability(apiKey, model string) *OpenAICapability {
	return &OpenAICapability{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Complete implements runtime.LLMCapability.
func (o *OpenAICapability) Complete(ctx context.Context, envelope core.PromptEnvelope) (core.LLMResponse, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(envelope.History)+1)
	if envelope.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: envelope.SystemPrompt,
		})
	}
	for _, m := range envelope.History {
		role := openai.ChatMessageRoleUser
		if m.Role == core.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		text := m.Content
		if envelope.Corrective != "" && m.Role == core.RoleUser {
			text = text + "\n\n" + envelope.Corrective
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: text})
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
	})
	if err != nil {
		return core.LLMResponse{}, fmt.Errorf("llmcap: openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return core.LLMResponse{}, fmt.Errorf("llmcap: openai completion: empty choices")
	}

	return core.LLMResponse{
		Content: resp.Choices[0].Message.Content,
		Usage: core.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}
