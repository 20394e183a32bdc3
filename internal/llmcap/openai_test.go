package llmcap

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/shellmind/agentcore/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOpenAICapability(baseURL, model string) *OpenAICapability {
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = baseURL
	return &OpenAICapability{client: openai.NewClientWithConfig(cfg), model: model}
}

func TestOpenAICapabilityCompleteParsesChoiceAndUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "hello there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 8, "completion_tokens": 3, "total_tokens": 11}
		}`)
	}))
	defer server.Close()

	cap := newTestOpenAICapability(server.URL, "gpt-4o")

	resp, err := cap.Complete(t.Context(), core.PromptEnvelope{
		SystemPrompt: "be terse",
		History:      []core.Message{{Role: core.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Content)
	assert.Equal(t, 8, resp.Usage.PromptTokens)
	assert.Equal(t, 3, resp.Usage.CompletionTokens)
}

func TestOpenAICapabilityCompleteErrorsOnEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o","choices":[],"usage":{"prompt_tokens":1,"completion_tokens":0,"total_tokens":1}}`)
	}))
	defer server.Close()

	cap := newTestOpenAICapability(server.URL, "gpt-4o")

	_, err := cap.Complete(t.Context(), core.PromptEnvelope{History: []core.Message{{Role: core.RoleUser, Content: "hi"}}})
	require.Error(t, err)
}

func TestOpenAICapabilityCompleteWrapsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": {"message": "boom", "type": "server_error"}}`)
	}))
	defer server.Close()

	cap := newTestOpenAICapability(server.URL, "gpt-4o")

	_, err := cap.Complete(t.Context(), core.PromptEnvelope{History: []core.Message{{Role: core.RoleUser, Content: "hi"}}})
	require.Error(t, err)
}

func TestOpenAICapabilityCompletePrependsSystemPrompt(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`)
	}))
	defer server.Close()

	cap := newTestOpenAICapability(server.URL, "gpt-4o")

	_, err := cap.Complete(t.Context(), core.PromptEnvelope{
		SystemPrompt: "be terse",
		History:      []core.Message{{Role: core.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	messages := gotBody["messages"].([]any)
	require.Len(t, messages, 2)
	first := messages[0].(map[string]any)
	assert.Equal(t, "system", first["role"])
	assert.Equal(t, "be terse", first["content"])
}
