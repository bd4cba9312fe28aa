package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ashureev/memchat/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIChat(t *testing.T) {
	t.Parallel()

	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "Hello Alice!"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
		}`)
	}))
	defer srv.Close()

	client, err := NewOpenAI("sk-test", srv.URL+"/", 256)
	require.NoError(t, err)

	resp, err := client.Chat(context.Background(), &Request{
		Model:  "gpt-4o",
		System: "be nice",
		Messages: []Message{
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, Content: "hello"},
			{Role: RoleUser, Content: "I'm Alice"},
		},
		JSON: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello Alice!", resp.Content)
	assert.Equal(t, 12, resp.InputTokens)
	assert.Equal(t, 3, resp.OutputTokens)

	assert.Equal(t, "gpt-4o", captured["model"])
	messages, ok := captured["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 4)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "assistant", messages[2].(map[string]any)["role"])
	format, ok := captured["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
}

func TestOpenAIChatErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error": {"message": "overloaded", "type": "server_error"}}`)
	}))
	defer srv.Close()

	client, err := NewOpenAI("sk-test", srv.URL+"/", 0)
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), &Request{Model: "gpt-4o", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestAnthropicChat(t *testing.T) {
	t.Parallel()

	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/messages"), r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5",
			"content": [{"type": "text", "text": "{\"memories\": []}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 20, "output_tokens": 5}
		}`)
	}))
	defer srv.Close()

	client, err := NewAnthropic("ak-test", srv.URL, 128)
	require.NoError(t, err)

	resp, err := client.Chat(context.Background(), &Request{
		Model:    "claude-sonnet-4-5",
		System:   "extract facts",
		Messages: []Message{{Role: RoleUser, Content: "I live in Vienna"}},
		JSON:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"memories": []}`, resp.Content)
	assert.Equal(t, 20, resp.InputTokens)

	system, ok := captured["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
	assert.Contains(t, system[0].(map[string]any)["text"], jsonInstruction)
	assert.EqualValues(t, 128, captured["max_tokens"])
}

func TestNewSelectsProvider(t *testing.T) {
	t.Parallel()

	c, err := New(config.LLMConfig{Provider: config.ProviderOpenAI, OpenAIAPIKey: "sk"})
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Provider())

	c, err = New(config.LLMConfig{Provider: config.ProviderAnthropic, AnthropicAPIKey: "ak"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", c.Provider())

	_, err = New(config.LLMConfig{Provider: "parrot"})
	assert.Error(t, err)

	_, err = New(config.LLMConfig{Provider: config.ProviderOpenAI})
	assert.Error(t, err)
}
