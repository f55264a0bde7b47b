package llms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicGenerate(t *testing.T) {
	var captured anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"content": [
				{"type": "text", "text": "Checking the calendar."},
				{"type": "tool_use", "id": "tu_1", "name": "getCalendarEvents", "input": {"status": "confirmed"}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	t.Cleanup(server.Close)

	provider, err := NewAnthropicProvider(Config{
		Type: "anthropic", Model: "claude-test", APIKey: "test-key", Host: server.URL,
	})
	require.NoError(t, err)

	resp, err := provider.Generate(context.Background(), &Request{
		System:   "You schedule meetings.",
		Messages: []Message{{Role: RoleUser, Content: "what's on my calendar?"}},
		Tools: []ToolDefinition{{
			Name:        "getCalendarEvents",
			Description: "List events",
			Parameters:  map[string]interface{}{"type": "object"},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Checking the calendar.", resp.Text)
	assert.Equal(t, 15, resp.TokensUsed)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "getCalendarEvents", resp.ToolCalls[0].Name)
	assert.Equal(t, "confirmed", resp.ToolCalls[0].Arguments["status"])

	assert.Equal(t, "You schedule meetings.", captured.System)
	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "getCalendarEvents", captured.Tools[0].Name)
}

func TestAnthropicSystemMessagesMergedIntoField(t *testing.T) {
	provider, err := NewAnthropicProvider(Config{Model: "m", APIKey: "k"})
	require.NoError(t, err)

	req := provider.buildRequest(&Request{
		System: "base",
		Messages: []Message{
			{Role: RoleSystem, Content: "extra"},
			{Role: RoleUser, Content: "hi"},
		},
	})
	assert.Equal(t, "base\n\nextra", req.System)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, RoleUser, req.Messages[0].Role)
}

func TestAnthropicToolResultShape(t *testing.T) {
	provider, err := NewAnthropicProvider(Config{Model: "m", APIKey: "k"})
	require.NoError(t, err)

	req := provider.buildRequest(&Request{
		Messages: []Message{
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "tu_1", Name: "proposeMeeting"}}},
			{Role: RoleTool, ToolCallID: "tu_1", Content: "proposed"},
		},
	})
	require.Len(t, req.Messages, 2)

	contents, ok := req.Messages[1].Content.([]anthropicContent)
	require.True(t, ok)
	require.Len(t, contents, 1)
	assert.Equal(t, "tool_result", contents[0].Type)
	assert.Equal(t, "tu_1", contents[0].ToolUseID)
}

func TestOpenAIGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "requestBooking", "arguments": "{\"start\": \"2026-09-01T10:00:00Z\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"total_tokens": 42}
		}`))
	}))
	t.Cleanup(server.Close)

	provider, err := NewOpenAIProvider(Config{
		Type: "openai", Model: "gpt-test", APIKey: "test-key", Host: server.URL,
	})
	require.NoError(t, err)

	resp, err := provider.Generate(context.Background(), &Request{
		Messages: []Message{{Role: RoleUser, Content: "book a meeting"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 42, resp.TokensUsed)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "requestBooking", resp.ToolCalls[0].Name)
	assert.Equal(t, "2026-09-01T10:00:00Z", resp.ToolCalls[0].Arguments["start"])
}

func TestOpenAIAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error": {"message": "model overloaded", "type": "server_error"}}`))
	}))
	t.Cleanup(server.Close)

	provider, err := NewOpenAIProvider(Config{Model: "m", APIKey: "k", Host: server.URL})
	require.NoError(t, err)

	_, err = provider.Generate(context.Background(), &Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestGenerateHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)

	provider, err := NewAnthropicProvider(Config{Model: "m", APIKey: "k", Host: server.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = provider.Generate(ctx, &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(Config{Type: "anthropic", Model: "m", APIKey: "k"})
	require.NoError(t, err)

	_, err = NewProvider(Config{Type: "openai", Model: "m", APIKey: "k"})
	require.NoError(t, err)

	_, err = NewProvider(Config{Type: "oracle"})
	require.Error(t, err)

	_, err = NewProvider(Config{Type: "anthropic"})
	require.Error(t, err) // missing key
}
