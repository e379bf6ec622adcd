package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completion(content string) map[string]any {
	return map[string]any{
		"model": "test-model",
		"choices": []map[string]any{{
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
}

func TestClientChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])
		assert.InDelta(t, 0.7, body["temperature"], 1e-9)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completion("Hello! How can I help?"))
	}))
	defer server.Close()

	client, err := NewClient(WithBaseURL(server.URL), WithAPIKey("test-key"), WithModel("test-model"))
	require.NoError(t, err)
	defer client.Close()

	resp, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{NewUserMessage("Hello")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help?", resp.Message.Content)
	assert.Equal(t, RoleAssistant, resp.Message.Role)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestClientChatWithTools(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"role":    "assistant",
					"content": nil,
					"tool_calls": []map[string]any{{
						"id":       "call_1",
						"type":     "function",
						"function": map[string]any{"name": "weather", "arguments": `{"city":"Rome"}`},
					}},
				},
				"finish_reason": "tool_calls",
			}},
		})
	}))
	defer server.Close()

	client, err := NewClient(WithBaseURL(server.URL), WithModel("test-model"))
	require.NoError(t, err)
	defer client.Close()

	answered := NewAssistantMessage("")
	answered.ToolCalls = []ToolCall{{ID: "call_0", Name: "time", Arguments: `{}`}}
	resp, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{
			NewUserMessage("what time is it, and the weather in Rome?"),
			answered,
			NewToolMessage("call_0", "time", "It's 3:00 PM"),
		},
		Tools: []Tool{{Name: "weather", Description: "Current weather", Parameters: map[string]any{"type": "object"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "tool_calls", resp.FinishReason)
	assert.Equal(t, []ToolCall{{ID: "call_1", Name: "weather", Arguments: `{"city":"Rome"}`}}, resp.Message.ToolCalls)

	tools := body["tools"].([]any)
	require.Len(t, tools, 1)
	tool := tools[0].(map[string]any)
	assert.Equal(t, "function", tool["type"])
	assert.Equal(t, "weather", tool["function"].(map[string]any)["name"])

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 3)
	call := msgs[1].(map[string]any)["tool_calls"].([]any)[0].(map[string]any)
	assert.Equal(t, "call_0", call["id"])
	assert.Equal(t, "function", call["type"])
	result := msgs[2].(map[string]any)
	assert.Equal(t, "tool", result["role"])
	assert.Equal(t, "call_0", result["tool_call_id"])
}

func TestClientVisionSendsDataURL(t *testing.T) {
	frame := []byte{0xff, 0xd8, 0xff, 0xd9}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Content []map[string]any `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "vision-model", body.Model)
		require.Len(t, body.Messages, 1)
		require.Len(t, body.Messages[0].Content, 2)
		assert.Equal(t, "what is this?", body.Messages[0].Content[0]["text"])

		img := body.Messages[0].Content[1]["image_url"].(map[string]any)
		assert.Equal(t, DataURL(frame), img["url"])

		json.NewEncoder(w).Encode(completion("A mug on a desk."))
	}))
	defer server.Close()

	client, err := NewClient(WithBaseURL(server.URL), WithVisionModel("vision-model"))
	require.NoError(t, err)

	resp, err := client.Vision(context.Background(), &VisionRequest{JPEG: frame, Prompt: "what is this?"})
	require.NoError(t, err)
	assert.Equal(t, "A mug on a desk.", resp.Content)
}

func TestClientVisionWithoutImage(t *testing.T) {
	client, err := NewClient(WithBaseURL("http://127.0.0.1:0"))
	require.NoError(t, err)

	_, err = client.Vision(context.Background(), &VisionRequest{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(completion("finally"))
	}))
	defer server.Close()

	client, err := NewClient(WithBaseURL(server.URL), WithRetry(3, time.Millisecond))
	require.NoError(t, err)

	resp, err := client.Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage("x")}})
	require.NoError(t, err)
	assert.Equal(t, "finally", resp.Message.Content)
	assert.Equal(t, int32(3), hits.Load())
}

func TestClientParsesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Invalid API Key","code":"invalid_api_key"}}`))
	}))
	defer server.Close()

	client, err := NewClient(WithBaseURL(server.URL), WithRetry(0, 0))
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage("x")}})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsUnauthorized())
	assert.False(t, apiErr.IsRetryable())
	assert.Equal(t, "invalid_api_key", apiErr.Code)
	assert.True(t, strings.Contains(err.Error(), "Invalid API Key"))
}

func TestClientEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"m","choices":[]}`))
	}))
	defer server.Close()

	client, err := NewClient(WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage("x")}})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestClientHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	client, err := NewClient(WithBaseURL(server.URL + "/"))
	require.NoError(t, err)
	assert.NoError(t, client.Health(context.Background()))
}
