package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicChatCompletion(t *testing.T) {
	var captured capturedRequest
	server := fakeVendor(t, 200, `{
		"model": "claude-sonnet-4-5",
		"content": [{"type": "text", "text": "Hello from Claude"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 12, "output_tokens": 5}
	}`, &captured)
	defer server.Close()

	a := NewAnthropic(BaseOptions{})
	a.Configure(Options{"api_key": "sk-ant", "base_url": server.URL})

	resp, err := a.ChatCompletion(context.Background(), &Request{
		Messages: []Message{
			{Role: "system", Content: "Be brief."},
			{Role: "user", Content: "hello"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1/messages", captured.path)
	assert.Equal(t, "sk-ant", captured.headers.Get("x-api-key"))
	assert.Equal(t, anthropicAPIVersion, captured.headers.Get("anthropic-version"))

	// System turns become the top-level system field, not messages.
	assert.Equal(t, "Be brief.", captured.body["system"])
	messages := captured.body["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, float64(anthropicDefaultTokens), captured.body["max_tokens"])

	assert.Equal(t, "Hello from Claude", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 12, resp.Usage.PromptTokens)
	assert.Equal(t, 5, resp.Usage.CompletionTokens)
	assert.Equal(t, 17, resp.Usage.TotalTokens)
}

func TestAnthropicToolUse(t *testing.T) {
	var captured capturedRequest
	server := fakeVendor(t, 200, `{
		"model": "claude-sonnet-4-5",
		"content": [
			{"type": "text", "text": "Let me check."},
			{"type": "tool_use", "id": "toolu_1", "name": "get_weather", "input": {"city": "Paris"}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 20, "output_tokens": 8}
	}`, &captured)
	defer server.Close()

	a := NewAnthropic(BaseOptions{})
	a.Configure(Options{"api_key": "sk-ant", "base_url": server.URL})

	resp, err := a.ChatCompletionWithTools(context.Background(), &Request{
		Messages: []Message{{Role: "user", Content: "weather?"}},
		Tools: []Tool{{
			Name:       "get_weather",
			Parameters: map[string]any{"type": "object"},
		}},
	})
	require.NoError(t, err)

	tools := captured.body["tools"].([]any)
	require.Len(t, tools, 1)
	_, hasSchema := tools[0].(map[string]any)["input_schema"]
	assert.True(t, hasSchema)

	assert.Equal(t, "Let me check.", resp.Content)
	assert.Equal(t, "tool_calls", resp.FinishReason)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "toolu_1", resp.ToolCalls[0].ID)
	assert.Equal(t, map[string]any{"city": "Paris"}, resp.ToolCalls[0].Arguments)
}

func TestAnthropicToolResultRoundTrip(t *testing.T) {
	var captured capturedRequest
	server := fakeVendor(t, 200, `{"content": [{"type": "text", "text": "21C"}], "stop_reason": "end_turn"}`, &captured)
	defer server.Close()

	a := NewAnthropic(BaseOptions{})
	a.Configure(Options{"api_key": "sk-ant", "base_url": server.URL})

	_, err := a.ChatCompletion(context.Background(), &Request{
		Messages: []Message{
			{Role: "user", Content: "weather?"},
			{Role: "assistant", ToolCalls: []ToolCall{{ID: "toolu_1", FunctionName: "get_weather", Arguments: map[string]any{"city": "Paris"}}}},
			{Role: "tool", ToolCallID: "toolu_1", Content: "21C"},
		},
	})
	require.NoError(t, err)

	messages := captured.body["messages"].([]any)
	require.Len(t, messages, 3)

	assistant := messages[1].(map[string]any)
	blocks := assistant["content"].([]any)
	assert.Equal(t, "tool_use", blocks[0].(map[string]any)["type"])

	toolResult := messages[2].(map[string]any)
	assert.Equal(t, "user", toolResult["role"])
	resultBlock := toolResult["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "tool_result", resultBlock["type"])
	assert.Equal(t, "toolu_1", resultBlock["tool_use_id"])
}

func TestAnthropicStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			"event: message_start\n" +
				"data: {\"type\":\"message_start\"}\n\n" +
				"event: content_block_delta\n" +
				"data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hel\"}}\n\n" +
				"data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"lo\"}}\n\n" +
				"data: {\"type\":\"message_stop\"}\n\n"))
	}))
	defer server.Close()

	a := NewAnthropic(BaseOptions{})
	a.Configure(Options{"api_key": "sk-ant", "base_url": server.URL})

	stream, err := a.StreamChatCompletion(context.Background(), &Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	text, err := Collect(stream)
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
}

func TestAnthropicEmbeddingsUnsupported(t *testing.T) {
	a := NewAnthropic(BaseOptions{})
	a.Configure(Options{"api_key": "sk-ant"})

	_, err := a.Embeddings(context.Background(), &EmbeddingRequest{Inputs: []string{"x"}})
	assert.True(t, IsUnsupportedFeature(err))
}

func TestAnthropicVisionPayload(t *testing.T) {
	var captured capturedRequest
	server := fakeVendor(t, 200, `{"content": [{"type": "text", "text": "A cat."}], "stop_reason": "end_turn"}`, &captured)
	defer server.Close()

	a := NewAnthropic(BaseOptions{})
	a.Configure(Options{"api_key": "sk-ant", "base_url": server.URL})

	resp, err := a.AnalyzeImage(context.Background(), &VisionRequest{
		ImageData: "aGVsbG8=",
		ImageMIME: "image/png",
	})
	require.NoError(t, err)
	assert.Equal(t, "A cat.", resp.Description)

	messages := captured.body["messages"].([]any)
	content := messages[0].(map[string]any)["content"].([]any)
	imageBlock := content[0].(map[string]any)
	source := imageBlock["source"].(map[string]any)
	assert.Equal(t, "base64", source["type"])
	assert.Equal(t, "image/png", source["media_type"])
}
