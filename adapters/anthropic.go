package adapters

import (
	"context"
	"net/http"
)

func init() {
	RegisterBuiltin("anthropic", func(opts BaseOptions) ProviderAdapter {
		return NewAnthropic(opts)
	}, "https://api.anthropic.com")
}

const (
	defaultAnthropicModel  = "claude-sonnet-4-5"
	anthropicAPIVersion    = "2023-06-01"
	anthropicDefaultTokens = 4096 // the messages endpoint requires max_tokens
)

// AnthropicAdapter speaks the Anthropic messages endpoint: system prompt as a
// separate top-level field, x-api-key auth, content blocks in and out.
type AnthropicAdapter struct {
	*BaseAdapter
}

func NewAnthropic(opts BaseOptions) *AnthropicAdapter {
	caps := []string{FeatureChat, FeatureCompletion, FeatureStreaming, FeatureTools, FeatureVision}
	return &AnthropicAdapter{
		BaseAdapter: NewBaseAdapter("anthropic", "https://api.anthropic.com", defaultAnthropicModel, caps, true, opts),
	}
}

func (a *AnthropicAdapter) headers() map[string]string {
	return map[string]string{
		"x-api-key":         a.resolvedKey(),
		"anthropic-version": anthropicAPIVersion,
	}
}

func (a *AnthropicAdapter) model(requested string) string {
	if requested != "" {
		return requested
	}
	return a.DefaultModel()
}

func (a *AnthropicAdapter) chatPayload(req *Request, stream bool) map[string]any {
	system, messages := anthropicMessages(req.Messages)

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultTokens
	}

	payload := map[string]any{
		"model":      a.model(req.Model),
		"messages":   messages,
		"max_tokens": maxTokens,
	}
	if system != "" {
		payload["system"] = system
	}
	if req.Temperature != nil {
		payload["temperature"] = *req.Temperature
	}
	if len(req.Tools) > 0 {
		tools := make([]any, 0, len(req.Tools))
		for _, tool := range req.Tools {
			tools = append(tools, map[string]any{
				"name":         tool.Name,
				"description":  tool.Description,
				"input_schema": tool.Parameters,
			})
		}
		payload["tools"] = tools
	}
	if stream {
		payload["stream"] = true
	}
	return payload
}

func (a *AnthropicAdapter) ChatCompletion(ctx context.Context, req *Request) (*CompletionResponse, error) {
	payload := a.chatPayload(req, false)
	result, err := a.request(ctx, http.MethodPost, "/v1/messages", payload, a.headers())
	if err != nil {
		return nil, err
	}
	return a.mapChatResponse(result), nil
}

func (a *AnthropicAdapter) ChatCompletionWithTools(ctx context.Context, req *Request) (*CompletionResponse, error) {
	if !a.SupportsFeature(FeatureTools) {
		return nil, NewUnsupportedFeatureError(a.Name(), FeatureTools)
	}
	return a.ChatCompletion(ctx, req)
}

// mapChatResponse flattens content blocks: text blocks concatenate, tool_use
// blocks become tool calls.
func (a *AnthropicAdapter) mapChatResponse(payload map[string]any) *CompletionResponse {
	var content string
	var toolCalls []ToolCall

	for _, entry := range GetList(payload, "content") {
		block := AsArray(entry, map[string]any{})
		switch GetString(block, "type", "") {
		case "text":
			content += GetString(block, "text", "")
		case "tool_use":
			toolCalls = append(toolCalls, ToolCall{
				ID:           GetString(block, "id", ""),
				FunctionName: GetString(block, "name", ""),
				Arguments:    GetArray(block, "input", map[string]any{}),
			})
		}
	}

	usage := GetArray(payload, "usage", map[string]any{})
	resp := a.buildCompletionResponse(
		content,
		GetString(payload, "model", a.DefaultModel()),
		a.buildUsage(GetInt(usage, "input_tokens", 0), GetInt(usage, "output_tokens", 0)),
		normalizeFinishReason(GetString(payload, "stop_reason", "")),
	)
	resp.ToolCalls = toolCalls
	return resp
}

// StreamChatCompletion decodes the messages SSE stream, yielding the text of
// content_block_delta events.
func (a *AnthropicAdapter) StreamChatCompletion(ctx context.Context, req *Request) (DeltaStream, error) {
	if !a.SupportsFeature(FeatureStreaming) {
		return nil, NewUnsupportedFeatureError(a.Name(), FeatureStreaming)
	}
	payload := a.chatPayload(req, true)
	resp, err := a.streamRequest(ctx, http.MethodPost, "/v1/messages", payload, a.headers())
	if err != nil {
		return nil, err
	}
	return NewSSEStream(resp.Body, func(chunk map[string]any) string {
		if GetString(chunk, "type", "") != "content_block_delta" {
			return ""
		}
		return GetNestedString(chunk, "delta.text", "")
	}), nil
}

// Embeddings is not part of the Anthropic surface.
func (a *AnthropicAdapter) Embeddings(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	return nil, NewUnsupportedFeatureError(a.Name(), FeatureEmbeddings)
}

// AnalyzeImage sends the image as a base64 source block. Remote URLs use the
// url source type instead.
func (a *AnthropicAdapter) AnalyzeImage(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	if !a.SupportsFeature(FeatureVision) {
		return nil, NewUnsupportedFeatureError(a.Name(), FeatureVision)
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = "Describe this image."
	}

	var source map[string]any
	if req.ImageData != "" {
		mime := req.ImageMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		source = map[string]any{"type": "base64", "media_type": mime, "data": req.ImageData}
	} else {
		source = map[string]any{"type": "url", "url": req.ImageURL}
	}

	payload := map[string]any{
		"model":      a.model(req.Model),
		"max_tokens": anthropicDefaultTokens,
		"messages": []any{
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "image", "source": source},
					map[string]any{"type": "text", "text": prompt},
				},
			},
		},
	}

	result, err := a.request(ctx, http.MethodPost, "/v1/messages", payload, a.headers())
	if err != nil {
		return nil, err
	}

	chat := a.mapChatResponse(result)
	return a.buildVisionResponse(chat.Content, chat.Model, chat.Usage), nil
}

// anthropicMessages splits out system turns (the endpoint takes them as one
// top-level field) and maps the rest, folding tool results into tool_result
// blocks.
func anthropicMessages(messages []Message) (string, []any) {
	var system string
	out := make([]any, 0, len(messages))

	for _, msg := range messages {
		if msg.Role == "system" {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}

		if msg.Role == "tool" {
			out = append(out, map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{
						"type":        "tool_result",
						"tool_use_id": msg.ToolCallID,
						"content":     msg.Content,
					},
				},
			})
			continue
		}

		if len(msg.ToolCalls) > 0 {
			blocks := make([]any, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				blocks = append(blocks, map[string]any{"type": "text", "text": msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, map[string]any{
					"type":  "tool_use",
					"id":    tc.ID,
					"name":  tc.FunctionName,
					"input": tc.Arguments,
				})
			}
			out = append(out, map[string]any{"role": msg.Role, "content": blocks})
			continue
		}

		out = append(out, map[string]any{"role": msg.Role, "content": msg.Content})
	}

	return system, out
}
