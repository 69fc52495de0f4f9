package adapters

import (
	"context"
	"encoding/json"
	"net/http"
)

func init() {
	RegisterBuiltin("openai", func(opts BaseOptions) ProviderAdapter {
		return NewOpenAI(opts)
	}, "https://api.openai.com/v1")
}

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIAdapter speaks the OpenAI-compatible chat/completions, embeddings and
// SSE streaming surface. It also serves as the generic adapter for any vendor
// exposing that surface, so the registry falls back to it for unknown types.
type OpenAIAdapter struct {
	*BaseAdapter
}

// NewOpenAI builds an adapter against api.openai.com.
func NewOpenAI(opts BaseOptions) *OpenAIAdapter {
	return NewOpenAICompatible("openai", "https://api.openai.com/v1", defaultOpenAIModel, opts)
}

// NewOpenAICompatible builds an adapter for any OpenAI-compatible vendor.
func NewOpenAICompatible(name, baseURL, defaultModel string, opts BaseOptions) *OpenAIAdapter {
	caps := []string{FeatureChat, FeatureCompletion, FeatureStreaming, FeatureTools, FeatureVision, FeatureEmbeddings}
	return &OpenAIAdapter{
		BaseAdapter: NewBaseAdapter(name, baseURL, defaultModel, caps, true, opts),
	}
}

func (a *OpenAIAdapter) headers() map[string]string {
	h := map[string]string{"Authorization": "Bearer " + a.resolvedKey()}
	if a.cfg.organizationID != "" {
		h["OpenAI-Organization"] = a.cfg.organizationID
	}
	return h
}

func (a *OpenAIAdapter) model(requested string) string {
	if requested != "" {
		return requested
	}
	return a.DefaultModel()
}

func (a *OpenAIAdapter) chatPayload(req *Request, stream bool) map[string]any {
	payload := map[string]any{
		"model":    a.model(req.Model),
		"messages": openAIMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	if req.Temperature != nil {
		payload["temperature"] = *req.Temperature
	}
	if len(req.Tools) > 0 {
		payload["tools"] = openAITools(req.Tools)
	}
	if stream {
		payload["stream"] = true
	}
	return payload
}

// ChatCompletion performs a chat completions request.
func (a *OpenAIAdapter) ChatCompletion(ctx context.Context, req *Request) (*CompletionResponse, error) {
	payload := a.chatPayload(req, false)
	result, err := a.request(ctx, http.MethodPost, "/chat/completions", payload, a.headers())
	if err != nil {
		return nil, err
	}
	return a.mapChatResponse(result), nil
}

// ChatCompletionWithTools is ChatCompletion for requests carrying tool
// definitions; kept separate so chat-only callers never pay the tool mapping.
func (a *OpenAIAdapter) ChatCompletionWithTools(ctx context.Context, req *Request) (*CompletionResponse, error) {
	if !a.SupportsFeature(FeatureTools) {
		return nil, NewUnsupportedFeatureError(a.Name(), FeatureTools)
	}
	return a.ChatCompletion(ctx, req)
}

// mapChatResponse turns the decoded vendor payload into the common response
// shape. Absent or oddly-shaped fields degrade via the accessor helpers.
func (a *OpenAIAdapter) mapChatResponse(payload map[string]any) *CompletionResponse {
	choices := GetList(payload, "choices")

	var content, finishReason string
	var toolCalls []ToolCall
	if len(choices) > 0 {
		choice := AsArray(choices[0], map[string]any{})
		message := GetArray(choice, "message", map[string]any{})
		content = GetString(message, "content", "")
		finishReason = normalizeFinishReason(GetString(choice, "finish_reason", ""))
		toolCalls = openAIToolCalls(message)
	}

	resp := a.buildCompletionResponse(
		content,
		GetString(payload, "model", a.DefaultModel()),
		a.usageFromPayload(payload),
		finishReason,
	)
	resp.ToolCalls = toolCalls
	return resp
}

// StreamChatCompletion returns a lazy sequence of text deltas decoded from
// the vendor's SSE stream.
func (a *OpenAIAdapter) StreamChatCompletion(ctx context.Context, req *Request) (DeltaStream, error) {
	if !a.SupportsFeature(FeatureStreaming) {
		return nil, NewUnsupportedFeatureError(a.Name(), FeatureStreaming)
	}
	payload := a.chatPayload(req, true)
	resp, err := a.streamRequest(ctx, http.MethodPost, "/chat/completions", payload, a.headers())
	if err != nil {
		return nil, err
	}
	return NewSSEStream(resp.Body, func(chunk map[string]any) string {
		return GetNestedString(firstChoice(chunk), "delta.content", "")
	}), nil
}

// Embeddings requests one vector per input. The vendor accepts the batch in
// one call.
func (a *OpenAIAdapter) Embeddings(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	if !a.SupportsFeature(FeatureEmbeddings) {
		return nil, NewUnsupportedFeatureError(a.Name(), FeatureEmbeddings)
	}

	payload := map[string]any{
		"model": a.embeddingModel(req.Model),
		"input": req.Inputs,
	}
	result, err := a.request(ctx, http.MethodPost, "/embeddings", payload, a.headers())
	if err != nil {
		return nil, err
	}

	data := GetList(result, "data")
	vectors := make([][]float64, 0, len(data))
	for _, entry := range data {
		vectors = append(vectors, floatVector(GetList(AsArray(entry, map[string]any{}), "embedding")))
	}

	return a.buildEmbeddingResponse(
		vectors,
		GetString(result, "model", ""),
		a.usageFromPayload(result),
	), nil
}

func (a *OpenAIAdapter) embeddingModel(requested string) string {
	if requested != "" {
		return requested
	}
	return "text-embedding-3-small"
}

// AnalyzeImage sends a vision chat turn carrying the image as an image_url
// content part.
func (a *OpenAIAdapter) AnalyzeImage(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	if !a.SupportsFeature(FeatureVision) {
		return nil, NewUnsupportedFeatureError(a.Name(), FeatureVision)
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = "Describe this image."
	}

	url := req.ImageURL
	if url == "" && req.ImageData != "" {
		mime := req.ImageMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		url = "data:" + mime + ";base64," + req.ImageData
	}

	payload := map[string]any{
		"model": a.model(req.Model),
		"messages": []any{
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "text", "text": prompt},
					map[string]any{"type": "image_url", "image_url": map[string]any{"url": url}},
				},
			},
		},
	}

	result, err := a.request(ctx, http.MethodPost, "/chat/completions", payload, a.headers())
	if err != nil {
		return nil, err
	}

	chat := a.mapChatResponse(result)
	return a.buildVisionResponse(chat.Content, chat.Model, chat.Usage), nil
}

// ListModels fetches the vendor's model catalog.
func (a *OpenAIAdapter) ListModels(ctx context.Context) ([]ModelDescriptor, error) {
	result, err := a.request(ctx, http.MethodGet, "/models", nil, a.headers())
	if err != nil {
		return nil, err
	}

	data := GetList(result, "data")
	models := make([]ModelDescriptor, 0, len(data))
	for _, entry := range data {
		m := AsArray(entry, map[string]any{})
		id := GetString(m, "id", "")
		if id == "" {
			continue
		}
		models = append(models, ModelDescriptor{
			ID:            id,
			DisplayName:   GetString(m, "name", id),
			ContextLength: GetInt(m, "context_length", 0),
			Modality:      ModalityText,
		})
	}
	return models, nil
}

// firstChoice returns choices[0] of a chat payload, or an empty map.
func firstChoice(payload map[string]any) map[string]any {
	choices := GetList(payload, "choices")
	if len(choices) == 0 {
		return map[string]any{}
	}
	return AsArray(choices[0], map[string]any{})
}

// openAIMessages maps normalized messages to the wire shape, expanding vision
// turns into content part lists.
func openAIMessages(messages []Message) []any {
	out := make([]any, 0, len(messages))
	for _, msg := range messages {
		m := map[string]any{"role": msg.Role}

		if msg.ImageURL != "" || msg.ImageData != "" {
			url := msg.ImageURL
			if url == "" {
				mime := msg.ImageMIME
				if mime == "" {
					mime = "image/jpeg"
				}
				url = "data:" + mime + ";base64," + msg.ImageData
			}
			m["content"] = []any{
				map[string]any{"type": "text", "text": msg.Content},
				map[string]any{"type": "image_url", "image_url": map[string]any{"url": url}},
			}
		} else {
			m["content"] = msg.Content
		}

		if msg.ToolCallID != "" {
			m["tool_call_id"] = msg.ToolCallID
		}
		if len(msg.ToolCalls) > 0 {
			calls := make([]any, 0, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				args, _ := json.Marshal(tc.Arguments)
				calls = append(calls, map[string]any{
					"id":   tc.ID,
					"type": "function",
					"function": map[string]any{
						"name":      tc.FunctionName,
						"arguments": string(args),
					},
				})
			}
			m["tool_calls"] = calls
		}

		out = append(out, m)
	}
	return out
}

func openAITools(tools []Tool) []any {
	out := make([]any, 0, len(tools))
	for _, tool := range tools {
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        tool.Name,
				"description": tool.Description,
				"parameters":  tool.Parameters,
			},
		})
	}
	return out
}

// openAIToolCalls reads message.tool_calls, tolerating arguments that arrive
// as either a JSON string or an already-decoded object.
func openAIToolCalls(message map[string]any) []ToolCall {
	raw := GetList(message, "tool_calls")
	if len(raw) == 0 {
		return nil
	}

	calls := make([]ToolCall, 0, len(raw))
	for _, entry := range raw {
		tc := AsArray(entry, map[string]any{})
		fn := GetArray(tc, "function", map[string]any{})

		args := map[string]any{}
		switch v := fn["arguments"].(type) {
		case string:
			_ = json.Unmarshal([]byte(v), &args)
		case map[string]any:
			args = v
		}

		calls = append(calls, ToolCall{
			ID:           GetString(tc, "id", ""),
			FunctionName: GetString(fn, "name", ""),
			Arguments:    args,
		})
	}
	return calls
}

// floatVector coerces a decoded JSON list into a float vector; non-numeric
// entries become zero.
func floatVector(raw []any) []float64 {
	vec := make([]float64, 0, len(raw))
	for _, v := range raw {
		vec = append(vec, AsFloat(v, 0))
	}
	return vec
}
