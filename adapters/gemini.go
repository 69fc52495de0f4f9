package adapters

import (
	"context"
	"fmt"
	"net/http"
)

func init() {
	RegisterBuiltin("gemini", func(opts BaseOptions) ProviderAdapter {
		return NewGemini(opts)
	}, "https://generativelanguage.googleapis.com/v1beta")
}

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiAdapter speaks the generateContent surface: contents/parts request
// shape, candidates/parts responses, and a vendor finish-reason vocabulary
// (STOP, MAX_TOKENS, SAFETY, ...) normalized onto the common enum.
type GeminiAdapter struct {
	*BaseAdapter
}

func NewGemini(opts BaseOptions) *GeminiAdapter {
	caps := []string{FeatureChat, FeatureCompletion, FeatureStreaming, FeatureTools, FeatureVision, FeatureEmbeddings}
	return &GeminiAdapter{
		BaseAdapter: NewBaseAdapter("gemini", "https://generativelanguage.googleapis.com/v1beta", defaultGeminiModel, caps, true, opts),
	}
}

func (a *GeminiAdapter) headers() map[string]string {
	return map[string]string{"x-goog-api-key": a.resolvedKey()}
}

func (a *GeminiAdapter) model(requested string) string {
	if requested != "" {
		return requested
	}
	return a.DefaultModel()
}

func (a *GeminiAdapter) chatPayload(req *Request) map[string]any {
	system, contents := geminiContents(req.Messages)

	payload := map[string]any{"contents": contents}
	if system != "" {
		payload["systemInstruction"] = map[string]any{
			"parts": []any{map[string]any{"text": system}},
		}
	}

	generation := map[string]any{}
	if req.MaxTokens > 0 {
		generation["maxOutputTokens"] = req.MaxTokens
	}
	if req.Temperature != nil {
		generation["temperature"] = *req.Temperature
	}
	if len(generation) > 0 {
		payload["generationConfig"] = generation
	}

	if len(req.Tools) > 0 {
		declarations := make([]any, 0, len(req.Tools))
		for _, tool := range req.Tools {
			declarations = append(declarations, map[string]any{
				"name":        tool.Name,
				"description": tool.Description,
				"parameters":  tool.Parameters,
			})
		}
		payload["tools"] = []any{map[string]any{"functionDeclarations": declarations}}
	}

	return payload
}

func (a *GeminiAdapter) ChatCompletion(ctx context.Context, req *Request) (*CompletionResponse, error) {
	endpoint := fmt.Sprintf("/models/%s:generateContent", a.model(req.Model))
	result, err := a.request(ctx, http.MethodPost, endpoint, a.chatPayload(req), a.headers())
	if err != nil {
		return nil, err
	}
	return a.mapChatResponse(result, a.model(req.Model)), nil
}

func (a *GeminiAdapter) ChatCompletionWithTools(ctx context.Context, req *Request) (*CompletionResponse, error) {
	if !a.SupportsFeature(FeatureTools) {
		return nil, NewUnsupportedFeatureError(a.Name(), FeatureTools)
	}
	return a.ChatCompletion(ctx, req)
}

// mapChatResponse reads candidates[0].content.parts: text parts concatenate,
// functionCall parts become tool calls.
func (a *GeminiAdapter) mapChatResponse(payload map[string]any, requestedModel string) *CompletionResponse {
	candidates := GetList(payload, "candidates")

	var content, finishReason string
	var toolCalls []ToolCall
	if len(candidates) > 0 {
		candidate := AsArray(candidates[0], map[string]any{})
		for _, entry := range GetList(GetArray(candidate, "content", map[string]any{}), "parts") {
			part := AsArray(entry, map[string]any{})
			if text := GetString(part, "text", ""); text != "" {
				content += text
			}
			if fc, ok := part["functionCall"].(map[string]any); ok {
				toolCalls = append(toolCalls, ToolCall{
					ID:           GetString(fc, "name", ""), // the vendor assigns no call IDs
					FunctionName: GetString(fc, "name", ""),
					Arguments:    GetArray(fc, "args", map[string]any{}),
				})
			}
		}
		finishReason = normalizeFinishReason(GetString(candidate, "finishReason", ""))
	}
	if len(toolCalls) > 0 && finishReason == "stop" {
		finishReason = "tool_calls"
	}

	usage := GetArray(payload, "usageMetadata", map[string]any{})
	resp := a.buildCompletionResponse(
		content,
		GetString(payload, "modelVersion", requestedModel),
		a.buildUsage(GetInt(usage, "promptTokenCount", 0), GetInt(usage, "candidatesTokenCount", 0)),
		finishReason,
	)
	resp.ToolCalls = toolCalls
	return resp
}

// StreamChatCompletion uses streamGenerateContent with SSE framing.
func (a *GeminiAdapter) StreamChatCompletion(ctx context.Context, req *Request) (DeltaStream, error) {
	if !a.SupportsFeature(FeatureStreaming) {
		return nil, NewUnsupportedFeatureError(a.Name(), FeatureStreaming)
	}
	endpoint := fmt.Sprintf("/models/%s:streamGenerateContent?alt=sse", a.model(req.Model))
	resp, err := a.streamRequest(ctx, http.MethodPost, endpoint, a.chatPayload(req), a.headers())
	if err != nil {
		return nil, err
	}
	return NewSSEStream(resp.Body, func(chunk map[string]any) string {
		candidates := GetList(chunk, "candidates")
		if len(candidates) == 0 {
			return ""
		}
		parts := GetList(GetArray(AsArray(candidates[0], map[string]any{}), "content", map[string]any{}), "parts")
		var text string
		for _, entry := range parts {
			text += GetString(AsArray(entry, map[string]any{}), "text", "")
		}
		return text
	}), nil
}

// Embeddings calls embedContent once per input; the vendor's batch endpoint
// is not universal across API versions, so inputs are sent sequentially.
func (a *GeminiAdapter) Embeddings(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	if !a.SupportsFeature(FeatureEmbeddings) {
		return nil, NewUnsupportedFeatureError(a.Name(), FeatureEmbeddings)
	}

	model := req.Model
	if model == "" {
		model = "text-embedding-004"
	}
	endpoint := fmt.Sprintf("/models/%s:embedContent", model)

	vectors := make([][]float64, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		payload := map[string]any{
			"content": map[string]any{
				"parts": []any{map[string]any{"text": input}},
			},
		}
		result, err := a.request(ctx, http.MethodPost, endpoint, payload, a.headers())
		if err != nil {
			return nil, err
		}
		embedding := GetArray(result, "embedding", map[string]any{})
		vectors = append(vectors, floatVector(GetList(embedding, "values")))
	}

	return a.buildEmbeddingResponse(vectors, model, a.buildUsage(0, 0)), nil
}

// AnalyzeImage sends the image as an inline_data part.
func (a *GeminiAdapter) AnalyzeImage(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	if !a.SupportsFeature(FeatureVision) {
		return nil, NewUnsupportedFeatureError(a.Name(), FeatureVision)
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = "Describe this image."
	}
	mime := req.ImageMIME
	if mime == "" {
		mime = "image/jpeg"
	}

	payload := map[string]any{
		"contents": []any{
			map[string]any{
				"role": "user",
				"parts": []any{
					map[string]any{"text": prompt},
					map[string]any{"inline_data": map[string]any{"mime_type": mime, "data": req.ImageData}},
				},
			},
		},
	}

	endpoint := fmt.Sprintf("/models/%s:generateContent", a.model(req.Model))
	result, err := a.request(ctx, http.MethodPost, endpoint, payload, a.headers())
	if err != nil {
		return nil, err
	}

	chat := a.mapChatResponse(result, a.model(req.Model))
	return a.buildVisionResponse(chat.Content, chat.Model, chat.Usage), nil
}

// geminiContents maps normalized messages onto contents/parts, folding system
// turns into a single systemInstruction and renaming assistant to model.
func geminiContents(messages []Message) (string, []any) {
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

		role := msg.Role
		if role == "assistant" {
			role = "model"
		}

		if msg.Role == "tool" {
			out = append(out, map[string]any{
				"role": "user",
				"parts": []any{
					map[string]any{
						"functionResponse": map[string]any{
							"name":     msg.ToolCallID,
							"response": map[string]any{"content": msg.Content},
						},
					},
				},
			})
			continue
		}

		parts := []any{}
		if msg.Content != "" {
			parts = append(parts, map[string]any{"text": msg.Content})
		}
		for _, tc := range msg.ToolCalls {
			parts = append(parts, map[string]any{
				"functionCall": map[string]any{"name": tc.FunctionName, "args": tc.Arguments},
			})
		}
		if len(parts) == 0 {
			parts = append(parts, map[string]any{"text": ""})
		}

		out = append(out, map[string]any{"role": role, "parts": parts})
	}

	return system, out
}
