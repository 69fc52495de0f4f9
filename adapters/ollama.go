package adapters

import (
	"context"
	"net/http"
)

func init() {
	RegisterBuiltin("ollama", func(opts BaseOptions) ProviderAdapter {
		return NewOllama(opts)
	}, "http://localhost:11434")
}

const defaultOllamaModel = "llama3.1"

// OllamaAdapter speaks the self-hosted Ollama API: newline-delimited JSON
// streaming on /api/chat and single-input /api/embeddings. No credential is
// required; the adapter is available once a base URL is set.
type OllamaAdapter struct {
	*BaseAdapter
}

func NewOllama(opts BaseOptions) *OllamaAdapter {
	caps := []string{FeatureChat, FeatureCompletion, FeatureStreaming, FeatureVision, FeatureEmbeddings}
	return &OllamaAdapter{
		BaseAdapter: NewBaseAdapter("ollama", "http://localhost:11434", defaultOllamaModel, caps, false, opts),
	}
}

func (a *OllamaAdapter) model(requested string) string {
	if requested != "" {
		return requested
	}
	return a.DefaultModel()
}

func (a *OllamaAdapter) chatPayload(req *Request, stream bool) map[string]any {
	messages := make([]any, 0, len(req.Messages))
	for _, msg := range req.Messages {
		m := map[string]any{"role": msg.Role, "content": msg.Content}
		if msg.ImageData != "" {
			m["images"] = []any{msg.ImageData}
		}
		messages = append(messages, m)
	}

	payload := map[string]any{
		"model":    a.model(req.Model),
		"messages": messages,
		"stream":   stream,
	}

	options := map[string]any{}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if len(options) > 0 {
		payload["options"] = options
	}
	return payload
}

func (a *OllamaAdapter) ChatCompletion(ctx context.Context, req *Request) (*CompletionResponse, error) {
	result, err := a.request(ctx, http.MethodPost, "/api/chat", a.chatPayload(req, false), nil)
	if err != nil {
		return nil, err
	}
	return a.mapChatResponse(result), nil
}

// ChatCompletionWithTools: tool calling is not in the fixed capability set.
func (a *OllamaAdapter) ChatCompletionWithTools(ctx context.Context, req *Request) (*CompletionResponse, error) {
	return nil, NewUnsupportedFeatureError(a.Name(), FeatureTools)
}

func (a *OllamaAdapter) mapChatResponse(payload map[string]any) *CompletionResponse {
	finishReason := GetString(payload, "done_reason", "")
	return a.buildCompletionResponse(
		GetNestedString(payload, "message.content", ""),
		GetString(payload, "model", a.DefaultModel()),
		a.buildUsage(GetInt(payload, "prompt_eval_count", 0), GetInt(payload, "eval_count", 0)),
		normalizeFinishReason(finishReason),
	)
}

// StreamChatCompletion decodes the NDJSON stream, stopping on done:true.
func (a *OllamaAdapter) StreamChatCompletion(ctx context.Context, req *Request) (DeltaStream, error) {
	if !a.SupportsFeature(FeatureStreaming) {
		return nil, NewUnsupportedFeatureError(a.Name(), FeatureStreaming)
	}
	resp, err := a.streamRequest(ctx, http.MethodPost, "/api/chat", a.chatPayload(req, true), nil)
	if err != nil {
		return nil, err
	}
	return NewNDJSONStream(resp.Body,
		func(obj map[string]any) string {
			return GetNestedString(obj, "message.content", "")
		},
		func(obj map[string]any) bool {
			return GetBool(obj, "done", false)
		},
	), nil
}

// Embeddings calls /api/embeddings once per input; the endpoint takes a
// single prompt, so multiple inputs go out sequentially.
func (a *OllamaAdapter) Embeddings(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	if !a.SupportsFeature(FeatureEmbeddings) {
		return nil, NewUnsupportedFeatureError(a.Name(), FeatureEmbeddings)
	}

	model := req.Model
	if model == "" {
		model = a.DefaultModel()
	}

	vectors := make([][]float64, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		payload := map[string]any{"model": model, "prompt": input}
		result, err := a.request(ctx, http.MethodPost, "/api/embeddings", payload, nil)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, floatVector(GetList(result, "embedding")))
	}

	return a.buildEmbeddingResponse(vectors, model, a.buildUsage(0, 0)), nil
}

// AnalyzeImage attaches the base64 image to a chat turn's images field.
func (a *OllamaAdapter) AnalyzeImage(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	if !a.SupportsFeature(FeatureVision) {
		return nil, NewUnsupportedFeatureError(a.Name(), FeatureVision)
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = "Describe this image."
	}

	chatReq := &Request{
		Model: req.Model,
		Messages: []Message{
			{Role: "user", Content: prompt, ImageData: req.ImageData},
		},
	}
	chat, err := a.ChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, err
	}
	return a.buildVisionResponse(chat.Content, chat.Model, chat.Usage), nil
}

// ListModels reads the local model list from /api/tags.
func (a *OllamaAdapter) ListModels(ctx context.Context) ([]ModelDescriptor, error) {
	result, err := a.request(ctx, http.MethodGet, "/api/tags", nil, nil)
	if err != nil {
		return nil, err
	}

	entries := GetList(result, "models")
	models := make([]ModelDescriptor, 0, len(entries))
	for _, entry := range entries {
		m := AsArray(entry, map[string]any{})
		name := GetString(m, "name", "")
		if name == "" {
			continue
		}
		models = append(models, ModelDescriptor{
			ID:          name,
			DisplayName: name,
			Modality:    ModalityText,
		})
	}
	return models, nil
}
