package adapters

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

func init() {
	RegisterBuiltin("openrouter", func(opts BaseOptions) ProviderAdapter {
		return NewOpenRouter(opts)
	}, "https://openrouter.ai/api/v1")
}

const defaultOpenRouterModel = "openai/gpt-4o-mini"

// OpenRouterAdapter targets the OpenRouter aggregator. The wire format is
// OpenAI-compatible, but the adapter adds model routing across the hosted
// catalog, an automatic fallback chain, and account credit inspection.
type OpenRouterAdapter struct {
	*BaseAdapter

	routing *RoutingEngine
}

// CreditsInfo is the account balance reported by the aggregator.
type CreditsInfo struct {
	TotalCredits float64 `json:"total_credits"`
	TotalUsage   float64 `json:"total_usage"`
}

func (c CreditsInfo) Remaining() float64 {
	return c.TotalCredits - c.TotalUsage
}

func NewOpenRouter(opts BaseOptions) *OpenRouterAdapter {
	caps := []string{FeatureChat, FeatureCompletion, FeatureStreaming, FeatureTools, FeatureVision}
	a := &OpenRouterAdapter{
		BaseAdapter: NewBaseAdapter("openrouter", "https://openrouter.ai/api/v1", defaultOpenRouterModel, caps, true, opts),
	}
	a.routing = NewRoutingEngine(a.ListModels, a.logger)
	return a
}

func (a *OpenRouterAdapter) headers() map[string]string {
	h := map[string]string{
		"Authorization": "Bearer " + a.resolvedKey(),
	}
	// Optional attribution headers; the aggregator uses them for app
	// leaderboards and does not require them.
	if a.cfg.siteURL != "" {
		h["HTTP-Referer"] = a.cfg.siteURL
	}
	if a.cfg.appName != "" {
		h["X-Title"] = a.cfg.appName
	}
	return h
}

// resolveModel picks the model for a request. An explicit model wins; an
// empty one is routed over the hosted catalog using the configured strategy.
func (a *OpenRouterAdapter) resolveModel(ctx context.Context, requested string, constraints Constraints) string {
	if requested != "" {
		return requested
	}
	return a.routing.SelectModel(ctx, a.cfg.routingStrategy, a.DefaultModel(), constraints)
}

func requestConstraints(req *Request) Constraints {
	var c Constraints
	if len(req.Tools) > 0 {
		c.FunctionCallingRequired = true
	}
	for _, msg := range req.Messages {
		if msg.ImageURL != "" || msg.ImageData != "" {
			c.VisionRequired = true
			break
		}
	}
	return c
}

func (a *OpenRouterAdapter) chatPayload(req *Request, model string, stream bool) map[string]any {
	payload := map[string]any{
		"model":    model,
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

func (a *OpenRouterAdapter) ChatCompletion(ctx context.Context, req *Request) (*CompletionResponse, error) {
	model := a.resolveModel(ctx, req.Model, requestConstraints(req))

	var lastErr error
	for i, candidate := range a.fallbackChain(model) {
		if i > 0 {
			a.logger.Warn("falling back to next model",
				zap.String("provider", a.Name()),
				zap.String("model", candidate),
				zap.Error(lastErr))
		}
		resp, err := a.chatOnce(ctx, req, candidate)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !fallbackEligible(err) {
			break
		}
	}
	return nil, lastErr
}

func (a *OpenRouterAdapter) chatOnce(ctx context.Context, req *Request, model string) (*CompletionResponse, error) {
	result, err := a.request(ctx, http.MethodPost, "/chat/completions", a.chatPayload(req, model, false), a.headers())
	if err != nil {
		return nil, err
	}
	return a.mapChatResponse(result, model), nil
}

func (a *OpenRouterAdapter) ChatCompletionWithTools(ctx context.Context, req *Request) (*CompletionResponse, error) {
	if !a.SupportsFeature(FeatureTools) {
		return nil, NewUnsupportedFeatureError(a.Name(), FeatureTools)
	}
	return a.ChatCompletion(ctx, req)
}

// fallbackChain is the routed model followed by the configured fallbacks,
// or the routed model alone when auto fallback is off.
func (a *OpenRouterAdapter) fallbackChain(model string) []string {
	chain := []string{model}
	if !a.cfg.autoFallback {
		return chain
	}
	for _, fb := range a.cfg.fallbackModels {
		if fb != model {
			chain = append(chain, fb)
		}
	}
	return chain
}

// fallbackEligible reports whether a failure is worth retrying on another
// model: transport exhaustion, rate limiting, server errors, or an upstream
// reporting itself overloaded. Client-side mistakes are not.
func fallbackEligible(err error) bool {
	var typed *Error
	if !errors.As(err, &typed) {
		return false
	}
	if typed.Kind == ErrKindProviderUnreachable {
		return true
	}
	if typed.StatusCode == http.StatusTooManyRequests || typed.StatusCode >= 500 {
		return true
	}
	return strings.Contains(strings.ToLower(typed.Message), "overloaded")
}

func (a *OpenRouterAdapter) mapChatResponse(payload map[string]any, routedModel string) *CompletionResponse {
	choice := firstChoice(payload)
	message := GetArray(choice, "message", map[string]any{})

	resp := a.buildCompletionResponse(
		GetString(message, "content", ""),
		GetString(payload, "model", routedModel),
		a.usageFromPayload(payload),
		normalizeFinishReason(GetString(choice, "finish_reason", "")),
	)
	resp.ToolCalls = openAIToolCalls(message)
	resp.Metadata["routed_model"] = routedModel
	if cost := GetNestedFloat(payload, "usage.cost", 0); cost > 0 {
		resp.Metadata["cost"] = cost
	}
	return resp
}

func (a *OpenRouterAdapter) StreamChatCompletion(ctx context.Context, req *Request) (DeltaStream, error) {
	if !a.SupportsFeature(FeatureStreaming) {
		return nil, NewUnsupportedFeatureError(a.Name(), FeatureStreaming)
	}
	model := a.resolveModel(ctx, req.Model, requestConstraints(req))
	resp, err := a.streamRequest(ctx, http.MethodPost, "/chat/completions", a.chatPayload(req, model, true), a.headers())
	if err != nil {
		return nil, err
	}
	return NewSSEStream(resp.Body, func(chunk map[string]any) string {
		return GetNestedString(firstChoice(chunk), "delta.content", "")
	}), nil
}

// Embeddings is not offered by the aggregator.
func (a *OpenRouterAdapter) Embeddings(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	return nil, NewUnsupportedFeatureError(a.Name(), FeatureEmbeddings)
}

func (a *OpenRouterAdapter) AnalyzeImage(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	if !a.SupportsFeature(FeatureVision) {
		return nil, NewUnsupportedFeatureError(a.Name(), FeatureVision)
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = "Describe this image."
	}

	chat, err := a.ChatCompletion(ctx, &Request{
		Model: req.Model,
		Messages: []Message{
			{Role: "user", Content: prompt, ImageURL: req.ImageURL, ImageData: req.ImageData, ImageMIME: req.ImageMIME},
		},
	})
	if err != nil {
		return nil, err
	}
	return a.buildVisionResponse(chat.Content, chat.Model, chat.Usage), nil
}

// ListModels fetches the hosted catalog. Pricing arrives as decimal strings
// per token; the accessor coercion turns them into floats.
func (a *OpenRouterAdapter) ListModels(ctx context.Context) ([]ModelDescriptor, error) {
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

		pricing := GetArray(m, "pricing", map[string]any{})
		modality := ModalityText
		if strings.Contains(GetNestedString(m, "architecture.modality", ""), "image") {
			modality = ModalityMultimodal
		}

		models = append(models, ModelDescriptor{
			ID:            id,
			DisplayName:   GetString(m, "name", id),
			ContextLength: GetInt(m, "context_length", 0),
			Pricing: ModelPricing{
				PromptCostPerToken:     GetFloat(pricing, "prompt", 0),
				CompletionCostPerToken: GetFloat(pricing, "completion", 0),
			},
			SupportsFunctionCalling: supportsTools(m),
			Modality:                modality,
		})
	}
	return models, nil
}

func supportsTools(model map[string]any) bool {
	for _, p := range GetList(model, "supported_parameters") {
		if AsString(p, "") == "tools" {
			return true
		}
	}
	return false
}

// RefreshCatalog forces the routing catalog to be refetched on next use.
func (a *OpenRouterAdapter) RefreshCatalog() {
	a.routing.Invalidate()
}

// Credits reads the account balance from /credits.
func (a *OpenRouterAdapter) Credits(ctx context.Context) (*CreditsInfo, error) {
	result, err := a.request(ctx, http.MethodGet, "/credits", nil, a.headers())
	if err != nil {
		return nil, err
	}
	data := GetArray(result, "data", result)
	return &CreditsInfo{
		TotalCredits: GetFloat(data, "total_credits", 0),
		TotalUsage:   GetFloat(data, "total_usage", 0),
	}, nil
}
