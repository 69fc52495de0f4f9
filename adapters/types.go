package adapters

import (
	"context"
	"net/http"
)

// Message is one turn of a normalized conversation.
type Message struct {
	Role       string     `json:"role"` // system, user, assistant, tool
	Content    string     `json:"content"`
	ImageURL   string     `json:"image_url,omitempty"`    // remote image reference for vision turns
	ImageData  string     `json:"image_data,omitempty"`   // base64 payload for vendors that inline images
	ImageMIME  string     `json:"image_mime,omitempty"`   // media type for inline payloads, defaults to image/jpeg
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // assistant turns that requested tools
	ToolCallID string     `json:"tool_call_id,omitempty"` // tool turns answering a request
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID           string         `json:"id"`
	FunctionName string         `json:"function_name"`
	Arguments    map[string]any `json:"arguments"`
}

// Tool declares a function the model may call.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"` // JSON schema for the arguments
}

// Request is the normalized call structure accepted by every adapter method.
type Request struct {
	Model       string    `json:"model,omitempty"` // empty uses the adapter's default model
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	Tools       []Tool    `json:"tools,omitempty"`
}

// EmbeddingRequest carries one or more input texts. Vendors without batch
// support are called once per input, sequentially.
type EmbeddingRequest struct {
	Model  string   `json:"model,omitempty"`
	Inputs []string `json:"inputs"`
}

// VisionRequest asks for a description of one image.
type VisionRequest struct {
	Model     string `json:"model,omitempty"`
	Prompt    string `json:"prompt,omitempty"` // defaults to a generic describe-this-image prompt
	ImageURL  string `json:"image_url,omitempty"`
	ImageData string `json:"image_data,omitempty"` // base64
	ImageMIME string `json:"image_mime,omitempty"`
}

// Usage reports token consumption. TotalTokens is always recomputed as
// prompt+completion, never trusted from the vendor.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse is the typed result of a chat or tool-calling call.
// Values are immutable once returned.
type CompletionResponse struct {
	Content      string         `json:"content"`
	Model        string         `json:"model"` // the model the vendor reports, not merely the requested one
	FinishReason string         `json:"finish_reason"`
	Usage        Usage          `json:"usage"`
	ToolCalls    []ToolCall     `json:"tool_calls,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"` // vendor extras: cost, routed provider, ...
}

// EmbeddingResponse carries one vector per input text, index-ordered.
type EmbeddingResponse struct {
	Vectors [][]float64 `json:"vectors"`
	Model   string      `json:"model"`
	Usage   Usage       `json:"usage"`
}

// VisionResponse is the typed result of an image analysis call.
type VisionResponse struct {
	Description string `json:"description"`
	Model       string `json:"model"`
	Usage       Usage  `json:"usage"`
}

// HTTPDoer is the abstract transport capability: send one request, get one
// response or stream. The adapter layer never constructs TCP/TLS itself
// beyond the lazily-built default client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// SecretResolver turns a stored credential identifier into its value.
// An unknown identifier resolves to the empty string.
type SecretResolver interface {
	Resolve(identifier string) string
}

// ProviderAdapter is the common contract implemented for every vendor.
type ProviderAdapter interface {
	Name() string
	Configure(opts Options)
	IsAvailable() bool
	SupportsFeature(feature string) bool

	ChatCompletion(ctx context.Context, req *Request) (*CompletionResponse, error)
	ChatCompletionWithTools(ctx context.Context, req *Request) (*CompletionResponse, error)
	StreamChatCompletion(ctx context.Context, req *Request) (DeltaStream, error)
	Embeddings(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error)
	AnalyzeImage(ctx context.Context, req *VisionRequest) (*VisionResponse, error)
}

// ModelLister is implemented by adapters whose vendor exposes a model catalog
// endpoint.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelDescriptor, error)
}

// Feature names accepted by SupportsFeature. Lookups are case-sensitive and
// unknown names return false.
const (
	FeatureChat       = "chat"
	FeatureCompletion = "completion"
	FeatureStreaming  = "streaming"
	FeatureTools      = "tools"
	FeatureVision     = "vision"
	FeatureEmbeddings = "embeddings"
)
