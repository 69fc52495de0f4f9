package llmgate

import "github.com/llmgate/llmgate/adapters"

// Re-exported core types. The adapters package holds the implementations;
// this package is the front door.
type (
	Options            = adapters.Options
	Message            = adapters.Message
	Tool               = adapters.Tool
	ToolCall           = adapters.ToolCall
	Request            = adapters.Request
	EmbeddingRequest   = adapters.EmbeddingRequest
	VisionRequest      = adapters.VisionRequest
	Usage              = adapters.Usage
	CompletionResponse = adapters.CompletionResponse
	EmbeddingResponse  = adapters.EmbeddingResponse
	VisionResponse     = adapters.VisionResponse
	ProviderAdapter    = adapters.ProviderAdapter
	DeltaStream        = adapters.DeltaStream
	HTTPDoer           = adapters.HTTPDoer
	SecretResolver     = adapters.SecretResolver
	ModelDescriptor    = adapters.ModelDescriptor
	Constraints        = adapters.Constraints
)

const (
	FeatureChat       = adapters.FeatureChat
	FeatureCompletion = adapters.FeatureCompletion
	FeatureStreaming  = adapters.FeatureStreaming
	FeatureTools      = adapters.FeatureTools
	FeatureVision     = adapters.FeatureVision
	FeatureEmbeddings = adapters.FeatureEmbeddings
)
