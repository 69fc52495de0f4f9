package llmgate

import "github.com/llmgate/llmgate/adapters"

// Error and its kinds are re-exported so callers rarely need to import the
// adapters package directly.
type (
	Error     = adapters.Error
	ErrorKind = adapters.ErrorKind
)

const (
	ErrKindConfiguration       = adapters.ErrKindConfiguration
	ErrKindProviderRejected    = adapters.ErrKindProviderRejected
	ErrKindProviderUnreachable = adapters.ErrKindProviderUnreachable
	ErrKindUnsupportedFeature  = adapters.ErrKindUnsupportedFeature
	ErrKindMalformedPayload    = adapters.ErrKindMalformedPayload
	ErrKindUnexpectedShape     = adapters.ErrKindUnexpectedShape
	ErrKindInvalidAdapterType  = adapters.ErrKindInvalidAdapterType
)

var (
	IsConfigurationError  = adapters.IsConfigurationError
	IsProviderRejected    = adapters.IsProviderRejected
	IsProviderUnreachable = adapters.IsProviderUnreachable
	IsUnsupportedFeature  = adapters.IsUnsupportedFeature
	IsMalformedPayload    = adapters.IsMalformedPayload
	IsUnexpectedShape     = adapters.IsUnexpectedShape
	IsInvalidAdapterType  = adapters.IsInvalidAdapterType
)
