package adapters

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes adapter failures.
type ErrorKind string

const (
	ErrKindConfiguration       ErrorKind = "configuration"        // Missing/invalid required setting, raised at call time
	ErrKindProviderRejected    ErrorKind = "provider_rejected"    // 4xx: caller input or credential problem, never retried
	ErrKindProviderUnreachable ErrorKind = "provider_unreachable" // Exhausted retries across transport failures and 5xx
	ErrKindUnsupportedFeature  ErrorKind = "unsupported_feature"  // Vendor does not implement the requested capability
	ErrKindMalformedPayload    ErrorKind = "malformed_payload"    // Response body is not valid JSON
	ErrKindUnexpectedShape     ErrorKind = "unexpected_shape"     // Valid JSON but not the expected object/array shape
	ErrKindInvalidAdapterType  ErrorKind = "invalid_adapter_type" // Registry misuse
)

// Error is the structured error returned by every adapter operation.
type Error struct {
	Kind     ErrorKind `json:"kind"`
	Provider string    `json:"provider,omitempty"`
	Message  string    `json:"message"`
	Cause    error     `json:"-"` // Original error, not serialized.

	// HTTP details (if applicable).
	StatusCode int `json:"status_code,omitempty"`

	// Attempts is the number of transmission attempts made before failing.
	Attempts int `json:"attempts,omitempty"`
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// Retryable reports whether the failure may succeed on a later attempt.
// Rejections and configuration problems never do.
func (e *Error) Retryable() bool {
	return e.Kind == ErrKindProviderUnreachable
}

func NewConfigurationError(provider, message string) *Error {
	return &Error{Kind: ErrKindConfiguration, Provider: provider, Message: message}
}

func NewProviderRejectedError(provider string, statusCode int, message string) *Error {
	return &Error{
		Kind:       ErrKindProviderRejected,
		Provider:   provider,
		Message:    message,
		StatusCode: statusCode,
		Attempts:   1,
	}
}

func NewProviderUnreachableError(provider string, attempts int, message string, cause error) *Error {
	return &Error{
		Kind:     ErrKindProviderUnreachable,
		Provider: provider,
		Message:  fmt.Sprintf("provider unreachable after %d attempts: %s", attempts, message),
		Attempts: attempts,
		Cause:    cause,
	}
}

func NewUnsupportedFeatureError(provider, feature string) *Error {
	return &Error{
		Kind:     ErrKindUnsupportedFeature,
		Provider: provider,
		Message:  fmt.Sprintf("%s does not support %s", provider, feature),
	}
}

func NewMalformedPayloadError(provider string, cause error) *Error {
	return &Error{
		Kind:     ErrKindMalformedPayload,
		Provider: provider,
		Message:  "response body is not valid JSON",
		Cause:    cause,
	}
}

func NewUnexpectedShapeError(provider, message string) *Error {
	return &Error{Kind: ErrKindUnexpectedShape, Provider: provider, Message: message}
}

func NewInvalidAdapterTypeError(message string) *Error {
	return &Error{Kind: ErrKindInvalidAdapterType, Message: message}
}

func IsConfigurationError(err error) bool  { return hasKind(err, ErrKindConfiguration) }
func IsProviderRejected(err error) bool    { return hasKind(err, ErrKindProviderRejected) }
func IsProviderUnreachable(err error) bool { return hasKind(err, ErrKindProviderUnreachable) }
func IsUnsupportedFeature(err error) bool  { return hasKind(err, ErrKindUnsupportedFeature) }
func IsMalformedPayload(err error) bool    { return hasKind(err, ErrKindMalformedPayload) }
func IsUnexpectedShape(err error) bool     { return hasKind(err, ErrKindUnexpectedShape) }
func IsInvalidAdapterType(err error) bool  { return hasKind(err, ErrKindInvalidAdapterType) }

func hasKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
