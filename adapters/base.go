package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Options is the flat configuration map accepted by Configure. Recognized
// keys: api_key, api_key_identifier, base_url, timeout, max_retries,
// default_model, organization_id, site_url, app_name, routing_strategy,
// auto_fallback, fallback_models. Unrecognized keys are ignored.
type Options map[string]any

const (
	defaultTimeoutSeconds = 30
	defaultMaxRetries     = 3
	maxConnectSeconds     = 10
)

// config is the mutable per-adapter configuration. Configure replaces fields
// wholesale except fallbackModels, which accumulates.
type config struct {
	apiKey           string
	apiKeyIdentifier string
	baseURL          string
	timeoutSeconds   int
	maxRetries       int
	defaultModel     string

	organizationID  string
	siteURL         string
	appName         string
	routingStrategy string
	autoFallback    bool
	fallbackModels  []string
}

// BaseOptions carries the collaborators shared by all vendor adapters.
type BaseOptions struct {
	// Transport, when set, is used for every request and takes precedence
	// over the self-managed client. A timeout change invalidates it.
	Transport HTTPDoer

	// Secrets resolves api_key_identifier values. Nil means identifiers
	// never resolve.
	Secrets SecretResolver

	Logger *zap.Logger
}

// BaseAdapter implements the configuration, HTTP client lifecycle, retry
// loop, error classification and response construction shared by every
// vendor adapter. Vendor adapters embed it and contribute endpoint paths,
// auth headers and response field mapping.
type BaseAdapter struct {
	name         string
	capabilities map[string]bool
	requiresAuth bool
	cfg          config

	injected      HTTPDoer
	own           *http.Client
	clientTimeout int // seconds the current client pair was built for

	secrets SecretResolver
	logger  *zap.Logger

	// backoff returns the pause before retry attempt n (1-based). Tests
	// substitute a zero schedule.
	backoff func(attempt int) time.Duration
}

// NewBaseAdapter builds the shared behavior for a vendor. Vendor constructors
// supply their base URL, default model and fixed capability set.
func NewBaseAdapter(name, defaultBaseURL, defaultModel string, capabilities []string, requiresAuth bool, opts BaseOptions) *BaseAdapter {
	caps := make(map[string]bool, len(capabilities))
	for _, c := range capabilities {
		caps[c] = true
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BaseAdapter{
		name:         name,
		capabilities: caps,
		requiresAuth: requiresAuth,
		cfg: config{
			baseURL:        strings.TrimSuffix(defaultBaseURL, "/"),
			timeoutSeconds: defaultTimeoutSeconds,
			maxRetries:     defaultMaxRetries,
			defaultModel:   defaultModel,
		},
		injected:      opts.Transport,
		clientTimeout: defaultTimeoutSeconds,
		secrets:       opts.Secrets,
		logger:        logger,
		backoff:       defaultBackoff,
	}
}

func defaultBackoff(attempt int) time.Duration {
	d := 500 * time.Millisecond * time.Duration(math.Pow(2, float64(attempt-1)))
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	return d
}

func (b *BaseAdapter) Name() string { return b.name }

// Configure applies a flat options map. It never validates eagerly: an
// adapter with missing credentials exists but reports itself unavailable and
// fails with a configuration error only when a call is attempted.
func (b *BaseAdapter) Configure(opts Options) {
	if v, ok := opts["api_key"]; ok {
		b.cfg.apiKey = AsString(v, b.cfg.apiKey)
	}
	if v, ok := opts["api_key_identifier"]; ok {
		b.cfg.apiKeyIdentifier = AsString(v, b.cfg.apiKeyIdentifier)
	}
	if v, ok := opts["base_url"]; ok {
		b.cfg.baseURL = strings.TrimSuffix(AsString(v, b.cfg.baseURL), "/")
	}
	if v, ok := opts["timeout"]; ok {
		if t := AsInt(v, b.cfg.timeoutSeconds); t > 0 {
			b.cfg.timeoutSeconds = t
		}
	}
	if v, ok := opts["max_retries"]; ok {
		if r := AsInt(v, b.cfg.maxRetries); r >= 1 {
			b.cfg.maxRetries = r
		}
	}
	if v, ok := opts["default_model"]; ok {
		if m := AsString(v, ""); m != "" {
			b.cfg.defaultModel = m
		}
	}
	if v, ok := opts["organization_id"]; ok {
		b.cfg.organizationID = AsString(v, b.cfg.organizationID)
	}
	if v, ok := opts["site_url"]; ok {
		b.cfg.siteURL = AsString(v, b.cfg.siteURL)
	}
	if v, ok := opts["app_name"]; ok {
		b.cfg.appName = AsString(v, b.cfg.appName)
	}
	if v, ok := opts["routing_strategy"]; ok {
		b.cfg.routingStrategy = AsString(v, b.cfg.routingStrategy)
	}
	if v, ok := opts["auto_fallback"]; ok {
		b.cfg.autoFallback = asTruthy(v, b.cfg.autoFallback)
	}
	if v, ok := opts["fallback_models"]; ok {
		b.cfg.fallbackModels = appendFallbackModels(b.cfg.fallbackModels, AsString(v, ""))
	}

	// Rebuild the transport only when the effective timeout moved; repeated
	// Configure calls with the same timeout keep the client identity.
	if b.cfg.timeoutSeconds != b.clientTimeout {
		b.clientTimeout = b.cfg.timeoutSeconds
		b.own = nil
		b.injected = nil
	}
}

// asTruthy accepts bools and truthy-string coercion ("true", "1", "yes").
func asTruthy(v any, def bool) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off", "":
			return false
		}
		return def
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return def
	}
}

// appendFallbackModels splits a comma-separated list, trims entries, drops
// empties, and appends the ones not already present.
func appendFallbackModels(existing []string, raw string) []string {
	seen := make(map[string]bool, len(existing))
	for _, m := range existing {
		seen[m] = true
	}
	for _, part := range strings.Split(raw, ",") {
		m := strings.TrimSpace(part)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		existing = append(existing, m)
	}
	return existing
}

// connectTimeout caps the dial timeout at 10s regardless of the configured
// send timeout.
func (b *BaseAdapter) connectTimeout() time.Duration {
	secs := b.cfg.timeoutSeconds
	if secs > maxConnectSeconds {
		secs = maxConnectSeconds
	}
	return time.Duration(secs) * time.Second
}

// httpClient returns the transport for the next request: the injected client
// when present, otherwise a lazily-built self-managed one bound to the
// currently configured timeout pair.
func (b *BaseAdapter) httpClient() HTTPDoer {
	if b.injected != nil {
		return b.injected
	}
	if b.own == nil {
		b.own = &http.Client{
			Timeout: time.Duration(b.cfg.timeoutSeconds) * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: b.connectTimeout(),
				}).DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return b.own
}

// resolvedKey returns the literal api_key, or the vault-resolved value of
// api_key_identifier when no literal key is set.
func (b *BaseAdapter) resolvedKey() string {
	if b.cfg.apiKey != "" {
		return b.cfg.apiKey
	}
	if b.cfg.apiKeyIdentifier != "" && b.secrets != nil {
		return b.secrets.Resolve(b.cfg.apiKeyIdentifier)
	}
	return ""
}

// IsAvailable reports whether the adapter can attempt requests. Vendors that
// require no credential (self-hosted) are available once a base URL is set.
func (b *BaseAdapter) IsAvailable() bool {
	if b.cfg.baseURL == "" {
		return false
	}
	if !b.requiresAuth {
		return true
	}
	return b.resolvedKey() != ""
}

// SupportsFeature is a case-sensitive exact-match lookup against the fixed
// per-vendor capability set. Unknown names return false, never an error.
func (b *BaseAdapter) SupportsFeature(feature string) bool {
	return b.capabilities[feature]
}

// DefaultModel returns the configured default model, falling back to the
// vendor constant.
func (b *BaseAdapter) DefaultModel() string { return b.cfg.defaultModel }

func (b *BaseAdapter) ensureAvailable() error {
	if b.cfg.baseURL == "" {
		return NewConfigurationError(b.name, "base URL is not configured")
	}
	if b.requiresAuth && b.resolvedKey() == "" {
		return NewConfigurationError(b.name, "API key is not configured")
	}
	return nil
}

func (b *BaseAdapter) url(endpoint string) string {
	return strings.TrimSuffix(b.cfg.baseURL, "/") + "/" + strings.TrimPrefix(endpoint, "/")
}

func (b *BaseAdapter) newHTTPRequest(ctx context.Context, method, endpoint string, payload map[string]any, headers map[string]string) (*http.Request, error) {
	var body io.Reader
	// A JSON body is attached only for non-GET methods carrying a payload.
	if method != http.MethodGet && len(payload) > 0 {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, NewConfigurationError(b.name, fmt.Sprintf("encode request payload: %v", err))
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.url(endpoint), body)
	if err != nil {
		return nil, NewConfigurationError(b.name, fmt.Sprintf("build request: %v", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// request runs the retry loop used by every non-streaming call: transport
// failures and 5xx responses are retried up to maxRetries total attempts,
// 4xx responses fail immediately, and a 2xx body is decoded into a map.
// Top-level JSON arrays are wrapped under "data" so callers always get a map.
func (b *BaseAdapter) request(ctx context.Context, method, endpoint string, payload map[string]any, headers map[string]string) (map[string]any, error) {
	if err := b.ensureAvailable(); err != nil {
		return nil, err
	}

	var lastMsg string
	var lastErr error

	attempts := b.cfg.maxRetries
	for attempt := 1; attempt <= attempts; attempt++ {
		req, err := b.newHTTPRequest(ctx, method, endpoint, payload, headers)
		if err != nil {
			return nil, err
		}

		resp, err := b.httpClient().Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, NewProviderUnreachableError(b.name, attempt, ctx.Err().Error(), ctx.Err())
			}
			lastMsg, lastErr = err.Error(), err
			b.logger.Warn("request attempt failed",
				zap.String("provider", b.name),
				zap.Int("attempt", attempt),
				zap.String("error", lastMsg))
			if attempt < attempts && !b.sleep(ctx, attempt) {
				return nil, NewProviderUnreachableError(b.name, attempt, ctx.Err().Error(), ctx.Err())
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if readErr != nil {
				return nil, NewMalformedPayloadError(b.name, readErr)
			}
			decoded, err := DecodeJSONResponse(b.name, string(body))
			if err != nil {
				return nil, err
			}
			if m, ok := decoded.(map[string]any); ok {
				return m, nil
			}
			return map[string]any{"data": decoded}, nil

		case resp.StatusCode >= 500:
			lastMsg = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, extractErrorMessage(body))
			lastErr = nil
			b.logger.Warn("provider returned server error",
				zap.String("provider", b.name),
				zap.Int("attempt", attempt),
				zap.Int("status", resp.StatusCode))
			if attempt < attempts && !b.sleep(ctx, attempt) {
				return nil, NewProviderUnreachableError(b.name, attempt, ctx.Err().Error(), ctx.Err())
			}

		default: // 3xx/4xx: caller-side problem, never retried
			rejected := NewProviderRejectedError(b.name, resp.StatusCode, extractErrorMessage(body))
			rejected.Attempts = attempt
			return nil, rejected
		}
	}

	return nil, NewProviderUnreachableError(b.name, attempts, lastMsg, lastErr)
}

// streamRequest performs a single-attempt send and hands the raw response to
// the caller's stream decoder. Non-2xx statuses are classified the same way
// the retry loop classifies them.
func (b *BaseAdapter) streamRequest(ctx context.Context, method, endpoint string, payload map[string]any, headers map[string]string) (*http.Response, error) {
	if err := b.ensureAvailable(); err != nil {
		return nil, err
	}

	req, err := b.newHTTPRequest(ctx, method, endpoint, payload, headers)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := b.httpClient().Do(req)
	if err != nil {
		return nil, NewProviderUnreachableError(b.name, 1, err.Error(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		msg := extractErrorMessage(body)
		if resp.StatusCode >= 500 {
			return nil, NewProviderUnreachableError(b.name, 1, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, msg), nil)
		}
		return nil, NewProviderRejectedError(b.name, resp.StatusCode, msg)
	}

	return resp, nil
}

// sleep pauses for the backoff schedule, honoring cancellation. Reports false
// when the context ended first.
func (b *BaseAdapter) sleep(ctx context.Context, attempt int) bool {
	d := b.backoff(attempt)
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// extractErrorMessage applies the vendor error-message precedence:
// error.message when error is a map carrying a string message, then a
// top-level message, then a fixed fallback. An error map without a message
// field is never treated as a string.
func extractErrorMessage(body []byte) string {
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil || decoded == nil {
		return "Unknown provider error"
	}

	if errObj, ok := decoded["error"].(map[string]any); ok && len(errObj) > 0 {
		if msg, ok := errObj["message"].(string); ok && msg != "" {
			return msg
		}
	}
	if msg, ok := decoded["message"].(string); ok && msg != "" {
		return msg
	}
	return "Unknown provider error"
}

// buildUsage always recomputes the total as prompt+completion, never trusting
// a vendor-derived total.
func (b *BaseAdapter) buildUsage(prompt, completion int) Usage {
	return Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

// buildCompletionResponse stamps the owning vendor into metadata and defaults
// the finish reason to "stop" when the vendor supplied none.
func (b *BaseAdapter) buildCompletionResponse(content, model string, usage Usage, finishReason string) *CompletionResponse {
	if finishReason == "" {
		finishReason = "stop"
	}
	return &CompletionResponse{
		Content:      content,
		Model:        model,
		FinishReason: finishReason,
		Usage:        usage,
		Metadata:     map[string]any{"provider": b.name},
	}
}

func (b *BaseAdapter) buildEmbeddingResponse(vectors [][]float64, model string, usage Usage) *EmbeddingResponse {
	return &EmbeddingResponse{Vectors: vectors, Model: model, Usage: usage}
}

func (b *BaseAdapter) buildVisionResponse(description, model string, usage Usage) *VisionResponse {
	return &VisionResponse{Description: description, Model: model, Usage: usage}
}

// normalizeFinishReason maps vendor stop vocabularies onto the common enum
// (stop, length, content_filter, tool_calls); anything else passes through
// lowercased.
func normalizeFinishReason(reason string) string {
	switch strings.ToLower(reason) {
	case "", "stop", "end_turn", "stop_sequence":
		return "stop"
	case "length", "max_tokens":
		return "length"
	case "content_filter", "safety":
		return "content_filter"
	case "tool_calls", "tool_use", "function_call":
		return "tool_calls"
	default:
		return strings.ToLower(reason)
	}
}

// usageFromPayload reads the OpenAI-style usage object shared by several
// vendors.
func (b *BaseAdapter) usageFromPayload(payload map[string]any) Usage {
	usage := GetArray(payload, "usage", map[string]any{})
	return b.buildUsage(
		GetInt(usage, "prompt_tokens", 0),
		GetInt(usage, "completion_tokens", 0),
	)
}
