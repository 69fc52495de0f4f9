package llmgate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/llmgate/llmgate/adapters"
)

// Factory builds an adapter from the registry's shared collaborators.
type Factory = adapters.Factory

// RegistryOptions carries the collaborators every created adapter shares.
type RegistryOptions struct {
	// Transport, when set, is injected into every adapter and used for all
	// its requests.
	Transport HTTPDoer

	// Secrets resolves api_key_identifier option values. Nil disables
	// identifier resolution.
	Secrets SecretResolver

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Registry resolves adapter types to factories and caches configured
// instances per provider record.
type Registry struct {
	opts   RegistryOptions
	logger *zap.Logger

	mu     sync.RWMutex
	custom map[string]Factory
	cache  map[int64]ProviderAdapter
}

func NewRegistry(opts RegistryOptions) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		opts:   opts,
		logger: logger,
		custom: make(map[string]Factory),
		cache:  make(map[int64]ProviderAdapter),
	}
}

// Register installs a custom factory under the given adapter type. Custom
// factories take precedence over built-in ones, so registering an existing
// type overrides it.
func (r *Registry) Register(adapterType string, factory Factory) error {
	if factory == nil {
		return adapters.NewInvalidAdapterTypeError(
			fmt.Sprintf("nil factory for adapter type %q", adapterType))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom[adapterType] = factory
	return nil
}

// HasAdapter reports whether an adapter type is registered, built-in or
// custom. Unknown types still resolve via the OpenAI-compatible fallback,
// so a false here does not mean creation would fail.
func (r *Registry) HasAdapter(adapterType string) bool {
	r.mu.RLock()
	_, custom := r.custom[adapterType]
	r.mu.RUnlock()
	if custom {
		return true
	}
	_, builtin := adapters.GetBuiltin(adapterType)
	return builtin
}

// RegisteredAdapters lists every known adapter type, built-in and custom,
// sorted and without duplicates.
func (r *Registry) RegisteredAdapters() []string {
	seen := make(map[string]bool)
	names := make([]string, 0)
	for _, name := range adapters.ListBuiltins() {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	r.mu.RLock()
	for name := range r.custom {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// resolve returns the factory for an adapter type. Unknown types fall back
// to an OpenAI-compatible adapter, since most gateways speak that dialect.
func (r *Registry) resolve(adapterType string) Factory {
	r.mu.RLock()
	factory, ok := r.custom[adapterType]
	r.mu.RUnlock()
	if ok {
		return factory
	}
	if factory, ok := adapters.GetBuiltin(adapterType); ok {
		return factory
	}

	r.logger.Warn("unknown adapter type, using OpenAI-compatible fallback",
		zap.String("adapter_type", adapterType))
	return func(opts adapters.BaseOptions) adapters.ProviderAdapter {
		return adapters.NewOpenAICompatible(adapterType, "", "", opts)
	}
}

func (r *Registry) baseOptions() adapters.BaseOptions {
	return adapters.BaseOptions{
		Transport: r.opts.Transport,
		Secrets:   r.opts.Secrets,
		Logger:    r.logger,
	}
}

// CreateAdapter builds and configures an adapter of the given type. The
// instance is not cached; use CreateAdapterFromRecord for cached instances.
func (r *Registry) CreateAdapter(adapterType string, options Options) (ProviderAdapter, error) {
	adapter := r.resolve(adapterType)(r.baseOptions())
	if adapter == nil {
		return nil, adapters.NewInvalidAdapterTypeError(
			fmt.Sprintf("factory for adapter type %q returned nil", adapterType))
	}
	adapter.Configure(options)
	return adapter, nil
}

// CreateAdapterFromRecord builds an adapter from a stored provider record.
// Instances are cached by record ID so repeated lookups reuse the configured
// adapter and its HTTP client. A zero ID is never cached, and bypassCache
// always constructs a fresh instance without touching the cache.
func (r *Registry) CreateAdapterFromRecord(record ProviderRecord, bypassCache bool) (ProviderAdapter, error) {
	if !bypassCache && record.ID != 0 {
		r.mu.RLock()
		cached, ok := r.cache[record.ID]
		r.mu.RUnlock()
		if ok {
			return cached, nil
		}
	}

	adapter, err := r.CreateAdapter(record.AdapterType, record.Options)
	if err != nil {
		return nil, err
	}

	if !bypassCache && record.ID != 0 {
		r.mu.Lock()
		r.cache[record.ID] = adapter
		r.mu.Unlock()
	}
	return adapter, nil
}

// ClearCache evicts the given record IDs, or everything when called with no
// arguments.
func (r *Registry) ClearCache(ids ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(ids) == 0 {
		r.cache = make(map[int64]ProviderAdapter)
		return
	}
	for _, id := range ids {
		delete(r.cache, id)
	}
}

// TestResult reports the outcome of a connectivity probe.
type TestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TestConnection probes a provider record with a minimal chat request. All
// failures, including panics out of misbehaving custom factories, are
// captured into the result rather than returned.
func (r *Registry) TestConnection(ctx context.Context, record ProviderRecord) (result TestResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = TestResult{Message: fmt.Sprintf("adapter panic: %v", rec)}
		}
	}()

	adapter, err := r.CreateAdapterFromRecord(record, true)
	if err != nil {
		return TestResult{Message: err.Error()}
	}
	if !adapter.IsAvailable() {
		return TestResult{Message: fmt.Sprintf("adapter %q is not configured", record.AdapterType)}
	}

	// Prefer the cheap catalog probe when the vendor has one.
	if lister, ok := adapter.(adapters.ModelLister); ok {
		if _, err := lister.ListModels(ctx); err != nil {
			return TestResult{Message: err.Error()}
		}
		return TestResult{Success: true, Message: "connection ok"}
	}

	_, err = adapter.ChatCompletion(ctx, &Request{
		Messages:  []Message{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	})
	if err != nil {
		return TestResult{Message: err.Error()}
	}
	return TestResult{Success: true, Message: "connection ok"}
}
