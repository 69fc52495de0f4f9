package adapters

// Factory builds an unconfigured adapter bound to the given collaborators.
type Factory func(opts BaseOptions) ProviderAdapter

var (
	builtins    = make(map[string]Factory)
	defaultURLs = make(map[string]string)
)

// RegisterBuiltin registers a built-in vendor factory with its default base
// URL. Called from each vendor's init.
func RegisterBuiltin(name string, factory Factory, defaultURL string) {
	builtins[name] = factory
	defaultURLs[name] = defaultURL
}

// GetBuiltin returns the factory for a built-in vendor.
func GetBuiltin(name string) (Factory, bool) {
	factory, ok := builtins[name]
	return factory, ok
}

// ListBuiltins returns the names of all built-in vendors.
func ListBuiltins() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	return names
}

// DefaultURL returns the default base URL for a built-in vendor, or "".
func DefaultURL(name string) string {
	return defaultURLs[name]
}
