package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ProviderFactory creates a new provider instance
type ProviderFactory func(cfg *Config) (Provider, error)

// Registry manages available providers, keyed by reference scheme
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

var defaultRegistry = NewRegistry()

// Register adds a provider factory for scheme to the default registry
func Register(scheme string, factory ProviderFactory) {
	defaultRegistry.Register(scheme, factory)
}

// GetProvider creates a provider for scheme from the default registry
func GetProvider(scheme string, cfg *Config) (Provider, error) {
	return defaultRegistry.GetProvider(scheme, cfg)
}

// ListProviders returns the schemes registered in the default registry
func ListProviders() []string {
	return defaultRegistry.ListProviders()
}

// IsRegistered checks if a scheme is registered in the default registry
func IsRegistered(scheme string) bool {
	return defaultRegistry.IsRegistered(scheme)
}

// Register adds a provider factory for scheme
func (r *Registry) Register(scheme string, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[scheme] = factory
}

// GetProvider creates a provider instance for scheme
func (r *Registry) GetProvider(scheme string, cfg *Config) (Provider, error) {
	r.mu.RLock()
	factory, exists := r.factories[scheme]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("no provider for scheme: %s", scheme)
	}

	return factory(cfg)
}

// ListProviders returns all registered schemes
func (r *Registry) ListProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a scheme is registered
func (r *Registry) IsRegistered(scheme string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[scheme]
	return exists
}

// Resolver turns secret references into values, creating each provider
// once on first use
type Resolver struct {
	registry *Registry
	configs  map[string]*Config

	mu        sync.Mutex
	providers map[string]Provider
}

// NewResolver creates a Resolver over registry. configs holds the settings
// per scheme; schemes without an entry get a nil config.
func NewResolver(registry *Registry, configs map[string]*Config) *Resolver {
	if registry == nil {
		registry = defaultRegistry
	}
	return &Resolver{
		registry:  registry,
		configs:   configs,
		providers: make(map[string]Provider),
	}
}

// Resolve returns the secret value s refers to, or s itself when it is a
// literal
func (r *Resolver) Resolve(ctx context.Context, s string) ([]byte, error) {
	ref := ParseReference(s)
	if ref.IsLiteral() {
		return []byte(s), nil
	}

	p, err := r.provider(ref.Scheme)
	if err != nil {
		return nil, err
	}

	value, err := p.GetSecret(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s reference: %w", ref.Scheme, err)
	}
	return value, nil
}

func (r *Resolver) provider(scheme string) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[scheme]; ok {
		return p, nil
	}
	p, err := r.registry.GetProvider(scheme, r.configs[scheme])
	if err != nil {
		return nil, err
	}
	r.providers[scheme] = p
	return p, nil
}
