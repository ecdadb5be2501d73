package providers

import (
	"fmt"
	"sort"
	"sync"
)

// Factory creates a new adapter from its configuration.
type Factory func(cfg Config) (Adapter, error)

// Registry manages provider factories and the adapters built from them.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	adapters  map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		adapters:  make(map[string]Adapter),
	}
}

// RegisterFactory registers a factory for a provider name.
// This should be called at startup for each supported provider.
func (r *Registry) RegisterFactory(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Register installs an already built adapter (tests, custom vendors).
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Build instantiates one adapter per registered factory. Providers absent
// from configs are still built with an empty Config so they report
// Configured() == false instead of being unknown.
func (r *Registry) Build(configs map[string]Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, factory := range r.factories {
		a, err := factory(configs[name])
		if err != nil {
			return fmt.Errorf("failed to create provider %s: %w", name, err)
		}
		r.adapters[name] = a
	}
	for name := range configs {
		if _, ok := r.factories[name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
		}
	}
	return nil
}

// Get returns a configured adapter.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	a, ok := r.adapters[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	if !a.Configured() {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, name)
	}
	return a, nil
}

// Configured returns the sorted names of the usable providers.
func (r *Registry) Configured() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name, a := range r.adapters {
		if a.Configured() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
