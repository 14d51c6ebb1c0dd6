package store

import (
	"fmt"
	"sort"
	"sync"
)

// Factory is a function that creates a new Store instance.
type Factory func() Store

// Registry manages registered store adapter plugins. Adapters register
// themselves at init time; callers look them up by name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

var globalRegistry = &Registry{
	factories: make(map[string]Factory),
}

// Register adds a store factory to the global registry. Typically called
// from adapter init() functions. The name should be lowercase.
func Register(name string, factory Factory) {
	globalRegistry.Register(name, factory)
}

// List returns the names of all registered adapters.
func List() []string {
	return globalRegistry.List()
}

// New creates a new instance of the named adapter.
func New(name string) (Store, error) {
	return globalRegistry.New(name)
}

// Register adds a store factory to this registry.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// List returns the names of all registered adapters, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates a new instance of the named adapter.
func (r *Registry) New(name string) (Store, error) {
	r.mu.RLock()
	factory := r.factories[name]
	r.mu.RUnlock()

	if factory == nil {
		return nil, fmt.Errorf("unknown store %q (available: %v)", name, r.List())
	}
	return factory(), nil
}

// IsRegistered checks if an adapter with the given name is registered.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Clear removes all registered adapters. Used primarily for testing.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = make(map[string]Factory)
}
