package adapter

import (
	"fmt"
	"sync"
)

// Builder constructs an adapter on first use of its key.
type Builder func() (Adapter, error)

// Registry resolves a source-type key ("scraped", a future "licensed") to
// a lazily created, memoized adapter. It is an explicit object owned by
// the composition root rather than a package global, so tests can build
// fresh registries and Reset between cases.
type Registry struct {
	mu        sync.Mutex
	builders  map[string]Builder
	instances map[string]Adapter
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		builders:  make(map[string]Builder),
		instances: make(map[string]Adapter),
	}
}

// Register binds key to a builder. Re-registering a key replaces the
// builder but keeps any existing instance until Reset.
func (r *Registry) Register(key string, builder Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[key] = builder
}

// Get returns the memoized adapter for key, creating it on first use.
func (r *Registry) Get(key string) (Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if instance, ok := r.instances[key]; ok {
		return instance, nil
	}
	builder, ok := r.builders[key]
	if !ok {
		return nil, fmt.Errorf("unknown source type %q", key)
	}
	instance, err := builder()
	if err != nil {
		return nil, fmt.Errorf("build %q adapter: %w", key, err)
	}
	r.instances[key] = instance
	return instance, nil
}

// Keys lists the registered source types.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.builders))
	for k := range r.builders {
		keys = append(keys, k)
	}
	return keys
}

// Reset drops every memoized instance. Reserved for test harnesses.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = make(map[string]Adapter)
}
