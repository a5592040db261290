package agents

import (
	"sort"
	"sync"
)

// Registry maps agent ids to the constructors that build them
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry constructs an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for an agent id.
func (r *Registry) Register(agentID string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[agentID] = f
}

// Get retrieves the factory for an agent id.
func (r *Registry) Get(agentID string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[agentID]
	return f, ok
}

// List returns registered agent ids in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]string, 0, len(r.factories))
	for id := range r.factories {
		res = append(res, id)
	}
	sort.Strings(res)
	return res
}
