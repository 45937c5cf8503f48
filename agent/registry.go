package agent

import (
	"sort"
	"sync"

	"github.com/taskmesh/taskmesh/core"
)

// Factory constructs a fresh agent instance. Registries store factories
// rather than instances so every run gets its own agent values.
type Factory func() core.Agent

// Registry maps agent identifiers to factories and their descriptors. It is
// safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	factories   map[string]Factory
	descriptors map[string]core.AgentDescriptor
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories:   make(map[string]Factory),
		descriptors: make(map[string]core.AgentDescriptor),
	}
}

// Register binds id to a factory, replacing any previous binding.
func (r *Registry) Register(id string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = factory
	if _, ok := r.descriptors[id]; !ok {
		r.descriptors[id] = core.AgentDescriptor{ID: id}
	}
}

// RegisterWithDescriptor binds id to a factory together with the descriptor
// planners use for capability matching and catalog prompts.
func (r *Registry) RegisterWithDescriptor(desc core.AgentDescriptor, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[desc.ID] = factory
	r.descriptors[desc.ID] = desc
}

// Describe registers or replaces the descriptor for id without touching the
// factory binding.
func (r *Registry) Describe(desc core.AgentDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptors[desc.ID] = desc
}

// New instantiates a fresh agent for id. The second return is false when the
// id is unknown.
func (r *Registry) New(id string) (core.Agent, bool) {
	r.mu.RLock()
	factory, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return factory(), true
}

// Has reports whether id has a registered factory.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[id]
	return ok
}

// IDs returns the registered agent identifiers in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Descriptor returns the descriptor registered for id.
func (r *Registry) Descriptor(id string) (core.AgentDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.descriptors[id]
	return desc, ok
}

// Descriptors returns every registered descriptor, sorted by agent id. The
// result is the catalog planners embed in advisory prompts.
func (r *Registry) Descriptors() []core.AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.AgentDescriptor, 0, len(r.descriptors))
	for _, desc := range r.descriptors {
		out = append(out, desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByCapability returns the ids of agents whose descriptor advertises the
// given capability, sorted.
func (r *Registry) ByCapability(capability string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, desc := range r.descriptors {
		if desc.HasCapability(capability) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Validate fails fast when any of the given agent ids lacks a factory.
// Executors call it before dispatching the first step so a misconfigured
// plan is rejected before any agent runs.
func (r *Registry) Validate(ids []string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range ids {
		if _, ok := r.factories[id]; !ok {
			return &core.ValidationError{Field: "agent_id", Reason: "no factory registered for " + id}
		}
	}
	return nil
}
