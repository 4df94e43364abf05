// Package registry holds the capability factories available to one
// application instance. The engine never hard-codes the capability set:
// anything registered here becomes a valid config function parameter and a
// valid capability_params grant target.
package registry

import (
	"sort"

	"github.com/vk/modforge/internal/capability"
)

// Factory constructs a fresh capability instance for one execution plan.
// A new instance per plan is what guarantees no cross-build shared state.
type Factory func(ctx *capability.Context) capability.Capability

// Provider is the interface a capability package implements to be wired
// into an application instance.
type Provider interface {
	Register(r *Registry)
}

// Registry maps capability names to factories for a single application
// instance.
type Registry struct {
	factories map[string]Factory
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds a capability factory. Later registrations win, which lets
// tests swap a built-in for an instrumented fake.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Names returns the registered capability names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Instantiate builds fresh instances for the requested capability names.
// Unknown names were already rejected by the parser; they are skipped here.
func (r *Registry) Instantiate(ctx *capability.Context, names []string) []capability.Capability {
	var out []capability.Capability
	for _, name := range names {
		if f, ok := r.factories[name]; ok {
			out = append(out, f(ctx))
		}
	}
	return out
}
