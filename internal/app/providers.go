package app

import (
	"github.com/vk/modforge/internal/capability"
	"github.com/vk/modforge/internal/registry"
)

// coreProvider registers the always-present core capability.
type coreProvider struct{}

func (coreProvider) Register(r *registry.Registry) {
	r.Register("core", func(ctx *capability.Context) capability.Capability {
		return capability.NewCore(ctx)
	})
}

// filesProvider registers the grant-gated file append capability.
type filesProvider struct{}

func (filesProvider) Register(r *registry.Registry) {
	r.Register("files", func(ctx *capability.Context) capability.Capability {
		return capability.NewFiles(ctx)
	})
}

// emitProvider registers code fragment emission.
type emitProvider struct{}

func (emitProvider) Register(r *registry.Registry) {
	r.Register("emit", func(ctx *capability.Context) capability.Capability {
		return capability.NewEmit(ctx)
	})
}

// kvProvider registers the read-only key/value store, closing over the
// values supplied at startup so every plan sees the same snapshot.
type kvProvider struct {
	values map[string]string
}

func (p kvProvider) Register(r *registry.Registry) {
	r.Register("kv", func(_ *capability.Context) capability.Capability {
		return capability.NewKV(p.values)
	})
}

// defaultProviders is the definitive list of capabilities compiled into the
// modforge binary.
func defaultProviders(kvValues map[string]string) []registry.Provider {
	return []registry.Provider{
		coreProvider{},
		filesProvider{},
		emitProvider{},
		kvProvider{values: kvValues},
	}
}
