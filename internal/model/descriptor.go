package model

import (
	"github.com/hashicorp/hcl/v2"
)

// Kind classifies how a module participates in a build.
type Kind int

const (
	// KindRuntime is a module without an input block. It is a build entry
	// point: the engine synthesizes and executes one sandboxed program per
	// runtime module.
	KindRuntime Kind = iota

	// KindComponent is a module with an input block. It is only ever invoked
	// as a dependency of a runtime module, never standalone.
	KindComponent
)

// String returns the lowercase name used in logs and diagnostics.
func (k Kind) String() string {
	if k == KindComponent {
		return "component"
	}
	return "runtime"
}

// ParamKind classifies a single parameter of a module's config function.
type ParamKind int

const (
	// ParamSelfInput is the module's own Input instance. Only valid as the
	// first parameter of a component's config function.
	ParamSelfInput ParamKind = iota

	// ParamCapability is a shared capability instance (core, files, ...).
	ParamCapability

	// ParamDependencyInput is the Input instance of a used component module,
	// threaded in so a runtime module can populate it.
	ParamDependencyInput

	// ParamOutputs is a frozen snapshot of a used module's outputs, taken
	// immediately before the config function is invoked.
	ParamOutputs
)

// ConfigParam is one statically resolved parameter of a config function.
type ConfigParam struct {
	// Name is the parameter identifier as written in the config source.
	Name string

	Kind ParamKind

	// Target is the capability name for ParamCapability, or the used module
	// name for ParamDependencyInput and ParamOutputs. Empty for ParamSelfInput.
	Target string
}

// InputField is one declared field of a component's Input struct, with its
// default literal rendered as config-language source text.
type InputField struct {
	Name    string
	Default string
}

// OutputDecl is one declared output with its default literal value.
type OutputDecl struct {
	Name    string
	Default string
}

// CapabilityGrant scopes a module's access to one capability. Params are
// static string literals extracted at parse time; the sandbox rejects any
// capability call whose parameter falls outside this set.
type CapabilityGrant struct {
	Capability string
	Params     []string
}

// Descriptor is the validated shape of one declared module. It is rebuilt
// from source on every invocation; nothing here survives across builds.
type Descriptor struct {
	// Name is the module's label, unique within one scan set.
	Name string

	Kind Kind

	// Index is the discovery position across the whole scan (file order,
	// then in-file order). It is the tie-break for deterministic ordering.
	Index int

	// SrcFile and DefRange locate the module block in the user's source.
	// Every diagnostic for this module is anchored here, never to the
	// synthesized program.
	SrcFile  string
	DefRange hcl.Range

	// ConfigSrc is the verbatim config function literal.
	ConfigSrc string

	// Params is the statically resolved config function parameter list,
	// in declaration order.
	Params []ConfigParam

	// Inputs is the component's Input field list in declaration order.
	// Empty for runtime modules.
	Inputs []InputField

	// Outputs are the declared outputs with their default literals,
	// in declaration order.
	Outputs []OutputDecl

	// ResolvedOutputs holds the post-execution output values. Seeded from
	// defaults at plan time and updated by OutputSet actions.
	ResolvedOutputs map[string]string

	// Uses are the declared dependency references, in declaration order.
	Uses []UseRef

	// Grants are the declared capability grants, sorted by capability name.
	Grants []CapabilityGrant

	// Requires lists the sandbox stdlib modules the config may import.
	Requires []string
}

// Grant returns the granted parameter set for a capability, or nil when the
// module declares no grant for it.
func (d *Descriptor) Grant(capability string) []string {
	for _, g := range d.Grants {
		if g.Capability == capability {
			return g.Params
		}
	}
	return nil
}

// HasOutput reports whether the module declares an output with this name.
func (d *Descriptor) HasOutput(name string) bool {
	for _, o := range d.Outputs {
		if o.Name == name {
			return true
		}
	}
	return false
}
