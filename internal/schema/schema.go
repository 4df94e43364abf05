// Package schema declares the HCL shapes of the module annotation syntax.
// These structs are decode targets only; the parser translates them into the
// format-agnostic model.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// ModuleBody is the content of a `module "name" { ... }` block.
type ModuleBody struct {
	// Public mirrors the `pub mod` requirement: modules must opt in to
	// being part of the build graph, and non-public modules are rejected.
	Public bool `hcl:"public"`

	// Use lists dependency references: "mod", "mod.outputs.NAME" or
	// "mod.outputs.*".
	Use []string `hcl:"use,optional"`

	// Requires lists the sandbox stdlib modules the config function may
	// import. The extern-crate analogue.
	Requires []string `hcl:"requires,optional"`

	// CapabilityParams is an object expression mapping capability name to
	// a list of static string parameters, e.g. { FILES = ["deploy.sh"] }.
	CapabilityParams hcl.Expression `hcl:"capability_params,optional"`

	// Config is the module's config function: a single function literal in
	// the sandbox scripting language.
	Config string `hcl:"config"`

	Input   *InputBlock   `hcl:"input,block"`
	Outputs *OutputsBlock `hcl:"outputs,block"`
}

// InputBlock declares a component's Input struct. Its presence is what
// classifies a module as a component.
type InputBlock struct {
	Fields []*InputField `hcl:"field,block"`
}

// InputField is one default-constructible field of an Input struct.
type InputField struct {
	Name string `hcl:"name,label"`

	// Default must be a static literal; it makes the Input
	// default-constructible without running any user code.
	Default hcl.Expression `hcl:"default"`
}

// OutputsBlock holds the module's declared outputs as plain attributes,
// name = default string literal.
type OutputsBlock struct {
	Body hcl.Body `hcl:",remain"`
}
