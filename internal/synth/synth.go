// Package synth generates the entry-point program for one execution plan.
//
// The output is source for the sandbox scripting language. Generation is a
// pure function of the plan: identical descriptors and ordering produce
// byte-identical source, which is what makes snapshot-testing of generated
// artifacts possible.
package synth

import (
	"fmt"
	"strings"

	"github.com/vk/modforge/internal/model"
)

// Synthesize emits the entry-point script for a plan. The script assumes
// one host-bound global per capability named in plan.Capabilities, plus the
// reserved dispatch binding; the executor binds those before compiling.
//
// Layout, in order: one mutable Input per component (default-constructed),
// one config function definition per invocation, then the invocation
// sequence itself. Before each invocation the executing module is recorded
// for attribution, and any output snapshots the module consumes are frozen.
func Synthesize(plan *model.Plan) string {
	var b strings.Builder

	fmt.Fprintf(&b, "// Code generated for runtime module %q. DO NOT EDIT.\n", plan.Runtime.Name)

	for _, inv := range plan.Invocations {
		m := inv.Module
		if m.Kind != model.KindComponent {
			continue
		}
		fmt.Fprintf(&b, "\n%s_input := %s", m.Name, inputLiteral(m))
	}

	for _, inv := range plan.Invocations {
		fmt.Fprintf(&b, "\n\n%s_config := %s", inv.Module.Name, inv.Module.ConfigSrc)
	}

	for _, inv := range plan.Invocations {
		m := inv.Module
		b.WriteString("\n")
		for _, snap := range inv.Snapshots {
			fmt.Fprintf(&b, "\n%s_%s_outputs := immutable(%s)", m.Name, snap.Module, snapshotLiteral(snap))
		}
		fmt.Fprintf(&b, "\n%s.set_current_module(%q)", model.DispatchName, m.Name)
		fmt.Fprintf(&b, "\n%s_config(%s)", m.Name, strings.Join(callArgs(m), ", "))
	}

	b.WriteString("\n")
	return b.String()
}

// snapshotLiteral renders one frozen output map: a read of exactly the
// output names the consumer referenced, taken at invocation time through
// the host dispatch binding.
func snapshotLiteral(snap model.Snapshot) string {
	if len(snap.Outputs) == 0 {
		return "{}"
	}
	parts := make([]string, len(snap.Outputs))
	for i, name := range snap.Outputs {
		parts[i] = fmt.Sprintf("%s: %s.output(%q, %q)", name, model.DispatchName, snap.Module, name)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// inputLiteral renders a component's default-constructed Input instance.
func inputLiteral(m *model.Descriptor) string {
	if len(m.Inputs) == 0 {
		return "{}"
	}
	parts := make([]string, len(m.Inputs))
	for i, f := range m.Inputs {
		parts[i] = fmt.Sprintf("%s: %s", f.Name, f.Default)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// callArgs maps a module's statically resolved parameter list onto the
// script variables declared by Synthesize.
func callArgs(m *model.Descriptor) []string {
	args := make([]string, len(m.Params))
	for i, p := range m.Params {
		switch p.Kind {
		case model.ParamSelfInput:
			args[i] = m.Name + "_input"
		case model.ParamCapability:
			args[i] = p.Target
		case model.ParamDependencyInput:
			args[i] = p.Target + "_input"
		case model.ParamOutputs:
			args[i] = m.Name + "_" + p.Target + "_outputs"
		}
	}
	return args
}
