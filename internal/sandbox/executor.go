// Package sandbox compiles synthesized entry-point programs to bytecode and
// executes them in an isolated VM.
//
// The VM has no ambient authority: no filesystem, no network, no
// environment. Its entire import surface is the pure stdlib modules the
// plan's modules declared in requires, and its only host surface is the
// capability objects bound before compilation. Every side effect is an
// action accumulated inside a capability and drained after the run.
package sandbox

import (
	"context"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/pkg/errors"

	"github.com/vk/modforge/internal/capability"
	"github.com/vk/modforge/internal/ctxlog"
	"github.com/vk/modforge/internal/model"
	"github.com/vk/modforge/internal/registry"
)

// maxAllocs bounds object allocations per program so a runaway config
// function traps instead of exhausting the host.
const maxAllocs = 10_000_000

// State tracks a program through its lifecycle:
// Compiling -> Compiled -> Running -> Finished, or Compiling ->
// CompileFailed, or Running -> Trapped.
type State int

const (
	StateCompiling State = iota
	StateCompiled
	StateRunning
	StateFinished
	StateCompileFailed
	StateTrapped
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case StateCompiling:
		return "compiling"
	case StateCompiled:
		return "compiled"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateCompileFailed:
		return "compile_failed"
	default:
		return "trapped"
	}
}

// Result is the outcome of one sandboxed program.
type Result struct {
	Runtime string
	State   State

	// Actions is the ordered sequence drained from every capability's
	// Finalize call. Populated even when the run faulted, so diagnostics
	// collected before the failure point still surface.
	Actions []model.Action

	compiled *tengo.Compiled
}

// Global returns the final value of a top-level program variable, or nil if
// the program never compiled. Component inputs live in the program as
// `<module>_input`, so this is the post-run observation point for them.
func (r *Result) Global(name string) interface{} {
	if r.compiled == nil {
		return nil
	}
	v := r.compiled.Get(name)
	if v == nil {
		return nil
	}
	return v.Value()
}

// Executor runs execution plans in fresh sandboxes.
type Executor struct {
	registry *registry.Registry
}

// New creates an executor backed by the given capability registry.
func New(reg *registry.Registry) *Executor {
	return &Executor{registry: reg}
}

// Execute compiles and runs one plan's synthesized source. Capability
// instances are constructed fresh for this call; nothing is shared with
// any other plan or any other build.
func (e *Executor) Execute(ctx context.Context, plan *model.Plan, source string) (*Result, error) {
	logger := ctxlog.FromContext(ctx).With("runtime", plan.Runtime.Name)

	capCtx := capability.NewContext(plan)
	instances := e.registry.Instantiate(capCtx, plan.Capabilities)

	result := &Result{Runtime: plan.Runtime.Name, State: StateCompiling}
	finalize := func() {
		for _, inst := range instances {
			result.Actions = append(result.Actions, inst.Finalize()...)
		}
	}

	script := tengo.NewScript([]byte(source))
	script.SetImports(stdlib.GetModuleMap(plan.Requires...))
	script.SetMaxAllocs(maxAllocs)
	for _, inst := range instances {
		if core, ok := inst.(*capability.Core); ok {
			core.SeedOutputs(plan)
			// The dispatch binding lives under a reserved name that never
			// appears in a validated config source, so only synthesized
			// bookkeeping code can reach it.
			if err := script.Add(model.DispatchName, core.Dispatch()); err != nil {
				return result, errors.Wrap(err, "binding dispatch")
			}
		}
		if err := script.Add(inst.Name(), inst.Object()); err != nil {
			return result, errors.Wrapf(err, "binding capability %q", inst.Name())
		}
	}

	logger.Debug("Execute: compiling synthesized program.", "bytes", len(source))
	compiled, err := script.Compile()
	if err != nil {
		result.State = StateCompileFailed
		return result, &model.CompileError{Runtime: plan.Runtime.Name, Err: err}
	}
	result.State = StateCompiled
	result.compiled = compiled

	logger.Debug("Execute: running sandbox.")
	result.State = StateRunning
	if err := compiled.RunContext(ctx); err != nil {
		result.State = StateTrapped
		finalize()
		// A failed capability call surfaces as a VM abort; report it as
		// the violation it is, never as a generic trap.
		if v := capCtx.Violation(); v != nil {
			logger.Debug("Execute: capability violation.", "capability", v.Capability, "module", v.Module)
			return result, v
		}
		return result, &model.Trap{Runtime: plan.Runtime.Name, Err: err}
	}

	result.State = StateFinished
	finalize()
	logger.Debug("Execute: finished.", "actions", len(result.Actions))
	return result, nil
}
