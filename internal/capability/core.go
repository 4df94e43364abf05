package capability

import (
	"fmt"

	"github.com/d5/tengo/v2"

	"github.com/vk/modforge/internal/model"
)

// Core is the always-present capability. Everything here is
// library-approved: emitting diagnostics and publishing declared outputs
// needs no user review, so core requires no grant.
type Core struct {
	ctx     *Context
	actions []model.Action

	// outputs holds the live output values per module, seeded from the
	// declared defaults before execution starts.
	outputs map[string]map[string]string
}

// NewCore constructs the core capability for one run.
func NewCore(ctx *Context) *Core {
	return &Core{ctx: ctx, outputs: map[string]map[string]string{}}
}

// Name implements Capability.
func (c *Core) Name() string { return "core" }

// SeedOutputs installs the declared default value of every output in the
// plan. Defaults are re-evaluated per build, so upstream declaration
// changes are always picked up.
func (c *Core) SeedOutputs(plan *model.Plan) {
	for _, m := range plan.Modules() {
		vals := map[string]string{}
		for _, out := range m.Outputs {
			vals[out.Name] = out.Default
		}
		c.outputs[m.Name] = vals
	}
}

// Snapshot returns a frozen copy of a module's outputs as they stand right
// now; later set_output calls do not leak into an already-taken snapshot.
func (c *Core) Snapshot(module string) map[string]string {
	frozen := map[string]string{}
	for k, v := range c.outputs[module] {
		frozen[k] = v
	}
	return frozen
}

// Object implements Capability.
func (c *Core) Object() tengo.Object {
	return &tengo.ImmutableMap{Value: map[string]tengo.Object{
		// The user-facing fatal diagnostic is named fail because error is a
		// reserved word in the sandbox language.
		"fail": method("core.fail", func(args ...tengo.Object) (tengo.Object, error) {
			msg, err := stringArg(args, 0, "core.fail")
			if err != nil {
				return nil, err
			}
			c.actions = append(c.actions, model.Action{
				Kind:    model.ActionError,
				Module:  c.ctx.Current(),
				Message: msg,
			})
			return tengo.UndefinedValue, nil
		}),
		"warn": method("core.warn", func(args ...tengo.Object) (tengo.Object, error) {
			msg, err := stringArg(args, 0, "core.warn")
			if err != nil {
				return nil, err
			}
			c.actions = append(c.actions, model.Action{
				Kind:    model.ActionWarning,
				Module:  c.ctx.Current(),
				Message: msg,
			})
			return tengo.UndefinedValue, nil
		}),
		"set_output": method("core.set_output", func(args ...tengo.Object) (tengo.Object, error) {
			name, err := stringArg(args, 0, "core.set_output")
			if err != nil {
				return nil, err
			}
			value, err := stringArg(args, 1, "core.set_output")
			if err != nil {
				return nil, err
			}
			module := c.ctx.Current()
			desc, ok := c.ctx.Module(module)
			if !ok || !desc.HasOutput(name) {
				return nil, fmt.Errorf("core.set_output: module %q declares no output %q", module, name)
			}
			c.outputs[module][name] = value
			c.actions = append(c.actions, model.Action{
				Kind:   model.ActionOutputSet,
				Module: module,
				Name:   name,
				Value:  value,
			})
			return tengo.UndefinedValue, nil
		}),
	}}
}

// Dispatch returns the host-only bookkeeping object the synthesizer drives.
// The executor binds it under model.DispatchName, a reserved identifier the
// parser refuses in config sources, so user code can neither receive it as
// a parameter nor name it. Attribution and snapshot reads therefore cannot
// be forged from inside the sandbox.
func (c *Core) Dispatch() tengo.Object {
	return &tengo.ImmutableMap{Value: map[string]tengo.Object{
		// set_current_module keys attribution for every capability.
		"set_current_module": method("set_current_module", func(args ...tengo.Object) (tengo.Object, error) {
			name, err := stringArg(args, 0, "set_current_module")
			if err != nil {
				return nil, err
			}
			c.ctx.SetCurrent(name)
			return tengo.UndefinedValue, nil
		}),
		// output reads one live output value; the synthesizer assembles the
		// reads a consumer declared into an immutable snapshot map.
		"output": method("output", func(args ...tengo.Object) (tengo.Object, error) {
			module, err := stringArg(args, 0, "output")
			if err != nil {
				return nil, err
			}
			name, err := stringArg(args, 1, "output")
			if err != nil {
				return nil, err
			}
			return &tengo.String{Value: c.outputs[module][name]}, nil
		}),
	}}
}

// Finalize implements Capability.
func (c *Core) Finalize() []model.Action { return c.actions }
