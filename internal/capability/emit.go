package capability

import (
	"github.com/d5/tengo/v2"

	"github.com/vk/modforge/internal/model"
)

// Emit collects generated code fragments. Fragments carry enough provenance
// (originating module, target scope) for the applicator to regenerate
// deterministically.
type Emit struct {
	ctx     *Context
	actions []model.Action
}

// NewEmit constructs the emit capability for one run.
func NewEmit(ctx *Context) *Emit {
	return &Emit{ctx: ctx}
}

// Name implements Capability.
func (e *Emit) Name() string { return "emit" }

func (e *Emit) record(scope model.EmitScope, fn string) tengo.CallableFunc {
	return func(args ...tengo.Object) (tengo.Object, error) {
		code, err := stringArg(args, 0, fn)
		if err != nil {
			return nil, err
		}
		e.actions = append(e.actions, model.Action{
			Kind:   model.ActionCodeEmit,
			Module: e.ctx.Current(),
			Code:   code,
			Scope:  scope,
		})
		return tengo.UndefinedValue, nil
	}
}

// Object implements Capability.
func (e *Emit) Object() tengo.Object {
	return &tengo.ImmutableMap{Value: map[string]tengo.Object{
		// append splices the fragment into the originating module's scope.
		"append": method("emit.append", e.record(model.EmitModuleScope, "emit.append")),
		// global adds the fragment as a new top-level item.
		"global": method("emit.global", e.record(model.EmitTopLevel, "emit.global")),
	}}
}

// Finalize implements Capability.
func (e *Emit) Finalize() []model.Action { return e.actions }
