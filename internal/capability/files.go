package capability

import (
	"github.com/d5/tengo/v2"

	"github.com/vk/modforge/internal/model"
)

// Files mediates file-append output. Every call is checked against the
// executing module's static FILES grant; a parameter outside the grant
// fails the call inside the sandbox and the append never happens.
type Files struct {
	ctx     *Context
	actions []model.Action
}

// NewFiles constructs the files capability for one run.
func NewFiles(ctx *Context) *Files {
	return &Files{ctx: ctx}
}

// Name implements Capability.
func (f *Files) Name() string { return "files" }

func (f *Files) append(unique bool) tengo.CallableFunc {
	fn := "files.append"
	if unique {
		fn = "files.append_unique"
	}
	return func(args ...tengo.Object) (tengo.Object, error) {
		name, err := stringArg(args, 0, fn)
		if err != nil {
			return nil, err
		}
		label, err := stringArg(args, 1, fn)
		if err != nil {
			return nil, err
		}
		line, err := stringArg(args, 2, fn)
		if err != nil {
			return nil, err
		}

		granted := f.ctx.Grant("files")
		if !grantedParam(granted, name) {
			return nil, f.ctx.Violate(&model.CapabilityViolation{
				Module:     f.ctx.Current(),
				Capability: "files",
				Param:      name,
				Granted:    granted,
			})
		}

		f.actions = append(f.actions, model.Action{
			Kind:   model.ActionFileAppend,
			Module: f.ctx.Current(),
			File:   name,
			Label:  label,
			Line:   line,
			Unique: unique,
		})
		return tengo.UndefinedValue, nil
	}
}

// Object implements Capability.
func (f *Files) Object() tengo.Object {
	return &tengo.ImmutableMap{Value: map[string]tengo.Object{
		"append":        method("files.append", f.append(false)),
		"append_unique": method("files.append_unique", f.append(true)),
	}}
}

// Finalize implements Capability.
func (f *Files) Finalize() []model.Action { return f.actions }

func grantedParam(granted []string, param string) bool {
	for _, g := range granted {
		if g == param {
			return true
		}
	}
	return false
}
