// Package capability defines the privileged-operation contract between the
// engine and sandboxed programs, plus the built-in capability set.
//
// A capability is the only way a sandboxed program can affect the outside
// world. Each one exposes default-constructible state, methods invocable
// from inside the sandbox, and a Finalize call that drains the ordered
// actions it accumulated. Instances are constructed fresh per execution
// plan and shared by every invocation in that plan, so cumulative effects
// (multiple diagnostics, outputs from several modules) land in one place.
package capability

import (
	"fmt"

	"github.com/d5/tengo/v2"

	"github.com/vk/modforge/internal/model"
)

// Capability is the pluggable collaborator contract. The engine does not
// hard-code the number of capabilities; anything satisfying this interface
// can be registered.
type Capability interface {
	// Name is the identifier config functions use as a parameter name.
	Name() string

	// Object is the value bound into the sandboxed program. All methods it
	// exposes take statically-typed, serializable arguments.
	Object() tengo.Object

	// Finalize returns the ordered action list accumulated across the whole
	// execution pass. Called once, after the sandbox finishes.
	Finalize() []model.Action
}

// Context is the per-run state shared by every capability instance of one
// execution plan: which module is currently executing, that module's static
// grants, and the first capability violation if any. It is discarded when
// the pass ends; nothing is shared across independent builds.
type Context struct {
	current string
	modules map[string]*model.Descriptor

	violation *model.CapabilityViolation
}

// NewContext builds the run state for one plan.
func NewContext(plan *model.Plan) *Context {
	modules := map[string]*model.Descriptor{}
	for _, m := range plan.Modules() {
		modules[m.Name] = m
	}
	return &Context{modules: modules}
}

// SetCurrent records which module's config function is executing. Injected
// by the synthesizer before each invocation; action attribution and grant
// checks key off it.
func (c *Context) SetCurrent(name string) { c.current = name }

// Current returns the executing module's name.
func (c *Context) Current() string { return c.current }

// Module looks up a plan member by name.
func (c *Context) Module(name string) (*model.Descriptor, bool) {
	m, ok := c.modules[name]
	return m, ok
}

// Grant returns the executing module's granted parameter set for a
// capability; nil means nothing is granted.
func (c *Context) Grant(capability string) []string {
	if m, ok := c.modules[c.current]; ok {
		return m.Grant(capability)
	}
	return nil
}

// Violate records a capability violation and returns it as the error that
// fails the offending call inside the sandbox. Only the first violation is
// kept; it is fatal anyway.
func (c *Context) Violate(v *model.CapabilityViolation) error {
	if c.violation == nil {
		c.violation = v
	}
	return v
}

// Violation returns the recorded violation, or nil.
func (c *Context) Violation() *model.CapabilityViolation { return c.violation }

// method wraps a Go function as a named sandbox-callable object.
func method(name string, fn tengo.CallableFunc) tengo.Object {
	return &tengo.UserFunction{Name: name, Value: fn}
}

// stringArg extracts a required string argument.
func stringArg(args []tengo.Object, i int, fn string) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%s: missing argument %d", fn, i+1)
	}
	s, ok := tengo.ToString(args[i])
	if !ok {
		return "", fmt.Errorf("%s: argument %d must be a string", fn, i+1)
	}
	return s, nil
}
