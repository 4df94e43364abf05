package model

// ActionKind tags the variants of a sandbox action.
type ActionKind int

const (
	// ActionError is a user-emitted compiler error (core.fail). Fatal to
	// the build, but it is the expected path for user-facing validation.
	ActionError ActionKind = iota

	// ActionWarning is a user-emitted compiler warning (core.warn).
	ActionWarning

	// ActionOutputSet records a module setting one of its declared outputs.
	ActionOutputSet

	// ActionCodeEmit is a generated code fragment, targeted at either the
	// originating module's scope or the top level.
	ActionCodeEmit

	// ActionFileAppend is a mediated file-append capability invocation.
	ActionFileAppend
)

// EmitScope says where a CodeEmit fragment is spliced.
type EmitScope int

const (
	// EmitModuleScope splices the fragment inside the originating module.
	EmitModuleScope EmitScope = iota

	// EmitTopLevel adds the fragment as a new top-level item.
	EmitTopLevel
)

// Action is one side effect produced by a sandboxed program, recorded by a
// capability instance and drained through its Finalize call. Actions live
// only until the result applicator has consumed them.
type Action struct {
	Kind ActionKind

	// Module attributes the action to the module whose config function was
	// executing when it was recorded.
	Module string

	// Message is the text of ActionError and ActionWarning.
	Message string

	// Name and Value carry ActionOutputSet payloads.
	Name  string
	Value string

	// Code and Scope carry ActionCodeEmit payloads.
	Code  string
	Scope EmitScope

	// File, Label, Line and Unique carry ActionFileAppend payloads. Lines
	// are materialized grouped by file, label groups sorted alphabetically,
	// lines kept in emission order within a label.
	File   string
	Label  string
	Line   string
	Unique bool
}

// Fatal reports whether this action halts downstream processing.
func (a Action) Fatal() bool {
	return a.Kind == ActionError
}
