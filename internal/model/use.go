package model

// EdgeKind distinguishes the two ways one module can reference another.
type EdgeKind int

const (
	// EdgeModule threads the target component's Input instance into the
	// source module's config function. The source is invoked first so the
	// target observes the populated input.
	EdgeModule EdgeKind = iota

	// EdgeOutput consumes one output (or, with Wildcard, all outputs) of
	// the target module. The target is invoked first so its outputs are
	// final before the source reads them.
	EdgeOutput
)

// UseRef is one entry of a module's use list, as declared in source.
// A bare module name is an EdgeModule reference; "mod.outputs.NAME" and
// "mod.outputs.*" are EdgeOutput references.
type UseRef struct {
	Module   string
	Kind     EdgeKind
	Output   string // set for EdgeOutput without wildcard
	Wildcard bool
}

// Edge is a resolved dependency edge between two modules in one scan set.
type Edge struct {
	From   string
	To     string
	Kind   EdgeKind
	Output string
	// Outputs holds the referenced output names with wildcards expanded at
	// graph-build time from the target's currently declared outputs. It may
	// be empty, and it drives what a consumer's snapshot contains.
	Outputs []string
}
