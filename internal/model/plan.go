package model

// Snapshot names the outputs of one provider module that must be frozen
// for a consumer. Outputs holds exactly the names the consumer referenced,
// with wildcard references already expanded at graph-build time.
type Snapshot struct {
	Module  string
	Outputs []string
}

// Invocation is one config function call within an execution plan.
type Invocation struct {
	Module *Descriptor

	// Snapshots lists the output sets to freeze immediately before this
	// invocation, in deterministic (use declaration) order.
	Snapshots []Snapshot
}

// Plan is the topologically sorted execution plan for one runtime module.
// It is ephemeral: recomputed per build, discarded after the result
// applicator runs.
type Plan struct {
	// Runtime is the entry-point module.
	Runtime *Descriptor

	// Invocations holds every config call in execution order. A module whose
	// input is threaded by a dependent runs after that dependent; a module
	// whose outputs are consumed runs before its consumer.
	Invocations []Invocation

	// Capabilities is the sorted set of capability names referenced by any
	// invocation in the plan. One instance per name is constructed for the
	// whole plan and shared across invocations.
	Capabilities []string

	// Requires is the sorted union of sandbox stdlib imports declared by
	// the plan's modules.
	Requires []string
}

// Modules returns the descriptors in invocation order.
func (p *Plan) Modules() []*Descriptor {
	out := make([]*Descriptor, len(p.Invocations))
	for i, inv := range p.Invocations {
		out[i] = inv.Module
	}
	return out
}
