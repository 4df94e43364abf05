package graph

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/vk/modforge/internal/ctxlog"
	"github.com/vk/modforge/internal/model"
)

// Graph is the resolved dependency graph for one scan set.
type Graph struct {
	modules map[string]*model.Descriptor
	ordered []*model.Descriptor // discovery order
	edges   []model.Edge

	// succ maps a module to the modules that must execute after it,
	// with the edge direction already resolved per edge kind.
	succ map[string][]string
}

// Build resolves every use reference into edges. Modules whose references
// cannot be resolved are excluded from the graph and reported as validation
// errors; resolution failures never abort sibling modules.
func Build(ctx context.Context, modules []*model.Descriptor) (*Graph, []*model.ValidationError) {
	logger := ctxlog.FromContext(ctx)

	byName := make(map[string]*model.Descriptor, len(modules))
	for _, m := range modules {
		byName[m.Name] = m
	}

	var errs []*model.ValidationError
	g := &Graph{modules: map[string]*model.Descriptor{}, succ: map[string][]string{}}

	for _, m := range modules {
		edges, err := resolveUses(m, byName)
		if err != nil {
			logger.Debug("Build: module excluded from graph.", "module", m.Name, "detail", err.Detail)
			errs = append(errs, err)
			continue
		}
		g.modules[m.Name] = m
		g.ordered = append(g.ordered, m)
		g.edges = append(g.edges, edges...)
	}

	for _, e := range g.edges {
		// Skip edges whose endpoint was excluded by a resolution failure.
		if _, ok := g.modules[e.From]; !ok {
			continue
		}
		if _, ok := g.modules[e.To]; !ok {
			continue
		}
		switch e.Kind {
		case model.EdgeModule:
			g.succ[e.From] = append(g.succ[e.From], e.To)
		case model.EdgeOutput:
			g.succ[e.To] = append(g.succ[e.To], e.From)
		}
	}
	for name := range g.succ {
		succ := g.succ[name]
		sort.Slice(succ, func(i, j int) bool {
			return g.modules[succ[i]].Index < g.modules[succ[j]].Index
		})
		g.succ[name] = succ
	}

	logger.Debug("Build: graph resolved.", "modules", len(g.ordered), "edges", len(g.edges))
	return g, errs
}

// resolveUses turns one module's use list into edges, expanding wildcard
// output references against the target's currently declared outputs.
// Wildcards are re-evaluated on every build; an empty expansion is valid.
func resolveUses(m *model.Descriptor, byName map[string]*model.Descriptor) ([]model.Edge, *model.ValidationError) {
	fail := func(format string, args ...any) *model.ValidationError {
		return &model.ValidationError{
			Module:  m.Name,
			Subject: m.DefRange,
			Detail:  fmt.Sprintf(format, args...),
		}
	}

	var edges []model.Edge
	for _, use := range m.Uses {
		target, ok := byName[use.Module]
		if !ok {
			return nil, fail("use %q: no such module in this scan", use.Module)
		}
		if target.Name == m.Name {
			return nil, fail("use %q: a module cannot depend on itself", use.Module)
		}
		if target.Kind != model.KindComponent {
			return nil, fail("use %q: runtime modules cannot be depended on", use.Module)
		}

		edge := model.Edge{From: m.Name, To: target.Name, Kind: use.Kind}
		if use.Kind == model.EdgeOutput {
			if use.Wildcard {
				for _, out := range target.Outputs {
					edge.Outputs = append(edge.Outputs, out.Name)
				}
			} else {
				if !target.HasOutput(use.Output) {
					return nil, fail("use %q: module %q declares no output %q", useString(use), use.Module, use.Output)
				}
				edge.Output = use.Output
				edge.Outputs = []string{use.Output}
			}
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

// TopoOrder returns every module of the graph in execution order, or a
// CycleError naming the exact loop. The tie-break between unconstrained
// nodes is discovery order.
func (g *Graph) TopoOrder() ([]*model.Descriptor, error) {
	indegree := map[string]int{}
	for _, m := range g.ordered {
		indegree[m.Name] = 0
	}
	for _, succ := range g.succ {
		for _, to := range succ {
			indegree[to]++
		}
	}

	remaining := append([]*model.Descriptor(nil), g.ordered...)
	var order []*model.Descriptor
	for len(remaining) > 0 {
		picked := -1
		for i, m := range remaining {
			if indegree[m.Name] == 0 {
				picked = i
				break
			}
		}
		if picked < 0 {
			return nil, &model.CycleError{Cycle: g.findCycle(remaining)}
		}
		m := remaining[picked]
		remaining = append(remaining[:picked], remaining[picked+1:]...)
		order = append(order, m)
		for _, to := range g.succ[m.Name] {
			indegree[to]--
		}
	}
	return order, nil
}

// findCycle locates one loop among the stuck nodes via DFS, starting from
// the lowest discovery index so the reported cycle is stable across runs.
func (g *Graph) findCycle(stuck []*model.Descriptor) []string {
	inStuck := map[string]bool{}
	for _, m := range stuck {
		inStuck[m.Name] = true
	}

	var (
		path    []string
		onPath  = map[string]bool{}
		visited = map[string]bool{}
		cycle   []string
	)
	var visit func(name string) bool
	visit = func(name string) bool {
		path = append(path, name)
		onPath[name] = true
		for _, next := range g.succ[name] {
			if !inStuck[next] {
				continue
			}
			if onPath[next] {
				start := 0
				for i, n := range path {
					if n == next {
						start = i
						break
					}
				}
				cycle = append([]string(nil), path[start:]...)
				return true
			}
			if !visited[next] && visit(next) {
				return true
			}
		}
		path = path[:len(path)-1]
		onPath[name] = false
		visited[name] = true
		return false
	}

	for _, m := range stuck {
		if visit(m.Name) {
			return cycle
		}
	}
	return nil
}

// Plans computes one execution plan per runtime module, in discovery order.
// Each plan contains the runtime module plus every module transitively
// referenced by it, sequenced by the global topological order.
func (g *Graph) Plans(ctx context.Context) ([]*model.Plan, error) {
	logger := ctxlog.FromContext(ctx)

	order, err := g.TopoOrder()
	if err != nil {
		return nil, err
	}
	position := map[string]int{}
	for i, m := range order {
		position[m.Name] = i
	}

	uses := map[string][]model.Edge{}
	for _, e := range g.edges {
		uses[e.From] = append(uses[e.From], e)
	}

	var plans []*model.Plan
	for _, runtime := range g.ordered {
		if runtime.Kind != model.KindRuntime {
			continue
		}

		members := g.reachable(runtime.Name, uses)
		sort.Slice(members, func(i, j int) bool {
			return position[members[i].Name] < position[members[j].Name]
		})

		plan := &model.Plan{Runtime: runtime}
		capSet := map[string]bool{"core": true}
		reqSet := map[string]bool{}
		for _, m := range members {
			inv := model.Invocation{Module: m}
			snapIdx := map[string]int{}
			for _, e := range uses[m.Name] {
				if e.Kind != model.EdgeOutput {
					continue
				}
				i, ok := snapIdx[e.To]
				if !ok {
					i = len(inv.Snapshots)
					snapIdx[e.To] = i
					inv.Snapshots = append(inv.Snapshots, model.Snapshot{Module: e.To})
				}
				// Union of every output name this consumer referenced,
				// wildcards already expanded by resolveUses.
				for _, name := range e.Outputs {
					if !slices.Contains(inv.Snapshots[i].Outputs, name) {
						inv.Snapshots[i].Outputs = append(inv.Snapshots[i].Outputs, name)
					}
				}
			}
			plan.Invocations = append(plan.Invocations, inv)

			for _, p := range m.Params {
				if p.Kind == model.ParamCapability {
					capSet[p.Target] = true
				}
			}
			for _, r := range m.Requires {
				reqSet[r] = true
			}
		}
		plan.Capabilities = sortedKeys(capSet)
		plan.Requires = sortedKeys(reqSet)
		plans = append(plans, plan)
	}

	logger.Debug("Plans: computed.", "count", len(plans))
	return plans, nil
}

// reachable collects the runtime module and everything it transitively uses.
func (g *Graph) reachable(root string, uses map[string][]model.Edge) []*model.Descriptor {
	seen := map[string]bool{root: true}
	queue := []string{root}
	var members []*model.Descriptor
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		members = append(members, g.modules[name])
		for _, e := range uses[name] {
			if !seen[e.To] {
				seen[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	return members
}

// Module returns a descriptor by name.
func (g *Graph) Module(name string) (*model.Descriptor, bool) {
	m, ok := g.modules[name]
	return m, ok
}

// Modules returns every graph member in discovery order.
func (g *Graph) Modules() []*model.Descriptor {
	return g.ordered
}

func useString(use model.UseRef) string {
	if use.Kind == model.EdgeModule {
		return use.Module
	}
	if use.Wildcard {
		return use.Module + ".outputs.*"
	}
	return use.Module + ".outputs." + use.Output
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
