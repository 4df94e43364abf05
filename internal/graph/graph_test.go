package graph

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/modforge/internal/model"
)

func component(name string, index int, outputs ...string) *model.Descriptor {
	d := &model.Descriptor{
		Name:   name,
		Kind:   model.KindComponent,
		Index:  index,
		Inputs: []model.InputField{{Name: "value", Default: `""`}},
	}
	for _, out := range outputs {
		d.Outputs = append(d.Outputs, model.OutputDecl{Name: out, Default: ""})
	}
	return d
}

func runtime(name string, index int, uses ...model.UseRef) *model.Descriptor {
	return &model.Descriptor{
		Name:  name,
		Kind:  model.KindRuntime,
		Index: index,
		Uses:  uses,
	}
}

func names(descs []*model.Descriptor) []string {
	out := make([]string, len(descs))
	for i, d := range descs {
		out[i] = d.Name
	}
	return out
}

func TestTopoOrder_ModuleEdgeRunsDependentFirst(t *testing.T) {
	t.Parallel()

	// main threads widget's input, so main must run before widget.
	widget := component("widget", 0)
	main := runtime("main", 1, model.UseRef{Module: "widget", Kind: model.EdgeModule})

	g, errs := Build(context.Background(), []*model.Descriptor{widget, main})
	require.Empty(t, errs)

	order, err := g.TopoOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "widget"}, names(order))
}

func TestTopoOrder_OutputEdgeRunsProviderFirst(t *testing.T) {
	t.Parallel()

	// main reads widget's outputs, so widget must run before main.
	widget := component("widget", 0, "rendered")
	main := runtime("main", 1, model.UseRef{Module: "widget", Kind: model.EdgeOutput, Output: "rendered"})

	g, errs := Build(context.Background(), []*model.Descriptor{widget, main})
	require.Empty(t, errs)

	order, err := g.TopoOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"widget", "main"}, names(order))
}

func TestTopoOrder_Deterministic(t *testing.T) {
	t.Parallel()

	build := func() []string {
		a := component("a", 0, "x")
		b := component("b", 1, "y")
		c := component("c", 2, "z")
		main := runtime("main", 3,
			model.UseRef{Module: "c", Kind: model.EdgeOutput, Output: "z"},
			model.UseRef{Module: "a", Kind: model.EdgeOutput, Output: "x"},
			model.UseRef{Module: "b", Kind: model.EdgeOutput, Output: "y"},
		)
		g, errs := Build(context.Background(), []*model.Descriptor{a, b, c, main})
		require.Empty(t, errs)
		order, err := g.TopoOrder()
		require.NoError(t, err)
		return names(order)
	}

	first := build()
	for i := 0; i < 5; i++ {
		require.Empty(t, cmp.Diff(first, build()), "order must be identical across runs")
	}
	// Unconstrained nodes fall back to discovery order.
	assert.Equal(t, []string{"a", "b", "c", "main"}, first)
}

func TestTopoOrder_CycleNamesExactLoop(t *testing.T) {
	t.Parallel()

	// a reads b's output and b reads a's output.
	a := component("a", 0, "x")
	a.Uses = []model.UseRef{{Module: "b", Kind: model.EdgeOutput, Output: "y"}}
	b := component("b", 1, "y")
	b.Uses = []model.UseRef{{Module: "a", Kind: model.EdgeOutput, Output: "x"}}

	g, errs := Build(context.Background(), []*model.Descriptor{a, b})
	require.Empty(t, errs)

	_, err := g.TopoOrder()
	require.Error(t, err)

	cycleErr, ok := err.(*model.CycleError)
	require.True(t, ok, "expected a CycleError, got %T", err)
	assert.Equal(t, []string{"a", "b"}, cycleErr.Cycle)

	// The report is stable across repeated attempts.
	_, err2 := g.TopoOrder()
	require.Error(t, err2)
	assert.Equal(t, cycleErr.Cycle, err2.(*model.CycleError).Cycle)
}

func TestBuild_ResolutionFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		uses   []model.UseRef
		detail string
	}{
		{
			name:   "unknown target",
			uses:   []model.UseRef{{Module: "ghost", Kind: model.EdgeModule}},
			detail: "no such module",
		},
		{
			name:   "self dependency",
			uses:   []model.UseRef{{Module: "main", Kind: model.EdgeModule}},
			detail: "cannot depend on itself",
		},
		{
			name:   "runtime target",
			uses:   []model.UseRef{{Module: "other", Kind: model.EdgeModule}},
			detail: "runtime modules cannot be depended on",
		},
		{
			name:   "missing output",
			uses:   []model.UseRef{{Module: "widget", Kind: model.EdgeOutput, Output: "absent"}},
			detail: `declares no output "absent"`,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			widget := component("widget", 0, "rendered")
			other := runtime("other", 1)
			main := runtime("main", 2, tc.uses...)

			g, errs := Build(context.Background(), []*model.Descriptor{widget, other, main})
			require.Len(t, errs, 1)
			assert.Equal(t, "main", errs[0].Module)
			assert.Contains(t, errs[0].Detail, tc.detail)

			// The failed module is excluded; siblings stay in the graph.
			_, ok := g.Module("main")
			assert.False(t, ok)
			_, ok = g.Module("widget")
			assert.True(t, ok)
		})
	}
}

func TestBuild_WildcardExpandsCurrentOutputs(t *testing.T) {
	t.Parallel()

	widget := component("widget", 0, "one", "two")
	bare := component("bare", 1)
	main := runtime("main", 2,
		model.UseRef{Module: "widget", Kind: model.EdgeOutput, Wildcard: true},
		model.UseRef{Module: "bare", Kind: model.EdgeOutput, Wildcard: true},
	)

	g, errs := Build(context.Background(), []*model.Descriptor{widget, bare, main})
	require.Empty(t, errs)

	var widgetEdge, bareEdge *model.Edge
	for i := range g.edges {
		switch g.edges[i].To {
		case "widget":
			widgetEdge = &g.edges[i]
		case "bare":
			bareEdge = &g.edges[i]
		}
	}
	require.NotNil(t, widgetEdge)
	assert.Equal(t, []string{"one", "two"}, widgetEdge.Outputs)

	// A wildcard over a module with no outputs is valid and expands empty.
	require.NotNil(t, bareEdge)
	assert.Empty(t, bareEdge.Outputs)
}

func TestPlans_SnapshotsHoldOnlyReferencedOutputs(t *testing.T) {
	t.Parallel()

	widget := component("widget", 0, "one", "two")
	bare := component("bare", 1)
	main := runtime("main", 2,
		model.UseRef{Module: "widget", Kind: model.EdgeOutput, Output: "two"},
		model.UseRef{Module: "bare", Kind: model.EdgeOutput, Wildcard: true},
	)

	g, errs := Build(context.Background(), []*model.Descriptor{widget, bare, main})
	require.Empty(t, errs)

	plans, err := g.Plans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 1)
	require.Len(t, plans[0].Invocations, 3)

	// The consumer's snapshots carry exactly the names it referenced, never
	// the provider's whole output table, and an empty wildcard expansion
	// yields an empty set.
	last := plans[0].Invocations[2]
	assert.Equal(t, "main", last.Module.Name)
	assert.Equal(t, []model.Snapshot{
		{Module: "widget", Outputs: []string{"two"}},
		{Module: "bare"},
	}, last.Snapshots)
}

func TestPlans_OnePerRuntimeWithReachableClosure(t *testing.T) {
	t.Parallel()

	shared := component("shared", 0, "token")
	shared.Params = []model.ConfigParam{
		{Name: "input", Kind: model.ParamSelfInput},
		{Name: "core", Kind: model.ParamCapability, Target: "core"},
		{Name: "kv", Kind: model.ParamCapability, Target: "kv"},
	}
	shared.Requires = []string{"text"}

	first := runtime("first", 1, model.UseRef{Module: "shared", Kind: model.EdgeModule})
	first.Params = []model.ConfigParam{
		{Name: "core", Kind: model.ParamCapability, Target: "core"},
		{Name: "shared", Kind: model.ParamDependencyInput, Target: "shared"},
	}

	second := runtime("second", 2,
		model.UseRef{Module: "shared", Kind: model.EdgeOutput, Output: "token"},
		model.UseRef{Module: "shared", Kind: model.EdgeOutput, Wildcard: true},
	)
	second.Params = []model.ConfigParam{
		{Name: "emit", Kind: model.ParamCapability, Target: "emit"},
		{Name: "shared_outputs", Kind: model.ParamOutputs, Target: "shared"},
	}

	loner := runtime("loner", 3)

	g, errs := Build(context.Background(), []*model.Descriptor{shared, first, second, loner})
	require.Empty(t, errs)

	plans, err := g.Plans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 3, "one plan per runtime module")

	// Plan for "first": module edge puts the runtime before the component.
	assert.Equal(t, "first", plans[0].Runtime.Name)
	assert.Equal(t, []string{"first", "shared"}, names(plans[0].Modules()))
	assert.Equal(t, []string{"core", "kv"}, plans[0].Capabilities)
	assert.Equal(t, []string{"text"}, plans[0].Requires)

	// Plan for "second": output edge puts the provider first, and repeated
	// snapshot references collapse to one set holding the union of the
	// referenced output names.
	assert.Equal(t, "second", plans[1].Runtime.Name)
	assert.Equal(t, []string{"shared", "second"}, names(plans[1].Modules()))
	require.Len(t, plans[1].Invocations, 2)
	assert.Equal(t,
		[]model.Snapshot{{Module: "shared", Outputs: []string{"token"}}},
		plans[1].Invocations[1].Snapshots)
	assert.Equal(t, []string{"core", "emit", "kv"}, plans[1].Capabilities)

	// A runtime with no uses still gets a plan, carrying only core.
	assert.Equal(t, "loner", plans[2].Runtime.Name)
	assert.Equal(t, []string{"loner"}, names(plans[2].Modules()))
	assert.Equal(t, []string{"core"}, plans[2].Capabilities)
	assert.Empty(t, plans[2].Requires)
}
