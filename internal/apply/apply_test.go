package apply

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/modforge/internal/graph"
	"github.com/vk/modforge/internal/model"
	"github.com/vk/modforge/internal/sandbox"
)

func testGraph(t *testing.T, descs ...*model.Descriptor) *graph.Graph {
	t.Helper()
	g, errs := graph.Build(context.Background(), descs)
	require.Empty(t, errs)
	return g
}

func descriptor(name string, line int, outputs ...string) *model.Descriptor {
	d := &model.Descriptor{
		Name: name,
		Kind: model.KindRuntime,
		DefRange: hcl.Range{
			Filename: "src/main.hcl",
			Start:    hcl.Pos{Line: line, Column: 1},
			End:      hcl.Pos{Line: line, Column: 10},
		},
	}
	for _, out := range outputs {
		d.Kind = model.KindComponent
		d.Inputs = []model.InputField{{Name: "value", Default: `""`}}
		d.Outputs = append(d.Outputs, model.OutputDecl{Name: out, Default: ""})
	}
	return d
}

func TestApply_DiagnosticsAnchoredAtDeclaration(t *testing.T) {
	t.Parallel()

	g := testGraph(t, descriptor("main", 7))
	results := []*sandbox.Result{{
		Runtime: "main",
		State:   sandbox.StateFinished,
		Actions: []model.Action{
			{Kind: model.ActionWarning, Module: "main", Message: "heads up"},
		},
	}}

	summary, err := New(t.TempDir()).Apply(context.Background(), g, results)
	require.NoError(t, err)

	require.Len(t, summary.Diags, 1)
	diag := summary.Diags[0]
	assert.Equal(t, hcl.DiagWarning, diag.Severity)
	assert.Equal(t, "heads up", diag.Detail)
	require.NotNil(t, diag.Subject)
	assert.Equal(t, "src/main.hcl", diag.Subject.Filename)
	assert.Equal(t, 7, diag.Subject.Start.Line)
}

func TestApply_FatalErrorSuppressesAllEmission(t *testing.T) {
	t.Parallel()

	g := testGraph(t, descriptor("main", 1), descriptor("other", 5))
	outDir := t.TempDir()

	results := []*sandbox.Result{
		{
			Runtime: "main",
			State:   sandbox.StateFinished,
			Actions: []model.Action{
				{Kind: model.ActionWarning, Module: "main", Message: "before the failure"},
				{Kind: model.ActionCodeEmit, Module: "main", Code: "const A = 1", Scope: model.EmitModuleScope},
				{Kind: model.ActionError, Module: "main", Message: "Invalid value 100"},
				{Kind: model.ActionWarning, Module: "main", Message: "after the failure"},
			},
		},
		{
			// A downstream program that would have written artifacts.
			Runtime: "other",
			State:   sandbox.StateFinished,
			Actions: []model.Action{
				{Kind: model.ActionFileAppend, Module: "other", File: "late.txt", Label: "# l", Line: "x"},
			},
		},
	}

	summary, err := New(outDir).Apply(context.Background(), g, results)

	require.Error(t, err)
	userErr, ok := err.(*model.UserError)
	require.True(t, ok, "expected UserError, got %T", err)
	assert.Equal(t, "Invalid value 100", userErr.Message)
	assert.Equal(t, "main", userErr.Module)

	// Diagnostics up to and including the failure surface; nothing after it.
	require.Len(t, summary.Diags, 2)
	assert.Equal(t, "before the failure", summary.Diags[0].Detail)
	assert.Equal(t, hcl.DiagError, summary.Diags[1].Severity)

	// No artifact of any program reaches disk.
	entries, readErr := os.ReadDir(outDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
	assert.Empty(t, summary.Generated)
}

func TestApply_OutputSetUpdatesResolvedOutputs(t *testing.T) {
	t.Parallel()

	provider := descriptor("provider", 1, "token")
	g := testGraph(t, provider, descriptor("main", 9))

	results := []*sandbox.Result{{
		Runtime: "main",
		State:   sandbox.StateFinished,
		Actions: []model.Action{
			{Kind: model.ActionOutputSet, Module: "provider", Name: "token", Value: "abc123"},
		},
	}}

	_, err := New(t.TempDir()).Apply(context.Background(), g, results)
	require.NoError(t, err)
	assert.Equal(t, "abc123", provider.ResolvedOutputs["token"])
}

func TestApply_GeneratedCodeFile(t *testing.T) {
	t.Parallel()

	g := testGraph(t, descriptor("main", 1))
	outDir := t.TempDir()

	results := []*sandbox.Result{{
		Runtime: "main",
		State:   sandbox.StateFinished,
		Actions: []model.Action{
			{Kind: model.ActionCodeEmit, Module: "main", Code: "const A = 1", Scope: model.EmitModuleScope},
			{Kind: model.ActionCodeEmit, Module: "main", Code: "service()", Scope: model.EmitTopLevel},
		},
	}}

	summary, err := New(outDir).Apply(context.Background(), g, results)
	require.NoError(t, err)

	path := filepath.Join(outDir, "main.generated.hcl")
	require.Contains(t, summary.Generated, path)

	content, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	text := string(content)
	assert.Contains(t, text, `generated "main" "main"`)
	assert.Contains(t, text, `scope = "module"`)
	assert.Contains(t, text, `scope = "top_level"`)
	assert.Contains(t, text, `code  = "const A = 1"`)
}

func TestApply_FileAppendGroupingAndDedupe(t *testing.T) {
	t.Parallel()

	g := testGraph(t, descriptor("main", 1))
	outDir := t.TempDir()

	results := []*sandbox.Result{{
		Runtime: "main",
		State:   sandbox.StateFinished,
		Actions: []model.Action{
			// Labels arrive out of order and with duplicate unique lines.
			{Kind: model.ActionFileAppend, Module: "main", File: "deploy.txt", Label: "# zeta", Line: "z1"},
			{Kind: model.ActionFileAppend, Module: "main", File: "deploy.txt", Label: "# alpha", Line: "a1", Unique: true},
			{Kind: model.ActionFileAppend, Module: "main", File: "deploy.txt", Label: "# alpha", Line: "a1", Unique: true},
			{Kind: model.ActionFileAppend, Module: "main", File: "deploy.txt", Label: "# alpha", Line: "a2"},
			{Kind: model.ActionFileAppend, Module: "main", File: "other.txt", Label: "# solo", Line: "s1"},
		},
	}}

	summary, err := New(outDir).Apply(context.Background(), g, results)
	require.NoError(t, err)
	require.Len(t, summary.Generated, 2)

	content, readErr := os.ReadFile(filepath.Join(outDir, "deploy.txt"))
	require.NoError(t, readErr)

	// Label groups sort alphabetically; lines keep emission order within
	// their group; unique duplicates collapse.
	assert.Equal(t, "# alpha\na1\na2\n# zeta\nz1\n", string(content))

	other, readErr := os.ReadFile(filepath.Join(outDir, "other.txt"))
	require.NoError(t, readErr)
	assert.Equal(t, "# solo\ns1\n", string(other))
}

func TestDiagnostics_FaultedRunStillSurfacesMessages(t *testing.T) {
	t.Parallel()

	g := testGraph(t, descriptor("main", 3))
	results := []*sandbox.Result{
		{
			Runtime: "main",
			State:   sandbox.StateTrapped,
			Actions: []model.Action{
				{Kind: model.ActionWarning, Module: "main", Message: "collected before the fault"},
				{Kind: model.ActionFileAppend, Module: "main", File: "f.txt", Label: "# l", Line: "x"},
			},
		},
		nil,
	}

	diags := New(t.TempDir()).Diagnostics(g, results)
	require.Len(t, diags, 1)
	assert.Equal(t, "collected before the fault", diags[0].Detail)
}
