// Package apply consumes the ordered sandbox action stream and applies it
// to the build: diagnostics anchored at the original annotation spans,
// output values written back to the in-memory module graph, and generated
// artifacts materialized under the output directory.
//
// Application is all-or-nothing per runtime module: a fatal action (a
// user-emitted compiler error) suppresses every emission of that program
// and halts downstream programs, while every diagnostic collected before
// the failure point still surfaces.
package apply

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/modforge/internal/ctxlog"
	"github.com/vk/modforge/internal/graph"
	"github.com/vk/modforge/internal/model"
	"github.com/vk/modforge/internal/sandbox"
)

// Applicator splices sandbox results back into the build.
type Applicator struct {
	outDir string
}

// New creates an applicator writing generated artifacts under outDir.
func New(outDir string) *Applicator {
	return &Applicator{outDir: outDir}
}

// Summary is what one apply pass produced.
type Summary struct {
	Diags     hcl.Diagnostics
	Generated []string
}

// Apply processes results in plan order. The returned error is the first
// fatal user-emitted compiler error, if any; the summary's diagnostics are
// valid either way.
func (a *Applicator) Apply(ctx context.Context, g *graph.Graph, results []*sandbox.Result) (*Summary, error) {
	logger := ctxlog.FromContext(ctx)
	summary := &Summary{}

	var appends []model.Action
	emits := map[string][]model.Action{} // runtime -> code fragments

	for _, result := range results {
		fatal := a.applyProgram(g, result, summary, &appends, emits)
		if fatal != nil {
			logger.Debug("Apply: halting on fatal action.", "runtime", result.Runtime, "module", fatal.Module)
			return summary, fatal
		}
	}

	if err := a.writeGenerated(results, emits, summary); err != nil {
		return summary, err
	}
	if err := a.writeAppendFiles(appends, summary); err != nil {
		return summary, err
	}

	sort.Strings(summary.Generated)
	logger.Debug("Apply: complete.", "diagnostics", len(summary.Diags), "artifacts", len(summary.Generated))
	return summary, nil
}

// applyProgram walks one program's actions in order. On the first fatal
// action it stops and returns the corresponding UserError; everything the
// program emitted is discarded except the diagnostics collected so far.
func (a *Applicator) applyProgram(g *graph.Graph, result *sandbox.Result, summary *Summary, appends *[]model.Action, emits map[string][]model.Action) *model.UserError {
	var (
		pendingAppends []model.Action
		pendingEmits   []model.Action
		pendingOutputs []model.Action
	)

	for _, act := range result.Actions {
		switch act.Kind {
		case model.ActionError:
			summary.Diags = append(summary.Diags, a.diagnostic(g, act, hcl.DiagError))
			return &model.UserError{Module: act.Module, Message: act.Message}
		case model.ActionWarning:
			summary.Diags = append(summary.Diags, a.diagnostic(g, act, hcl.DiagWarning))
		case model.ActionOutputSet:
			pendingOutputs = append(pendingOutputs, act)
		case model.ActionCodeEmit:
			pendingEmits = append(pendingEmits, act)
		case model.ActionFileAppend:
			pendingAppends = append(pendingAppends, act)
		}
	}

	for _, act := range pendingOutputs {
		if m, ok := g.Module(act.Module); ok {
			if m.ResolvedOutputs == nil {
				m.ResolvedOutputs = map[string]string{}
			}
			m.ResolvedOutputs[act.Name] = act.Value
		}
	}
	emits[result.Runtime] = pendingEmits
	*appends = append(*appends, pendingAppends...)
	return nil
}

// Diagnostics renders only the diagnostic actions of the results. This is
// the path for a faulted execution, where messages still surface but no
// artifact may be written.
func (a *Applicator) Diagnostics(g *graph.Graph, results []*sandbox.Result) hcl.Diagnostics {
	var diags hcl.Diagnostics
	for _, result := range results {
		if result == nil {
			continue
		}
		for _, act := range result.Actions {
			switch act.Kind {
			case model.ActionError:
				diags = append(diags, a.diagnostic(g, act, hcl.DiagError))
			case model.ActionWarning:
				diags = append(diags, a.diagnostic(g, act, hcl.DiagWarning))
			}
		}
	}
	return diags
}

// diagnostic anchors an action at the originating module's annotation span
// in the user's source. Synthesized-program spans never leak into output.
func (a *Applicator) diagnostic(g *graph.Graph, act model.Action, severity hcl.DiagnosticSeverity) *hcl.Diagnostic {
	diag := &hcl.Diagnostic{
		Severity: severity,
		Summary:  fmt.Sprintf("Module %q", act.Module),
		Detail:   act.Message,
	}
	if m, ok := g.Module(act.Module); ok {
		diag.Subject = m.DefRange.Ptr()
	}
	return diag
}

// writeGenerated materializes the code fragments of each runtime program as
// one generated HCL file, tagged with provenance labels (runtime module,
// originating module) so regeneration is deterministic.
func (a *Applicator) writeGenerated(results []*sandbox.Result, emits map[string][]model.Action, summary *Summary) error {
	for _, result := range results {
		fragments := emits[result.Runtime]
		if len(fragments) == 0 {
			continue
		}

		f := hclwrite.NewEmptyFile()
		body := f.Body()
		for _, act := range fragments {
			block := body.AppendNewBlock("generated", []string{result.Runtime, act.Module})
			block.Body().SetAttributeValue("scope", cty.StringVal(scopeName(act.Scope)))
			block.Body().SetAttributeValue("code", cty.StringVal(act.Code))
			body.AppendNewline()
		}

		path := filepath.Join(a.outDir, result.Runtime+".generated.hcl")
		if err := a.writeFile(path, f.Bytes()); err != nil {
			return err
		}
		summary.Generated = append(summary.Generated, path)
	}
	return nil
}

// writeAppendFiles materializes file-append actions: grouped by file, label
// groups sorted alphabetically, lines in emission order within a label,
// unique lines deduplicated within their label.
func (a *Applicator) writeAppendFiles(appends []model.Action, summary *Summary) error {
	byFile := map[string][]model.Action{}
	var fileOrder []string
	for _, act := range appends {
		if _, ok := byFile[act.File]; !ok {
			fileOrder = append(fileOrder, act.File)
		}
		byFile[act.File] = append(byFile[act.File], act)
	}
	sort.Strings(fileOrder)

	for _, name := range fileOrder {
		content := renderAppendFile(byFile[name])
		path := filepath.Join(a.outDir, name)
		if err := a.writeFile(path, []byte(content)); err != nil {
			return err
		}
		summary.Generated = append(summary.Generated, path)
	}
	return nil
}

func renderAppendFile(actions []model.Action) string {
	byLabel := map[string][]model.Action{}
	var labels []string
	for _, act := range actions {
		if _, ok := byLabel[act.Label]; !ok {
			labels = append(labels, act.Label)
		}
		byLabel[act.Label] = append(byLabel[act.Label], act)
	}
	sort.Strings(labels)

	var b strings.Builder
	for _, label := range labels {
		b.WriteString(label)
		b.WriteString("\n")
		seen := map[string]bool{}
		for _, act := range byLabel[label] {
			if act.Unique && seen[act.Line] {
				continue
			}
			seen[act.Line] = true
			b.WriteString(act.Line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (a *Applicator) writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing artifact %s: %w", path, err)
	}
	return nil
}

func scopeName(scope model.EmitScope) string {
	if scope == model.EmitTopLevel {
		return "top_level"
	}
	return "module"
}
