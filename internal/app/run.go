package app

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/modforge/internal/apply"
	"github.com/vk/modforge/internal/ctxlog"
	"github.com/vk/modforge/internal/graph"
	"github.com/vk/modforge/internal/parse"
	"github.com/vk/modforge/internal/sandbox"
	"github.com/vk/modforge/internal/scan"
	"github.com/vk/modforge/internal/synth"
)

// Run executes one full build: scan, parse, plan, synthesize, execute,
// apply. Diagnostics are rendered against the scanned source files so every
// message points at the user's own annotation, never at synthesized code.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	scanned, err := scan.Scan(ctx, a.config.SrcPath)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", a.config.SrcPath, err)
	}
	a.logger.Debug("Scan complete.", "modules", len(scanned.Modules), "failed_files", len(scanned.Errs))

	var diags hcl.Diagnostics
	for _, serr := range scanned.Errs {
		diags = append(diags, serr.Diags...)
	}

	parser := parse.New(a.registry.Names())
	modules, verrs := parser.ParseAll(ctx, scanned.Modules)

	g, gerrs := graph.Build(ctx, modules)
	verrs = append(verrs, gerrs...)
	for _, v := range verrs {
		diags = append(diags, v.Diagnostic())
	}
	if diags.HasErrors() {
		a.writeDiags(scanned.Files, diags)
		return fmt.Errorf("build failed with %d invalid input(s)", len(diags))
	}

	plans, err := g.Plans(ctx)
	if err != nil {
		return err
	}
	if len(plans) == 0 {
		a.logger.Warn("No runtime modules found, nothing to execute.")
		return nil
	}
	a.logger.Info("Execution plans ready.", "count", len(plans))

	sources := make([]string, len(plans))
	for i, plan := range plans {
		sources[i] = synth.Synthesize(plan)
	}

	exec := sandbox.New(a.registry)
	results, execErr := exec.ExecuteAll(ctx, plans, sources, a.config.Workers)

	applicator := apply.New(a.config.OutPath)
	if execErr != nil {
		// A faulted sandbox still carries diagnostics collected before the
		// failure point. Surface those, but write no artifacts.
		a.writeDiags(scanned.Files, applicator.Diagnostics(g, results))
		return execErr
	}

	summary, applyErr := applicator.Apply(ctx, g, results)
	a.writeDiags(scanned.Files, summary.Diags)
	if applyErr != nil {
		return applyErr
	}

	a.logger.Info("Build finished.", "artifacts", len(summary.Generated))
	a.logger.Debug("App.Run method finished.")
	return nil
}

func (a *App) writeDiags(files map[string]*hcl.File, diags hcl.Diagnostics) {
	if len(diags) == 0 {
		return
	}
	wr := hcl.NewDiagnosticTextWriter(a.outW, files, 100, false)
	if err := wr.WriteDiagnostics(diags); err != nil {
		a.logger.Error("Failed to render diagnostics.", "error", err)
	}
}
