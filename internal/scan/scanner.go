// Package scan discovers annotated module blocks across a source tree.
//
// The scanner is read-only: it walks the root directory, parses every module
// source file, and yields the raw block for each `module` annotation in file
// order, then in-file order. Files that fail to parse at all produce a
// ScanError scoped to that file; sibling files keep scanning.
package scan

import (
	"context"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/modforge/internal/ctxlog"
	"github.com/vk/modforge/internal/fsutil"
	"github.com/vk/modforge/internal/model"
)

// Extension is the file suffix the scanner picks up.
const Extension = ".hcl"

// blockSchema matches only the module annotation; everything else in a file
// is outside the scanner's contract and left untouched.
var blockSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "module", LabelNames: []string{"name"}},
	},
}

// RawModule is one discovered annotation: the block's label, its body (not
// yet validated), and the span the annotation occupies in the user's source.
type RawModule struct {
	Name     string
	Body     hcl.Body
	DefRange hcl.Range
	Path     string

	// Index is the global discovery position, the deterministic tie-break
	// used by every later stage.
	Index int
}

// Result is the outcome of one scan pass.
type Result struct {
	Modules []*RawModule

	// Files maps path to parsed file, kept so diagnostics can render source
	// snippets from the original annotation spans.
	Files map[string]*hcl.File

	// Errs holds the per-file scan failures: unparseable files and malformed
	// module blocks. A failure never aborts the scan of sibling files, and a
	// file with one malformed block still yields its well-formed ones.
	Errs []*model.ScanError
}

// Scan walks root and returns every module annotation in discovery order.
func Scan(ctx context.Context, root string) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	paths, err := fsutil.FindModuleFiles(root, Extension)
	if err != nil {
		return nil, err
	}
	logger.Debug("Scan: source files located.", "count", len(paths))

	parser := hclparse.NewParser()
	result := &Result{Files: map[string]*hcl.File{}}

	index := 0
	for _, path := range paths {
		file, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			logger.Debug("Scan: file failed to parse.", "path", path)
			result.Errs = append(result.Errs, &model.ScanError{Path: path, Diags: diags})
			continue
		}
		result.Files[path] = file

		content, _, contentDiags := file.Body.PartialContent(blockSchema)
		if contentDiags.HasErrors() {
			// A module block with the wrong label shape is a user mistake,
			// not foreign content; it must surface, not vanish. Well-formed
			// blocks from the same file still scan.
			logger.Debug("Scan: malformed module block.", "path", path)
			result.Errs = append(result.Errs, &model.ScanError{Path: path, Diags: contentDiags})
		}
		for _, block := range content.Blocks {
			result.Modules = append(result.Modules, &RawModule{
				Name:     block.Labels[0],
				Body:     block.Body,
				DefRange: block.DefRange,
				Path:     path,
				Index:    index,
			})
			index++
		}
	}

	logger.Debug("Scan: complete.", "modules", len(result.Modules), "failed_files", len(result.Errs))
	return result, nil
}
