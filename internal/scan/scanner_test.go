package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

func TestScan_DiscoveryOrder(t *testing.T) {
	t.Parallel()

	// Two modules in one file, one in another. Discovery order is file
	// order (sorted paths), then in-file order.
	dir := writeFiles(t, map[string]string{
		"b.hcl": `
module "gamma" {
  public = true
  config = "func() {}"
}
`,
		"a.hcl": `
module "alpha" {
  public = true
  config = "func() {}"
}

module "beta" {
  public = true
  config = "func() {}"
}
`,
	})

	result, err := Scan(context.Background(), dir)
	require.NoError(t, err)
	require.Empty(t, result.Errs)
	require.Len(t, result.Modules, 3)

	names := []string{result.Modules[0].Name, result.Modules[1].Name, result.Modules[2].Name}
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, names)
	for i, m := range result.Modules {
		assert.Equal(t, i, m.Index)
	}
}

func TestScan_FailedFileDoesNotAbortSiblings(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		"bad.hcl": `module "broken" {`,
		"good.hcl": `
module "fine" {
  public = true
  config = "func() {}"
}
`,
	})

	result, err := Scan(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, result.Errs, 1)
	assert.Contains(t, result.Errs[0].Path, "bad.hcl")

	require.Len(t, result.Modules, 1)
	assert.Equal(t, "fine", result.Modules[0].Name)
}

func TestScan_MalformedBlockSurfacesAndKeepsSiblings(t *testing.T) {
	t.Parallel()

	// A module block with the wrong label shape is a reportable mistake,
	// not silently droppable content. Well-formed blocks in the same file
	// still scan.
	dir := writeFiles(t, map[string]string{
		"mixed.hcl": `
module {
  public = true
  config = "func() {}"
}

module "named" {
  public = true
  config = "func() {}"
}
`,
	})

	result, err := Scan(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, result.Errs, 1)
	assert.Contains(t, result.Errs[0].Path, "mixed.hcl")
	assert.True(t, result.Errs[0].Diags.HasErrors())

	require.Len(t, result.Modules, 1)
	assert.Equal(t, "named", result.Modules[0].Name)
}

func TestScan_IgnoresForeignBlocks(t *testing.T) {
	t.Parallel()

	// Non-module blocks in the same file are outside the scanner's contract.
	dir := writeFiles(t, map[string]string{
		"mixed.hcl": `
locals {
  unrelated = 1
}

module "only" {
  public = true
  config = "func() {}"
}
`,
	})

	result, err := Scan(context.Background(), dir)
	require.NoError(t, err)
	require.Empty(t, result.Errs)
	require.Len(t, result.Modules, 1)
	assert.Equal(t, "only", result.Modules[0].Name)
}

func TestScan_MissingRoot(t *testing.T) {
	t.Parallel()

	_, err := Scan(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}
