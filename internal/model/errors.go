package model

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
)

// ScanError means a source file could not be parsed at all. It is fatal to
// that file only; sibling files keep scanning.
type ScanError struct {
	Path  string
	Diags hcl.Diagnostics
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %s", e.Path, e.Diags.Error())
}

// ValidationError is a malformed module shape. Per-module and non-fatal to
// siblings: the pipeline batches these and reports them together, anchored
// at the module's declaration range.
type ValidationError struct {
	Module  string
	Subject hcl.Range
	Detail  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("module %q: %s", e.Module, e.Detail)
}

// Diagnostic renders the error as an hcl diagnostic at the original span.
func (e *ValidationError) Diagnostic() *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  fmt.Sprintf("Invalid module %q", e.Module),
		Detail:   e.Detail,
		Subject:  e.Subject.Ptr(),
	}
}

// CycleError is a dependency cycle. Fatal to the whole build and names the
// exact loop in order, ending where it started.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

// CompileError means a synthesized program failed to compile for the sandbox
// target. Fatal: either a synthesizer bug or a type error in a user config
// function. The underlying compiler message is preserved.
type CompileError struct {
	Runtime string
	Err     error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("runtime module %q: sandbox compile failed: %v", e.Runtime, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// CapabilityViolation means a sandboxed program invoked a capability with a
// parameter outside its static grant. The call fails inside the sandbox; the
// action is never performed.
type CapabilityViolation struct {
	Module     string
	Capability string
	Param      string
	Granted    []string
}

func (e *CapabilityViolation) Error() string {
	return fmt.Sprintf("module %q: capability %q does not grant %q (granted: %v)",
		e.Module, e.Capability, e.Param, e.Granted)
}

// Trap is a sandbox runtime fault: a panic inside the VM, resource
// exhaustion, or any abort not raised by a capability. It is reported
// distinctly from user-emitted compiler errors.
type Trap struct {
	Runtime string
	Err     error
}

func (e *Trap) Error() string {
	return fmt.Sprintf("runtime module %q: sandbox trapped: %v", e.Runtime, e.Err)
}

func (e *Trap) Unwrap() error { return e.Err }

// UserError is a compiler error explicitly emitted by a module through the
// core capability. Fatal to the build, but distinct from every engine
// failure class: it is the primary path for user-facing validation.
type UserError struct {
	Module  string
	Message string
}

func (e *UserError) Error() string {
	return fmt.Sprintf("module %q: %s", e.Module, e.Message)
}
