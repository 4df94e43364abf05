// Package parse transforms raw module blocks into validated descriptors.
//
// Validation failures are per-module: a malformed module yields a
// ValidationError anchored at its declaration span and never aborts parsing
// of sibling modules.
package parse

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/modforge/internal/ctxlog"
	"github.com/vk/modforge/internal/model"
	"github.com/vk/modforge/internal/scan"
	"github.com/vk/modforge/internal/schema"
)

// sandboxModules is the allowlist of pure stdlib modules a config function
// may declare in `requires`. Nothing here can reach the OS.
var sandboxModules = map[string]bool{
	"base64": true,
	"enum":   true,
	"fmt":    true,
	"hex":    true,
	"json":   true,
	"math":   true,
	"rand":   true,
	"text":   true,
	"times":  true,
}

// Parser validates raw modules against the set of registered capability
// names. It holds no per-run state.
type Parser struct {
	capabilities map[string]bool
}

// New returns a parser that accepts the given capability names as config
// function parameters and grant targets.
func New(capabilities []string) *Parser {
	caps := make(map[string]bool, len(capabilities))
	for _, c := range capabilities {
		caps[c] = true
	}
	return &Parser{capabilities: caps}
}

// ParseAll validates every raw module. Descriptors and validation errors are
// returned side by side; an error for one module does not suppress the
// descriptors of its siblings.
func (p *Parser) ParseAll(ctx context.Context, raws []*scan.RawModule) ([]*model.Descriptor, []*model.ValidationError) {
	logger := ctxlog.FromContext(ctx)

	var (
		descriptors []*model.Descriptor
		errs        []*model.ValidationError
		seen        = map[string]bool{}
	)
	for _, raw := range raws {
		if seen[raw.Name] {
			errs = append(errs, &model.ValidationError{
				Module:  raw.Name,
				Subject: raw.DefRange,
				Detail:  fmt.Sprintf("duplicate module name %q", raw.Name),
			})
			continue
		}
		seen[raw.Name] = true

		desc, err := p.Parse(raw)
		if err != nil {
			logger.Debug("ParseAll: module rejected.", "module", raw.Name, "detail", err.Detail)
			errs = append(errs, err)
			continue
		}
		descriptors = append(descriptors, desc)
	}
	logger.Debug("ParseAll: complete.", "valid", len(descriptors), "invalid", len(errs))
	return descriptors, errs
}

// Parse validates one raw module block into a descriptor.
func (p *Parser) Parse(raw *scan.RawModule) (*model.Descriptor, *model.ValidationError) {
	fail := func(format string, args ...any) *model.ValidationError {
		return &model.ValidationError{
			Module:  raw.Name,
			Subject: raw.DefRange,
			Detail:  fmt.Sprintf(format, args...),
		}
	}

	var body schema.ModuleBody
	if diags := gohcl.DecodeBody(raw.Body, nil, &body); diags.HasErrors() {
		return nil, fail("invalid module body: %s", diags.Error())
	}
	if !body.Public {
		return nil, fail("module blocks must be declared public")
	}

	desc := &model.Descriptor{
		Name:      raw.Name,
		Index:     raw.Index,
		SrcFile:   raw.Path,
		DefRange:  raw.DefRange,
		ConfigSrc: strings.TrimSpace(body.Config),
	}

	uses, err := parseUses(body.Use)
	if err != nil {
		return nil, fail("%v", err)
	}
	desc.Uses = uses

	if body.Input != nil {
		desc.Kind = model.KindComponent
		fields, err := parseInputFields(body.Input)
		if err != nil {
			return nil, fail("%v", err)
		}
		desc.Inputs = fields
	} else {
		desc.Kind = model.KindRuntime
	}

	if body.Outputs != nil {
		outputs, err := parseOutputs(body.Outputs)
		if err != nil {
			return nil, fail("%v", err)
		}
		desc.Outputs = outputs
	}

	grants, err := p.parseGrants(body.CapabilityParams)
	if err != nil {
		return nil, fail("%v", err)
	}
	desc.Grants = grants

	for _, req := range body.Requires {
		if !sandboxModules[req] {
			return nil, fail("requires %q: not a permitted sandbox module", req)
		}
		desc.Requires = append(desc.Requires, req)
	}
	sort.Strings(desc.Requires)

	sig, err := parseConfigSignature(desc.ConfigSrc)
	if err != nil {
		return nil, fail("invalid config function: %v", err)
	}
	// The dispatch binding carries attribution authority; a config source
	// that names it could impersonate another module's grants.
	if usesIdent(desc.ConfigSrc, model.DispatchName) {
		return nil, fail("config must not reference the reserved identifier %q", model.DispatchName)
	}
	params, err := p.classifyParams(desc, sig.params)
	if err != nil {
		return nil, fail("%v", err)
	}
	desc.Params = params

	for _, imp := range sig.imports {
		if !contains(desc.Requires, imp) {
			return nil, fail("config imports %q which is not listed in requires", imp)
		}
	}

	return desc, nil
}

// classifyParams resolves each config parameter name to a capability, the
// module's own input, a used component's input, or a used module's frozen
// outputs. A zero-parameter config is valid but inert.
func (p *Parser) classifyParams(desc *model.Descriptor, names []string) ([]model.ConfigParam, error) {
	moduleDeps := map[string]bool{}
	outputDeps := map[string]bool{}
	for _, use := range desc.Uses {
		if use.Kind == model.EdgeModule {
			moduleDeps[use.Module] = true
		} else {
			outputDeps[use.Module] = true
		}
	}

	var params []model.ConfigParam
	for i, name := range names {
		switch {
		case name == "input":
			if desc.Kind != model.KindComponent {
				return nil, fmt.Errorf("runtime module config cannot take an input parameter")
			}
			if i != 0 {
				return nil, fmt.Errorf("input must be the first config parameter")
			}
			params = append(params, model.ConfigParam{Name: name, Kind: model.ParamSelfInput})

		case p.capabilities[name]:
			params = append(params, model.ConfigParam{Name: name, Kind: model.ParamCapability, Target: name})

		case strings.HasSuffix(name, "_outputs") && outputDeps[strings.TrimSuffix(name, "_outputs")]:
			target := strings.TrimSuffix(name, "_outputs")
			params = append(params, model.ConfigParam{Name: name, Kind: model.ParamOutputs, Target: target})

		case moduleDeps[name]:
			if desc.Kind != model.KindRuntime {
				return nil, fmt.Errorf("parameter %q: only runtime modules may thread a dependency input", name)
			}
			params = append(params, model.ConfigParam{Name: name, Kind: model.ParamDependencyInput, Target: name})

		default:
			return nil, fmt.Errorf("parameter %q does not resolve to a capability or a used module", name)
		}
	}

	if desc.Kind == model.KindComponent {
		if len(params) == 0 || params[0].Kind != model.ParamSelfInput {
			return nil, fmt.Errorf("component module config must take input as its first parameter")
		}
	}
	return params, nil
}

// parseUses validates the use list grammar: "mod", "mod.outputs.NAME" or
// "mod.outputs.*".
func parseUses(entries []string) ([]model.UseRef, error) {
	var uses []model.UseRef
	for _, entry := range entries {
		parts := strings.Split(entry, ".")
		switch {
		case len(parts) == 1 && validName(parts[0]):
			uses = append(uses, model.UseRef{Module: parts[0], Kind: model.EdgeModule})
		case len(parts) == 3 && validName(parts[0]) && parts[1] == "outputs" && parts[2] == "*":
			uses = append(uses, model.UseRef{Module: parts[0], Kind: model.EdgeOutput, Wildcard: true})
		case len(parts) == 3 && validName(parts[0]) && parts[1] == "outputs" && validName(parts[2]):
			uses = append(uses, model.UseRef{Module: parts[0], Kind: model.EdgeOutput, Output: parts[2]})
		default:
			return nil, fmt.Errorf("use %q: must be a sibling module or an outputs reference", entry)
		}
	}
	return uses, nil
}

func parseInputFields(block *schema.InputBlock) ([]model.InputField, error) {
	var fields []model.InputField
	seen := map[string]bool{}
	for _, f := range block.Fields {
		if seen[f.Name] {
			return nil, fmt.Errorf("input field %q declared twice", f.Name)
		}
		seen[f.Name] = true

		val, diags := f.Default.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("input field %q: default must be a static literal: %s", f.Name, diags.Error())
		}
		lit, err := renderLiteral(val)
		if err != nil {
			return nil, fmt.Errorf("input field %q: %v", f.Name, err)
		}
		fields = append(fields, model.InputField{Name: f.Name, Default: lit})
	}
	return fields, nil
}

// parseOutputs collects the outputs block attributes in declaration order.
// Output defaults are string literals; the engine's output values are
// strings end to end.
func parseOutputs(block *schema.OutputsBlock) ([]model.OutputDecl, error) {
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid outputs block: %s", diags.Error())
	}

	ordered := make([]*hcl.Attribute, 0, len(attrs))
	for _, attr := range attrs {
		ordered = append(ordered, attr)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Range.Start.Byte < ordered[j].Range.Start.Byte
	})

	var outputs []model.OutputDecl
	for _, attr := range ordered {
		val, valDiags := attr.Expr.Value(nil)
		if valDiags.HasErrors() {
			return nil, fmt.Errorf("output %q: default must be a static literal: %s", attr.Name, valDiags.Error())
		}
		if val.Type() != cty.String {
			return nil, fmt.Errorf("output %q: default must be a string literal", attr.Name)
		}
		outputs = append(outputs, model.OutputDecl{Name: attr.Name, Default: val.AsString()})
	}
	return outputs, nil
}

// parseGrants evaluates the capability_params object. Parameters must be
// static string literals: that is what makes grants pre-auditable.
func (p *Parser) parseGrants(expr hcl.Expression) ([]model.CapabilityGrant, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("capability_params must be a static object literal: %s", diags.Error())
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, fmt.Errorf("capability_params must map capability names to string lists")
	}

	var grants []model.CapabilityGrant
	it := val.ElementIterator()
	for it.Next() {
		key, listVal := it.Element()
		capName := strings.ToLower(key.AsString())
		if !p.capabilities[capName] {
			return nil, fmt.Errorf("capability_params: unknown capability %q", key.AsString())
		}

		if !listVal.CanIterateElements() {
			return nil, fmt.Errorf("capability_params %s: parameters must be a list of strings", key.AsString())
		}
		var params []string
		elems := listVal.ElementIterator()
		for elems.Next() {
			_, elem := elems.Element()
			if elem.Type() != cty.String {
				return nil, fmt.Errorf("capability_params %s: parameters must be string literals", key.AsString())
			}
			params = append(params, elem.AsString())
		}
		grants = append(grants, model.CapabilityGrant{Capability: capName, Params: params})
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].Capability < grants[j].Capability })
	return grants, nil
}

func validName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
