// SPDX-License-Identifier: MPL-2.0

package chainfile

import (
	"errors"
	"fmt"
	"maps"
	"math/big"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/conduct/conduct/internal/chain"
	"github.com/conduct/conduct/pkg/param"
)

var errNotSyntaxBody = errors.New("not a native HCL syntax file")

// ParseHCL parses a .hcl chain definition:
//
//	description = "Build a disk image"
//
//	parameter "size" {
//	  type    = "int"
//	  default = 512
//	}
//
//	step "tmp" {
//	  type = "fs.TmpDir"
//	}
//
//	chain "rootfs" {
//	  name = "debian-rootfs"
//	}
//
// Blocks are taken in source order. Every attribute of a step block other
// than type is a step parameter.
func ParseHCL(data []byte, path string) (*chain.Definition, error) {
	file, diags := hclparse.NewParser().ParseHCL(data, path)
	if diags.HasErrors() {
		return nil, &DefinitionError{Path: path, Err: diags}
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, &DefinitionError{Path: path, Err: errNotSyntaxBody}
	}

	def := &chain.Definition{Source: path}
	if err := parseHCLBody(body, def); err != nil {
		return nil, &DefinitionError{Path: path, Err: err}
	}
	return def, nil
}

func parseHCLBody(body *hclsyntax.Body, def *chain.Definition) error {
	for _, name := range sortedAttrNames(body.Attributes) {
		attr := body.Attributes[name]
		if name != "description" {
			return fmt.Errorf("%s: unsupported attribute %q", attr.SrcRange, name)
		}
		v, err := attrString(attr)
		if err != nil {
			return err
		}
		def.Description = v
	}

	for _, block := range body.Blocks {
		if len(block.Labels) != 1 {
			return fmt.Errorf("%s: block %q needs exactly one label", block.TypeRange, block.Type)
		}
		label := block.Labels[0]
		attrs := block.Body.Attributes

		switch block.Type {
		case "parameter":
			p, err := hclParam(label, attrs)
			if err != nil {
				return fmt.Errorf("%s: %w", block.TypeRange, err)
			}
			def.Parameters = append(def.Parameters, p)
		case "step":
			spec := chain.StepSpec{Name: label, Params: map[string]any{}}
			for _, name := range sortedAttrNames(attrs) {
				v, err := attrValue(attrs[name])
				if err != nil {
					return err
				}
				if name == "type" {
					s, ok := v.(string)
					if !ok {
						return fmt.Errorf("%s: step type must be a string", attrs[name].SrcRange)
					}
					spec.Type = s
					continue
				}
				spec.Params[name] = v
			}
			def.Steps = append(def.Steps, spec)
		case "chain":
			spec := chain.StepSpec{Name: label}
			for _, name := range sortedAttrNames(attrs) {
				if name != "name" {
					// Parameters are rejected by the chain builder.
					if spec.Params == nil {
						spec.Params = map[string]any{}
					}
					v, err := attrValue(attrs[name])
					if err != nil {
						return err
					}
					spec.Params[name] = v
					continue
				}
				s, err := attrString(attrs[name])
				if err != nil {
					return err
				}
				spec.Chain = s
			}
			def.Steps = append(def.Steps, spec)
		default:
			return fmt.Errorf("%s: unsupported block type %q", block.TypeRange, block.Type)
		}
	}
	return nil
}

func hclParam(name string, attrs hclsyntax.Attributes) (chain.ParamDef, error) {
	typeExpr, description := "str", ""
	var opts []param.Option
	for _, attrName := range sortedAttrNames(attrs) {
		attr := attrs[attrName]
		switch attrName {
		case "type", "description":
			s, err := attrString(attr)
			if err != nil {
				return chain.ParamDef{}, err
			}
			if attrName == "type" {
				typeExpr = s
			} else {
				description = s
			}
		case "default":
			v, err := attrValue(attr)
			if err != nil {
				return chain.ParamDef{}, err
			}
			opts = append(opts, param.Default(v))
		default:
			return chain.ParamDef{}, fmt.Errorf("%s: unsupported parameter attribute %q", attr.SrcRange, attrName)
		}
	}
	return newParamDef(name, typeExpr, description, opts...)
}

func sortedAttrNames(attrs hclsyntax.Attributes) []string {
	return slices.Sorted(maps.Keys(attrs))
}

// attrValue evaluates an attribute without variables or functions.
func attrValue(attr *hclsyntax.Attribute) (any, error) {
	v, diags := attr.Expr.Value(&hcl.EvalContext{})
	if diags.HasErrors() {
		return nil, diags
	}
	out, err := ctyToNative(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", attr.SrcRange, err)
	}
	return out, nil
}

func attrString(attr *hclsyntax.Attribute) (string, error) {
	v, err := attrValue(attr)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: %s must be a string", attr.SrcRange, attr.Name)
	}
	return s, nil
}

// ctyToNative converts a cty value to plain Go values: string, int or
// float64, bool, []any and map[string]any.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsWhollyKnown() {
		return nil, errors.New("value is not known")
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return int(i), nil
			}
		}
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, err
		}
		return f, nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			n, err := ctyToNative(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			key, elem := it.Element()
			n, err := ctyToNative(elem)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key.AsString(), err)
			}
			out[key.AsString()] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}
