// SPDX-License-Identifier: MPL-2.0

package chainfile

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"

	"github.com/conduct/conduct/internal/chain"
	"github.com/conduct/conduct/pkg/cueutil"
	"github.com/conduct/conduct/pkg/param"
)

//go:embed chain_schema.cue
var chainSchema []byte

type (
	cueChain struct {
		Description string    `json:"description"`
		Steps       []cueStep `json:"steps"`
	}

	cueStep struct {
		Name   string         `json:"name"`
		Type   string         `json:"type"`
		Chain  string         `json:"chain"`
		Params map[string]any `json:"params"`
	}
)

// ParseCUE parses a .cue chain definition. path is used in error messages.
func ParseCUE(data []byte, path string) (*chain.Definition, error) {
	res, err := cueutil.ParseAndDecode[cueChain](chainSchema, data, "#Chain", cueutil.WithFilename(path))
	if err != nil {
		return nil, &DefinitionError{Path: path, Err: err}
	}

	def := &chain.Definition{Description: res.Value.Description, Source: path}

	// The decoded map loses declaration order; walk the CUE struct instead.
	params := res.Unified.LookupPath(cue.ParsePath("parameters"))
	if params.Exists() {
		iter, err := params.Fields()
		if err != nil {
			return nil, &DefinitionError{Path: path, Err: err}
		}
		for iter.Next() {
			p, err := cueParam(iter.Selector().Unquoted(), iter.Value())
			if err != nil {
				return nil, &DefinitionError{Path: path, Err: err}
			}
			def.Parameters = append(def.Parameters, p)
		}
	}

	for _, s := range res.Value.Steps {
		def.Steps = append(def.Steps, chain.StepSpec{Name: s.Name, Type: s.Type, Chain: s.Chain, Params: s.Params})
	}
	return def, nil
}

func cueParam(name string, v cue.Value) (chain.ParamDef, error) {
	var doc struct {
		Type        string `json:"type"`
		Description string `json:"description"`
	}
	if err := v.Decode(&doc); err != nil {
		return chain.ParamDef{}, fmt.Errorf("parameter %q: %w", name, err)
	}

	var opts []param.Option
	if dv := v.LookupPath(cue.ParsePath("default")); dv.Exists() {
		var def any
		if err := dv.Decode(&def); err != nil {
			return chain.ParamDef{}, fmt.Errorf("parameter %q: default: %w", name, err)
		}
		opts = append(opts, param.Default(def))
	}
	return newParamDef(name, doc.Type, doc.Description, opts...)
}

// newParamDef builds a chain parameter declaration from its textual type.
func newParamDef(name, typeExpr, description string, opts ...param.Option) (chain.ParamDef, error) {
	t, err := param.ParseType(typeExpr)
	if err != nil {
		return chain.ParamDef{}, fmt.Errorf("parameter %q: %w", name, err)
	}
	d, err := param.Define(t, description, opts...)
	if err != nil {
		return chain.ParamDef{}, fmt.Errorf("parameter %q: %w", name, err)
	}
	return chain.ParamDef{Name: name, Descriptor: d}, nil
}
