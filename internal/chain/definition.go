// SPDX-License-Identifier: MPL-2.0

package chain

import "github.com/conduct/conduct/pkg/param"

type (
	// Definition is a parsed chain definition file.
	Definition struct {
		Description string
		// Parameters are the chain parameters in declaration order.
		Parameters []ParamDef
		// Steps are the entries in execution order.
		Steps []StepSpec
		// Source is the file the definition was read from, if any.
		Source string
	}

	// ParamDef declares one chain parameter.
	ParamDef struct {
		Name       string
		Descriptor param.Descriptor
	}

	// StepSpec declares one chain entry: either a step of a registered type
	// or a nested chain.
	StepSpec struct {
		Name string
		// Type is the step type name, looked up in the catalog.
		Type string
		// Chain names a nested chain definition.
		Chain string
		// Params are the raw parameter values. Strings may hold references.
		Params map[string]any
	}

	// Loader reads chain definitions by name.
	Loader interface {
		Load(name string) (*Definition, error)
	}
)

// Param returns the declaration of a chain parameter.
func (d *Definition) Param(name string) (ParamDef, bool) {
	for _, p := range d.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParamDef{}, false
}

// IsNested reports whether the entry is a nested chain.
func (s StepSpec) IsNested() bool { return s.Chain != "" }
