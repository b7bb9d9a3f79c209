// SPDX-License-Identifier: MPL-2.0

package step

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/conduct/conduct/pkg/param"
)

type (
	// Action performs or undoes the external effect of a step.
	Action func(ctx context.Context, s *Instance) Result

	// ReadHook replaces the storage-backed read of a parameter.
	ReadHook func(s *Instance) (any, error)

	// WriteHook replaces the storage-backed write of a parameter. It receives
	// the converted value.
	WriteHook func(s *Instance, v any) error

	// Accessor is one entry of a step type's parameter table.
	Accessor struct {
		Name       string
		Descriptor param.Descriptor
		Read       ReadHook
		Write      WriteHook
	}

	// TypeSpec is the declaration of a step type.
	TypeSpec struct {
		Name        string
		Description string
		// Extends names the parent type whose tables are inherited.
		Extends *Type
		// Params and Outputs overlay the parent's entries by name.
		Params  []Accessor
		Outputs []Accessor
		// Run and Cleanup default to the parent's actions when nil.
		Run     Action
		Cleanup Action
	}

	// Type is a registered step type with its merged parameter tables.
	Type struct {
		name        string
		description string
		parent      *Type
		params      []Accessor
		outputs     []Accessor
		index       map[string]int
		outIndex    map[string]int
		run         Action
		cleanup     Action
	}
)

// Param is shorthand for an accessor without hooks.
func Param(name string, d param.Descriptor) Accessor {
	return Accessor{Name: name, Descriptor: d}
}

// Define computes the merged tables of a step type: the parent's tables are
// copied and the TypeSpec's entries replace same-named entries in place or are
// appended.
func Define(spec TypeSpec) (*Type, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrInvalidType)
	}
	t := &Type{
		name:        spec.Name,
		description: spec.Description,
		parent:      spec.Extends,
		run:         spec.Run,
		cleanup:     spec.Cleanup,
	}
	if p := spec.Extends; p != nil {
		t.params = append(t.params, p.params...)
		t.outputs = append(t.outputs, p.outputs...)
		if t.run == nil {
			t.run = p.run
		}
		if t.cleanup == nil {
			t.cleanup = p.cleanup
		}
		if t.description == "" {
			t.description = p.description
		}
	}

	var err error
	if t.params, err = overlay(spec.Name, t.params, spec.Params); err != nil {
		return nil, err
	}
	if t.outputs, err = overlay(spec.Name, t.outputs, spec.Outputs); err != nil {
		return nil, err
	}
	t.index = indexOf(t.params)
	t.outIndex = indexOf(t.outputs)
	for name := range t.outIndex {
		if _, ok := t.index[name]; ok {
			return nil, fmt.Errorf("%w: %s: %q is both a parameter and an output", ErrInvalidType, spec.Name, name)
		}
	}
	if t.run == nil {
		t.run = notImplemented
	}
	return t, nil
}

// MustDefine is like Define but panics. It is meant for package-level step
// type declarations.
func MustDefine(spec TypeSpec) *Type {
	t, err := Define(spec)
	if err != nil {
		panic(err)
	}
	return t
}

func overlay(owner string, base, entries []Accessor) ([]Accessor, error) {
	out := append([]Accessor(nil), base...)
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("%w: %s: parameter without name", ErrInvalidType, owner)
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("%w: %s: duplicate parameter %q", ErrInvalidType, owner, e.Name)
		}
		seen[e.Name] = true
		if e.Descriptor.Type == nil {
			e.Descriptor.Type = param.Str
		}

		replaced := false
		for i := range out {
			if out[i].Name == e.Name {
				out[i] = e
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, e)
		}
	}
	return out, nil
}

func indexOf(entries []Accessor) map[string]int {
	idx := make(map[string]int, len(entries))
	for i, e := range entries {
		idx[e.Name] = i
	}
	return idx
}

func notImplemented(context.Context, *Instance) Result {
	return Fatal(ErrNotImplemented)
}

// Name returns the dotted type name.
func (t *Type) Name() string { return t.name }

// Description returns the human description of the type.
func (t *Type) Description() string { return t.description }

// Parent returns the type this one extends, or nil.
func (t *Type) Parent() *Type { return t.parent }

// Params returns a copy of the merged parameter table in declaration order.
func (t *Type) Params() []Accessor { return append([]Accessor(nil), t.params...) }

// Outputs returns a copy of the merged output table in declaration order.
func (t *Type) Outputs() []Accessor { return append([]Accessor(nil), t.outputs...) }

// HasCleanup reports whether the type defines a cleanup action.
func (t *Type) HasCleanup() bool { return t.cleanup != nil }

// Param returns the accessor for an input parameter.
func (t *Type) Param(name string) (Accessor, bool) {
	i, ok := t.index[name]
	if !ok {
		return Accessor{}, false
	}
	return t.params[i], true
}

// Output returns the accessor for an output parameter.
func (t *Type) Output(name string) (Accessor, bool) {
	i, ok := t.outIndex[name]
	if !ok {
		return Accessor{}, false
	}
	return t.outputs[i], true
}

// Base is the root step type. It carries the parameters every step has.
var Base = MustDefine(TypeSpec{
	Name:        "conduct.BuildStep",
	Description: "Abstract build step",
	Params: []Accessor{
		Param("description", param.MustDefine(param.Str, "Build step description", param.Default("Undescribed"))),
		{
			Name: "loglevel",
			Descriptor: param.MustDefine(param.OneOf("debug", "info", "warn", "error"),
				"Log level of this step", param.Default("info")),
			Read:  readLogLevel,
			Write: writeLogLevel,
		},
		Param("retries", param.MustDefine(param.IntRange(0, 1000), "Number of retries to execute the build step", param.Default(0))),
	},
})

func readLogLevel(s *Instance) (any, error) {
	return strings.ToLower(s.log.GetLevel().String()), nil
}

func writeLogLevel(s *Instance, v any) error {
	lvl, err := log.ParseLevel(fmt.Sprint(v))
	if err != nil {
		return err
	}
	s.log.SetLevel(lvl)
	return nil
}
