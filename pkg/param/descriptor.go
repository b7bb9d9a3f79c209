// SPDX-License-Identifier: MPL-2.0

package param

import "fmt"

type (
	// Descriptor is the immutable definition of a named value: its type, a
	// human description and an optional default. A descriptor without a
	// default is mandatory.
	Descriptor struct {
		Type        Type
		Description string
		// Default is the validated default value, meaningful only when
		// HasDefault is set. A nil default on a NoneOr type is legal.
		Default    any
		HasDefault bool
	}

	// Option customizes a Descriptor under construction.
	Option func(*Descriptor)
)

// Default sets the default value. It is validated by Define.
func Default(v any) Option {
	return func(d *Descriptor) {
		d.Default = v
		d.HasDefault = true
	}
}

// Define creates a Descriptor. A supplied default is validated eagerly and
// stored in its converted form.
func Define(t Type, description string, opts ...Option) (Descriptor, error) {
	d := Descriptor{Type: t, Description: description}
	for _, opt := range opts {
		opt(&d)
	}
	if d.Type == nil {
		d.Type = Str
	}
	if d.HasDefault {
		converted, err := d.Type.Convert(d.Default)
		if err != nil {
			return Descriptor{}, fmt.Errorf("invalid default for %s: %w", d.Type, err)
		}
		d.Default = converted
	}
	return d, nil
}

// MustDefine is like Define but panics on an invalid default. It is meant for
// package-level step type declarations.
func MustDefine(t Type, description string, opts ...Option) Descriptor {
	d, err := Define(t, description, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// Mandatory reports whether a value must be supplied explicitly.
func (d Descriptor) Mandatory() bool { return !d.HasDefault }

// Convert validates v for the parameter called name.
func (d Descriptor) Convert(name string, v any) (any, error) {
	converted, err := d.Type.Convert(v)
	if err != nil {
		return nil, &ValidationError{Param: name, Value: v, Err: err}
	}
	return converted, nil
}

// Doc renders a one line summary used by parameter listings.
func (d Descriptor) Doc() string {
	if d.Mandatory() {
		return fmt.Sprintf("%s; mandatory", d.Type)
	}
	return fmt.Sprintf("%s; default %#v", d.Type, d.Default)
}
