// SPDX-License-Identifier: MPL-2.0

package step

import (
	"fmt"

	"github.com/conduct/conduct/pkg/reference"
)

// Value reads a parameter and asserts its native type. A nil value yields the
// zero value of T.
func Value[T any](s *Instance, name string) (T, error) {
	var zero T
	v, err := s.Get(name)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("step %q: parameter %q holds %T, want %T", s.name, name, v, zero)
	}
	return t, nil
}

// Values reads several parameters and keeps the first error, so run actions
// can read all their inputs and check once:
//
//	in := s.Values()
//	dev, mp := in.String("dev"), in.String("mountpoint")
//	if err := in.Err(); err != nil {
//		return step.Fatal(err)
//	}
type Values struct {
	s   *Instance
	err error
}

// Values returns a reader over the instance's parameters.
func (s *Instance) Values() *Values { return &Values{s: s} }

// Err returns the first read error.
func (v *Values) Err() error { return v.err }

func get[T any](v *Values, name string) T {
	var zero T
	if v.err != nil {
		return zero
	}
	out, err := Value[T](v.s, name)
	if err != nil {
		v.err = err
	}
	return out
}

// String reads a string parameter.
func (v *Values) String(name string) string { return get[string](v, name) }

// Int reads an integer parameter.
func (v *Values) Int(name string) int { return get[int](v, name) }

// Float reads a float parameter.
func (v *Values) Float(name string) float64 { return get[float64](v, name) }

// Bool reads a boolean parameter.
func (v *Values) Bool(name string) bool { return get[bool](v, name) }

// Map reads a dict parameter.
func (v *Values) Map(name string) map[string]any { return get[map[string]any](v, name) }

// Any reads a parameter without type assertion.
func (v *Values) Any(name string) any { return get[any](v, name) }

// List reads a list parameter.
func (v *Values) List(name string) []any { return get[[]any](v, name) }

// Strings reads a list parameter and renders each element as text.
func (v *Values) Strings(name string) []string {
	list := v.List(name)
	if list == nil {
		return nil
	}
	out := make([]string, len(list))
	for i, item := range list {
		out[i] = reference.Text(item)
	}
	return out
}

// Ints reads a list of integers.
func (v *Values) Ints(name string) []int {
	list := v.List(name)
	if list == nil {
		return nil
	}
	out := make([]int, 0, len(list))
	for i, item := range list {
		n, ok := item.(int)
		if !ok {
			if v.err == nil {
				v.err = fmt.Errorf("step %q: parameter %q element %d holds %T, want int", v.s.name, name, i, item)
			}
			return nil
		}
		out = append(out, n)
	}
	return out
}
