// SPDX-License-Identifier: MPL-2.0

package param

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	errEmptyList    = errors.New("list must not be empty")
	errOutOfRange   = errors.New("out of range")
	errNotAllowed   = errors.New("not one of the allowed values")
	errTupleLength  = errors.New("wrong number of elements")
	errNotMapping   = errors.New("not a mapping")
	errFlowDocument = errors.New("cannot parse value")
)

// ListOf accepts a list whose elements all satisfy elem. A string is parsed
// as a YAML flow sequence when it starts with '[', otherwise it is split on
// commas.
func ListOf(elem Type) Type {
	return NewType("a list of "+elem.String(), func(v any) (any, error) {
		return convertList(elem, v)
	})
}

// NonEmptyListOf is ListOf with at least one element.
func NonEmptyListOf(elem Type) Type {
	return NewType("a non-empty list of "+elem.String(), func(v any) (any, error) {
		list, err := convertList(elem, v)
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, errEmptyList
		}
		return list, nil
	})
}

// TupleOf accepts a list with exactly one element per given type.
func TupleOf(elems ...Type) Type {
	descs := make([]string, len(elems))
	for i, e := range elems {
		descs[i] = e.String()
	}
	return NewType("a tuple of ("+strings.Join(descs, ", ")+")", func(v any) (any, error) {
		items, err := listItems(v)
		if err != nil {
			return nil, err
		}
		if len(items) != len(elems) {
			return nil, fmt.Errorf("%w: want %d, got %d", errTupleLength, len(elems), len(items))
		}
		out := make([]any, len(items))
		for i, item := range items {
			c, err := elems[i].Convert(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = c
		}
		return out, nil
	})
}

// DictOf accepts a mapping whose keys satisfy key and values satisfy val.
// Keys are stored in their textual form.
func DictOf(key, val Type) Type {
	return NewType(fmt.Sprintf("a dict of %s to %s", key, val), func(v any) (any, error) {
		if s, ok := v.(string); ok {
			var decoded map[string]any
			if err := yaml.Unmarshal([]byte(s), &decoded); err != nil {
				return nil, fmt.Errorf("%w: %w", errFlowDocument, err)
			}
			if decoded == nil {
				decoded = map[string]any{}
			}
			v = decoded
		}
		m, ok := toMap(v)
		if !ok {
			return nil, fmt.Errorf("%w: got %T", errNotMapping, v)
		}
		out := make(map[string]any, len(m))
		for k, item := range m {
			ck, err := key.Convert(k)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			cv, err := val.Convert(item)
			if err != nil {
				return nil, fmt.Errorf("value for %q: %w", k, err)
			}
			out[fmt.Sprint(ck)] = cv
		}
		return out, nil
	})
}

// Limits restricts a numeric type to the closed interval [lo, hi].
func Limits(t Type, lo, hi float64) Type {
	return NewType(fmt.Sprintf("%s in range [%v, %v]", t, lo, hi), func(v any) (any, error) {
		c, err := t.Convert(v)
		if err != nil {
			return nil, err
		}
		f, err := toFloat(c)
		if err != nil {
			return nil, err
		}
		if f < lo || f > hi {
			return nil, fmt.Errorf("%w: %v not in [%v, %v]", errOutOfRange, c, lo, hi)
		}
		return c, nil
	})
}

// IntRange accepts integers in [lo, hi].
func IntRange(lo, hi int) Type {
	return Limits(Int, float64(lo), float64(hi))
}

// FloatRange accepts numbers in [lo, hi].
func FloatRange(lo, hi float64) Type {
	return Limits(Float, lo, hi)
}

// OneOf accepts exactly one of the given strings.
func OneOf(values ...string) Type {
	return NewType("one of "+strings.Join(values, ", "), func(v any) (any, error) {
		s, err := toString(v)
		if err != nil {
			return nil, err
		}
		for _, allowed := range values {
			if s == allowed {
				return s, nil
			}
		}
		return nil, fmt.Errorf("%w: %q (allowed: %s)", errNotAllowed, s, strings.Join(values, ", "))
	})
}

// OneOfDict accepts one of the mapping's keys and converts it to the
// associated value.
func OneOfDict(mapping map[string]any) Type {
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return NewType("one of "+strings.Join(keys, ", "), func(v any) (any, error) {
		s, err := toString(v)
		if err != nil {
			return nil, err
		}
		out, ok := mapping[s]
		if !ok {
			return nil, fmt.Errorf("%w: %q (allowed: %s)", errNotAllowed, s, strings.Join(keys, ", "))
		}
		return out, nil
	})
}

// NoneOr accepts nil or a value of type t.
func NoneOr(t Type) Type {
	return NewType("none or "+t.String(), func(v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		return t.Convert(v)
	})
}

func convertList(elem Type, v any) ([]any, error) {
	items, err := listItems(v)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(items))
	for i, item := range items {
		c, err := elem.Convert(item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = c
	}
	return out, nil
}

func listItems(v any) ([]any, error) {
	if s, ok := v.(string); ok {
		return parseListString(s)
	}
	items, ok := toSlice(v)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", errNotComposite, v)
	}
	return items, nil
}

func parseListString(s string) ([]any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []any{}, nil
	}
	if strings.HasPrefix(s, "[") {
		var decoded []any
		if err := yaml.Unmarshal([]byte(s), &decoded); err != nil {
			return nil, fmt.Errorf("%w: %w", errFlowDocument, err)
		}
		return decoded, nil
	}
	parts := strings.Split(s, ",")
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out, nil
}
