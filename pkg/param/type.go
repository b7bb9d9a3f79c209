// SPDX-License-Identifier: MPL-2.0

package param

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

var (
	errNil          = errors.New("value is nil")
	errNotString    = errors.New("not a string")
	errNotInteger   = errors.New("not an integer")
	errNotNumber    = errors.New("not a number")
	errNotBool      = errors.New("not a boolean")
	errEmptyString  = errors.New("must not be empty")
	errNotComposite = errors.New("not a list")
)

type (
	// Type validates and converts a raw value into its native form.
	Type interface {
		// Convert returns the validated value or an error describing why the
		// input is not acceptable.
		Convert(v any) (any, error)
		// String returns a human readable description of the accepted values.
		String() string
	}

	funcType struct {
		desc string
		conv func(any) (any, error)
	}
)

// NewType creates a Type from a description and a conversion function.
func NewType(description string, conv func(any) (any, error)) Type {
	return &funcType{desc: description, conv: conv}
}

func (t *funcType) Convert(v any) (any, error) { return t.conv(v) }

func (t *funcType) String() string { return t.desc }

var (
	// Any accepts every value unchanged.
	Any = NewType("any value", func(v any) (any, error) { return v, nil })

	// Str accepts strings and renders scalars (numbers, booleans) as text.
	Str = NewType("a string", func(v any) (any, error) { return toString(v) })

	// NonEmptyStr accepts any non-empty string.
	NonEmptyStr = NewType("a non-empty string", func(v any) (any, error) {
		s, err := toString(v)
		if err != nil {
			return nil, err
		}
		if s == "" {
			return nil, errEmptyString
		}
		return s, nil
	})

	// Int accepts integers and their decimal string representation.
	Int = NewType("an integer", func(v any) (any, error) { return toInt(v) })

	// Float accepts numbers and their string representation.
	Float = NewType("a number", func(v any) (any, error) { return toFloat(v) })

	// Bool accepts booleans and the usual textual spellings.
	Bool = NewType("a boolean", func(v any) (any, error) { return toBool(v) })
)

func toString(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", errNil
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case fmt.Stringer:
		return x.String(), nil
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	}
	return "", fmt.Errorf("%w: got %T", errNotString, v)
}

func toInt(v any) (int, error) {
	switch x := v.(type) {
	case nil:
		return 0, errNil
	case int:
		return x, nil
	case int8:
		return int(x), nil
	case int16:
		return int(x), nil
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case uint:
		return int(x), nil
	case uint8:
		return int(x), nil
	case uint16:
		return int(x), nil
	case uint32:
		return int(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d overflows", errNotInteger, x)
		}
		return int(x), nil
	case float32:
		return floatToInt(float64(x))
	case float64:
		return floatToInt(x)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, fmt.Errorf("%w: %q", errNotInteger, x)
		}
		return i, nil
	}
	return 0, fmt.Errorf("%w: got %T", errNotInteger, v)
}

func floatToInt(f float64) (int, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%w: %v", errNotInteger, f)
	}
	return int(f), nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, errNil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", errNotNumber, x)
		}
		return f, nil
	}
	if i, err := toInt(v); err == nil {
		return float64(i), nil
	}
	return 0, fmt.Errorf("%w: got %T", errNotNumber, v)
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case nil:
		return false, errNil
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "1", "t", "true", "y", "yes", "on":
			return true, nil
		case "0", "f", "false", "n", "no", "off":
			return false, nil
		}
		return false, fmt.Errorf("%w: %q", errNotBool, x)
	}
	if i, err := toInt(v); err == nil {
		return i != 0, nil
	}
	return false, fmt.Errorf("%w: got %T", errNotBool, v)
}

// toSlice flattens any slice or array value into []any.
func toSlice(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// toMap flattens any map value into map[string]any.
func toMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Map {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[fmt.Sprint(iter.Key().Interface())] = iter.Value().Interface()
	}
	return out, true
}
