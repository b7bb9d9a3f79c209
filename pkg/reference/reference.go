// SPDX-License-Identifier: MPL-2.0

// Package reference implements deferred values that point at chain
// parameters or at attributes of other steps.
//
// The textual form embeds addresses in braces:
//
//	{chain.imgname}
//	{steps.tmp.tmpdir}/out.txt
//	{steps.devmap.mapped[0]}
//	{steps.imgdef.config[size]}
//
// Braces that do not start with "chain." or "steps." are literal text, so shell
// snippets such as awk '{print $1}' are left untouched.
package reference

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// ScopeChain addresses a parameter of the owning chain.
	ScopeChain Scope = "chain"
	// ScopeSteps addresses an attribute of a step in the owning chain.
	ScopeSteps Scope = "steps"
)

var (
	// ErrBadAddress is the sentinel error wrapped by AddressError.
	ErrBadAddress = errors.New("bad reference address")
	// ErrUnresolvable is the sentinel error wrapped by ResolveError.
	ErrUnresolvable = errors.New("cannot resolve reference")
	// ErrBadIndex is returned when an index suffix does not fit the value.
	ErrBadIndex = errors.New("bad reference index")
	// ErrCycle is returned by resolvers when a value refers back to itself,
	// directly or through other steps.
	ErrCycle = errors.New("reference cycle")
)

type (
	// Scope is the first segment of an address.
	Scope string

	// Address is a parsed placeholder.
	Address struct {
		Scope Scope
		// Name is the chain parameter or the step name.
		Name string
		// Attr is the step attribute; empty for chain scope.
		Attr string
		// Path holds trailing keys and indices applied to the resolved value.
		Path []string
	}

	// Resolver looks up the values an Address points at.
	Resolver interface {
		ChainParam(name string) (any, error)
		StepAttr(step, attr string) (any, error)
	}

	// Reference is a deferred value. It has no value of its own until
	// resolved against a Resolver.
	Reference struct {
		raw any
	}

	// AddressError reports a malformed placeholder.
	AddressError struct {
		Address string
		Reason  string
	}

	// ResolveError reports a placeholder that could not be resolved.
	ResolveError struct {
		Address string
		Err     error
	}

	segment struct {
		literal string
		addr    string
		isAddr  bool
	}
)

// Error implements the error interface.
func (e *AddressError) Error() string {
	return fmt.Sprintf("bad reference address {%s}: %s", e.Address, e.Reason)
}

// Unwrap returns ErrBadAddress so callers can use errors.Is.
func (e *AddressError) Unwrap() error { return ErrBadAddress }

// Error implements the error interface.
func (e *ResolveError) Error() string {
	return fmt.Sprintf("cannot resolve {%s}: %v", e.Address, e.Err)
}

// Unwrap returns ErrUnresolvable and the underlying lookup error.
func (e *ResolveError) Unwrap() []error { return []error{ErrUnresolvable, e.Err} }

// String renders the address in its placeholder form without braces.
func (a Address) String() string {
	var sb strings.Builder
	sb.WriteString(string(a.Scope))
	sb.WriteByte('.')
	sb.WriteString(a.Name)
	if a.Attr != "" {
		sb.WriteByte('.')
		sb.WriteString(a.Attr)
	}
	for _, p := range a.Path {
		sb.WriteByte('[')
		sb.WriteString(p)
		sb.WriteByte(']')
	}
	return sb.String()
}

// ParseAddress parses the text between the braces of a placeholder.
func ParseAddress(s string) (Address, error) {
	head, rest := s, ""
	if i := strings.IndexByte(s, '['); i >= 0 {
		head, rest = s[:i], s[i:]
	}
	parts := strings.Split(head, ".")
	for _, p := range parts {
		if p == "" {
			return Address{}, &AddressError{Address: s, Reason: "empty segment"}
		}
	}

	var a Address
	switch Scope(parts[0]) {
	case ScopeChain:
		if len(parts) < 2 {
			return Address{}, &AddressError{Address: s, Reason: "missing chain parameter name"}
		}
		a = Address{Scope: ScopeChain, Name: parts[1], Path: parts[2:]}
	case ScopeSteps:
		if len(parts) < 3 {
			return Address{}, &AddressError{Address: s, Reason: "expected steps.<step>.<attribute>"}
		}
		a = Address{Scope: ScopeSteps, Name: parts[1], Attr: parts[2], Path: parts[3:]}
	default:
		return Address{}, &AddressError{Address: s, Reason: "scope must be chain or steps"}
	}
	a.Path = append([]string(nil), a.Path...)

	for rest != "" {
		if rest[0] != '[' {
			return Address{}, &AddressError{Address: s, Reason: "unexpected text after index"}
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return Address{}, &AddressError{Address: s, Reason: "unterminated index"}
		}
		key := strings.Trim(rest[1:end], `'"`)
		if key == "" {
			return Address{}, &AddressError{Address: s, Reason: "empty index"}
		}
		a.Path = append(a.Path, key)
		rest = rest[end+1:]
	}
	return a, nil
}

// Contains reports whether v is a Reference, or is or contains a string with
// at least one placeholder.
func Contains(v any) bool {
	switch x := v.(type) {
	case *Reference:
		return true
	case string:
		for _, seg := range split(x) {
			if seg.isAddr {
				return true
			}
		}
	case []any:
		for _, item := range x {
			if Contains(item) {
				return true
			}
		}
	case []string:
		for _, item := range x {
			if Contains(item) {
				return true
			}
		}
	case map[string]any:
		for _, item := range x {
			if Contains(item) {
				return true
			}
		}
	}
	return false
}

// New wraps a raw template (a string, or a list or map holding strings) as a
// Reference.
func New(raw any) *Reference {
	return &Reference{raw: raw}
}

// Raw returns the unresolved template.
func (r *Reference) Raw() any { return r.raw }

// String returns the unresolved template text.
func (r *Reference) String() string { return fmt.Sprint(r.raw) }

// Addresses returns every placeholder in the template, in order.
func (r *Reference) Addresses() ([]Address, error) {
	var out []Address
	err := walkStrings(r.raw, func(s string) error {
		for _, seg := range split(s) {
			if !seg.isAddr {
				continue
			}
			a, err := ParseAddress(seg.addr)
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return nil
	})
	return out, err
}

// Resolve evaluates the template against res. Nothing is cached; each call
// reads current values.
func (r *Reference) Resolve(res Resolver) (any, error) {
	return resolveValue(r.raw, res)
}

func resolveValue(v any, res Resolver) (any, error) {
	switch x := v.(type) {
	case string:
		return resolveString(x, res)
	case []string:
		out := make([]any, len(x))
		for i, item := range x {
			rv, err := resolveString(item, res)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			rv, err := resolveValue(item, res)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			rv, err := resolveValue(item, res)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	}
	return v, nil
}

func resolveString(s string, res Resolver) (any, error) {
	segs := split(s)
	if len(segs) == 1 && segs[0].isAddr {
		return resolveAddress(segs[0].addr, res)
	}
	var sb strings.Builder
	for _, seg := range segs {
		if !seg.isAddr {
			sb.WriteString(seg.literal)
			continue
		}
		v, err := resolveAddress(seg.addr, res)
		if err != nil {
			return nil, err
		}
		sb.WriteString(Text(v))
	}
	return sb.String(), nil
}

func resolveAddress(text string, res Resolver) (any, error) {
	a, err := ParseAddress(text)
	if err != nil {
		return nil, err
	}
	var v any
	switch a.Scope {
	case ScopeChain:
		v, err = res.ChainParam(a.Name)
	default:
		v, err = res.StepAttr(a.Name, a.Attr)
	}
	if err != nil {
		return nil, &ResolveError{Address: text, Err: err}
	}
	for _, key := range a.Path {
		v, err = index(v, key)
		if err != nil {
			return nil, &ResolveError{Address: text, Err: err}
		}
	}
	return v, nil
}

func index(v any, key string) (any, error) {
	switch x := v.(type) {
	case []any:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(x) {
			return nil, fmt.Errorf("%w: [%s] on list of %d", ErrBadIndex, key, len(x))
		}
		return x[i], nil
	case []string:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(x) {
			return nil, fmt.Errorf("%w: [%s] on list of %d", ErrBadIndex, key, len(x))
		}
		return x[i], nil
	case map[string]any:
		item, ok := x[key]
		if !ok {
			return nil, fmt.Errorf("%w: no key %q", ErrBadIndex, key)
		}
		return item, nil
	}
	return nil, fmt.Errorf("%w: [%s] on %T", ErrBadIndex, key, v)
}

// Text renders a resolved value for substitution into a template. A nil
// value renders as the empty string.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []any:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = Text(item)
		}
		return strings.Join(parts, " ")
	}
	return fmt.Sprint(v)
}

func walkStrings(v any, fn func(string) error) error {
	switch x := v.(type) {
	case string:
		return fn(x)
	case []string:
		for _, s := range x {
			if err := fn(s); err != nil {
				return err
			}
		}
	case []any:
		for _, item := range x {
			if err := walkStrings(item, fn); err != nil {
				return err
			}
		}
	case map[string]any:
		for _, item := range x {
			if err := walkStrings(item, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// split cuts s into literal text and placeholder segments. Only braces whose
// content starts with a known scope are placeholders.
func split(s string) []segment {
	var segs []segment
	var lit strings.Builder
	for i := 0; i < len(s); {
		if s[i] == '{' {
			if end := strings.IndexByte(s[i+1:], '}'); end >= 0 {
				inner := s[i+1 : i+1+end]
				if isAddressLike(inner) {
					if lit.Len() > 0 {
						segs = append(segs, segment{literal: lit.String()})
						lit.Reset()
					}
					segs = append(segs, segment{addr: inner, isAddr: true})
					i += end + 2
					continue
				}
			}
		}
		lit.WriteByte(s[i])
		i++
	}
	if lit.Len() > 0 || len(segs) == 0 {
		segs = append(segs, segment{literal: lit.String()})
	}
	return segs
}

func isAddressLike(inner string) bool {
	if strings.ContainsAny(inner, " \t\n{") {
		return false
	}
	return inner == string(ScopeChain) || inner == string(ScopeSteps) ||
		strings.HasPrefix(inner, string(ScopeChain)+".") ||
		strings.HasPrefix(inner, string(ScopeSteps)+".") ||
		strings.HasPrefix(inner, string(ScopeChain)+"[") ||
		strings.HasPrefix(inner, string(ScopeSteps)+"[")
}
