// SPDX-License-Identifier: MPL-2.0

// Package catalog maps dotted step type names to registered step types.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/conduct/conduct/internal/step"
)

// DefaultPrefixes are tried in order when no prefixes are configured: the
// name as written, then the builtin namespace.
var DefaultPrefixes = []string{"", "conduct"}

var (
	// ErrStepTypeNotFound is the sentinel error wrapped by NotFoundError.
	ErrStepTypeNotFound = errors.New("step type not found")
	// ErrDuplicateType is returned when a name is registered twice.
	ErrDuplicateType = errors.New("step type already registered")
)

type (
	// Catalog holds the registered step types. It is safe for concurrent use.
	Catalog struct {
		mu       sync.RWMutex
		types    map[string]*step.Type
		prefixes []string
	}

	// NotFoundError lists every candidate name a lookup tried.
	NotFoundError struct {
		Name  string
		Tried []string
	}
)

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("step type %q not found (tried: %s)", e.Name, strings.Join(e.Tried, ", "))
}

// Unwrap returns ErrStepTypeNotFound so callers can use errors.Is.
func (e *NotFoundError) Unwrap() error { return ErrStepTypeNotFound }

// New creates an empty catalog searching the given prefixes. Without prefixes
// DefaultPrefixes apply.
func New(prefixes ...string) *Catalog {
	if len(prefixes) == 0 {
		prefixes = DefaultPrefixes
	}
	return &Catalog{
		types:    make(map[string]*step.Type),
		prefixes: slices.Clone(prefixes),
	}
}

// Register adds step types under their own names.
func (c *Catalog) Register(types ...*step.Type) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range types {
		if _, exists := c.types[t.Name()]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateType, t.Name())
		}
		c.types[t.Name()] = t
	}
	return nil
}

// MustRegister is like Register but panics on a duplicate name.
func (c *Catalog) MustRegister(types ...*step.Type) {
	if err := c.Register(types...); err != nil {
		panic(err)
	}
}

// Lookup resolves name under each search prefix in order and returns the
// first match.
func (c *Catalog) Lookup(name string) (*step.Type, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tried := make([]string, 0, len(c.prefixes))
	for _, prefix := range c.prefixes {
		candidate := name
		if prefix != "" {
			candidate = prefix + "." + name
		}
		if slices.Contains(tried, candidate) {
			continue
		}
		tried = append(tried, candidate)
		if t, ok := c.types[candidate]; ok {
			return t, nil
		}
	}
	return nil, &NotFoundError{Name: name, Tried: tried}
}

// Names returns the registered type names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.types))
	for name := range c.types {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Prefixes returns the search prefixes in lookup order.
func (c *Catalog) Prefixes() []string {
	return slices.Clone(c.prefixes)
}
