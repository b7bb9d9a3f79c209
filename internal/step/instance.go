// SPDX-License-Identifier: MPL-2.0

package step

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/conduct/conduct/internal/runtime"
	"github.com/conduct/conduct/pkg/param"
	"github.com/conduct/conduct/pkg/reference"
)

// Lifecycle states of an Instance.
const (
	StateCreated State = iota
	StateRunning
	StateSucceeded
	StateFailed
	StateCleanedUp
)

type (
	// State is the lifecycle position of an Instance.
	State int

	// Instance is a constructed step: parameter values (validated or
	// deferred), output values and the lifecycle state. An Instance is not
	// safe for concurrent use.
	Instance struct {
		name     string
		typ      *Type
		values   map[string]any
		outs     map[string]any
		resolver reference.Resolver
		env      *Env
		log      *log.Logger
		state    State
	}
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCleanedUp:
		return "cleaned up"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// New constructs a step instance. Values that contain reference placeholders
// are stored unresolved; all others are validated now. A mandatory parameter
// without a value is a configuration error.
func New(name string, typ *Type, values map[string]any, res reference.Resolver, env *Env) (*Instance, error) {
	if env == nil {
		env = &Env{}
	}
	logger := env.logger()
	prefix := name
	if env.Chain != "" {
		prefix = env.Chain + "." + name
	}
	s := &Instance{
		name:     name,
		typ:      typ,
		values:   make(map[string]any),
		outs:     make(map[string]any),
		resolver: res,
		env:      env,
		log:      logger.WithPrefix(prefix),
	}

	var unknown []string
	for k := range values {
		if _, ok := typ.index[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &UnknownParamError{Step: name, Type: typ.name, Param: unknown[0]}
	}

	// Apply in table order so hooks run deterministically.
	for _, acc := range typ.params {
		v, ok := values[acc.Name]
		if !ok {
			continue
		}
		if err := s.Set(acc.Name, v); err != nil {
			return nil, err
		}
	}

	for _, acc := range typ.params {
		if _, ok := values[acc.Name]; !ok && acc.Descriptor.Mandatory() {
			return nil, &param.MissingError{Owner: name, Param: acc.Name}
		}
	}
	return s, nil
}

// Name returns the step name, unique within its chain.
func (s *Instance) Name() string { return s.name }

// Type returns the step type.
func (s *Instance) Type() *Type { return s.typ }

// State returns the lifecycle state.
func (s *Instance) State() State { return s.state }

// Log returns the step's logger.
func (s *Instance) Log() *log.Logger { return s.log }

// Env returns the shared execution context.
func (s *Instance) Env() *Env { return s.env }

// Set writes an input parameter.
func (s *Instance) Set(name string, v any) error {
	acc, ok := s.typ.Param(name)
	if !ok {
		return &UnknownParamError{Step: s.name, Type: s.typ.name, Param: name}
	}
	return s.write(acc, s.values, v)
}

// SetOutput writes an output parameter. Run actions call it.
func (s *Instance) SetOutput(name string, v any) error {
	acc, ok := s.typ.Output(name)
	if !ok {
		return &UnknownParamError{Step: s.name, Type: s.typ.name, Param: name}
	}
	return s.write(acc, s.outs, v)
}

func (s *Instance) write(acc Accessor, store map[string]any, v any) error {
	if acc.Write != nil && reference.Contains(v) {
		return fmt.Errorf("step %q: parameter %q: %w", s.name, acc.Name, ErrNotDeferrable)
	}
	if ref, ok := v.(*reference.Reference); ok {
		store[acc.Name] = ref
		return nil
	}
	if reference.Contains(v) {
		store[acc.Name] = reference.New(v)
		return nil
	}
	converted, err := acc.Descriptor.Convert(acc.Name, v)
	if err != nil {
		return fmt.Errorf("step %q: %w", s.name, err)
	}
	if acc.Write != nil {
		if err := acc.Write(s, converted); err != nil {
			return fmt.Errorf("step %q: parameter %q: %w", s.name, acc.Name, err)
		}
		return nil
	}
	store[acc.Name] = converted
	return nil
}

// Get reads an input or output parameter. Deferred values are resolved
// against the owning chain on every call and validated after resolution.
func (s *Instance) Get(name string) (any, error) {
	if acc, ok := s.typ.Param(name); ok {
		return s.read(acc, s.values)
	}
	if acc, ok := s.typ.Output(name); ok {
		return s.read(acc, s.outs)
	}
	return nil, &UnknownParamError{Step: s.name, Type: s.typ.name, Param: name}
}

func (s *Instance) read(acc Accessor, store map[string]any) (any, error) {
	if acc.Read != nil {
		return acc.Read(s)
	}
	raw, ok := store[acc.Name]
	if !ok {
		if acc.Descriptor.HasDefault {
			return acc.Descriptor.Default, nil
		}
		return nil, nil
	}
	ref, ok := raw.(*reference.Reference)
	if !ok {
		return raw, nil
	}
	if s.resolver == nil {
		return nil, fmt.Errorf("step %q: parameter %q: no resolver for %s", s.name, acc.Name, ref)
	}
	resolved, err := ref.Resolve(s.resolver)
	if err != nil {
		return nil, fmt.Errorf("step %q: parameter %q: %w", s.name, acc.Name, err)
	}
	converted, err := acc.Descriptor.Convert(acc.Name, resolved)
	if err != nil {
		return nil, fmt.Errorf("step %q: %w", s.name, err)
	}
	return converted, nil
}

// Exec runs an external command through the environment's runner with this
// step's logger. A start failure or non-zero exit is returned as an error; the
// collected stdout lines are returned in both cases.
func (s *Instance) Exec(ctx context.Context, cmd *runtime.Command) ([]string, error) {
	if cmd.Logger == nil {
		cmd.Logger = s.log
	}
	res := s.env.runner().Run(ctx, cmd)
	return res.Output, res.Err()
}
