// SPDX-License-Identifier: MPL-2.0

// Package chain runs an ordered list of build steps and unwinds the steps
// that succeeded once the forward pass is over.
//
// Entries build strictly in declaration order. The first entry that fails
// stops the forward pass. Whatever the outcome, every entry is then asked to
// clean up in reverse order; only entries that succeeded actually do work.
// Steps address values of the chain and of earlier steps through references
// such as {chain.imgname} or {steps.tmp.tmpdir}, which the chain resolves on
// every read.
package chain

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/conduct/conduct/internal/dag"
	"github.com/conduct/conduct/internal/step"
	"github.com/conduct/conduct/pkg/param"
	"github.com/conduct/conduct/pkg/reference"
)

var rule = strings.Repeat("#", 80)

type (
	// Entry is one buildable element of a chain: a step instance or a
	// nested chain.
	Entry interface {
		Build(ctx context.Context) step.Result
		CleanupBuild(ctx context.Context) step.Result
	}

	// Catalog resolves step type names.
	Catalog interface {
		Lookup(name string) (*step.Type, error)
	}

	// Chain is a constructed chain. It is not safe for concurrent use.
	Chain struct {
		name    string
		def     *Definition
		params  map[string]any
		entries []member
		index   map[string]int
		env     *step.Env
		log     *log.Logger

		// resolving holds the step.attr reads in progress.
		resolving map[string]struct{}
	}

	member struct {
		name  string
		entry Entry
	}

	builder struct {
		catalog Catalog
		loader  Loader
		graph   *dag.Graph
	}
)

// New constructs the chain called name from def. Overrides replace the
// defaults of chain parameters. Every step type is looked up and every step
// parameter validated now, so configuration errors surface before anything
// runs. Nested chains are loaded through loader, which may be nil when def
// has none.
func New(name string, def *Definition, overrides map[string]any, catalog Catalog, loader Loader, env *step.Env) (*Chain, error) {
	b := &builder{catalog: catalog, loader: loader, graph: dag.New()}
	b.graph.AddNode(name)
	if env == nil {
		env = &step.Env{}
	}
	return b.build(name, def, overrides, env.ForChain(name))
}

func (b *builder) build(name string, def *Definition, overrides map[string]any, env *step.Env) (*Chain, error) {
	c := &Chain{
		name:  name,
		def:   def,
		index:     make(map[string]int, len(def.Steps)),
		env:       env,
		log:       env.Log,
		resolving: make(map[string]struct{}),
	}

	params, err := chainParams(name, def, overrides)
	if err != nil {
		return nil, err
	}
	c.params = params

	for _, spec := range def.Steps {
		if spec.Name == "" {
			return nil, &EntryError{Chain: name, Entry: spec.Name, Err: fmt.Errorf("%w: missing name", ErrInvalidEntry)}
		}
		if _, dup := c.index[spec.Name]; dup {
			return nil, &EntryError{Chain: name, Entry: spec.Name, Err: ErrDuplicateStep}
		}

		entry, err := b.entry(c, spec)
		if err != nil {
			return nil, &EntryError{Chain: name, Entry: spec.Name, Err: err}
		}
		c.index[spec.Name] = len(c.entries)
		c.entries = append(c.entries, member{name: spec.Name, entry: entry})
	}
	return c, nil
}

func (b *builder) entry(c *Chain, spec StepSpec) (Entry, error) {
	switch {
	case spec.Type != "" && spec.Chain != "":
		return nil, fmt.Errorf("%w: both type %q and chain %q given", ErrInvalidEntry, spec.Type, spec.Chain)
	case spec.Type != "":
		typ, err := b.catalog.Lookup(spec.Type)
		if err != nil {
			return nil, err
		}
		return step.New(spec.Name, typ, spec.Params, c, c.env)
	case spec.Chain != "":
		if len(spec.Params) > 0 {
			return nil, ErrNestedParams
		}
		if b.loader == nil {
			return nil, ErrNoLoader
		}
		if err := b.graph.Include(c.name, spec.Chain); err != nil {
			return nil, err
		}
		def, err := b.loader.Load(spec.Chain)
		if err != nil {
			return nil, err
		}
		nested, err := b.build(spec.Chain, def, nil, c.env.ForChain(spec.Name))
		if err != nil {
			return nil, err
		}
		return nested, nil
	default:
		return nil, fmt.Errorf("%w: neither type nor chain given", ErrInvalidEntry)
	}
}

func chainParams(name string, def *Definition, overrides map[string]any) (map[string]any, error) {
	var unknown []string
	for k := range overrides {
		if _, ok := def.Param(k); !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("chain %q: %w: %s", name, ErrUnknownParam, strings.Join(unknown, ", "))
	}

	params := make(map[string]any, len(def.Parameters))
	for _, p := range def.Parameters {
		if v, ok := overrides[p.Name]; ok {
			converted, err := p.Descriptor.Convert(p.Name, v)
			if err != nil {
				return nil, fmt.Errorf("chain %q: %w", name, err)
			}
			params[p.Name] = converted
			continue
		}
		if p.Descriptor.Mandatory() {
			return nil, &param.MissingError{Owner: name, Param: p.Name}
		}
		params[p.Name] = p.Descriptor.Default
	}
	return params, nil
}

// Name returns the chain name.
func (c *Chain) Name() string { return c.name }

// Description returns the definition's description.
func (c *Chain) Description() string { return c.def.Description }

// Params returns a copy of the validated chain parameters.
func (c *Chain) Params() map[string]any { return maps.Clone(c.params) }

// Steps returns the entry names in execution order.
func (c *Chain) Steps() []string {
	names := make([]string, len(c.entries))
	for i, m := range c.entries {
		names[i] = m.name
	}
	return names
}

// Step returns the step instance called name. Nested chains are not steps.
func (c *Chain) Step(name string) (*step.Instance, bool) {
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	inst, ok := c.entries[i].entry.(*step.Instance)
	return inst, ok
}

// ChainParam implements reference.Resolver.
func (c *Chain) ChainParam(name string) (any, error) {
	v, ok := c.params[name]
	if !ok {
		return nil, fmt.Errorf("chain %q: %w %q", c.name, ErrUnknownParam, name)
	}
	return v, nil
}

// StepAttr implements reference.Resolver. The attribute is read through the
// step's accessor, so references inside it resolve as well. Reading an
// attribute whose value leads back to itself fails with reference.ErrCycle.
func (c *Chain) StepAttr(name, attr string) (any, error) {
	i, ok := c.index[name]
	if !ok {
		return nil, fmt.Errorf("chain %q: %w %q", c.name, ErrUnknownStep, name)
	}
	inst, ok := c.entries[i].entry.(*step.Instance)
	if !ok {
		return nil, fmt.Errorf("chain %q: entry %q is a nested chain and has no attributes", c.name, name)
	}

	key := name + "." + attr
	if _, busy := c.resolving[key]; busy {
		return nil, fmt.Errorf("chain %q: %w through steps.%s", c.name, reference.ErrCycle, key)
	}
	c.resolving[key] = struct{}{}
	defer delete(c.resolving, key)
	return inst.Get(attr)
}

// Build runs the forward pass and then the reverse cleanup pass. Cleanup runs
// on a context that is not cancelled with ctx, so an interrupted build still
// unwinds. A failed step and a failed cleanup are both reported.
func (c *Chain) Build(ctx context.Context) step.Result {
	c.log.Info(rule)
	c.log.Info("Chain: " + c.name)
	if c.def.Description != "" {
		c.log.Info(c.def.Description)
	}
	c.log.Info(rule)

	buildErr := c.forward(ctx)
	cleanupErr := c.unwind(context.WithoutCancel(ctx))

	ok := buildErr == nil && cleanupErr == nil
	c.env.Metrics.BuildFinished(c.env.Chain, ok, time.Now())
	if ok {
		return step.OK()
	}
	return step.Fatal(errors.Join(buildErr, cleanupErr))
}

func (c *Chain) forward(ctx context.Context) error {
	for _, m := range c.entries {
		if err := ctx.Err(); err != nil {
			c.log.Error("Build interrupted", "before", m.name)
			return &StepError{Chain: c.name, Step: m.name, Err: err}
		}
		res := m.entry.Build(ctx)
		if !res.OK() {
			c.log.Error(rule)
			c.log.Error("Step failed; Stop building the chain and clean up", "step", m.name)
			c.log.Error(rule)
			return &StepError{Chain: c.name, Step: m.name, Err: res.Err}
		}
	}
	return nil
}

// unwind cleans up in reverse declaration order and stops at the first
// failure: later cleanups may depend on the state the failed one left behind.
func (c *Chain) unwind(ctx context.Context) error {
	for i := len(c.entries) - 1; i >= 0; i-- {
		m := c.entries[i]
		if res := m.entry.CleanupBuild(ctx); !res.OK() {
			c.log.Error("Cleanup failed; Remaining steps are left as they are", "step", m.name)
			return res.Err
		}
	}
	return nil
}

// CleanupBuild is a no-op: a chain unwinds itself at the end of Build.
func (c *Chain) CleanupBuild(context.Context) step.Result {
	return step.OK()
}
