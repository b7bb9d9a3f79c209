// SPDX-License-Identifier: MPL-2.0

package chain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/conduct/conduct/internal/catalog"
	"github.com/conduct/conduct/internal/dag"
	"github.com/conduct/conduct/internal/step"
	"github.com/conduct/conduct/pkg/param"
	"github.com/conduct/conduct/pkg/reference"
)

var errBoom = errors.New("boom")

// journal records run and cleanup calls in order.
type journal struct {
	events []string
}

func (j *journal) add(format string, args ...any) {
	j.events = append(j.events, fmt.Sprintf(format, args...))
}

type mapLoader map[string]*Definition

func (l mapLoader) Load(name string) (*Definition, error) {
	def, ok := l[name]
	if !ok {
		return nil, fmt.Errorf("chain %q not found", name)
	}
	return def, nil
}

func newCatalog(j *journal) *catalog.Catalog {
	record := step.MustDefine(step.TypeSpec{
		Name:    "test.Record",
		Extends: step.Base,
		Params: []step.Accessor{
			step.Param("fail", param.MustDefine(param.Bool, "Fail the run", param.Default(false))),
			step.Param("failcleanup", param.MustDefine(param.Bool, "Fail the cleanup", param.Default(false))),
		},
		Run: func(_ context.Context, s *step.Instance) step.Result {
			j.add("run:%s", s.Name())
			if fail, _ := step.Value[bool](s, "fail"); fail {
				return step.Retryable(errBoom)
			}
			return step.OK()
		},
		Cleanup: func(_ context.Context, s *step.Instance) step.Result {
			j.add("cleanup:%s", s.Name())
			if fail, _ := step.Value[bool](s, "failcleanup"); fail {
				return step.Fatal(errBoom)
			}
			return step.OK()
		},
	})
	tmp := step.MustDefine(step.TypeSpec{
		Name:    "test.Tmp",
		Extends: step.Base,
		Outputs: []step.Accessor{
			step.Param("tmpdir", param.MustDefine(param.Str, "Created directory", param.Default(""))),
		},
		Run: func(_ context.Context, s *step.Instance) step.Result {
			return step.FromError(s.SetOutput("tmpdir", "/tmp/abcd"))
		},
	})
	write := step.MustDefine(step.TypeSpec{
		Name:    "test.Write",
		Extends: step.Base,
		Params: []step.Accessor{
			step.Param("path", param.MustDefine(param.Str, "Target path")),
		},
		Run: func(_ context.Context, s *step.Instance) step.Result {
			path, err := step.Value[string](s, "path")
			if err != nil {
				return step.Fatal(err)
			}
			j.add("write:%s", path)
			return step.OK()
		},
	})
	c := catalog.New()
	c.MustRegister(record, tmp, write)
	return c
}

func testEnv() (*step.Env, *bytes.Buffer) {
	var buf bytes.Buffer
	return &step.Env{Log: log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})}, &buf
}

func TestBuildStopsAndUnwinds(t *testing.T) {
	t.Parallel()

	j := &journal{}
	def := &Definition{Steps: []StepSpec{
		{Name: "A", Type: "test.Record"},
		{Name: "B", Type: "test.Record", Params: map[string]any{"fail": true}},
		{Name: "C", Type: "test.Record"},
	}}
	env, buf := testEnv()
	c, err := New("abc", def, nil, newCatalog(j), nil, env)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res := c.Build(context.Background())
	if res.OK() {
		t.Fatal("Build() succeeded, want failure")
	}
	var stepErr *StepError
	if !errors.As(res.Err, &stepErr) || stepErr.Step != "B" {
		t.Fatalf("Build() err = %v, want StepError for B", res.Err)
	}
	if !errors.Is(res.Err, ErrStepFailed) || !errors.Is(res.Err, step.ErrBuildFailed) {
		t.Errorf("Build() err = %v, want ErrStepFailed and ErrBuildFailed", res.Err)
	}

	want := []string{"run:A", "run:B", "cleanup:A"}
	if !slices.Equal(j.events, want) {
		t.Errorf("events = %v, want %v", j.events, want)
	}
	if got := strings.Count(buf.String(), "Cleanup: Step was not run; Skip"); got != 2 {
		t.Errorf("%d skipped cleanups logged, want 2 (B and C)", got)
	}
}

func TestBuildReverseCleanup(t *testing.T) {
	t.Parallel()

	j := &journal{}
	def := &Definition{Steps: []StepSpec{
		{Name: "one", Type: "test.Record"},
		{Name: "two", Type: "conduct.test.Record"},
		{Name: "three", Type: "test.Record"},
	}}
	c, err := New("rev", def, nil, newCatalog(j), nil, nil)
	if err == nil {
		t.Fatal("New() accepted an unregistered name")
	}
	if !errors.Is(err, catalog.ErrStepTypeNotFound) {
		t.Fatalf("New() error = %v, want ErrStepTypeNotFound", err)
	}

	def.Steps[1].Type = "test.Record"
	if c, err = New("rev", def, nil, newCatalog(j), nil, nil); err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if res := c.Build(context.Background()); !res.OK() {
		t.Fatalf("Build() = %v", res)
	}
	want := []string{"run:one", "run:two", "run:three", "cleanup:three", "cleanup:two", "cleanup:one"}
	if !slices.Equal(j.events, want) {
		t.Errorf("events = %v, want %v", j.events, want)
	}
}

func TestCleanupFailureIsReported(t *testing.T) {
	t.Parallel()

	j := &journal{}
	def := &Definition{Steps: []StepSpec{
		{Name: "outer", Type: "test.Record"},
		{Name: "busy", Type: "test.Record", Params: map[string]any{"failcleanup": true}},
		{Name: "broken", Type: "test.Record", Params: map[string]any{"fail": true}},
	}}
	c, err := New("cl", def, nil, newCatalog(j), nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	res := c.Build(context.Background())
	if !errors.Is(res.Err, ErrStepFailed) || !errors.Is(res.Err, step.ErrCleanupFailed) {
		t.Fatalf("Build() err = %v, want both the step and the cleanup failure", res.Err)
	}
	// The unwind stops at the failed cleanup.
	want := []string{"run:outer", "run:busy", "run:broken", "cleanup:busy"}
	if !slices.Equal(j.events, want) {
		t.Errorf("events = %v, want %v", j.events, want)
	}
}

func TestReferencesBetweenSteps(t *testing.T) {
	t.Parallel()

	j := &journal{}
	def := &Definition{
		Parameters: []ParamDef{
			{Name: "imgname", Descriptor: param.MustDefine(param.Str, "Image name", param.Default("box"))},
		},
		Steps: []StepSpec{
			{Name: "tmp", Type: "test.Tmp"},
			{Name: "out", Type: "test.Write", Params: map[string]any{"path": "{steps.tmp.tmpdir}/out.txt"}},
			{Name: "img", Type: "test.Write", Params: map[string]any{"path": "{steps.tmp.tmpdir}/{chain.imgname}.img"}},
		},
	}
	c, err := New("refs", def, map[string]any{"imgname": "sys"}, newCatalog(j), nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	out, ok := c.Step("out")
	if !ok {
		t.Fatal("Step(out) not found")
	}
	if got, _ := out.Get("path"); got != "/out.txt" {
		t.Errorf("path before tmp ran = %#v, want /out.txt", got)
	}

	if res := c.Build(context.Background()); !res.OK() {
		t.Fatalf("Build() = %v", res)
	}
	want := []string{"write:/tmp/abcd/out.txt", "write:/tmp/abcd/sys.img"}
	if !slices.Equal(j.events, want) {
		t.Errorf("events = %v, want %v", j.events, want)
	}
	if got, _ := out.Get("path"); got != "/tmp/abcd/out.txt" {
		t.Errorf("path after tmp ran = %#v", got)
	}
}

func TestUnresolvableReferenceFailsTheStep(t *testing.T) {
	t.Parallel()

	j := &journal{}
	def := &Definition{Steps: []StepSpec{
		{Name: "out", Type: "test.Write", Params: map[string]any{"path": "{steps.nosuch.tmpdir}/x"}},
	}}
	c, err := New("bad", def, nil, newCatalog(j), nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	res := c.Build(context.Background())
	if !errors.Is(res.Err, reference.ErrUnresolvable) || !errors.Is(res.Err, ErrUnknownStep) {
		t.Errorf("Build() err = %v, want an unresolvable reference", res.Err)
	}
}

func TestReferenceCycleFailsTheStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		steps []StepSpec
	}{
		{
			name: "self",
			steps: []StepSpec{
				{Name: "w", Type: "test.Write", Params: map[string]any{"path": "{steps.w.path}/x"}},
			},
		},
		{
			name: "two steps",
			steps: []StepSpec{
				{Name: "a", Type: "test.Write", Params: map[string]any{"path": "{steps.b.path}"}},
				{Name: "b", Type: "test.Write", Params: map[string]any{"path": "/srv/{steps.a.path}"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			j := &journal{}
			steps := append([]StepSpec{{Name: "first", Type: "test.Record"}}, tt.steps...)
			c, err := New("cycle", &Definition{Steps: steps}, nil, newCatalog(j), nil, nil)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			res := c.Build(context.Background())
			if res.OK() {
				t.Fatal("Build() succeeded, want a failure")
			}
			if !errors.Is(res.Err, reference.ErrCycle) || !errors.Is(res.Err, reference.ErrUnresolvable) {
				t.Errorf("Build() err = %v, want a reference cycle", res.Err)
			}
			if want := []string{"run:first", "cleanup:first"}; !slices.Equal(j.events, want) {
				t.Errorf("events = %v, want %v", j.events, want)
			}
			if len(c.resolving) != 0 {
				t.Errorf("resolving = %v after Build, want empty", c.resolving)
			}
		})
	}
}

func TestChainParams(t *testing.T) {
	t.Parallel()

	def := &Definition{Parameters: []ParamDef{
		{Name: "size", Descriptor: param.MustDefine(param.Int, "Image size in MB")},
		{Name: "arch", Descriptor: param.MustDefine(param.Str, "Arch", param.Default("amd64"))},
	}}

	tests := []struct {
		name      string
		overrides map[string]any
		wantErr   error
		want      map[string]any
	}{
		{"override converted", map[string]any{"size": "512"}, nil, map[string]any{"size": 512, "arch": "amd64"}},
		{"override wins", map[string]any{"size": 1, "arch": "armhf"}, nil, map[string]any{"size": 1, "arch": "armhf"}},
		{"missing mandatory", nil, param.ErrMissingMandatory, nil},
		{"invalid value", map[string]any{"size": "big"}, param.ErrInvalidValue, nil},
		{"unknown override", map[string]any{"size": 1, "colour": "red"}, ErrUnknownParam, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, err := New("params", def, tt.overrides, catalog.New(), nil, nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			got := c.Params()
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("param %s = %#v, want %#v", k, got[k], v)
				}
			}
		})
	}
}

func TestConstructionErrors(t *testing.T) {
	t.Parallel()

	loader := mapLoader{
		"loop": {Steps: []StepSpec{{Name: "again", Chain: "loop"}}},
	}
	tests := []struct {
		name    string
		steps   []StepSpec
		wantErr error
	}{
		{"duplicate names", []StepSpec{{Name: "a", Type: "test.Record"}, {Name: "a", Type: "test.Record"}}, ErrDuplicateStep},
		{"no type", []StepSpec{{Name: "a"}}, ErrInvalidEntry},
		{"type and chain", []StepSpec{{Name: "a", Type: "test.Record", Chain: "loop"}}, ErrInvalidEntry},
		{"unknown step param", []StepSpec{{Name: "a", Type: "test.Record", Params: map[string]any{"nope": 1}}}, step.ErrUnknownParam},
		{"missing step param", []StepSpec{{Name: "a", Type: "test.Write"}}, param.ErrMissingMandatory},
		{"params on nested chain", []StepSpec{{Name: "a", Chain: "loop", Params: map[string]any{"x": 1}}}, ErrNestedParams},
		{"inclusion cycle", []StepSpec{{Name: "a", Chain: "loop"}}, dag.ErrCycle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New("top", &Definition{Steps: tt.steps}, nil, newCatalog(&journal{}), loader, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	_, err := New("top", &Definition{Steps: []StepSpec{{Name: "sub", Chain: "loop"}}}, nil, catalog.New(), nil, nil)
	if !errors.Is(err, ErrNoLoader) {
		t.Errorf("New() without loader error = %v, want ErrNoLoader", err)
	}
}

func TestNestedChain(t *testing.T) {
	t.Parallel()

	j := &journal{}
	loader := mapLoader{
		"inner": {
			Parameters: []ParamDef{
				{Name: "label", Descriptor: param.MustDefine(param.Str, "Label", param.Default("in"))},
			},
			Steps: []StepSpec{
				{Name: "x", Type: "test.Record"},
				{Name: "y", Type: "test.Record"},
			},
		},
	}
	def := &Definition{Steps: []StepSpec{
		{Name: "first", Type: "test.Record"},
		{Name: "sub", Chain: "inner"},
		{Name: "last", Type: "test.Record"},
	}}
	env, buf := testEnv()
	c, err := New("outer", def, nil, newCatalog(j), loader, env)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := c.Step("sub"); ok {
		t.Error("Step(sub) returned a nested chain as a step")
	}
	if _, err := c.StepAttr("sub", "label"); err == nil {
		t.Error("StepAttr on a nested chain succeeded")
	}

	if res := c.Build(context.Background()); !res.OK() {
		t.Fatalf("Build() = %v", res)
	}
	want := []string{
		"run:first", "run:x", "run:y", "cleanup:y", "cleanup:x",
		"run:last", "cleanup:last", "cleanup:first",
	}
	if !slices.Equal(j.events, want) {
		t.Errorf("events = %v, want %v", j.events, want)
	}
	if !strings.Contains(buf.String(), "outer.sub.x") {
		t.Errorf("nested step logger prefix missing:\n%s", buf.String())
	}
}

func TestInterruptedBuildStillUnwinds(t *testing.T) {
	t.Parallel()

	j := &journal{}
	ctx, cancel := context.WithCancel(context.Background())
	cat := newCatalog(j)
	cancelling := step.MustDefine(step.TypeSpec{
		Name:    "test.Cancel",
		Extends: step.Base,
		Run: func(context.Context, *step.Instance) step.Result {
			j.add("run:cancel")
			cancel()
			return step.OK()
		},
	})
	cat.MustRegister(cancelling)

	def := &Definition{Steps: []StepSpec{
		{Name: "a", Type: "test.Record"},
		{Name: "stop", Type: "test.Cancel"},
		{Name: "b", Type: "test.Record"},
	}}
	c, err := New("int", def, nil, cat, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	res := c.Build(ctx)
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("Build() err = %v, want context.Canceled", res.Err)
	}
	want := []string{"run:a", "run:cancel", "cleanup:a"}
	if !slices.Equal(j.events, want) {
		t.Errorf("events = %v, want %v", j.events, want)
	}
}
