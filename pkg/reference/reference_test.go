// SPDX-License-Identifier: MPL-2.0

package reference

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

type fakeResolver struct {
	chain map[string]any
	steps map[string]map[string]any
}

func (f *fakeResolver) ChainParam(name string) (any, error) {
	v, ok := f.chain[name]
	if !ok {
		return nil, fmt.Errorf("no chain parameter %q", name)
	}
	return v, nil
}

func (f *fakeResolver) StepAttr(step, attr string) (any, error) {
	attrs, ok := f.steps[step]
	if !ok {
		return nil, fmt.Errorf("no step %q", step)
	}
	v, ok := attrs[attr]
	if !ok {
		return nil, fmt.Errorf("step %q has no attribute %q", step, attr)
	}
	return v, nil
}

func newFake() *fakeResolver {
	return &fakeResolver{
		chain: map[string]any{"imgname": "box", "size": 512},
		steps: map[string]map[string]any{
			"tmp":    {"tmpdir": "/tmp/abcd"},
			"devmap": {"mapped": []any{"/dev/mapper/loop0p1", "/dev/mapper/loop0p2"}},
			"imgdef": {"config": map[string]any{"size": 1024, "parts": map[string]any{"boot": 64}}},
		},
	}
}

func TestParseAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Address
		wantErr bool
	}{
		{"chain.imgname", Address{Scope: ScopeChain, Name: "imgname", Path: []string{}}, false},
		{"steps.tmp.tmpdir", Address{Scope: ScopeSteps, Name: "tmp", Attr: "tmpdir", Path: []string{}}, false},
		{"steps.devmap.mapped[0]", Address{Scope: ScopeSteps, Name: "devmap", Attr: "mapped", Path: []string{"0"}}, false},
		{"steps.imgdef.config.parts[boot]", Address{Scope: ScopeSteps, Name: "imgdef", Attr: "config", Path: []string{"parts", "boot"}}, false},
		{"steps.tmp", Address{}, true},
		{"chain", Address{}, true},
		{"steps..x", Address{}, true},
		{"steps.a.b[", Address{}, true},
		{"steps.a.b[0]x", Address{}, true},
		{"env.HOME", Address{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseAddress(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAddress(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrBadAddress) {
					t.Errorf("error %v does not wrap ErrBadAddress", err)
				}
				return
			}
			if got.Scope != tt.want.Scope || got.Name != tt.want.Name || got.Attr != tt.want.Attr ||
				len(got.Path) != len(tt.want.Path) {
				t.Fatalf("ParseAddress(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
			for i := range got.Path {
				if got.Path[i] != tt.want.Path[i] {
					t.Errorf("Path[%d] = %q, want %q", i, got.Path[i], tt.want.Path[i])
				}
			}
		})
	}
}

func TestContains(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   any
		want bool
	}{
		{"plain text", false},
		{"awk '{print $1}'", false},
		{"{chain.x}", true},
		{"{steps.tmp.tmpdir}/out", true},
		{"{steps.broken}", true},
		{[]any{"a", "{chain.x}"}, true},
		{[]string{"a", "b"}, false},
		{map[string]any{"k": "{chain.x}"}, true},
		{42, false},
		{New("plain"), true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			t.Parallel()
			if got := Contains(tt.in); got != tt.want {
				t.Errorf("Contains(%#v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  any
		want any
	}{
		{"single placeholder keeps type", "{chain.size}", 512},
		{"template concatenates", "{steps.tmp.tmpdir}/out.txt", "/tmp/abcd/out.txt"},
		{"multiple placeholders", "{chain.imgname}-{chain.size}.img", "box-512.img"},
		{"list index", "{steps.devmap.mapped[1]}", "/dev/mapper/loop0p2"},
		{"map key", "{steps.imgdef.config[size]}", 1024},
		{"nested keys", "{steps.imgdef.config.parts[boot]}", 64},
		{"literal braces survive", "awk '{print $1}' {chain.imgname}", "awk '{print $1}' box"},
		{"list of templates", []any{"{steps.tmp.tmpdir}/a", "b"}, []any{"/tmp/abcd/a", "b"}},
		{"map of templates", map[string]any{"dir": "{steps.tmp.tmpdir}"}, map[string]any{"dir": "/tmp/abcd"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := New(tt.raw).Resolve(newFake())
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Resolve() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestResolveNilRendersEmpty(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{steps: map[string]map[string]any{"tmp": {"tmpdir": nil}}}
	got, err := New("{steps.tmp.tmpdir}/out.txt").Resolve(res)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "/out.txt" {
		t.Errorf("Resolve() = %q, want /out.txt", got)
	}
}

func TestResolveErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raw    string
		target error
	}{
		{"unknown chain parameter", "{chain.nope}", ErrUnresolvable},
		{"unknown step", "{steps.nope.x}", ErrUnresolvable},
		{"unknown attribute", "{steps.tmp.nope}", ErrUnresolvable},
		{"bad grammar", "{steps.tmp}", ErrBadAddress},
		{"index out of range", "{steps.devmap.mapped[5]}", ErrBadIndex},
		{"missing key", "{steps.imgdef.config[nope]}", ErrBadIndex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(tt.raw).Resolve(newFake())
			if !errors.Is(err, tt.target) {
				t.Errorf("Resolve(%q) error = %v, want %v", tt.raw, err, tt.target)
			}
		})
	}
}

func TestAddresses(t *testing.T) {
	t.Parallel()

	addrs, err := New([]any{"{chain.a}", "x {steps.b.c[0]}"}).Addresses()
	if err != nil {
		t.Fatalf("Addresses() error = %v", err)
	}
	got := make([]string, len(addrs))
	for i, a := range addrs {
		got[i] = a.String()
	}
	want := []string{"chain.a", "steps.b.c[0]"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Addresses() = %v, want %v", got, want)
	}
}
