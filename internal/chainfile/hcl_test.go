// SPDX-License-Identifier: MPL-2.0

package chainfile

import (
	"errors"
	"fmt"
	"testing"

	"github.com/zclconf/go-cty/cty"
)

const imageHCL = `
description = "Build a disk image"

parameter "imgname" {
  type = "nonemptystr"
}

parameter "size" {
  type    = "int"
  default = 512
}

step "tmp" {
  type = "fs.TmpDir"
}

step "parts" {
  type       = "dev.Partitioning"
  dev        = "/dev/loop0"
  partitions = [100, 412]
}

chain "rootfs" {
  name = "debian-rootfs"
}
`

func TestParseHCL(t *testing.T) {
	t.Parallel()

	def, err := ParseHCL([]byte(imageHCL), "image.hcl")
	if err != nil {
		t.Fatalf("ParseHCL() error = %v", err)
	}
	if def.Description != "Build a disk image" {
		t.Errorf("Description = %q", def.Description)
	}
	if len(def.Parameters) != 2 || def.Parameters[0].Name != "imgname" || def.Parameters[1].Name != "size" {
		t.Fatalf("Parameters = %+v", def.Parameters)
	}
	if !def.Parameters[0].Descriptor.Mandatory() || def.Parameters[1].Descriptor.Default != 512 {
		t.Errorf("unexpected parameter descriptors: %+v", def.Parameters)
	}

	if len(def.Steps) != 3 {
		t.Fatalf("got %d steps, want 3", len(def.Steps))
	}
	parts := def.Steps[1]
	if parts.Type != "dev.Partitioning" || parts.Params["dev"] != "/dev/loop0" {
		t.Errorf("parts = %+v", parts)
	}
	if _, ok := parts.Params["type"]; ok {
		t.Error("type must not be passed as a step parameter")
	}
	if got := fmt.Sprint(parts.Params["partitions"]); got != "[100 412]" {
		t.Errorf("partitions = %s, want [100 412]", got)
	}
	if rootfs := def.Steps[2]; rootfs.Chain != "debian-rootfs" || len(rootfs.Params) != 0 {
		t.Errorf("rootfs = %+v", rootfs)
	}
}

func TestParseHCLErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
	}{
		{"syntax error", `step "a" {`},
		{"unknown attribute", `author = "me"`},
		{"unknown block", `task "a" {}`},
		{"missing label", `step {}`},
		{"variable reference", "step \"a\" {\n  parentdir = var.dir\n}"},
		{"non-string type", `step "a" { type = 3 }`},
		{"bad parameter attribute", `parameter "a" { required = true }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := ParseHCL([]byte(tt.src), "bad.hcl"); !errors.Is(err, ErrInvalidDefinition) {
				t.Errorf("ParseHCL() error = %v, want ErrInvalidDefinition", err)
			}
		})
	}
}

func TestCtyToNative(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   cty.Value
		want string
	}{
		{"string", cty.StringVal("a"), "a"},
		{"int", cty.NumberIntVal(42), "42"},
		{"float", cty.NumberFloatVal(1.5), "1.5"},
		{"bool", cty.True, "true"},
		{"null", cty.NullVal(cty.String), "<nil>"},
		{"tuple", cty.TupleVal([]cty.Value{cty.StringVal("a"), cty.NumberIntVal(1)}), "[a 1]"},
		{"object", cty.ObjectVal(map[string]cty.Value{"k": cty.StringVal("v")}), "map[k:v]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ctyToNative(tt.in)
			if err != nil {
				t.Fatalf("ctyToNative() error = %v", err)
			}
			if fmt.Sprint(got) != tt.want {
				t.Errorf("ctyToNative() = %v, want %s", got, tt.want)
			}
		})
	}

	if v, _ := ctyToNative(cty.NumberIntVal(7)); v != 7 {
		t.Errorf("integral number = %#v, want int 7", v)
	}
	if _, err := ctyToNative(cty.UnknownVal(cty.String)); err == nil {
		t.Error("ctyToNative(unknown) expected an error")
	}
}
