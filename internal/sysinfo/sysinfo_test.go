// SPDX-License-Identifier: MPL-2.0

package sysinfo

import "testing"

func TestDebianArch(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"amd64":   "amd64",
		"386":     "i386",
		"arm":     "armhf",
		"ppc64le": "ppc64el",
		"wasm":    "wasm",
	}
	for in, want := range tests {
		if got := DebianArch(in); got != want {
			t.Errorf("DebianArch(%q) = %q, want %q", in, got, want)
		}
	}
	if HostArch() == "" {
		t.Error("HostArch() is empty")
	}
}

func TestQemu(t *testing.T) {
	t.Parallel()

	tests := []struct {
		arch string
		want string
	}{
		{"armhf", "/usr/bin/qemu-arm-static"},
		{"arm64", "/usr/bin/qemu-aarch64-static"},
		{"i386", "/usr/bin/qemu-i386-static"},
		{"sparc", "/usr/bin/qemu-sparc-static"},
	}
	for _, tt := range tests {
		if got := QemuStatic(tt.arch); got != tt.want {
			t.Errorf("QemuStatic(%q) = %q, want %q", tt.arch, got, tt.want)
		}
	}
}

func TestIsForeign(t *testing.T) {
	t.Parallel()

	tests := []struct {
		arch, host string
		want       bool
	}{
		{"amd64", "amd64", false},
		{"i386", "amd64", false},
		{"armhf", "amd64", true},
		{"amd64", "arm64", true},
	}
	for _, tt := range tests {
		if got := IsForeign(tt.arch, tt.host); got != tt.want {
			t.Errorf("IsForeign(%q, %q) = %v, want %v", tt.arch, tt.host, got, tt.want)
		}
	}
}
