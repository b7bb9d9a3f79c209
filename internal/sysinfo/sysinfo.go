// SPDX-License-Identifier: MPL-2.0

// Package sysinfo describes the build host in the terms Debian tooling uses.
package sysinfo

import (
	goruntime "runtime"
	"strings"
)

// debianArchs maps GOARCH values to Debian architecture names.
var debianArchs = map[string]string{
	"386":      "i386",
	"amd64":    "amd64",
	"arm":      "armhf",
	"arm64":    "arm64",
	"loong64":  "loong64",
	"mips64le": "mips64el",
	"mipsle":   "mipsel",
	"ppc64le":  "ppc64el",
	"riscv64":  "riscv64",
	"s390x":    "s390x",
}

// qemuArchs maps Debian architecture names to qemu-user binary suffixes.
var qemuArchs = map[string]string{
	"i386":     "i386",
	"amd64":    "x86_64",
	"armel":    "arm",
	"armhf":    "arm",
	"arm64":    "aarch64",
	"mipsel":   "mipsel",
	"mips64el": "mips64el",
	"ppc64el":  "ppc64le",
	"riscv64":  "riscv64",
	"s390x":    "s390x",
}

// DebianArch returns the Debian name of a GOARCH value. Unknown values are
// returned unchanged.
func DebianArch(goarch string) string {
	if a, ok := debianArchs[goarch]; ok {
		return a
	}
	return goarch
}

// HostArch returns the Debian architecture of the running binary.
func HostArch() string { return DebianArch(goruntime.GOARCH) }

// QemuArch returns the qemu-user suffix for a Debian architecture.
func QemuArch(debArch string) string {
	if a, ok := qemuArchs[strings.ToLower(debArch)]; ok {
		return a
	}
	return debArch
}

// QemuStatic returns the path of the static qemu-user emulator that runs
// binaries of debArch.
func QemuStatic(debArch string) string {
	return "/usr/bin/qemu-" + QemuArch(debArch) + "-static"
}

// IsForeign reports whether debArch binaries cannot run natively on a host
// of hostArch.
func IsForeign(debArch, hostArch string) bool {
	if debArch == hostArch {
		return false
	}
	// amd64 hosts run i386 natively.
	return !(hostArch == "amd64" && debArch == "i386")
}
