// SPDX-License-Identifier: MPL-2.0

// Package sysmount mounts and unmounts file systems for build steps. The
// mount(2) system call is tried first; when it is unavailable or refuses the
// request, mount(8) and umount(8) are run instead.
package sysmount

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/conduct/conduct/internal/runtime"
)

// ErrNotMounted is returned by Unmount for a target that is not a mount point.
var ErrNotMounted = errors.New("not mounted")

type (
	// Spec describes one mount.
	Spec struct {
		Source string
		Target string
		// FSType may be empty to let mount(8) probe the file system.
		FSType string
		// Options is a comma separated mount(8) option list.
		Options string
	}

	// Mounter mounts and unmounts file systems.
	Mounter interface {
		Mount(ctx context.Context, spec Spec) error
		Unmount(ctx context.Context, target string) error
	}

	// System is the Mounter backed by the host kernel.
	System struct {
		// Runner runs the mount(8) fallback.
		Runner runtime.Runner
	}
)

// String renders the mount like a mount(8) command line.
func (s Spec) String() string {
	return runtime.FormatArgv(mountArgv(s))
}

func mountArgv(s Spec) []string {
	argv := []string{"mount"}
	if s.FSType != "" {
		argv = append(argv, "-t", s.FSType)
	}
	if s.Options != "" {
		argv = append(argv, "-o", s.Options)
	}
	return append(argv, s.Source, s.Target)
}

func (m *System) runner() runtime.Runner {
	if m.Runner == nil {
		return runtime.NewExecutor(runtime.ModeNative)
	}
	return m.Runner
}

func (m *System) mountBinary(ctx context.Context, spec Spec) error {
	res := m.runner().Run(ctx, &runtime.Command{Args: mountArgv(spec)})
	if err := res.Err(); err != nil {
		return fmt.Errorf("mount %s on %s: %w", spec.Source, spec.Target, err)
	}
	return nil
}

func (m *System) unmountBinary(ctx context.Context, target string) error {
	res := m.runner().Run(ctx, &runtime.Command{Args: []string{"umount", target}})
	if err := res.Err(); err != nil {
		return fmt.Errorf("umount %s: %w", target, err)
	}
	return nil
}

// IsMountpoint reports whether dir appears in /proc/self/mountinfo.
func IsMountpoint(dir string) bool {
	f, err := os.Open("/proc/self/mountinfo")
	if err != nil {
		return false
	}
	defer f.Close()
	for _, mp := range mountpoints(f) {
		if mp == dir {
			return true
		}
	}
	return false
}

// mountpoints extracts the mount point column (the fifth field) of a
// mountinfo table. Octal escapes such as \040 are decoded.
func mountpoints(r io.Reader) []string {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 5 {
			continue
		}
		out = append(out, unescape(fields[4]))
	}
	return out
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && isOctal(s[i+1]) && isOctal(s[i+2]) && isOctal(s[i+3]) {
			sb.WriteByte((s[i+1]-'0')<<6 | (s[i+2]-'0')<<3 | (s[i+3] - '0'))
			i += 3
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func isOctal(c byte) bool { return c >= '0' && c <= '7' }
