// SPDX-License-Identifier: MPL-2.0

//go:build linux

package sysmount

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

var flagOptions = map[string]uintptr{
	"ro":          unix.MS_RDONLY,
	"nosuid":      unix.MS_NOSUID,
	"nodev":       unix.MS_NODEV,
	"noexec":      unix.MS_NOEXEC,
	"sync":        unix.MS_SYNCHRONOUS,
	"remount":     unix.MS_REMOUNT,
	"bind":        unix.MS_BIND,
	"rbind":       unix.MS_BIND | unix.MS_REC,
	"noatime":     unix.MS_NOATIME,
	"nodiratime":  unix.MS_NODIRATIME,
	"relatime":    unix.MS_RELATIME,
	"strictatime": unix.MS_STRICTATIME,
}

// parseOptions splits a mount(8) option list into mount(2) flags and the
// file system specific data string.
func parseOptions(opts string) (uintptr, string) {
	var (
		flags uintptr
		data  []string
	)
	for _, o := range strings.Split(opts, ",") {
		o = strings.TrimSpace(o)
		switch {
		case o == "", o == "rw", o == "defaults", o == "auto", o == "nofail":
		default:
			if f, ok := flagOptions[o]; ok {
				flags |= f
				continue
			}
			data = append(data, o)
		}
	}
	return flags, strings.Join(data, ",")
}

// Mount mounts spec with mount(2). Without a file system type, and when the
// kernel rejects the request, mount(8) is run instead.
func (m *System) Mount(ctx context.Context, spec Spec) error {
	flags, data := parseOptions(spec.Options)
	if spec.FSType == "" && flags&unix.MS_BIND == 0 {
		return m.mountBinary(ctx, spec)
	}
	err := unix.Mount(spec.Source, spec.Target, spec.FSType, flags, data)
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.EPERM) || errors.Is(err, unix.EBUSY) {
		return fmt.Errorf("mount %s on %s: %w", spec.Source, spec.Target, err)
	}
	return m.mountBinary(ctx, spec)
}

// Unmount detaches target with umount(2), falling back to umount(8).
func (m *System) Unmount(ctx context.Context, target string) error {
	err := unix.Unmount(target, 0)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EINVAL) && !IsMountpoint(target):
		return fmt.Errorf("umount %s: %w", target, ErrNotMounted)
	case errors.Is(err, unix.EBUSY):
		return fmt.Errorf("umount %s: %w", target, err)
	}
	return m.unmountBinary(ctx, target)
}
