// SPDX-License-Identifier: MPL-2.0

//go:build !linux

package sysmount

import "context"

// Mount runs mount(8).
func (m *System) Mount(ctx context.Context, spec Spec) error {
	return m.mountBinary(ctx, spec)
}

// Unmount runs umount(8).
func (m *System) Unmount(ctx context.Context, target string) error {
	return m.unmountBinary(ctx, target)
}
