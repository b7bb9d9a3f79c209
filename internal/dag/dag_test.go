// SPDX-License-Identifier: MPL-2.0

package dag

import (
	"errors"
	"slices"
	"testing"
)

func TestInclude(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		edges     [][2]string
		wantCycle []string
	}{
		{"linear", [][2]string{{"image", "rootfs"}, {"rootfs", "kernel"}}, nil},
		{"shared child", [][2]string{{"image", "base"}, {"pkg", "base"}, {"image", "pkg"}}, nil},
		{"self", [][2]string{{"image", "image"}}, []string{"image", "image"}},
		{"indirect", [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}}, []string{"c", "a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := New()
			var err error
			for _, e := range tt.edges {
				if err = g.Include(e[0], e[1]); err != nil {
					break
				}
			}
			if tt.wantCycle == nil {
				if err != nil {
					t.Fatalf("Include() error = %v", err)
				}
				return
			}
			var cycleErr *CycleError
			if !errors.As(err, &cycleErr) || !errors.Is(err, ErrCycle) {
				t.Fatalf("Include() error = %v, want *CycleError", err)
			}
			if !slices.Equal(cycleErr.Cycle, tt.wantCycle) {
				t.Errorf("Cycle = %v, want %v", cycleErr.Cycle, tt.wantCycle)
			}
		})
	}
}

func TestCycleErrorMessage(t *testing.T) {
	t.Parallel()

	err := &CycleError{Cycle: []string{"a", "b", "a"}}
	if got, want := err.Error(), "chain inclusion cycle detected: a -> b -> a"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
