// SPDX-License-Identifier: MPL-2.0

package buildsteps

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/conduct/conduct/internal/runtime"
	"github.com/conduct/conduct/internal/step"
	"github.com/conduct/conduct/pkg/param"
)

// Partitioning writes a fresh partition table with fdisk. Partitions one to
// three are primary, later ones extended.
var Partitioning = step.MustDefine(step.TypeSpec{
	Name:        name("dev", "Partitioning"),
	Description: "Partition a device",
	Extends:     step.Base,
	Params: []step.Accessor{
		step.Param("dev", param.MustDefine(param.NonEmptyStr, "Path to the device file")),
		step.Param("partitions", param.MustDefine(param.NonEmptyListOf(param.IntRange(1, 1<<24)),
			"Partition sizes in MB")),
	},
	Run: runPartitioning,
})

// DevMapper maps the partitions of a device or image to their own device
// files with kpartx.
var DevMapper = step.MustDefine(step.TypeSpec{
	Name:        name("dev", "DevMapper"),
	Description: "Map the partitions of a device to device files",
	Extends:     step.Base,
	Params: []step.Accessor{
		step.Param("dev", param.MustDefine(param.NonEmptyStr, "Path to the device file")),
	},
	Outputs: []step.Accessor{
		step.Param("mapped", param.MustDefine(param.ListOf(param.Str), "Created device files", param.Default([]any{}))),
	},
	Run:     runDevMapper,
	Cleanup: cleanupDevMapper,
})

// fdiskScript renders the answers fdisk expects on stdin.
func fdiskScript(sizes []int) string {
	var lines []string
	for i, size := range sizes {
		index := i + 1
		kind := "p"
		if index >= 4 {
			kind = "e"
		}
		lines = append(lines, "n", kind, strconv.Itoa(index), "", "+"+strconv.Itoa(size)+"M")
	}
	lines = append(lines, "p", "w", "")
	return strings.Join(lines, "\n")
}

func runPartitioning(ctx context.Context, s *step.Instance) step.Result {
	in := s.Values()
	dev, sizes := in.String("dev"), in.Ints("partitions")
	if err := in.Err(); err != nil {
		return step.Fatal(err)
	}
	_, err := s.Exec(ctx, &runtime.Command{
		Args:  []string{"fdisk", dev},
		Stdin: strings.NewReader(fdiskScript(sizes)),
	})
	return step.FromError(err)
}

// mappedDevices parses the output of kpartx -l. Each line starts with the
// mapping name followed by a colon.
func mappedDevices(lines []string) []any {
	devs := []any{}
	for _, line := range lines {
		i := strings.LastIndex(line, ":")
		if i < 0 {
			continue
		}
		if dev := strings.TrimSpace(line[:i]); dev != "" {
			devs = append(devs, filepath.Join("/dev/mapper", dev))
		}
	}
	return devs
}

func runDevMapper(ctx context.Context, s *step.Instance) step.Result {
	dev, err := step.Value[string](s, "dev")
	if err != nil {
		return step.Fatal(err)
	}
	if _, res := run(ctx, s, "kpartx", "-v", "-a", "-s", dev); !res.OK() {
		return res
	}
	out, res := run(ctx, s, "kpartx", "-v", "-l", "-s", dev)
	if !res.OK() {
		return res
	}
	return step.FromError(s.SetOutput("mapped", mappedDevices(out)))
}

func cleanupDevMapper(ctx context.Context, s *step.Instance) step.Result {
	dev, err := step.Value[string](s, "dev")
	if err != nil {
		return step.Fatal(err)
	}
	_, res := run(ctx, s, "kpartx", "-v", "-d", "-s", dev)
	return res
}
