// SPDX-License-Identifier: MPL-2.0

// Package buildsteps contains the builtin step types. They are registered
// under the "conduct." namespace, so a chain may name them either in full
// ("conduct.fs.Mount") or by group ("fs.Mount").
package buildsteps

import (
	"context"

	"github.com/conduct/conduct/internal/catalog"
	"github.com/conduct/conduct/internal/runtime"
	"github.com/conduct/conduct/internal/step"
)

// Namespace prefixes every builtin step type name.
const Namespace = "conduct"

// All returns every builtin step type.
func All() []*step.Type {
	return []*step.Type{
		SystemCall, ChrootedSystemCall,
		Config, Calculation, Map,
		WriteFile, TmpDir, RmPath, MakeDirs, CreateFileSystem, Mount,
		Partitioning, DevMapper,
		GitClone,
		Debootstrap, AptInstall, Pdebuild, PBuilderExecCmds,
	}
}

// Register adds every builtin step type to c.
func Register(c *catalog.Catalog) error {
	return c.Register(All()...)
}

func name(group, typ string) string {
	return Namespace + "." + group + "." + typ
}

// run executes argv and maps a failure to a retryable result.
func run(ctx context.Context, s *step.Instance, argv ...string) ([]string, step.Result) {
	out, err := s.Exec(ctx, &runtime.Command{Args: argv})
	if err != nil {
		return out, step.Retryable(err)
	}
	return out, step.OK()
}
