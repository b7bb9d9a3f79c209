// SPDX-License-Identifier: MPL-2.0

package buildsteps

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conduct/conduct/internal/runtime"
	"github.com/conduct/conduct/internal/step"
	"github.com/conduct/conduct/internal/sysmount"
	"github.com/conduct/conduct/pkg/param"
)

var commandOutput = step.Param("commandoutput",
	param.MustDefine(param.NoneOr(param.Str), "Command output (stdout lines)", param.Default(nil)))

// SystemCall runs a shell command.
var SystemCall = step.MustDefine(step.TypeSpec{
	Name:        name("syscall", "SystemCall"),
	Description: "Execute a shell command",
	Extends:     step.Base,
	Params: []step.Accessor{
		step.Param("command", param.MustDefine(param.NonEmptyStr, "Command to execute")),
		step.Param("workingdir", param.MustDefine(param.Str, "Working directory for command execution", param.Default("."))),
		step.Param("shell", param.MustDefine(param.OneOf("", "native", "direct", "virtual", "pty"),
			"How the command is executed; empty uses the configured default", param.Default(""))),
		step.Param("env", param.MustDefine(param.DictOf(param.Str, param.Str),
			"Additional environment variables", param.Default(map[string]any{}))),
	},
	Outputs: []step.Accessor{commandOutput},
	Run:     runSystemCall,
})

// ChrootedSystemCall runs a shell command inside a chroot. The pseudo file
// systems (/proc, /sys, /dev) are mounted for the duration of the command.
var ChrootedSystemCall = step.MustDefine(step.TypeSpec{
	Name:        name("syscall", "ChrootedSystemCall"),
	Description: "Execute a shell command in a chroot environment",
	Extends:     step.Base,
	Params: []step.Accessor{
		step.Param("command", param.MustDefine(param.NonEmptyStr, "Command to execute")),
		step.Param("chrootdir", param.MustDefine(param.Str, "Chroot directory", param.Default("."))),
		step.Param("mountpseudofs", param.MustDefine(param.Bool, "Mount /proc, /sys and /dev into the chroot", param.Default(true))),
	},
	Outputs: []step.Accessor{commandOutput},
	Run:     runChrootedSystemCall,
})

func runSystemCall(ctx context.Context, s *step.Instance) step.Result {
	in := s.Values()
	command, dir, shell, env := in.String("command"), in.String("workingdir"), in.String("shell"), in.Map("env")
	if err := in.Err(); err != nil {
		return step.Fatal(err)
	}

	vars := make(map[string]string, len(env))
	for k, v := range env {
		vars[k] = fmt.Sprint(v)
	}
	out, err := s.Exec(ctx, &runtime.Command{
		Script: command,
		Mode:   runtime.Mode(shell),
		Dir:    dir,
		Env:    vars,
	})
	if err != nil {
		return step.Retryable(err)
	}
	return step.FromError(s.SetOutput("commandoutput", strings.Join(out, "\n")))
}

func runChrootedSystemCall(ctx context.Context, s *step.Instance) step.Result {
	in := s.Values()
	command, root, pseudo := in.String("command"), in.String("chrootdir"), in.Bool("mountpseudofs")
	if err := in.Err(); err != nil {
		return step.Fatal(err)
	}

	out, err := chrooted(ctx, s, root, pseudo, "/bin/sh", "-c", command)
	if err != nil {
		return step.Retryable(err)
	}
	return step.FromError(s.SetOutput("commandoutput", strings.Join(out, "\n")))
}

// pseudoFS are the mounts a chroot needs for package maintainer scripts.
func pseudoFS(root string) []sysmount.Spec {
	return []sysmount.Spec{
		{Source: "proc", Target: filepath.Join(root, "proc"), FSType: "proc", Options: "nosuid,nodev,noexec"},
		{Source: "sysfs", Target: filepath.Join(root, "sys"), FSType: "sysfs", Options: "nosuid,nodev,noexec"},
		{Source: "/dev", Target: filepath.Join(root, "dev"), Options: "bind"},
		{Source: "devpts", Target: filepath.Join(root, "dev", "pts"), FSType: "devpts", Options: "gid=5,mode=620"},
	}
}

// chrooted runs argv inside root. With pseudo set the pseudo file systems are
// mounted first and always unmounted again, in reverse order.
func chrooted(ctx context.Context, s *step.Instance, root string, pseudo bool, argv ...string) (out []string, err error) {
	if pseudo {
		mounter := s.Env().Mounts()
		var mounted []string
		defer func() {
			uctx := context.WithoutCancel(ctx)
			for i := len(mounted) - 1; i >= 0; i-- {
				if uerr := mounter.Unmount(uctx, mounted[i]); uerr != nil {
					s.Log().Warn("Could not unmount pseudo file system", "target", mounted[i], "err", uerr)
					err = errors.Join(err, uerr)
				}
			}
		}()
		for _, spec := range pseudoFS(root) {
			s.Log().Debug("Mount " + spec.String())
			if err := mounter.Mount(ctx, spec); err != nil {
				return nil, err
			}
			mounted = append(mounted, spec.Target)
		}
	}
	return s.Exec(ctx, &runtime.Command{Args: append([]string{"chroot", root}, argv...)})
}
