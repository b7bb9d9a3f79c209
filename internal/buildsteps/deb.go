// SPDX-License-Identifier: MPL-2.0

package buildsteps

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/conduct/conduct/internal/runtime"
	"github.com/conduct/conduct/internal/step"
	"github.com/conduct/conduct/internal/sysinfo"
	"github.com/conduct/conduct/pkg/param"
)

// Debootstrap bootstraps a basic Debian system into a directory. For an
// architecture the host cannot execute, the first stage runs with --foreign
// and the second stage runs in the chroot through qemu user emulation.
var Debootstrap = step.MustDefine(step.TypeSpec{
	Name:        name("deb", "Debootstrap"),
	Description: "Bootstrap a Debian system",
	Extends:     step.Base,
	Params: []step.Accessor{
		step.Param("distribution", param.MustDefine(param.NonEmptyStr, "Distribution (suite) to bootstrap")),
		step.Param("arch", param.MustDefine(param.Str, "Debian architecture; empty means the configured host architecture", param.Default(""))),
		step.Param("destdir", param.MustDefine(param.NonEmptyStr, "Destination directory")),
		step.Param("mirror", param.MustDefine(param.Str, "Package mirror URL", param.Default(""))),
	},
	Run: runDebootstrap,
})

// AptInstall installs packages, optionally inside a chroot.
var AptInstall = step.MustDefine(step.TypeSpec{
	Name:        name("deb", "AptInstall"),
	Description: "Install Debian packages",
	Extends:     step.Base,
	Params: []step.Accessor{
		step.Param("packages", param.MustDefine(param.NonEmptyListOf(param.NonEmptyStr), "Packages to install")),
		step.Param("chrootdir", param.MustDefine(param.Str, "Chroot to install into; empty means the host", param.Default(""))),
	},
	Run: runAptInstall,
})

// Pdebuild builds a Debian source package in a pbuilder environment.
var Pdebuild = step.MustDefine(step.TypeSpec{
	Name:        name("deb", "Pdebuild"),
	Description: "Build a Debian package with pdebuild",
	Extends:     step.Base,
	Params: []step.Accessor{
		step.Param("sourcedir", param.MustDefine(param.NonEmptyStr, "Package source directory")),
		step.Param("config", param.MustDefine(param.Str, "pbuilder configuration file", param.Default(""))),
		step.Param("resultdir", param.MustDefine(param.Str, "Directory receiving the built packages", param.Default(""))),
	},
	Run: runPdebuild,
})

// PBuilderExecCmds runs shell commands inside the pbuilder base environment.
var PBuilderExecCmds = step.MustDefine(step.TypeSpec{
	Name:        name("deb", "PBuilderExecCmds"),
	Description: "Execute commands in the pbuilder environment",
	Extends:     step.Base,
	Params: []step.Accessor{
		step.Param("cmds", param.MustDefine(param.NonEmptyListOf(param.NonEmptyStr), "Commands to execute")),
		step.Param("config", param.MustDefine(param.Str, "pbuilder configuration file", param.Default(""))),
		step.Param("save", param.MustDefine(param.Bool, "Save the environment after execution", param.Default(false))),
	},
	Run: runPBuilderExecCmds,
})

func hostArch(s *step.Instance) string {
	if a := s.Env().Arch; a != "" {
		return a
	}
	return sysinfo.HostArch()
}

func runDebootstrap(ctx context.Context, s *step.Instance) step.Result {
	in := s.Values()
	dist, arch, dest, mirror := in.String("distribution"), in.String("arch"), in.String("destdir"), in.String("mirror")
	if err := in.Err(); err != nil {
		return step.Fatal(err)
	}

	host := hostArch(s)
	if arch == "" {
		arch = host
	}
	foreign := sysinfo.IsForeign(arch, host)

	argv := []string{"debootstrap", "--verbose", "--arch=" + arch}
	if foreign {
		argv = append(argv, "--foreign")
	}
	argv = append(argv, dist, dest)
	if mirror != "" {
		argv = append(argv, mirror)
	}

	s.Log().Info("Bootstrapping ...", "arch", arch, "foreign", foreign)
	if _, res := run(ctx, s, argv...); !res.OK() || !foreign {
		return res
	}

	s.Log().Info("Bootstrap second stage ...")
	qemu := sysinfo.QemuStatic(arch)
	s.Log().Debug("Copy qemu static to chroot", "binary", qemu)
	if err := copyFile(qemu, filepath.Join(dest, "usr", "bin", filepath.Base(qemu))); err != nil {
		return step.Fatal(fmt.Errorf("install qemu user emulation: %w", err))
	}
	_, err := chrooted(ctx, s, dest, false, "debootstrap/debootstrap", "--second-stage")
	return step.FromError(err)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func runAptInstall(ctx context.Context, s *step.Instance) step.Result {
	in := s.Values()
	pkgs, root := in.Strings("packages"), in.String("chrootdir")
	if err := in.Err(); err != nil {
		return step.Fatal(err)
	}

	argv := append([]string{"apt-get", "install", "--yes", "--no-install-recommends"}, pkgs...)
	if root != "" {
		argv = append([]string{"chroot", root}, argv...)
	}
	_, err := s.Exec(ctx, &runtime.Command{
		Args: argv,
		Env:  map[string]string{"DEBIAN_FRONTEND": "noninteractive"},
	})
	return step.FromError(err)
}

func runPdebuild(ctx context.Context, s *step.Instance) step.Result {
	in := s.Values()
	src, config, result := in.String("sourcedir"), in.String("config"), in.String("resultdir")
	if err := in.Err(); err != nil {
		return step.Fatal(err)
	}

	argv := []string{"pdebuild"}
	if result != "" {
		argv = append(argv, "--buildresult", result)
	}
	if config != "" {
		argv = append(argv, "--", "--configfile", config)
	}
	// pdebuild asks for a terminal when it calls sudo.
	_, err := s.Exec(ctx, &runtime.Command{
		Script: runtime.FormatArgv(argv),
		Mode:   runtime.ModePTY,
		Dir:    src,
	})
	return step.FromError(err)
}

func runPBuilderExecCmds(ctx context.Context, s *step.Instance) step.Result {
	in := s.Values()
	cmds, config, save := in.Strings("cmds"), in.String("config"), in.Bool("save")
	if err := in.Err(); err != nil {
		return step.Fatal(err)
	}

	script, err := os.CreateTemp("", "conduct-pbuilder-*.sh")
	if err != nil {
		return step.Retryable(err)
	}
	defer os.Remove(script.Name())
	body := "#!/bin/sh\nset -e\n" + strings.Join(cmds, "\n") + "\n"
	if _, err := script.WriteString(body); err != nil {
		_ = script.Close()
		return step.Retryable(err)
	}
	if err := script.Close(); err != nil {
		return step.Retryable(err)
	}

	argv := []string{"pbuilder", "execute"}
	if config != "" {
		argv = append(argv, "--configfile", config)
	}
	if save {
		argv = append(argv, "--save-after-exec")
	}
	argv = append(argv, "--", script.Name())
	_, res := run(ctx, s, argv...)
	return res
}
