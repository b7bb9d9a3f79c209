// SPDX-License-Identifier: MPL-2.0

package buildsteps

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/conduct/conduct/internal/step"
	"github.com/conduct/conduct/internal/sysmount"
	"github.com/conduct/conduct/pkg/param"
)

// ErrDirNotEmpty is returned by RmPath for a non-empty directory when
// recursive removal is disabled.
var ErrDirNotEmpty = errors.New("directory not empty")

// WriteFile writes text to a file.
var WriteFile = step.MustDefine(step.TypeSpec{
	Name:        name("fs", "WriteFile"),
	Description: "Write content to a file",
	Extends:     step.Base,
	Params: []step.Accessor{
		step.Param("path", param.MustDefine(param.NonEmptyStr, "Path of the file")),
		step.Param("content", param.MustDefine(param.Str, "Content to write")),
		step.Param("append", param.MustDefine(param.Bool, "Append instead of truncating", param.Default(false))),
	},
	Run: runWriteFile,
})

// TmpDir creates a temporary directory that is removed on cleanup.
var TmpDir = step.MustDefine(step.TypeSpec{
	Name:        name("fs", "TmpDir"),
	Description: "Create a temporary directory",
	Extends:     step.Base,
	Params: []step.Accessor{
		step.Param("parentdir", param.MustDefine(param.Str, "Directory the temporary directory is created in", param.Default("/tmp"))),
	},
	Outputs: []step.Accessor{
		step.Param("tmpdir", param.MustDefine(param.Str, "Path of the created directory", param.Default(""))),
	},
	Run:     runTmpDir,
	Cleanup: removeOutput("tmpdir"),
})

// RmPath removes a file or directory.
var RmPath = step.MustDefine(step.TypeSpec{
	Name:        name("fs", "RmPath"),
	Description: "Remove a file or directory",
	Extends:     step.Base,
	Params: []step.Accessor{
		step.Param("path", param.MustDefine(param.NonEmptyStr, "Path to remove")),
		step.Param("recursive", param.MustDefine(param.Bool, "Remove directories with their content", param.Default(true))),
	},
	Run: runRmPath,
})

// MakeDirs creates directories, including missing parents.
var MakeDirs = step.MustDefine(step.TypeSpec{
	Name:        name("fs", "MakeDirs"),
	Description: "Create directories",
	Extends:     step.Base,
	Params: []step.Accessor{
		step.Param("dirs", param.MustDefine(param.NonEmptyListOf(param.NonEmptyStr), "Directories to create")),
		step.Param("removeoncleanup", param.MustDefine(param.Bool, "Remove the created directories on cleanup", param.Default(true))),
	},
	Outputs: []step.Accessor{
		step.Param("created", param.MustDefine(param.ListOf(param.Str), "Directories that did not exist before", param.Default([]any{}))),
	},
	Run:     runMakeDirs,
	Cleanup: cleanupMakeDirs,
})

// CreateFileSystem formats a device.
var CreateFileSystem = step.MustDefine(step.TypeSpec{
	Name:        name("fs", "CreateFileSystem"),
	Description: "Create a file system on a device",
	Extends:     step.Base,
	Params: []step.Accessor{
		step.Param("dev", param.MustDefine(param.NonEmptyStr, "Device or image file")),
		step.Param("fstype", param.MustDefine(param.OneOf("bfs", "cramfs", "ext2", "ext3", "ext4", "fat", "ntfs", "vfat"),
			"File system type")),
	},
	Run: runCreateFileSystem,
})

// Mount attaches a file system. The mount point is created when missing.
var Mount = step.MustDefine(step.TypeSpec{
	Name:        name("fs", "Mount"),
	Description: "Mount a file system",
	Extends:     step.Base,
	Params: []step.Accessor{
		step.Param("dev", param.MustDefine(param.NonEmptyStr, "Device, image or source directory")),
		step.Param("mountpoint", param.MustDefine(param.NonEmptyStr, "Mount point")),
		step.Param("fstype", param.MustDefine(param.Str, "File system type; empty lets mount detect it", param.Default(""))),
		step.Param("options", param.MustDefine(param.Str, "Comma separated mount options", param.Default(""))),
	},
	Run:     runMount,
	Cleanup: cleanupMount,
})

func runWriteFile(_ context.Context, s *step.Instance) step.Result {
	in := s.Values()
	path, content, appendMode := in.String("path"), in.String("content"), in.Bool("append")
	if err := in.Err(); err != nil {
		return step.Fatal(err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return step.Retryable(err)
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return step.Retryable(err)
	}
	return step.FromError(f.Close())
}

func runTmpDir(_ context.Context, s *step.Instance) step.Result {
	parent, err := step.Value[string](s, "parentdir")
	if err != nil {
		return step.Fatal(err)
	}
	dir, err := os.MkdirTemp(parent, "conduct-")
	if err != nil {
		return step.Retryable(err)
	}
	s.Log().Info("Created " + dir)
	return step.FromError(s.SetOutput("tmpdir", dir))
}

// removeOutput returns a cleanup action removing the path held by an output.
func removeOutput(output string) step.Action {
	return func(_ context.Context, s *step.Instance) step.Result {
		path, err := step.Value[string](s, output)
		if err != nil {
			return step.Fatal(err)
		}
		if path == "" {
			return step.OK()
		}
		s.Log().Info("Remove " + path)
		return step.FromError(os.RemoveAll(path))
	}
}

func runRmPath(_ context.Context, s *step.Instance) step.Result {
	in := s.Values()
	path, recursive := in.String("path"), in.Bool("recursive")
	if err := in.Err(); err != nil {
		return step.Fatal(err)
	}

	if recursive {
		return step.FromError(os.RemoveAll(path))
	}
	err := os.Remove(path)
	switch {
	case err == nil, errors.Is(err, fs.ErrNotExist):
		return step.OK()
	case isNotEmpty(path):
		return step.Fatal(fmt.Errorf("%s: %w", path, ErrDirNotEmpty))
	default:
		return step.Retryable(err)
	}
}

func isNotEmpty(path string) bool {
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) > 0
}

// runMakeDirs keeps the directories recorded by earlier attempts: a retry
// finds them present and would otherwise forget to remove them.
func runMakeDirs(_ context.Context, s *step.Instance) step.Result {
	in := s.Values()
	dirs, created := in.Strings("dirs"), in.Strings("created")
	if err := in.Err(); err != nil {
		return step.Fatal(err)
	}

	seen := make(map[string]bool, len(created))
	for _, c := range created {
		seen[c] = true
	}
	for _, dir := range dirs {
		missing := missingDirs(dir)
		err := os.MkdirAll(dir, 0o755)
		// MkdirAll may fail after creating some parents.
		for _, m := range missing {
			if _, statErr := os.Stat(m); statErr == nil && !seen[m] {
				seen[m] = true
				created = append(created, m)
			}
		}
		if err != nil {
			_ = s.SetOutput("created", toList(created))
			return step.Retryable(err)
		}
	}
	return step.FromError(s.SetOutput("created", toList(created)))
}

func toList(items []string) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

// missingDirs lists dir and its ancestors that do not exist yet, outermost
// first.
func missingDirs(dir string) []string {
	var missing []string
	for p := filepath.Clean(dir); ; p = filepath.Dir(p) {
		if _, err := os.Stat(p); err == nil {
			break
		}
		missing = append([]string{p}, missing...)
		if parent := filepath.Dir(p); parent == p {
			break
		}
	}
	return missing
}

func cleanupMakeDirs(_ context.Context, s *step.Instance) step.Result {
	in := s.Values()
	remove, created := in.Bool("removeoncleanup"), in.Strings("created")
	if err := in.Err(); err != nil {
		return step.Fatal(err)
	}
	if remove {
		for i := len(created) - 1; i >= 0; i-- {
			s.Log().Debug("Remove " + created[i])
			if err := os.RemoveAll(created[i]); err != nil {
				return step.Retryable(err)
			}
		}
	}
	return step.FromError(s.SetOutput("created", []any{}))
}

func runCreateFileSystem(ctx context.Context, s *step.Instance) step.Result {
	in := s.Values()
	dev, fstype := in.String("dev"), in.String("fstype")
	if err := in.Err(); err != nil {
		return step.Fatal(err)
	}
	_, res := run(ctx, s, "mkfs", "-t", fstype, dev)
	return res
}

func runMount(ctx context.Context, s *step.Instance) step.Result {
	in := s.Values()
	spec := sysmount.Spec{
		Source:  in.String("dev"),
		Target:  in.String("mountpoint"),
		FSType:  in.String("fstype"),
		Options: in.String("options"),
	}
	if err := in.Err(); err != nil {
		return step.Fatal(err)
	}

	if err := os.MkdirAll(spec.Target, 0o755); err != nil {
		return step.Retryable(err)
	}
	s.Log().Info("Mount " + spec.String())
	return step.FromError(s.Env().Mounts().Mount(ctx, spec))
}

func cleanupMount(ctx context.Context, s *step.Instance) step.Result {
	target, err := step.Value[string](s, "mountpoint")
	if err != nil {
		return step.Fatal(err)
	}
	s.Log().Info("Unmount " + target)
	return step.FromError(s.Env().Mounts().Unmount(ctx, target))
}
