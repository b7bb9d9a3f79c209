// SPDX-License-Identifier: MPL-2.0

package chainfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/conduct/conduct/internal/chain"
)

// Extensions lists the supported definition formats in lookup order.
var Extensions = []string{".cue", ".hcl"}

type (
	// Finder locates chain definitions in an ordered list of directories.
	// The first directory holding a chain wins. It implements chain.Loader.
	Finder struct {
		Dirs []string
	}

	// Entry is one chain definition found by List.
	Entry struct {
		Name string
		Path string
	}
)

// NewFinder returns a Finder searching dirs in order.
func NewFinder(dirs ...string) *Finder {
	return &Finder{Dirs: dirs}
}

// Find returns the path of the definition file for name.
func (f *Finder) Find(name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	for _, dir := range f.Dirs {
		for _, ext := range Extensions {
			path := filepath.Join(dir, name+ext)
			info, err := os.Stat(path)
			if err == nil && info.Mode().IsRegular() {
				return path, nil
			}
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("stat %s: %w", path, err)
			}
		}
	}
	return "", &NotFoundError{Name: name, Dirs: f.Dirs}
}

// Load implements chain.Loader.
func (f *Finder) Load(name string) (*chain.Definition, error) {
	path, err := f.Find(name)
	if err != nil {
		return nil, err
	}
	return ParseFile(path)
}

// List returns every chain found in the directories, sorted by name. A chain
// shadowed by an earlier directory is listed once. Missing directories are
// skipped.
func (f *Finder) List() ([]Entry, error) {
	seen := make(map[string]bool)
	var entries []Entry
	for _, dir := range f.Dirs {
		files, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read chain dir: %w", err)
		}
		// ReadDir sorts by file name, so a.cue precedes a.hcl.
		for _, file := range files {
			if file.IsDir() {
				continue
			}
			ext := filepath.Ext(file.Name())
			if !supported(ext) {
				continue
			}
			name := strings.TrimSuffix(file.Name(), ext)
			if seen[name] {
				continue
			}
			seen[name] = true
			entries = append(entries, Entry{Name: name, Path: filepath.Join(dir, file.Name())})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// ParseFile reads and parses a definition file, choosing the format by
// extension.
func ParseFile(path string) (*chain.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chain file: %w", err)
	}
	switch filepath.Ext(path) {
	case ".cue":
		return ParseCUE(data, path)
	case ".hcl":
		return ParseHCL(data, path)
	default:
		return nil, &DefinitionError{Path: path, Err: fmt.Errorf("unsupported file extension %q", filepath.Ext(path))}
	}
}

func supported(ext string) bool {
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
