// SPDX-License-Identifier: MPL-2.0

package chainfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/conduct/conduct/internal/buildsteps"
	"github.com/conduct/conduct/internal/catalog"
	"github.com/conduct/conduct/internal/chain"
	"github.com/conduct/conduct/internal/step"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFinderPrecedence(t *testing.T) {
	t.Parallel()

	first, second := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(first, "image.hcl"), `description = "first"`)
	writeFile(t, filepath.Join(second, "image.cue"), `description: "second", steps: []`)
	writeFile(t, filepath.Join(second, "rootfs.cue"), `steps: []`)
	writeFile(t, filepath.Join(second, "notes.txt"), "ignored")

	f := NewFinder(first, second, filepath.Join(first, "missing"))
	def, err := f.Load("image")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if def.Description != "first" {
		t.Errorf("Load() picked %q, want the first directory", def.Source)
	}

	entries, err := f.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "image" || entries[1].Name != "rootfs" {
		t.Fatalf("List() = %+v", entries)
	}
	if entries[0].Path != filepath.Join(first, "image.hcl") {
		t.Errorf("image path = %s", entries[0].Path)
	}
}

func TestFinderPrefersCUE(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "image.cue"), `steps: []`)
	writeFile(t, filepath.Join(dir, "image.hcl"), ``)

	path, err := NewFinder(dir).Find("image")
	if err != nil || filepath.Ext(path) != ".cue" {
		t.Errorf("Find() = %s, %v; want the .cue file", path, err)
	}
}

func TestFinderErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	f := NewFinder(dir)

	_, err := f.Load("absent")
	var nf *NotFoundError
	if !errors.As(err, &nf) || !errors.Is(err, ErrChainNotFound) || nf.Name != "absent" {
		t.Errorf("Load(absent) error = %v, want NotFoundError", err)
	}
	if !strings.Contains(err.Error(), dir) {
		t.Errorf("error %q does not name the searched directory", err)
	}

	for _, name := range []string{"", "..", "../etc/passwd", `a\b`} {
		if _, err := f.Find(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Find(%q) error = %v, want ErrInvalidName", name, err)
		}
	}

	writeFile(t, filepath.Join(dir, "broken.cue"), `steps: [`)
	var defErr *DefinitionError
	if _, err := f.Load("broken"); !errors.As(err, &defErr) || defErr.Path != filepath.Join(dir, "broken.cue") {
		t.Errorf("Load(broken) error = %v, want DefinitionError", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, OverridesPath(dir, "image"), "imgname = \"disk\"\nsize = 1024\nmirrors = [\"a\", \"b\"]\n")
	writeFile(t, OverridesPath(dir, "broken"), "size = \n")

	got, err := LoadOverrides(dir, "image")
	if err != nil {
		t.Fatalf("LoadOverrides() error = %v", err)
	}
	if got["imgname"] != "disk" || got["size"] != 1024 || len(got["mirrors"].([]any)) != 2 {
		t.Errorf("LoadOverrides() = %#v", got)
	}

	if got, err := LoadOverrides(dir, "absent"); got != nil || err != nil {
		t.Errorf("LoadOverrides(absent) = %v, %v; want nil, nil", got, err)
	}
	if got, err := LoadOverrides("", "image"); got != nil || err != nil {
		t.Errorf("LoadOverrides(no dir) = %v, %v; want nil, nil", got, err)
	}
	if _, err := LoadOverrides(dir, "broken"); !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("LoadOverrides(broken) error = %v, want ErrInvalidDefinition", err)
	}
}

func TestBuildChainFromFiles(t *testing.T) {
	t.Parallel()

	chains, work := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(chains, "notes.cue"), `
parameters: {
	workdir: {}
	text: {default: "hello"}
}
steps: [
	{name: "tmp", type: "fs.TmpDir", params: {parentdir: "{chain.workdir}"}},
	{name: "inner", chain: "inner"},
	{name: "note", type: "fs.WriteFile", params: {path: "{chain.workdir}/note.txt", content: "{steps.tmp.tmpdir}"}},
]
`)
	writeFile(t, filepath.Join(chains, "inner.hcl"), `
step "dirs" {
  type = "fs.MakeDirs"
  dirs = ["`+filepath.Join(work, "keep")+`"]
  removeoncleanup = false
}
`)

	cat := catalog.New(catalog.DefaultPrefixes...)
	if err := buildsteps.Register(cat); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	finder := NewFinder(chains)
	def, err := finder.Load("notes")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	c, err := chain.New("notes", def, map[string]any{"workdir": work}, cat, finder, &step.Env{})
	if err != nil {
		t.Fatalf("chain.New() error = %v", err)
	}
	if res := c.Build(context.Background()); !res.OK() {
		t.Fatalf("Build() = %v", res.Err)
	}

	data, err := os.ReadFile(filepath.Join(work, "note.txt"))
	if err != nil {
		t.Fatalf("note was not written: %v", err)
	}
	tmp := string(data)
	if !strings.HasPrefix(tmp, filepath.Join(work, "conduct-")) {
		t.Errorf("note content = %q, want the temporary directory", tmp)
	}
	if _, err := os.Stat(tmp); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temporary directory %s survived cleanup: %v", tmp, err)
	}
	if info, err := os.Stat(filepath.Join(work, "keep")); err != nil || !info.IsDir() {
		t.Errorf("nested chain did not create its directory: %v", err)
	}
}

func TestSampleChains(t *testing.T) {
	t.Parallel()

	samples := filepath.Join("..", "..", "etc", "chains")
	cat := catalog.New(catalog.DefaultPrefixes...)
	if err := buildsteps.Register(cat); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tests := []struct {
		chain     string
		overrides map[string]any
		steps     int
	}{
		{"debian-rootfs", map[string]any{"rootdir": "/srv/rootfs"}, 3},
		{"disk-image", map[string]any{"image": "/srv/disk.img"}, 7},
		{"package", map[string]any{"url": "https://example.org/src.git"}, 4},
	}

	finder := NewFinder(samples)
	for _, tt := range tests {
		t.Run(tt.chain, func(t *testing.T) {
			t.Parallel()

			def, err := finder.Load(tt.chain)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			c, err := chain.New(tt.chain, def, tt.overrides, cat, finder, &step.Env{})
			if err != nil {
				t.Fatalf("chain.New() error = %v", err)
			}
			if got := len(c.Steps()); got != tt.steps {
				t.Errorf("got %d steps, want %d", got, tt.steps)
			}
		})
	}

	overrides, err := LoadOverrides(filepath.Join("..", "..", "etc", "chain-config"), "disk-image")
	if err != nil || overrides["size_mb"] != 4096 {
		t.Errorf("LoadOverrides(disk-image) = %v, %v", overrides, err)
	}
}
