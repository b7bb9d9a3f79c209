// SPDX-License-Identifier: MPL-2.0

package buildsteps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/conduct/conduct/internal/step"
)

func TestConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := map[string]string{
		"image.cue":  "size: 512\nname: \"box\"\n",
		"image.toml": "size = 512\nname = \"box\"\n",
		"image.yaml": "size: 512\nname: box\n",
		"image.json": `{"size": 512, "name": "box"}`,
		"image.conf": `{"size": 512, "name": "box"}`,
	}
	for file, content := range files {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		file   string
		format string
	}{
		{"image.cue", "auto"},
		{"image.toml", "auto"},
		{"image.yaml", "auto"},
		{"image.json", "auto"},
		{"image.conf", "json"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			t.Parallel()

			s := newStep(t, Config, map[string]any{"path": filepath.Join(dir, tt.file), "format": tt.format}, nil, nil)
			build(t, s)
			cfg, err := step.Value[map[string]any](s, "config")
			if err != nil {
				t.Fatal(err)
			}
			if fmt.Sprint(cfg["size"]) != "512" || cfg["name"] != "box" {
				t.Errorf("config = %v", cfg)
			}
		})
	}
}

func TestConfigErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	conf := filepath.Join(dir, "image.conf")
	if err := os.WriteFile(conf, []byte("size = 1"), 0o644); err != nil {
		t.Fatal(err)
	}
	broken := filepath.Join(dir, "broken.toml")
	if err := os.WriteFile(broken, []byte("size = "), 0o644); err != nil {
		t.Fatal(err)
	}

	res := newStep(t, Config, map[string]any{"path": conf}, nil, nil).Build(context.Background())
	if !errors.Is(res.Err, ErrUnknownFormat) {
		t.Errorf("unknown extension: Build() = %v, want ErrUnknownFormat", res.Err)
	}
	if res := newStep(t, Config, map[string]any{"path": broken}, nil, nil).Build(context.Background()); res.OK() {
		t.Error("broken TOML: Build() succeeded")
	}
	if res := newStep(t, Config, map[string]any{"path": filepath.Join(dir, "missing.yaml")}, nil, nil).Build(context.Background()); res.OK() {
		t.Error("missing file: Build() succeeded")
	}
}

func TestCalculation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		formula string
		want    float64
		wantErr bool
	}{
		{"2 * (3 + 4)", 14, false},
		{"1 / 4", 0.25, false},
		{"512 * 1024", 524288, false},
		{"1 +", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			t.Parallel()

			s := newStep(t, Calculation, map[string]any{"formula": tt.formula}, nil, nil)
			res := s.Build(context.Background())
			if tt.wantErr {
				if res.OK() {
					t.Error("Build() succeeded")
				}
				return
			}
			if !res.OK() {
				t.Fatalf("Build() = %v", res.Err)
			}
			got, err := step.Value[float64](s, "result")
			if err != nil || got != tt.want {
				t.Errorf("result = %v, %v; want %v", got, err, tt.want)
			}
		})
	}
}

func TestMap(t *testing.T) {
	t.Parallel()

	mapping := []any{
		[]any{"amd64", "x86_64"},
		[]any{`arm(\w+)`, "arm-{1}"},
		[]any{`(\d+)\.(\d+)`, "v{1}-{2} from {0}"},
	}
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"amd64", "x86_64", false},
		{"armhf", "arm-hf", false},
		{"10.4", "v10-4 from 10.4", false},
		{"i386", "", true},
		// Patterns are anchored at the start.
		{"x-amd64", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			s := newStep(t, Map, map[string]any{"input": tt.input, "mapping": mapping}, nil, nil)
			res := s.Build(context.Background())
			if tt.wantErr {
				if !errors.Is(res.Err, ErrNoMatch) {
					t.Errorf("Build() = %v, want ErrNoMatch", res.Err)
				}
				return
			}
			if !res.OK() {
				t.Fatalf("Build() = %v", res.Err)
			}
			if got, _ := step.Value[string](s, "result"); got != tt.want {
				t.Errorf("result = %q, want %q", got, tt.want)
			}
		})
	}
}
