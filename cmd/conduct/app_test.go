// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/conduct/conduct/internal/config"
	"github.com/conduct/conduct/internal/issue"
)

type stubConfigProvider struct {
	cfg *config.Config
	err error
}

func (s stubConfigProvider) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	if s.err != nil {
		return nil, s.err
	}
	cfg := *s.cfg
	return &cfg, nil
}

// newTestApp returns an App reading chains from chainDir, with captured output.
func newTestApp(t *testing.T, chainDir string) (*App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.ChainDirs = []string{chainDir}
	cfg.LogLevel = config.LogLevelDebug

	var stdout, stderr bytes.Buffer
	app := NewApp(Dependencies{
		Config:        stubConfigProvider{cfg: cfg},
		MarkdownStyle: "notty",
		Stdout:        &stdout,
		Stderr:        &stderr,
	})
	return app, &stdout, &stderr
}

// runCLI executes the command tree with args.
func runCLI(t *testing.T, app *App, args ...string) error {
	t.Helper()

	root := NewRootCommand(app)
	root.SetOut(app.stdout)
	root.SetErr(app.stderr)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNewAppDefaults(t *testing.T) {
	t.Parallel()

	app := NewApp(Dependencies{})
	if app.Config == nil || app.stdout == nil || app.stderr == nil {
		t.Fatal("NewApp() left a production dependency unset")
	}
	if app.MarkdownStyle != "auto" {
		t.Errorf("MarkdownStyle = %q, want auto", app.MarkdownStyle)
	}
}

func TestLoadConfigLogLevelOverride(t *testing.T) {
	t.Parallel()

	app, _, _ := newTestApp(t, t.TempDir())
	app.flags.logLevel = "warn"
	cfg, err := app.loadConfig(context.Background())
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.LogLevel != config.LogLevelWarn {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}

	app.flags.logLevel = "loud"
	if _, err := app.loadConfig(context.Background()); classifyError(err) != issue.ConfigLoadFailedId {
		t.Errorf("loadConfig() error = %v, want a config-load service error", err)
	}
}
