// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/conduct/conduct/internal/buildsteps"
	"github.com/conduct/conduct/internal/catalog"
	"github.com/conduct/conduct/internal/chainfile"
	"github.com/conduct/conduct/internal/config"
	"github.com/conduct/conduct/internal/issue"
	"github.com/conduct/conduct/internal/runtime"
	"github.com/conduct/conduct/internal/sysmount"
)

type (
	// App wires CLI services and shared dependencies. All Cobra command
	// handlers receive an App reference.
	App struct {
		Config ConfigProvider
		// Runner executes external commands; nil builds one from default_shell.
		Runner runtime.Runner
		// Mounter attaches file systems; nil means the host kernel.
		Mounter sysmount.Mounter
		// MarkdownStyle is the glamour style used for rendered pages.
		MarkdownStyle string
		stdout        io.Writer
		stderr        io.Writer
		flags         globalFlags
	}

	// Dependencies defines the injection points for building an App. Nil fields are
	// replaced with production defaults by NewApp.
	Dependencies struct {
		Config        ConfigProvider
		Runner        runtime.Runner
		Mounter       sysmount.Mounter
		MarkdownStyle string
		Stdout        io.Writer
		Stderr        io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	globalFlags struct {
		configPath string
		logLevel   string
		verbose    bool
	}
)

// NewApp creates an App, filling unset dependencies with production defaults.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:        deps.Config,
		Runner:        deps.Runner,
		Mounter:       deps.Mounter,
		MarkdownStyle: deps.MarkdownStyle,
		stdout:        deps.Stdout,
		stderr:        deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.MarkdownStyle == "" {
		app.MarkdownStyle = "auto"
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// loadConfig loads the configuration and applies global flag overrides.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.flags.configPath})
	if err != nil {
		return nil, newServiceError(err, issue.ConfigLoadFailedId)
	}
	if a.flags.logLevel != "" {
		level := config.LogLevel(a.flags.logLevel)
		if ok, errs := level.IsValid(); !ok {
			return nil, newServiceError(errs[0], issue.ConfigLoadFailedId)
		}
		cfg.LogLevel = level
	}
	return cfg, nil
}

// catalog returns the step catalog resolving names with the configured
// prefixes.
func (a *App) catalog(cfg *config.Config) (*catalog.Catalog, error) {
	c := catalog.New(cfg.StepPrefixes...)
	if err := buildsteps.Register(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (a *App) finder(cfg *config.Config) *chainfile.Finder {
	return chainfile.NewFinder(cfg.ChainDirs...)
}

func (a *App) runner(cfg *config.Config) runtime.Runner {
	if a.Runner != nil {
		return a.Runner
	}
	return runtime.NewExecutor(runtime.Mode(cfg.DefaultShell))
}
