// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conduct/conduct/internal/config"
)

// newConfigCommand creates the `conduct config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage conduct configuration",
		Long: `Manage conduct configuration.

Configuration is stored in config.cue in the user config directory:
  - Linux: ~/.config/conduct/config.cue
  - macOS: ~/Library/Application Support/conduct/config.cue

Every key can be overridden with a CONDUCT_<KEY> environment variable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.showConfig(cmd.Context())
		},
	})

	var dir string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.initConfig(dir)
		},
	}
	initCmd.Flags().StringVar(&dir, "dir", "", "directory to write config.cue to (default is the user config directory)")
	cfgCmd.AddCommand(initCmd)

	return cfgCmd
}

func (a *App) showConfig(ctx context.Context) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return a.reportError(err)
	}

	fmt.Fprintln(a.stdout, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(a.stdout)
	fmt.Fprintf(a.stdout, "%s: %s\n\n", CmdStyle.Render("Config file"), a.configFileLabel())
	fmt.Fprint(a.stdout, config.GenerateCUE(cfg))
	return nil
}

// configFileLabel names the file the configuration was read from.
func (a *App) configFileLabel() string {
	if a.flags.configPath != "" {
		return a.flags.configPath
	}
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return SubtitleStyle.Render("(using defaults)")
	}
	path := filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt)
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path
	}
	return SubtitleStyle.Render("(using defaults)")
}

func (a *App) initConfig(dir string) error {
	path, err := config.CreateDefaultConfig(dir)
	if errors.Is(err, config.ErrConfigExists) {
		fmt.Fprintf(a.stdout, "%s Configuration already exists at %s\n", WarningStyle.Render("!"), path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	fmt.Fprintf(a.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}
