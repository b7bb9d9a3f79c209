// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand creates the conduct command tree bound to app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "conduct",
		Short: "Build and provision systems from chains of steps",
		Long: TitleStyle.Render("conduct") + SubtitleStyle.Render(" - Build and provision systems from chains of steps") + `

A chain is an ordered list of steps read from a CUE or HCL file. conduct
runs the steps in order, retrying the ones that fail transiently, and then
undoes the work of every step that succeeded in reverse order.

` + SubtitleStyle.Render("Examples:") + `
  conduct chain list                       List the available chains
  conduct chain show image                 Show the parameters of a chain
  conduct build --chain image --size 1024  Build a chain
  conduct steps show fs.Mount              Document a step type`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&app.flags.configPath, "config", "", "config file (default is config.cue in the user config directory)")
	root.PersistentFlags().StringVar(&app.flags.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVarP(&app.flags.verbose, "verbose", "v", false, "show the full error chain on failure")

	root.AddCommand(
		newBuildCommand(app),
		newChainCommand(app),
		newStepsCommand(app),
		newConfigCommand(app),
	)
	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	// fang overrides rootCmd.Version, so the version is passed as an option.
	// The notify signal cancels the build context; cleanup still runs.
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
