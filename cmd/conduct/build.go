// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/conduct/conduct/internal/chain"
	"github.com/conduct/conduct/internal/chainfile"
	"github.com/conduct/conduct/internal/issue"
	"github.com/conduct/conduct/internal/logging"
	"github.com/conduct/conduct/internal/metrics"
	"github.com/conduct/conduct/internal/step"
	"github.com/conduct/conduct/internal/sysinfo"
)

var errNoChain = errors.New("--chain is required")

type (
	// BuildRequest captures the inputs of one build invocation.
	BuildRequest struct {
		// Chain is the name of the chain definition to build.
		Chain string
		// Overrides are chain parameter values from the command line. They
		// win over the chain's override file.
		Overrides map[string]string
		// DryRun constructs the chain without running it.
		DryRun bool
	}

	// buildFlags are the static flags of the build command.
	buildFlags struct {
		chain  string
		dryRun bool
		help   bool
	}
)

// newBuildCommand creates `conduct build`. Chain parameters become flags, so
// they are only known once --chain has been read: the command parses its own
// arguments in two passes.
func newBuildCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build --chain <name> [--<parameter> <value>...]",
		Short: "Build a chain",
		Long: `Build a chain.

Every parameter of the chain is available as a flag. Values are converted to
the declared parameter type; lists are given comma separated or as [a, b].
Values from <chain_config_dir>/<chain>.toml apply first, flags win.`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuildCommand(cmd, app, args)
		},
	}
	// Registered for help output only; parsing happens in runBuildCommand.
	cmd.Flags().String("chain", "", "name of the chain to build")
	cmd.Flags().Bool("dry-run", false, "validate the chain without running it")
	return cmd
}

func runBuildCommand(cmd *cobra.Command, app *App, args []string) error {
	var bf buildFlags
	probe := newBuildFlagSet(app, &bf)
	probe.ParseErrorsAllowlist.UnknownFlags = true
	if err := probe.Parse(args); err != nil {
		return err
	}
	if bf.chain == "" {
		if bf.help {
			return cmd.Help()
		}
		return errNoChain
	}

	ctx := cmd.Context()
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return app.reportError(err)
	}
	def, err := app.finder(cfg).Load(bf.chain)
	if err != nil {
		return app.reportError(err)
	}

	fs := newBuildFlagSet(app, &bf)
	paramFlags, err := addParamFlags(fs, def)
	if err != nil {
		return app.reportError(err)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if bf.help {
		printBuildHelp(app.stdout, bf.chain, fs)
		return nil
	}

	req := BuildRequest{Chain: bf.chain, Overrides: map[string]string{}, DryRun: bf.dryRun}
	fs.Visit(func(f *pflag.Flag) {
		if name, ok := paramFlags[f.Name]; ok {
			req.Overrides[name] = f.Value.String()
		}
	})
	return app.runBuild(ctx, req)
}

func newBuildFlagSet(app *App, bf *buildFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet("build", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&bf.chain, "chain", bf.chain, "name of the chain to build")
	fs.BoolVar(&bf.dryRun, "dry-run", false, "validate the chain without running it")
	fs.BoolVarP(&bf.help, "help", "h", false, "help for build")
	fs.StringVar(&app.flags.configPath, "config", app.flags.configPath, "config file")
	fs.StringVar(&app.flags.logLevel, "log-level", app.flags.logLevel, "override the configured log level")
	fs.BoolVarP(&app.flags.verbose, "verbose", "v", app.flags.verbose, "show the full error chain on failure")
	return fs
}

// addParamFlags registers one string flag per chain parameter and returns the
// flag name to parameter name mapping.
func addParamFlags(fs *pflag.FlagSet, def *chain.Definition) (map[string]string, error) {
	names := make(map[string]string, len(def.Parameters))
	for _, p := range def.Parameters {
		flagName := strings.ReplaceAll(p.Name, "_", "-")
		if fs.Lookup(flagName) != nil {
			return nil, fmt.Errorf("chain parameter %q clashes with the --%s flag of build", p.Name, flagName)
		}
		usage := p.Descriptor.Description
		if usage != "" {
			usage += " "
		}
		usage += "(" + p.Descriptor.Doc() + ")"
		fs.String(flagName, "", usage)
		names[flagName] = p.Name
	}
	return names, nil
}

func printBuildHelp(w io.Writer, chainName string, fs *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage:\n  conduct build --chain %s [flags]\n\nFlags:\n%s", chainName, fs.FlagUsages())
}

// runBuild constructs and builds a chain and reports the outcome.
func (a *App) runBuild(ctx context.Context, req BuildRequest) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return a.reportError(err)
	}
	finder := a.finder(cfg)
	def, err := finder.Load(req.Chain)
	if err != nil {
		return a.reportError(err)
	}

	overrides, err := chainfile.LoadOverrides(cfg.ChainConfigDir, req.Chain)
	if err != nil {
		return a.reportError(err)
	}
	if overrides == nil {
		overrides = make(map[string]any, len(req.Overrides))
	}
	for k, v := range req.Overrides {
		overrides[k] = v
	}

	logger, err := logging.New(logging.Options{
		Level:  string(cfg.LogLevel),
		Format: string(cfg.LogFormat),
		Dir:    cfg.LogDir,
		Name:   req.Chain,
		Out:    a.stderr,
	})
	if err != nil {
		return a.reportError(newServiceError(err, issue.ConfigLoadFailedId))
	}
	defer func() { _ = logger.Close() }()
	buildLog, buildID := logging.WithBuildID(logger.Logger)

	cat, err := a.catalog(cfg)
	if err != nil {
		return a.reportError(err)
	}

	var recorder *metrics.Recorder
	if cfg.MetricsFile != "" {
		recorder = metrics.NewRecorder()
	}
	arch := cfg.Arch
	if arch == "" {
		arch = sysinfo.HostArch()
	}
	env := &step.Env{
		Log:        buildLog,
		Arch:       arch,
		Runner:     a.runner(cfg),
		Mounter:    a.Mounter,
		Metrics:    recorder,
		RetryDelay: cfg.RetryDelay,
	}

	c, err := chain.New(req.Chain, def, overrides, cat, finder, env)
	if err != nil {
		return a.reportError(err)
	}

	if req.DryRun {
		fmt.Fprintf(a.stdout, "%s chain %s is valid; steps in order:\n", SuccessStyle.Render("✓"), StepStyle.Render(c.Name()))
		for i, name := range c.Steps() {
			fmt.Fprintf(a.stdout, "  %d. %s\n", i+1, name)
		}
		return nil
	}

	buildLog.Info("Starting build", "chain", req.Chain, "arch", arch)
	res := c.Build(ctx)

	if recorder != nil {
		if err := recorder.WriteFile(cfg.MetricsFile); err != nil {
			buildLog.Warn("Failed to write metrics", "path", cfg.MetricsFile, "err", err)
		}
	}
	if logger.Path != "" {
		buildLog.Info("Log written", "path", logger.Path)
	}

	if res.OK() {
		fmt.Fprintln(a.stdout, resultSuccessStyle.Render("BUILD RESULT: SUCCESS"))
		return nil
	}
	fmt.Fprintln(a.stdout, resultFailureStyle.Render("BUILD RESULT: FAILED"))
	buildErr := fmt.Errorf("build %s (build_id %s): %w", req.Chain, buildID, res.Err)
	renderGuidance(a.stderr, buildErr, a.MarkdownStyle)
	return &ExitError{Code: 1, Err: newDisplayError(buildErr, a.flags.verbose)}
}

// reportError renders the guidance for a construction error and converts it
// into the error returned from RunE, with suggestions attached.
func (a *App) reportError(err error) error {
	renderGuidance(a.stderr, err, a.MarkdownStyle)
	return &ExitError{Code: 2, Err: newDisplayError(err, a.flags.verbose)}
}
