// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/conduct/conduct/internal/chain"
	"github.com/conduct/conduct/internal/chainfile"
)

// newChainCommand creates the `conduct chain` command tree.
func newChainCommand(app *App) *cobra.Command {
	chainCmd := &cobra.Command{
		Use:   "chain",
		Short: "Inspect chain definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	chainCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the chains found in the chain directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.listChains(cmd.Context())
		},
	})

	chainCmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Show the description, parameters and steps of a chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.showChain(cmd.Context(), args[0])
		},
	})

	return chainCmd
}

func (a *App) listChains(ctx context.Context) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return a.reportError(err)
	}
	entries, err := a.finder(cfg).List()
	if err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, TitleStyle.Render("Chains"))
	if len(entries) == 0 {
		fmt.Fprintf(a.stdout, "  %s\n", SubtitleStyle.Render("(none found in "+strings.Join(cfg.ChainDirs, ", ")+")"))
		return nil
	}
	for _, e := range entries {
		summary := ""
		if def, err := chainfile.ParseFile(e.Path); err != nil {
			summary = ErrorStyle.Render("invalid: ") + err.Error()
		} else {
			summary = firstLine(def.Description)
		}
		fmt.Fprintf(a.stdout, "  %s  %s  %s\n", StepStyle.Render(e.Name), summary, VerboseStyle.Render(e.Path))
	}
	return nil
}

func (a *App) showChain(ctx context.Context, name string) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return a.reportError(err)
	}
	def, err := a.finder(cfg).Load(name)
	if err != nil {
		return a.reportError(err)
	}
	out, err := glamour.Render(chainMarkdown(name, def), a.MarkdownStyle)
	if err != nil {
		return err
	}
	fmt.Fprint(a.stdout, out)
	return nil
}

// chainMarkdown documents a chain definition.
func chainMarkdown(name string, def *chain.Definition) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", name)
	if def.Description != "" {
		sb.WriteString(def.Description + "\n\n")
	}
	fmt.Fprintf(&sb, "Source: `%s`\n\n", def.Source)

	sb.WriteString("## Parameters\n\n")
	if len(def.Parameters) == 0 {
		sb.WriteString("None.\n\n")
	} else {
		sb.WriteString("| Name | Type | Default | Description |\n|---|---|---|---|\n")
		for _, p := range def.Parameters {
			dflt := "*mandatory*"
			if !p.Descriptor.Mandatory() {
				dflt = fmt.Sprintf("`%v`", p.Descriptor.Default)
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n", p.Name, p.Descriptor.Type, dflt, p.Descriptor.Description)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Steps\n\n")
	for i, s := range def.Steps {
		if s.IsNested() {
			fmt.Fprintf(&sb, "%d. **%s**: chain `%s`\n", i+1, s.Name, s.Chain)
			continue
		}
		fmt.Fprintf(&sb, "%d. **%s**: `%s`\n", i+1, s.Name, s.Type)
	}
	return sb.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
