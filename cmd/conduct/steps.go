// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/conduct/conduct/internal/step"
)

// newStepsCommand creates the `conduct steps` command tree.
func newStepsCommand(app *App) *cobra.Command {
	stepsCmd := &cobra.Command{
		Use:   "steps",
		Short: "Inspect the registered step types",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	stepsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the registered step types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.listSteps(cmd.Context())
		},
	})

	stepsCmd.AddCommand(&cobra.Command{
		Use:   "show <type>",
		Short: "Document the parameters and outputs of a step type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.showStep(cmd.Context(), args[0])
		},
	})

	return stepsCmd
}

func (a *App) listSteps(ctx context.Context) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return a.reportError(err)
	}
	cat, err := a.catalog(cfg)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, TitleStyle.Render("Step types"))
	for _, name := range cat.Names() {
		typ, err := cat.Lookup(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "  %s  %s\n", StepStyle.Render(name), SubtitleStyle.Render(typ.Description()))
	}
	return nil
}

func (a *App) showStep(ctx context.Context, name string) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return a.reportError(err)
	}
	cat, err := a.catalog(cfg)
	if err != nil {
		return err
	}
	typ, err := cat.Lookup(name)
	if err != nil {
		return a.reportError(err)
	}
	out, err := glamour.Render(stepMarkdown(typ), a.MarkdownStyle)
	if err != nil {
		return err
	}
	fmt.Fprint(a.stdout, out)
	return nil
}

// stepMarkdown documents a step type: one table row per parameter and output.
func stepMarkdown(typ *step.Type) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", typ.Name())
	if typ.Description() != "" {
		sb.WriteString(typ.Description() + "\n\n")
	}
	if parent := typ.Parent(); parent != nil {
		fmt.Fprintf(&sb, "Extends `%s`.\n\n", parent.Name())
	}
	if typ.HasCleanup() {
		sb.WriteString("Undoes its work on cleanup.\n\n")
	}

	writeAccessors(&sb, "Parameters", typ.Params())
	writeAccessors(&sb, "Outputs", typ.Outputs())
	return sb.String()
}

func writeAccessors(sb *strings.Builder, title string, accessors []step.Accessor) {
	if len(accessors) == 0 {
		return
	}
	fmt.Fprintf(sb, "## %s\n\n| Name | Type | Description |\n|---|---|---|\n", title)
	for _, acc := range accessors {
		fmt.Fprintf(sb, "| %s | %s | %s |\n", acc.Name, acc.Descriptor.Doc(), acc.Descriptor.Description)
	}
	sb.WriteString("\n")
}
