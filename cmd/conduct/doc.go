// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the CLI commands of conduct.
//
// The root command wires configuration, the step catalog and chain loading
// through an App. Subcommands build chains, inspect chain definitions and
// step types, and manage the configuration file.
package cmd
