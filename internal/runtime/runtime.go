// SPDX-License-Identifier: MPL-2.0

// Package runtime executes the external commands build steps depend on.
//
// Commands run in one of four modes:
//
//   - native: the script is passed to the host shell (/bin/sh -c)
//   - direct: the script is split into argv with shell quoting rules and
//     executed without a shell
//   - virtual: the script runs in the embedded mvdan/sh interpreter
//   - pty: like native, attached to a pseudo terminal for tools that insist
//     on a terminal
//
// Standard output and standard error are drained concurrently while the
// process runs. Every complete line is logged as it arrives (stdout at info,
// stderr at warn) and retained in the Result.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/syntax"
)

// Execution modes.
const (
	ModeNative  Mode = "native"
	ModeDirect  Mode = "direct"
	ModeVirtual Mode = "virtual"
	ModePTY     Mode = "pty"

	defaultShell = "/bin/sh"
)

var (
	// ErrInvalidMode is the sentinel error wrapped by InvalidModeError.
	ErrInvalidMode = errors.New("invalid runtime mode")
	// ErrEmptyCommand is returned for a command with neither script nor argv.
	ErrEmptyCommand = errors.New("empty command")
	// ErrCommandFailed is the sentinel error wrapped by CommandError.
	ErrCommandFailed = errors.New("command failed")
)

type (
	// Mode selects how a Command is executed.
	Mode string

	// InvalidModeError is returned when a Mode value is not recognized.
	InvalidModeError struct {
		Value Mode
	}

	// Command describes one external command.
	Command struct {
		// Script is a shell command line. Ignored when Args is set.
		Script string
		// Args is an argv executed directly, without a shell.
		Args []string
		// Mode overrides the runner's default mode for Script.
		Mode Mode
		// Dir is the working directory; empty means the current directory.
		Dir string
		// Env holds variables added to the inherited environment.
		Env map[string]string
		// Stdin is fed to the process; nil means no input.
		Stdin io.Reader
		// Logger receives the output lines; nil discards them.
		Logger *log.Logger
	}

	// Runner executes commands.
	Runner interface {
		Run(ctx context.Context, cmd *Command) *Result
	}

	// Executor is the Runner used in production.
	Executor struct {
		// DefaultMode applies to scripts whose Command has no Mode.
		DefaultMode Mode
		// Shell is the shell used by native and pty modes.
		Shell string
	}

	// CommandError reports a command that exited non-zero.
	CommandError struct {
		Command  string
		ExitCode ExitCode
	}
)

// Error implements the error interface.
func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("invalid runtime mode %q (valid: native, direct, virtual, pty)", e.Value)
}

// Unwrap returns ErrInvalidMode so callers can use errors.Is.
func (e *InvalidModeError) Unwrap() error { return ErrInvalidMode }

// Error implements the error interface.
func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s exited with status %d", e.Command, e.ExitCode)
}

// Unwrap returns ErrCommandFailed so callers can use errors.Is.
func (e *CommandError) Unwrap() error { return ErrCommandFailed }

// IsValid returns whether the Mode is one of the defined modes, and a list of
// validation errors if it is not. The empty mode is valid and means default.
func (m Mode) IsValid() (bool, []error) {
	switch m {
	case "", ModeNative, ModeDirect, ModeVirtual, ModePTY:
		return true, nil
	default:
		return false, []error{&InvalidModeError{Value: m}}
	}
}

// String returns the mode name.
func (m Mode) String() string { return string(m) }

// NewExecutor creates an Executor with the given default mode.
func NewExecutor(mode Mode) *Executor {
	if mode == "" {
		mode = ModeNative
	}
	return &Executor{DefaultMode: mode, Shell: defaultShell}
}

// Run executes cmd and blocks until it exits and its output is drained.
// Cancelling ctx kills the process.
func (e *Executor) Run(ctx context.Context, cmd *Command) *Result {
	if cmd == nil || (len(cmd.Args) == 0 && strings.TrimSpace(cmd.Script) == "") {
		return NewErrorResult(1, ErrEmptyCommand)
	}
	if len(cmd.Args) > 0 {
		return e.runArgv(ctx, cmd, cmd.Args)
	}

	mode := cmd.Mode
	if mode == "" {
		mode = e.DefaultMode
	}
	if ok, errs := mode.IsValid(); !ok {
		return NewErrorResult(1, errs[0])
	}
	shell := e.Shell
	if shell == "" {
		shell = defaultShell
	}

	switch mode {
	case ModeVirtual:
		return e.runVirtual(ctx, cmd)
	case ModeDirect:
		return e.runDirect(ctx, cmd)
	case ModePTY:
		return e.runPTY(ctx, cmd, []string{shell, "-c", cmd.Script})
	default:
		return e.runArgv(ctx, cmd, []string{shell, "-c", cmd.Script})
	}
}

// String renders the command as a copy-pasteable shell line.
func (c *Command) String() string {
	if len(c.Args) > 0 {
		return FormatArgv(c.Args)
	}
	return c.Script
}

// FormatArgv quotes each argument with POSIX shell rules and joins them.
func FormatArgv(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		q, err := syntax.Quote(a, syntax.LangPOSIX)
		if err != nil {
			q = fmt.Sprintf("%q", a)
		}
		quoted[i] = q
	}
	return strings.Join(quoted, " ")
}

// environ merges extra variables into the process environment.
func environ(extra map[string]string) []string {
	env := os.Environ()
	if len(extra) == 0 {
		return env
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

func (c *Command) logger() *log.Logger {
	if c.Logger == nil {
		return log.New(io.Discard)
	}
	return c.Logger
}
