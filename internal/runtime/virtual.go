// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ValidateScript checks that script parses as a POSIX/bash shell program.
func ValidateScript(script string) error {
	if _, err := syntax.NewParser().Parse(strings.NewReader(script), "script"); err != nil {
		return fmt.Errorf("failed to parse script: %w", err)
	}
	return nil
}

// runVirtual executes the script in the embedded interpreter. Builtins run
// in-process; other programs are started by the interpreter's default exec
// handler. Output is written through the line writers as it is produced.
func (e *Executor) runVirtual(ctx context.Context, cmd *Command) *Result {
	logger := cmd.logger()
	logger.Debug("Virtual shell: " + cmd.Script)

	prog, err := syntax.NewParser().Parse(strings.NewReader(cmd.Script), "script")
	if err != nil {
		return NewErrorResult(2, fmt.Errorf("failed to parse script: %w", err))
	}

	capt := newCapture(logger)
	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(environ(cmd.Env)...)),
		interp.StdIO(cmd.Stdin, capt.out, capt.err),
	}
	if cmd.Dir != "" {
		opts = append(opts, interp.Dir(cmd.Dir))
	}
	runner, err := interp.New(opts...)
	if err != nil {
		return NewErrorResult(1, fmt.Errorf("failed to create interpreter: %w", err))
	}

	err = runner.Run(ctx, prog)
	if err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return capt.result(ExitCode(exitStatus), nil, cmd.Script)
		}
		return capt.result(1, fmt.Errorf("script execution failed: %w", err), cmd.Script)
	}
	return capt.result(0, nil, cmd.Script)
}
