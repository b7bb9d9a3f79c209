// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/google/shlex"
)

// drainGrace bounds how long output is still drained after cancellation, in
// case a killed process left children holding the pipes open.
const drainGrace = 2 * time.Second

func (e *Executor) runArgv(ctx context.Context, cmd *Command, argv []string) *Result {
	logger := cmd.logger()
	line := FormatArgv(argv)
	if len(cmd.Args) == 0 {
		line = cmd.Script
	}
	logger.Debug("System call: " + line)

	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	c.Dir = cmd.Dir
	c.Env = environ(cmd.Env)
	c.Stdin = cmd.Stdin

	outR, outW, err := os.Pipe()
	if err != nil {
		return NewErrorResult(1, fmt.Errorf("create stdout pipe: %w", err))
	}
	defer outR.Close()
	errR, errW, err := os.Pipe()
	if err != nil {
		outW.Close()
		return NewErrorResult(1, fmt.Errorf("create stderr pipe: %w", err))
	}
	defer errR.Close()
	c.Stdout = outW
	c.Stderr = errW

	startErr := c.Start()
	// The child holds its own copies; closing ours lets the drain see EOF.
	outW.Close()
	errW.Close()
	if startErr != nil {
		return NewErrorResult(127, fmt.Errorf("failed to execute %s: %w", argv[0], startErr))
	}

	capt := newCapture(logger)
	drainErr := drain(ctx, outR, errR, capt)
	code, waitErr := exitCodeOf(c.Wait())
	if waitErr == nil && drainErr != nil {
		waitErr = fmt.Errorf("read output of %s: %w", argv[0], drainErr)
	}
	if waitErr == nil && ctx.Err() != nil && code != 0 {
		waitErr = fmt.Errorf("%s: %w", argv[0], ctx.Err())
	}
	return capt.result(code, waitErr, line)
}

func (e *Executor) runDirect(ctx context.Context, cmd *Command) *Result {
	argv, err := shlex.Split(cmd.Script)
	if err != nil {
		return NewErrorResult(1, fmt.Errorf("split command line %q: %w", cmd.Script, err))
	}
	if len(argv) == 0 {
		return NewErrorResult(1, ErrEmptyCommand)
	}
	return e.runArgv(ctx, cmd, argv)
}
