// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
)

// runPTY runs argv attached to a pseudo terminal. The terminal merges stdout
// and stderr into one stream, which is logged at info level.
func (e *Executor) runPTY(ctx context.Context, cmd *Command, argv []string) *Result {
	logger := cmd.logger()
	logger.Debug("System call (pty): " + cmd.String())

	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	c.Dir = cmd.Dir
	c.Env = environ(cmd.Env)

	f, err := pty.Start(c)
	if err != nil {
		return NewErrorResult(127, fmt.Errorf("failed to start %s on a pty: %w", argv[0], err))
	}
	defer f.Close()

	if cmd.Stdin != nil {
		go func() {
			_, _ = io.Copy(f, cmd.Stdin)
		}()
	}

	capt := newCapture(logger)
	// Reading the master fails with EIO once the child side is closed.
	if _, err := io.Copy(capt.out, f); err != nil && !isPTYClosed(err) {
		logger.Debug("pty read ended", "err", err)
	}
	code, waitErr := exitCodeOf(c.Wait())
	return capt.result(code, waitErr, cmd.String())
}

func isPTYClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, syscall.EIO)
}
