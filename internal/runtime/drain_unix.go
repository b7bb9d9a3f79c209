// SPDX-License-Identifier: MPL-2.0

//go:build unix

package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// pollInterval is the poll timeout; between timeouts cancellation is checked.
const pollInterval = 100

// drain reads both pipes until EOF, multiplexing them with poll(2) so that
// heavy output on one stream never stalls the other.
func drain(ctx context.Context, stdout, stderr *os.File, capt *capture) error {
	fds := []unix.PollFd{
		{Fd: int32(stdout.Fd()), Events: unix.POLLIN},
		{Fd: int32(stderr.Fd()), Events: unix.POLLIN},
	}
	sinks := []*lineWriter{capt.out, capt.err}
	open := len(fds)
	buf := make([]byte, 32*1024)
	var deadline time.Time

	for open > 0 {
		n, err := unix.Poll(fds, pollInterval)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("poll: %w", err)
		}
		if n == 0 {
			if ctx.Err() != nil {
				if deadline.IsZero() {
					deadline = time.Now().Add(drainGrace)
				} else if time.Now().After(deadline) {
					return ctx.Err()
				}
			}
			continue
		}

		for i := range fds {
			if fds[i].Fd < 0 || fds[i].Revents == 0 {
				continue
			}
			m, rerr := unix.Read(int(fds[i].Fd), buf)
			if m > 0 {
				_, _ = sinks[i].Write(buf[:m])
			}
			if errors.Is(rerr, unix.EINTR) || errors.Is(rerr, unix.EAGAIN) {
				continue
			}
			if m <= 0 || rerr != nil {
				sinks[i].Flush()
				fds[i].Fd = -1
				open--
			}
		}
	}
	return nil
}
