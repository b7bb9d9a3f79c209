// SPDX-License-Identifier: MPL-2.0

package step

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/conduct/conduct/internal/metrics"
	"github.com/conduct/conduct/internal/runtime"
	"github.com/conduct/conduct/internal/sysmount"
)

// Env is the execution context shared by a chain, its nested chains and every
// step instance they own. It is built once per build invocation.
type Env struct {
	// Log is the logger of the owning chain. Steps derive child loggers.
	Log *log.Logger
	// Chain is the dotted name of the owning chain.
	Chain string
	// Arch is the host architecture in Debian notation (amd64, arm64, armhf...).
	Arch string
	// Runner executes external commands.
	Runner runtime.Runner
	// Mounter attaches file systems; nil means the host kernel.
	Mounter sysmount.Mounter
	// Metrics records attempts and durations; nil disables recording.
	Metrics *metrics.Recorder
	// RetryDelay is the pause between two attempts of a failing step.
	RetryDelay time.Duration
}

// ForChain returns a copy of e scoped to a (possibly nested) chain.
func (e *Env) ForChain(name string) *Env {
	c := *e
	if c.Chain != "" {
		c.Chain += "." + name
	} else {
		c.Chain = name
	}
	c.Log = e.logger().WithPrefix(c.Chain)
	return &c
}

func (e *Env) logger() *log.Logger {
	if e.Log == nil {
		return log.New(io.Discard)
	}
	return e.Log
}

func (e *Env) runner() runtime.Runner {
	if e.Runner == nil {
		return runtime.NewExecutor(runtime.ModeNative)
	}
	return e.Runner
}

// Mounts returns the environment's mounter.
func (e *Env) Mounts() sysmount.Mounter {
	if e.Mounter == nil {
		return &sysmount.System{Runner: e.runner()}
	}
	return e.Mounter
}
