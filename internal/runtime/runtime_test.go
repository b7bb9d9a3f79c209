// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func newTestLogger() (*log.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel}), &buf
}

func TestModeIsValid(t *testing.T) {
	t.Parallel()

	for _, m := range []Mode{"", ModeNative, ModeDirect, ModeVirtual, ModePTY} {
		if ok, errs := m.IsValid(); !ok {
			t.Errorf("Mode(%q).IsValid() = false, %v", m, errs)
		}
	}
	ok, errs := Mode("container").IsValid()
	if ok || len(errs) != 1 || !errors.Is(errs[0], ErrInvalidMode) {
		t.Errorf("Mode(container).IsValid() = %v, %v; want invalid", ok, errs)
	}
}

func TestFormatArgv(t *testing.T) {
	t.Parallel()

	got := FormatArgv([]string{"kpartx", "-v", "-a", "/tmp/my image.img"})
	want := `kpartx -v -a '/tmp/my image.img'`
	if got != want {
		t.Errorf("FormatArgv() = %s, want %s", got, want)
	}
}

func TestEmptyCommand(t *testing.T) {
	t.Parallel()

	res := NewExecutor(ModeNative).Run(context.Background(), &Command{Script: "  "})
	if !errors.Is(res.Err(), ErrEmptyCommand) {
		t.Errorf("Run() error = %v, want ErrEmptyCommand", res.Err())
	}
}

func TestRunModes(t *testing.T) {
	requireShell(t)
	t.Parallel()

	for _, mode := range []Mode{ModeNative, ModeVirtual, ModeDirect} {
		t.Run(string(mode), func(t *testing.T) {
			t.Parallel()

			logger, buf := newTestLogger()
			script := "echo hello world"
			res := NewExecutor(mode).Run(context.Background(), &Command{Script: script, Logger: logger})
			if err := res.Err(); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if len(res.Output) != 1 || res.Output[0] != "hello world" {
				t.Errorf("Output = %q, want [hello world]", res.Output)
			}
			if !strings.Contains(buf.String(), "hello world") {
				t.Errorf("stdout line was not logged: %s", buf.String())
			}
		})
	}
}

func TestRunSeparatesStreams(t *testing.T) {
	requireShell(t)
	t.Parallel()

	for _, mode := range []Mode{ModeNative, ModeVirtual} {
		t.Run(string(mode), func(t *testing.T) {
			t.Parallel()

			logger, buf := newTestLogger()
			res := NewExecutor(mode).Run(context.Background(), &Command{
				Script: "echo out1; echo err1 >&2; printf 'tail'",
				Logger: logger,
			})
			if err := res.Err(); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if want := []string{"out1", "tail"}; fmt.Sprint(res.Output) != fmt.Sprint(want) {
				t.Errorf("Output = %q, want %q", res.Output, want)
			}
			if want := []string{"err1"}; fmt.Sprint(res.ErrOutput) != fmt.Sprint(want) {
				t.Errorf("ErrOutput = %q, want %q", res.ErrOutput, want)
			}
			if !strings.Contains(buf.String(), "WARN") {
				t.Errorf("stderr line was not logged at warn level: %s", buf.String())
			}
		})
	}
}

func TestRunNonZeroExit(t *testing.T) {
	requireShell(t)
	t.Parallel()

	res := NewExecutor(ModeNative).Run(context.Background(), &Command{Script: "echo partial; exit 3"})
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if !errors.Is(res.Err(), ErrCommandFailed) {
		t.Errorf("Err() = %v, want ErrCommandFailed", res.Err())
	}
	if len(res.Output) != 1 || res.Output[0] != "partial" {
		t.Errorf("Output = %q, want [partial]", res.Output)
	}
}

func TestRunHeavyOutputOnBothStreams(t *testing.T) {
	requireShell(t)
	t.Parallel()

	// Far more than a pipe buffer on each stream.
	script := `i=0; while [ $i -lt 5000 ]; do echo "out line $i"; echo "err line $i" >&2; i=$((i+1)); done`
	res := NewExecutor(ModeNative).Run(context.Background(), &Command{Script: script})
	if err := res.Err(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Output) != 5000 || len(res.ErrOutput) != 5000 {
		t.Fatalf("got %d stdout and %d stderr lines, want 5000 each", len(res.Output), len(res.ErrOutput))
	}
	if res.Output[4999] != "out line 4999" {
		t.Errorf("last stdout line = %q", res.Output[4999])
	}
}

func TestRunArgvWithStdinDirAndEnv(t *testing.T) {
	requireShell(t)
	t.Parallel()

	dir := t.TempDir()
	res := NewExecutor(ModeNative).Run(context.Background(), &Command{
		Args:  []string{"sh", "-c", `pwd; echo "$CONDUCT_VALUE"; cat`},
		Dir:   dir,
		Env:   map[string]string{"CONDUCT_VALUE": "42"},
		Stdin: strings.NewReader("from stdin\n"),
	})
	if err := res.Err(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Output) != 3 || !strings.HasSuffix(res.Output[0], strings.TrimPrefix(dir, "/private")) ||
		res.Output[1] != "42" || res.Output[2] != "from stdin" {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestRunMissingBinary(t *testing.T) {
	t.Parallel()

	res := NewExecutor(ModeNative).Run(context.Background(), &Command{Args: []string{"conduct-no-such-binary"}})
	if res.Error == nil {
		t.Fatal("Run() expected a start error")
	}
	if res.ExitCode != 127 {
		t.Errorf("ExitCode = %d, want 127", res.ExitCode)
	}
}

func TestRunCancelled(t *testing.T) {
	requireShell(t)
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := NewExecutor(ModeNative).Run(ctx, &Command{Args: []string{"sh", "-c", "exec sleep 30"}})
	if res.Err() == nil {
		t.Error("Run() expected an error after cancellation")
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("cancelled Run took %v", elapsed)
	}
}

func TestVirtualParseError(t *testing.T) {
	t.Parallel()

	res := NewExecutor(ModeVirtual).Run(context.Background(), &Command{Script: "echo 'unterminated"})
	if res.Error == nil {
		t.Fatal("Run() expected a parse error")
	}
	if err := ValidateScript("echo ok"); err != nil {
		t.Errorf("ValidateScript() error = %v", err)
	}
}

func TestLineWriter(t *testing.T) {
	t.Parallel()

	var lines []string
	w := &lineWriter{emit: func(s string) { lines = append(lines, s) }}
	_, _ = w.Write([]byte("a\r\nb"))
	_, _ = w.Write([]byte("c\n\nd"))
	w.Flush()
	want := []string{"a", "bc", "", "d"}
	if fmt.Sprint(lines) != fmt.Sprint(want) || len(lines) != len(want) {
		t.Errorf("lines = %q, want %q", lines, want)
	}
}
