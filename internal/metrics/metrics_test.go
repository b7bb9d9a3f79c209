// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNilRecorderIsNoop(t *testing.T) {
	t.Parallel()

	var r *Recorder
	r.StepAttempt("c", "s", "ok")
	r.StepDuration("c", "s", time.Second)
	r.Cleanup("c", "s", "ok")
	r.BuildFinished("c", true, time.Now())
	if err := r.WriteFile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Errorf("WriteFile() error = %v", err)
	}
	if r.Registry() != nil {
		t.Error("Registry() on nil recorder should be nil")
	}
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.StepAttempt("img", "mount", "retryable")
	r.StepAttempt("img", "mount", "ok")
	r.StepDuration("img", "mount", 1500*time.Millisecond)
	r.Cleanup("img", "mount", "ok")
	r.BuildFinished("img", true, time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "conduct.prom")
	if err := r.WriteFile(path); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	text := string(data)
	for _, want := range []string{
		`conduct_step_attempts_total{chain="img",outcome="ok",step="mount"} 1`,
		`conduct_step_attempts_total{chain="img",outcome="retryable",step="mount"} 1`,
		`conduct_step_duration_seconds{chain="img",step="mount"} 1.5`,
		`conduct_cleanups_total{chain="img",outcome="ok",step="mount"} 1`,
		`conduct_build_success{chain="img"} 1`,
		`conduct_build_timestamp_seconds{chain="img"} 1.7e+09`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics file missing %q\n%s", want, text)
		}
	}
}
