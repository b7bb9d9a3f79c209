// SPDX-License-Identifier: MPL-2.0

// Package metrics records build statistics in a Prometheus registry that is
// written to a node exporter textfile at the end of a build.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder collects per-build metrics. All methods are safe on a nil
// Recorder, which records nothing.
type Recorder struct {
	registry  *prometheus.Registry
	attempts  *prometheus.CounterVec
	cleanups  *prometheus.CounterVec
	duration  *prometheus.GaugeVec
	success   *prometheus.GaugeVec
	timestamp *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conduct",
			Name:      "step_attempts_total",
			Help:      "Run attempts per step by outcome.",
		}, []string{"chain", "step", "outcome"}),
		cleanups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conduct",
			Name:      "cleanups_total",
			Help:      "Cleanup actions per step by outcome.",
		}, []string{"chain", "step", "outcome"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "conduct",
			Name:      "step_duration_seconds",
			Help:      "Wall time of the last build of a step, retries included.",
		}, []string{"chain", "step"}),
		success: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "conduct",
			Name:      "build_success",
			Help:      "1 if the last build of the chain succeeded, 0 otherwise.",
		}, []string{"chain"}),
		timestamp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "conduct",
			Name:      "build_timestamp_seconds",
			Help:      "Unix time the last build of the chain finished.",
		}, []string{"chain"}),
	}
	r.registry.MustRegister(r.attempts, r.cleanups, r.duration, r.success, r.timestamp)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// StepAttempt counts one run attempt.
func (r *Recorder) StepAttempt(chain, step, outcome string) {
	if r == nil {
		return
	}
	r.attempts.WithLabelValues(chain, step, outcome).Inc()
}

// StepDuration records how long a step's build took.
func (r *Recorder) StepDuration(chain, step string, d time.Duration) {
	if r == nil {
		return
	}
	r.duration.WithLabelValues(chain, step).Set(d.Seconds())
}

// Cleanup counts one cleanup action.
func (r *Recorder) Cleanup(chain, step, outcome string) {
	if r == nil {
		return
	}
	r.cleanups.WithLabelValues(chain, step, outcome).Inc()
}

// BuildFinished records the overall result of a chain build.
func (r *Recorder) BuildFinished(chain string, ok bool, at time.Time) {
	if r == nil {
		return
	}
	v := 0.0
	if ok {
		v = 1
	}
	r.success.WithLabelValues(chain).Set(v)
	r.timestamp.WithLabelValues(chain).Set(float64(at.Unix()))
}

// WriteFile writes all metrics in the Prometheus text format. The file is
// replaced atomically.
func (r *Recorder) WriteFile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
