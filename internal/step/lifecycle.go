// SPDX-License-Identifier: MPL-2.0

package step

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	heavyRule = strings.Repeat("=", 80)
	lightRule = strings.Repeat("-", 80)
)

// Build runs the step: the run action is attempted up to retries+1 times.
// Retryable failures are retried, fatal ones end the build at once. A step
// that did not succeed returns a Fatal result wrapping ErrBuildFailed.
func (s *Instance) Build(ctx context.Context) Result {
	if s.state == StateRunning || s.state == StateSucceeded {
		return Fatal(&BuildError{Step: s.name, Err: ErrAlreadyBuilt})
	}

	description, _ := Value[string](s, "description")
	s.log.Info(heavyRule)
	s.log.Info("Build: " + s.name)
	if description != "" {
		s.log.Info(description)
	}
	s.log.Info(lightRule)

	retries, err := Value[int](s, "retries")
	if err != nil {
		s.state = StateFailed
		s.log.Error("Invalid retry budget", "err", err)
		return Fatal(&BuildError{Step: s.name, Err: err})
	}

	s.state = StateRunning
	start := time.Now()
	attempts := 0
	op := func() error {
		attempts++
		res := s.typ.run(ctx, s)
		s.env.Metrics.StepAttempt(s.env.Chain, s.name, res.Status.String())
		if res.OK() {
			return nil
		}
		// A hand-built Result may carry no error; it still is a failure.
		runErr := res.Err
		if runErr == nil {
			runErr = errUnspecified
		}
		s.log.Error("Run failed", "attempt", attempts, "err", runErr)
		if res.Status == StatusFatal {
			return backoff.Permanent(runErr)
		}
		return runErr
	}
	notify := func(error, time.Duration) {
		s.log.Warnf("Failed; Retry %d/%d", attempts, retries)
	}

	// WithMaxRetries treats 0 as unlimited, so a zero budget needs StopBackOff.
	var policy backoff.BackOff = &backoff.StopBackOff{}
	if retries > 0 {
		policy = backoff.WithMaxRetries(backoff.NewConstantBackOff(s.env.RetryDelay), uint64(retries))
	}
	err = backoff.RetryNotify(op, backoff.WithContext(policy, ctx), notify)
	s.env.Metrics.StepDuration(s.env.Chain, s.name, time.Since(start))

	s.log.Info(lightRule)
	if err != nil {
		s.state = StateFailed
		s.log.Error("FAILED")
		return Fatal(&BuildError{Step: s.name, Attempts: attempts, Err: err})
	}
	s.state = StateSucceeded
	s.log.Info("SUCCESS")
	return OK()
}

// CleanupBuild undoes a successful run. Steps that did not succeed, and step
// types without a cleanup action, are skipped. A cleanup failure is returned
// as a Fatal result wrapping ErrCleanupFailed and is never retried.
func (s *Instance) CleanupBuild(ctx context.Context) Result {
	if s.state != StateSucceeded {
		s.log.Info("Cleanup: Step was not run; Skip")
		return OK()
	}
	if s.typ.cleanup == nil {
		s.log.Debug("Cleanup: No custom cleanup; Skip")
		s.state = StateCleanedUp
		return OK()
	}

	s.log.Info(heavyRule)
	s.log.Info("Cleanup: " + s.name)
	s.log.Info(lightRule)

	res := s.typ.cleanup(ctx, s)
	s.env.Metrics.Cleanup(s.env.Chain, s.name, res.Status.String())
	if !res.OK() {
		s.log.Error(heavyRule)
		s.log.Error("Cleanup failed", "err", res.Err)
		s.log.Error(heavyRule)
		return Fatal(&CleanupError{Step: s.name, Err: res.Err})
	}
	s.state = StateCleanedUp
	return OK()
}
