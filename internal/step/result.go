// SPDX-License-Identifier: MPL-2.0

package step

import "errors"

// Status values of a Result.
const (
	// StatusOK means the action completed.
	StatusOK Status = iota
	// StatusRetryable means the action failed and may succeed when repeated.
	StatusRetryable
	// StatusFatal means the action failed and must not be repeated.
	StatusFatal
)

var errUnspecified = errors.New("unspecified failure")

type (
	// Status classifies the outcome of a step action.
	Status int

	// Result is returned by run and cleanup actions and by the lifecycle
	// operations that drive them.
	Result struct {
		Status Status
		Err    error
	}
)

// OK returns a successful Result.
func OK() Result { return Result{Status: StatusOK} }

// Retryable returns a failed Result that may be retried.
func Retryable(err error) Result {
	if err == nil {
		err = errUnspecified
	}
	return Result{Status: StatusRetryable, Err: err}
}

// Fatal returns a failed Result that must not be retried.
func Fatal(err error) Result {
	if err == nil {
		err = errUnspecified
	}
	return Result{Status: StatusFatal, Err: err}
}

// FromError maps a nil error to OK and anything else to Retryable.
func FromError(err error) Result {
	if err == nil {
		return OK()
	}
	return Retryable(err)
}

// OK reports whether the result is successful.
func (r Result) OK() bool { return r.Status == StatusOK }

// String returns the lower case status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusRetryable:
		return "retryable"
	case StatusFatal:
		return "fatal"
	default:
		return "unknown"
	}
}
