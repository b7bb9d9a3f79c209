// SPDX-License-Identifier: MPL-2.0

package step

import (
	"errors"
	"fmt"
)

var (
	// ErrBuildFailed is the sentinel error wrapped by BuildError.
	ErrBuildFailed = errors.New("build step failed")
	// ErrCleanupFailed is the sentinel error wrapped by CleanupError.
	ErrCleanupFailed = errors.New("cleanup failed")
	// ErrAlreadyBuilt is returned when Build is called on a step whose
	// previous successful run has not been cleaned up.
	ErrAlreadyBuilt = errors.New("step already built")
	// ErrNotImplemented is returned by step types that do not define a run
	// action.
	ErrNotImplemented = errors.New("step type has no run action")
	// ErrUnknownParam is the sentinel error wrapped by UnknownParamError.
	ErrUnknownParam = errors.New("unknown parameter")
	// ErrNotDeferrable is returned when a reference is given to a parameter
	// whose value is applied at write time, such as loglevel.
	ErrNotDeferrable = errors.New("parameter does not accept references")
	// ErrInvalidType is returned by Define for inconsistent type specs.
	ErrInvalidType = errors.New("invalid step type")
)

type (
	// BuildError reports a step that did not succeed within its retry budget.
	BuildError struct {
		Step     string
		Attempts int
		Err      error
	}

	// CleanupError reports a failed cleanup action.
	CleanupError struct {
		Step string
		Err  error
	}

	// UnknownParamError reports access to a name the step type does not
	// declare.
	UnknownParamError struct {
		Step  string
		Type  string
		Param string
	}
)

// Error implements the error interface.
func (e *BuildError) Error() string {
	return fmt.Sprintf("step %q: build step failed after %d attempt(s): %v", e.Step, e.Attempts, e.Err)
}

// Unwrap returns ErrBuildFailed and the last run error.
func (e *BuildError) Unwrap() []error { return []error{ErrBuildFailed, e.Err} }

// Error implements the error interface.
func (e *CleanupError) Error() string {
	return fmt.Sprintf("step %q: cleanup failed: %v", e.Step, e.Err)
}

// Unwrap returns ErrCleanupFailed and the cleanup error.
func (e *CleanupError) Unwrap() []error { return []error{ErrCleanupFailed, e.Err} }

// Error implements the error interface.
func (e *UnknownParamError) Error() string {
	return fmt.Sprintf("step %q (%s): unknown parameter %q", e.Step, e.Type, e.Param)
}

// Unwrap returns ErrUnknownParam so callers can use errors.Is.
func (e *UnknownParamError) Unwrap() error { return ErrUnknownParam }
