// SPDX-License-Identifier: MPL-2.0

package chain

import (
	"errors"
	"fmt"
)

var (
	// ErrStepFailed is the sentinel error wrapped by StepError.
	ErrStepFailed = errors.New("chain step failed")
	// ErrInvalidEntry is returned for a step entry that names neither a step
	// type nor a chain, or both.
	ErrInvalidEntry = errors.New("invalid chain entry")
	// ErrDuplicateStep is returned when two entries share a name.
	ErrDuplicateStep = errors.New("duplicate step name")
	// ErrNestedParams is returned when parameter values are given for a
	// nested chain entry. Nested chains only use their own defaults.
	ErrNestedParams = errors.New("parameters cannot be passed to a nested chain")
	// ErrUnknownParam is returned for an override that names no chain parameter.
	ErrUnknownParam = errors.New("unknown chain parameter")
	// ErrUnknownStep is returned when a reference names a step the chain lacks.
	ErrUnknownStep = errors.New("unknown step")
	// ErrNoLoader is returned when a nested chain is declared but no chain
	// definitions can be loaded.
	ErrNoLoader = errors.New("no chain loader configured")
)

type (
	// StepError reports the entry that stopped the forward pass.
	StepError struct {
		Chain string
		Step  string
		Err   error
	}

	// EntryError reports a chain entry that could not be constructed.
	EntryError struct {
		Chain string
		Entry string
		Err   error
	}
)

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("chain %q: step %q failed: %v", e.Chain, e.Step, e.Err)
}

// Unwrap returns ErrStepFailed and the step's error.
func (e *StepError) Unwrap() []error { return []error{ErrStepFailed, e.Err} }

// Error implements the error interface.
func (e *EntryError) Error() string {
	return fmt.Sprintf("chain %q: entry %q: %v", e.Chain, e.Entry, e.Err)
}

// Unwrap returns the underlying construction error.
func (e *EntryError) Unwrap() error { return e.Err }
