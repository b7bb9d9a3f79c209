// SPDX-License-Identifier: MPL-2.0

package param

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidValue is the sentinel error wrapped by ValidationError.
	ErrInvalidValue = errors.New("invalid parameter value")
	// ErrMissingMandatory is the sentinel error wrapped by MissingError.
	ErrMissingMandatory = errors.New("mandatory parameter is missing")
	// ErrInvalidTypeExpr is the sentinel error wrapped by TypeExprError.
	ErrInvalidTypeExpr = errors.New("invalid type expression")
)

type (
	// ValidationError is returned when a value does not satisfy the type of
	// the named parameter.
	ValidationError struct {
		Param string
		Value any
		Err   error
	}

	// MissingError is returned when a mandatory parameter has neither an
	// explicit value nor a default.
	MissingError struct {
		// Owner is the step or chain the parameter belongs to.
		Owner string
		Param string
	}

	// TypeExprError is returned by ParseType for malformed expressions.
	TypeExprError struct {
		Expr   string
		Reason string
	}
)

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("parameter %q: invalid value %#v", e.Param, e.Value)
	}
	return fmt.Sprintf("parameter %q: invalid value %#v: %v", e.Param, e.Value, e.Err)
}

// Unwrap returns ErrInvalidValue and the underlying conversion error.
func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidValue}
	}
	return []error{ErrInvalidValue, e.Err}
}

// Error implements the error interface.
func (e *MissingError) Error() string {
	return fmt.Sprintf("%s: Mandatory parameter %s is missing", e.Owner, e.Param)
}

// Unwrap returns ErrMissingMandatory so callers can use errors.Is.
func (e *MissingError) Unwrap() error { return ErrMissingMandatory }

// Error implements the error interface.
func (e *TypeExprError) Error() string {
	return fmt.Sprintf("invalid type expression %q: %s", e.Expr, e.Reason)
}

// Unwrap returns ErrInvalidTypeExpr so callers can use errors.Is.
func (e *TypeExprError) Unwrap() error { return ErrInvalidTypeExpr }
