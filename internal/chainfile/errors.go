// SPDX-License-Identifier: MPL-2.0

package chainfile

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrChainNotFound is the sentinel error wrapped by NotFoundError.
	ErrChainNotFound = errors.New("chain not found")
	// ErrInvalidDefinition is the sentinel error wrapped by DefinitionError.
	ErrInvalidDefinition = errors.New("invalid chain definition")
	// ErrInvalidName is returned for chain names that are not plain file stems.
	ErrInvalidName = errors.New("invalid chain name")
)

type (
	// NotFoundError reports a chain that none of the directories holds.
	NotFoundError struct {
		Name string
		Dirs []string
	}

	// DefinitionError reports a chain file whose content is not a valid
	// chain definition.
	DefinitionError struct {
		Path string
		Err  error
	}
)

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("chain %q not found (searched: %s)", e.Name, strings.Join(e.Dirs, ", "))
}

// Unwrap returns ErrChainNotFound so callers can use errors.Is.
func (e *NotFoundError) Unwrap() error { return ErrChainNotFound }

// Error implements the error interface.
func (e *DefinitionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns both ErrInvalidDefinition and the underlying error.
func (e *DefinitionError) Unwrap() []error { return []error{ErrInvalidDefinition, e.Err} }
