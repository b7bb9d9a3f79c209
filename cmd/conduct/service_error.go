// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/conduct/conduct/internal/catalog"
	"github.com/conduct/conduct/internal/chain"
	"github.com/conduct/conduct/internal/chainfile"
	"github.com/conduct/conduct/internal/dag"
	"github.com/conduct/conduct/internal/issue"
	"github.com/conduct/conduct/internal/step"
	"github.com/conduct/conduct/pkg/param"
)

// ServiceError is an error that carries the issue catalogue entry explaining
// it. Always create via newServiceError.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// IssueID is the optional issue catalog ID for rendering help text.
	IssueID issue.Id
}

// newServiceError creates a ServiceError with a nil-Err panic guard.
func newServiceError(err error, issueID issue.Id) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{Err: err, IssueID: issueID}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// classifyError maps engine errors to the catalogue entry that explains them.
// Zero means no entry applies.
func classifyError(err error) issue.Id {
	var (
		svcErr *ServiceError
		actErr *issue.ActionableError
	)
	switch {
	case err == nil:
		return 0
	case errors.As(err, &svcErr) && svcErr.IssueID != 0:
		return svcErr.IssueID
	case errors.As(err, &actErr) && actErr.Guidance() != nil:
		return actErr.Issue
	case errors.Is(err, chainfile.ErrChainNotFound):
		return issue.ChainNotFoundId
	case errors.Is(err, chainfile.ErrInvalidDefinition), errors.Is(err, param.ErrInvalidTypeExpr),
		errors.Is(err, chain.ErrInvalidEntry), errors.Is(err, chain.ErrDuplicateStep):
		return issue.ChainFileInvalidId
	case errors.Is(err, dag.ErrCycle):
		return issue.ChainCycleId
	case errors.Is(err, catalog.ErrStepTypeNotFound):
		return issue.StepTypeNotFoundId
	case errors.Is(err, param.ErrMissingMandatory):
		return issue.MissingParameterId
	case errors.Is(err, param.ErrInvalidValue), errors.Is(err, chain.ErrUnknownParam),
		errors.Is(err, step.ErrUnknownParam), errors.Is(err, step.ErrNotDeferrable),
		errors.Is(err, chain.ErrNestedParams):
		return issue.InvalidParameterId
	case errors.Is(err, step.ErrCleanupFailed):
		return issue.CleanupFailedId
	case errors.Is(err, chain.ErrStepFailed):
		return issue.StepFailedId
	default:
		return 0
	}
}

// renderGuidance writes the catalogue page for err, if one applies.
func renderGuidance(w io.Writer, err error, style string) {
	id := classifyError(err)
	if id == 0 {
		return
	}
	entry := issue.Get(id)
	if entry == nil {
		return
	}
	rendered, renderErr := entry.Render(style)
	if renderErr != nil {
		fmt.Fprintln(w, WarningStyle.Render("Warning: ")+"failed to render help: "+renderErr.Error())
		return
	}
	fmt.Fprint(w, rendered)
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// displayError carries the user-facing rendering of an error while keeping
// the original in the chain for errors.Is/As.
type displayError struct {
	msg string
	err error
}

func (e *displayError) Error() string { return e.msg }

func (e *displayError) Unwrap() error { return e.err }

func newDisplayError(err error, verbose bool) error {
	return &displayError{msg: formatErrorForDisplay(err, verbose), err: err}
}
