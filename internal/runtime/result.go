// SPDX-License-Identifier: MPL-2.0

package runtime

// Result contains the outcome of a command execution.
type Result struct {
	// ExitCode is the exit status of the process.
	ExitCode ExitCode
	// Error is set when the command could not be started or waited for.
	Error error
	// Output holds the stdout lines in arrival order.
	Output []string
	// ErrOutput holds the stderr lines in arrival order.
	ErrOutput []string

	command string
}

// NewErrorResult creates a Result with the given exit code and error.
func NewErrorResult(code ExitCode, err error) *Result {
	return &Result{ExitCode: code, Error: err}
}

// NewSuccessResult creates a Result with exit code 0 and no error.
func NewSuccessResult() *Result {
	return &Result{}
}

// Err returns the start error, a *CommandError for a non-zero exit, or nil.
func (r *Result) Err() error {
	if r.Error != nil {
		return r.Error
	}
	if !r.ExitCode.IsSuccess() {
		return &CommandError{Command: r.command, ExitCode: r.ExitCode}
	}
	return nil
}
