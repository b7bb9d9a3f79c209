// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// LogFormatText renders human readable log lines.
	LogFormatText LogFormat = "text"
	// LogFormatJSON renders one JSON object per log line.
	LogFormatJSON LogFormat = "json"
	// LogFormatLogfmt renders logfmt key=value lines.
	LogFormatLogfmt LogFormat = "logfmt"

	// LogLevelDebug logs everything, including step internals.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs build progress and command output.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs retries, stderr output and problems only.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs failures only.
	LogLevelError LogLevel = "error"

	// ShellNative runs scripts with the host shell.
	// Defined locally to avoid coupling config to internal/runtime.
	ShellNative ShellMode = "native"
	// ShellDirect splits scripts into argv and runs them without a shell.
	ShellDirect ShellMode = "direct"
	// ShellVirtual runs scripts in the embedded mvdan/sh interpreter.
	ShellVirtual ShellMode = "virtual"
	// ShellPTY runs scripts with the host shell attached to a pseudo terminal.
	ShellPTY ShellMode = "pty"
)

var (
	// ErrInvalidLogFormat is returned when a LogFormat value is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidShellMode is returned when a ShellMode value is not recognized.
	ErrInvalidShellMode = errors.New("invalid shell mode")
	// ErrInvalidRetryDelay is returned for a negative retry delay.
	ErrInvalidRetryDelay = errors.New("invalid retry delay")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogFormat selects the log line encoding.
	LogFormat string

	// InvalidLogFormatError is returned when a LogFormat value is not recognized.
	// It wraps ErrInvalidLogFormat for errors.Is() compatibility.
	InvalidLogFormatError struct {
		Value LogFormat
	}

	// LogLevel is the minimum level of logged records.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// ShellMode is the default execution mode of shell commands.
	ShellMode string

	// InvalidShellModeError is returned when a ShellMode value is not recognized.
	InvalidShellModeError struct {
		Value ShellMode
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// ChainDirs are searched in order for chain definition files.
		ChainDirs []string `json:"chain_dirs" mapstructure:"chain_dirs"`
		// ChainConfigDir holds per-chain parameter override files; empty disables them.
		ChainConfigDir string `json:"chain_config_dir" mapstructure:"chain_config_dir"`
		// LogDir receives one log file per build; empty disables file logging.
		LogDir string `json:"log_dir" mapstructure:"log_dir"`
		// LogLevel is the level of the root logger.
		LogLevel LogLevel `json:"log_level" mapstructure:"log_level"`
		// LogFormat is the encoding of log lines.
		LogFormat LogFormat `json:"log_format" mapstructure:"log_format"`
		// StepPrefixes are the namespaces tried when resolving step type names.
		StepPrefixes []string `json:"step_prefixes" mapstructure:"step_prefixes"`
		// MetricsFile is the Prometheus text file written after each build.
		MetricsFile string `json:"metrics_file" mapstructure:"metrics_file"`
		// Arch is the Debian architecture of the build host; empty detects it.
		Arch string `json:"arch" mapstructure:"arch"`
		// DefaultShell is used by shell commands that do not choose a mode.
		DefaultShell ShellMode `json:"default_shell" mapstructure:"default_shell"`
		// RetryDelay is the pause between two attempts of a failing step.
		RetryDelay time.Duration `json:"retry_delay" mapstructure:"retry_delay"`
	}
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		ChainDirs:    []string{"chains"},
		LogLevel:     LogLevelInfo,
		LogFormat:    LogFormatText,
		StepPrefixes: []string{"", "conduct"},
		DefaultShell: ShellNative,
	}
}

// String returns the string representation of the LogFormat.
func (f LogFormat) String() string { return string(f) }

// IsValid returns whether the LogFormat is one of the defined formats.
func (f LogFormat) IsValid() (bool, []error) {
	switch f {
	case LogFormatText, LogFormatJSON, LogFormatLogfmt:
		return true, nil
	default:
		return false, []error{&InvalidLogFormatError{Value: f}}
	}
}

// Error implements the error interface for InvalidLogFormatError.
func (e *InvalidLogFormatError) Error() string {
	return fmt.Sprintf("invalid log format %q (valid: text, json, logfmt)", e.Value)
}

// Unwrap returns ErrInvalidLogFormat for errors.Is() compatibility.
func (e *InvalidLogFormatError) Unwrap() error { return ErrInvalidLogFormat }

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// String returns the string representation of the ShellMode.
func (m ShellMode) String() string { return string(m) }

// IsValid returns whether the ShellMode is one of the defined modes.
func (m ShellMode) IsValid() (bool, []error) {
	switch m {
	case ShellNative, ShellDirect, ShellVirtual, ShellPTY:
		return true, nil
	default:
		return false, []error{&InvalidShellModeError{Value: m}}
	}
}

// Error implements the error interface for InvalidShellModeError.
func (e *InvalidShellModeError) Error() string {
	return fmt.Sprintf("invalid shell mode %q (valid: native, direct, virtual, pty)", e.Value)
}

// Unwrap returns ErrInvalidShellMode for errors.Is() compatibility.
func (e *InvalidShellModeError) Unwrap() error { return ErrInvalidShellMode }

// IsValid returns whether the Config has valid fields. It delegates to the
// typed fields' IsValid and collects every problem.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.LogLevel.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.LogFormat.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.DefaultShell.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidRetryDelay, c.RetryDelay))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }
