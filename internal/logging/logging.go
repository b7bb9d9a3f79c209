// SPDX-License-Identifier: MPL-2.0

// Package logging builds the root logger of a build. Records go to stderr
// and, when a log directory is configured, to one file per build as well.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// ErrInvalidFormat is returned for an unknown formatter name.
var ErrInvalidFormat = errors.New("invalid log format")

type (
	// Options configure New.
	Options struct {
		// Level is one of debug, info, warn, error.
		Level string
		// Format is one of text, json, logfmt; empty means text.
		Format string
		// Dir receives <Name>-<timestamp>.log when set.
		Dir string
		// Name is the file name stem, usually the chain name.
		Name string
		// Out is the console writer; nil means stderr.
		Out io.Writer
		// Now stamps the log file name; nil means time.Now.
		Now func() time.Time
	}

	// Logger is a root logger together with the file it writes to.
	Logger struct {
		*log.Logger
		// Path is the log file, empty when logging to the console only.
		Path string
		file *os.File
	}
)

var formatters = map[string]log.Formatter{
	"":       log.TextFormatter,
	"text":   log.TextFormatter,
	"json":   log.JSONFormatter,
	"logfmt": log.LogfmtFormatter,
}

// New creates the root logger.
func New(opts Options) (*Logger, error) {
	level, err := log.ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	formatter, ok := formatters[opts.Format]
	if !ok {
		return nil, fmt.Errorf("%w %q (valid: text, json, logfmt)", ErrInvalidFormat, opts.Format)
	}

	var out io.Writer = os.Stderr
	if opts.Out != nil {
		out = opts.Out
	}

	l := &Logger{}
	if opts.Dir != "" {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		name := opts.Name
		if name == "" {
			name = "conduct"
		}
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		l.Path = filepath.Join(opts.Dir, fmt.Sprintf("%s-%s.log", name, now().Format("20060102-150405")))
		if l.file, err = os.OpenFile(l.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(out, l.file)
	}

	l.Logger = log.NewWithOptions(out, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})
	return l, nil
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// WithBuildID returns a child logger carrying a fresh build id, and the id.
func WithBuildID(l *log.Logger) (*log.Logger, string) {
	id := uuid.NewString()
	return l.With("build_id", id), id
}
