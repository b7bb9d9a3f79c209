// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"sync"

	"github.com/charmbracelet/log"
)

// lineWriter splits a byte stream into lines and hands each complete line to
// emit. Flush emits a trailing partial line.
type lineWriter struct {
	mu   sync.Mutex
	buf  []byte
	emit func(string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(string(bytes.TrimSuffix(w.buf[:i], []byte{'\r'})))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) > 0 {
		w.emit(string(bytes.TrimSuffix(w.buf, []byte{'\r'})))
		w.buf = nil
	}
}

// capture logs and collects the lines of both output streams.
type capture struct {
	mu     sync.Mutex
	stdout []string
	stderr []string
	out    *lineWriter
	err    *lineWriter
}

func newCapture(logger *log.Logger) *capture {
	c := &capture{}
	c.out = &lineWriter{emit: func(line string) {
		logger.Info(line)
		c.mu.Lock()
		c.stdout = append(c.stdout, line)
		c.mu.Unlock()
	}}
	c.err = &lineWriter{emit: func(line string) {
		logger.Warn(line)
		c.mu.Lock()
		c.stderr = append(c.stderr, line)
		c.mu.Unlock()
	}}
	return c
}

func (c *capture) flush() {
	c.out.Flush()
	c.err.Flush()
}

func (c *capture) result(code ExitCode, err error, command string) *Result {
	c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	return &Result{ExitCode: code, Error: err, Output: c.stdout, ErrOutput: c.stderr, command: command}
}
