// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

func TestFormatError(t *testing.T) {
	t.Parallel()

	t.Run("nil error returns nil", func(t *testing.T) {
		t.Parallel()

		if err := FormatError(nil, "chain.cue"); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("non-CUE error is wrapped with filepath", func(t *testing.T) {
		t.Parallel()

		originalErr := errors.New("some error")
		err := FormatError(originalErr, "chain.cue")
		if !errors.Is(err, originalErr) {
			t.Fatalf("expected wrapped error, got %v", err)
		}
		if !strings.HasPrefix(err.Error(), "chain.cue: ") {
			t.Errorf("error should start with the file path, got: %v", err)
		}
	})
}

func TestDocumentError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		issues []Issue
		want   string
	}{
		{"single issue", []Issue{{Path: "steps[0].name", Message: "incomplete value string"}}, "image.cue: steps[0].name: incomplete value string"},
		{"no path", []Issue{{Message: "expected '}'"}}, "image.cue: expected '}'"},
		{
			"several issues",
			[]Issue{{Path: "description", Message: "conflicting values"}, {Path: "steps", Message: "expected list"}},
			"image.cue: validation failed:\n  description: conflicting values\n  steps: expected list",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := &DocumentError{FilePath: "image.cue", Issues: tt.issues}
			if err.Error() != tt.want {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.want)
			}
			if !errors.Is(err, ErrInvalidDocument) {
				t.Error("DocumentError does not wrap ErrInvalidDocument")
			}
		})
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     []string
		expected string
	}{
		{"empty path", []string{}, ""},
		{"single element", []string{"description"}, "description"},
		{"nested path", []string{"parameters", "imgname"}, "parameters.imgname"},
		{"array index", []string{"steps", "0", "type"}, "steps[0].type"},
		{"multiple array indices", []string{"steps", "3", "params", "partitions", "1"}, "steps[3].params.partitions[1]"},
		{"leading number is a field", []string{"0", "name"}, "0.name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if result := formatPath(tt.path); result != tt.expected {
				t.Errorf("formatPath(%v) = %q, want %q", tt.path, result, tt.expected)
			}
		})
	}
}

func TestCheckFileSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"empty", 0, false},
		{"within limit", 11, false},
		{"at exact limit", 100, false},
		{"exceeding limit", 101, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := CheckFileSize(make([]byte, tt.size), 100, "chain.cue")
			if !tt.wantErr {
				if err != nil {
					t.Errorf("expected nil, got %v", err)
				}
				return
			}
			if !errors.Is(err, ErrFileTooLarge) {
				t.Fatalf("expected ErrFileTooLarge, got %v", err)
			}
			for _, part := range []string{"chain.cue", "101", "100"} {
				if !strings.Contains(err.Error(), part) {
					t.Errorf("error should contain %q, got: %v", part, err)
				}
			}
		})
	}
}
