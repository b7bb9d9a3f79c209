// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

const testSchema = `
#Doc: {
	name:  string & != ""
	size?: int & >=0
	tags: [...string] | *[]
}
`

type testDoc struct {
	Name string   `json:"name"`
	Size int      `json:"size"`
	Tags []string `json:"tags"`
}

func TestParseAndDecode(t *testing.T) {
	t.Parallel()

	res, err := ParseAndDecode[testDoc]([]byte(testSchema), []byte(`name: "box", size: 12`), "#Doc", WithFilename("doc.cue"))
	if err != nil {
		t.Fatalf("ParseAndDecode() error = %v", err)
	}
	if res.Value.Name != "box" || res.Value.Size != 12 || len(res.Value.Tags) != 0 {
		t.Errorf("decoded %+v", res.Value)
	}
	if !res.Unified.Exists() {
		t.Error("unified value is missing")
	}
}

func TestParseAndDecodeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		opts    []Option
		wantErr error
		want    string
	}{
		{"constraint violated", `name: "box", size: -1`, nil, ErrInvalidDocument, "size"},
		{"syntax error", `name: "box`, nil, ErrInvalidDocument, "doc.cue"},
		{"unknown field", `name: "box", colour: "red"`, nil, ErrInvalidDocument, "colour"},
		{"too large", `name: "box"`, []Option{WithMaxFileSize(4)}, ErrFileTooLarge, "doc.cue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := append([]Option{WithFilename("doc.cue")}, tt.opts...)
			_, err := ParseAndDecode[testDoc]([]byte(testSchema), []byte(tt.data), "#Doc", opts...)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestDecodeMap(t *testing.T) {
	t.Parallel()

	m, err := DecodeMap([]byte(`size: 1024, label: "root", parts: [512, 512]`))
	if err != nil {
		t.Fatalf("DecodeMap() error = %v", err)
	}
	if m["label"] != "root" {
		t.Errorf("label = %#v", m["label"])
	}
	if parts, ok := m["parts"].([]any); !ok || len(parts) != 2 {
		t.Errorf("parts = %#v", m["parts"])
	}

	if _, err := DecodeMap([]byte(`size: int`)); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("DecodeMap(incomplete) error = %v, want ErrInvalidDocument", err)
	}
}
