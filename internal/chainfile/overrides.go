// SPDX-License-Identifier: MPL-2.0

package chainfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// OverridesPath returns the per-chain override file inside dir.
func OverridesPath(dir, chainName string) string {
	return filepath.Join(dir, chainName+".toml")
}

// LoadOverrides reads <dir>/<chain>.toml, a flat table of chain parameter
// values. A missing file or an empty dir yields no overrides.
func LoadOverrides(dir, chainName string) (map[string]any, error) {
	if dir == "" {
		return nil, nil
	}
	if err := validName(chainName); err != nil {
		return nil, err
	}

	path := OverridesPath(dir, chainName)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read overrides: %w", err)
	}

	var overrides map[string]any
	if err := toml.Unmarshal(data, &overrides); err != nil {
		return nil, &DefinitionError{Path: path, Err: err}
	}
	// go-toml decodes integers as int64.
	for k, v := range overrides {
		overrides[k] = normalizeTOML(v)
	}
	return overrides, nil
}

func normalizeTOML(v any) any {
	switch x := v.(type) {
	case int64:
		return int(x)
	case []any:
		for i := range x {
			x[i] = normalizeTOML(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = normalizeTOML(x[k])
		}
		return x
	default:
		return v
	}
}
