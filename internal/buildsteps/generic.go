// SPDX-License-Identifier: MPL-2.0

package buildsteps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/conduct/conduct/internal/step"
	"github.com/conduct/conduct/pkg/cueutil"
	"github.com/conduct/conduct/pkg/param"
)

var (
	// ErrUnknownFormat is returned when a data file's format cannot be
	// derived from its extension.
	ErrUnknownFormat = errors.New("unknown data file format")
	// ErrNoMatch is returned by Map when no mapping pattern matches.
	ErrNoMatch = errors.New("no mapping matches")

	group = regexp.MustCompile(`\{(\d+)\}`)
)

// Config reads a structured data file. Its content is available to later
// steps as {steps.<name>.config[key]}.
var Config = step.MustDefine(step.TypeSpec{
	Name:        name("generic", "Config"),
	Description: "Read a configuration data file",
	Extends:     step.Base,
	Params: []step.Accessor{
		step.Param("path", param.MustDefine(param.NonEmptyStr, "Path of the data file")),
		step.Param("format", param.MustDefine(param.OneOf("auto", "cue", "toml", "yaml", "json"),
			"File format; auto derives it from the extension", param.Default("auto"))),
	},
	Outputs: []step.Accessor{
		step.Param("config", param.MustDefine(param.DictOf(param.Str, param.Any), "Parsed file content", param.Default(map[string]any{}))),
	},
	Run: runConfig,
})

// Calculation evaluates an arithmetic expression. References in the formula
// are substituted before evaluation, e.g. "{steps.cfg.config[size]} * 1024".
var Calculation = step.MustDefine(step.TypeSpec{
	Name:        name("generic", "Calculation"),
	Description: "Evaluate an arithmetic formula",
	Extends:     step.Base,
	Params: []step.Accessor{
		step.Param("formula", param.MustDefine(param.Str, "Formula to evaluate", param.Default("1"))),
	},
	Outputs: []step.Accessor{
		step.Param("result", param.MustDefine(param.Float, "Result of the formula", param.Default(1.0))),
	},
	Run: runCalculation,
})

// Map translates input through the first matching regular expression of an
// ordered mapping. A pattern must match at the start of the input; {0}, {1}...
// in the template refer to the whole match and its groups.
var Map = step.MustDefine(step.TypeSpec{
	Name:        name("generic", "Map"),
	Description: "Map a value through an ordered list of patterns",
	Extends:     step.Base,
	Params: []step.Accessor{
		step.Param("input", param.MustDefine(param.Str, "Value to map")),
		step.Param("mapping", param.MustDefine(param.ListOf(param.TupleOf(param.Str, param.Str)),
			"Ordered [pattern, template] pairs")),
	},
	Outputs: []step.Accessor{
		step.Param("result", param.MustDefine(param.Str, "Mapped value", param.Default(""))),
	},
	Run: runMap,
})

func runConfig(_ context.Context, s *step.Instance) step.Result {
	in := s.Values()
	path, format := in.String("path"), in.String("format")
	if err := in.Err(); err != nil {
		return step.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return step.Retryable(err)
	}
	cfg, err := decodeData(path, format, data)
	if err != nil {
		return step.Fatal(fmt.Errorf("%s: %w", path, err))
	}
	s.Log().Debug("Read configuration", "path", path, "keys", len(cfg))
	return step.FromError(s.SetOutput("config", cfg))
}

func decodeData(path, format string, data []byte) (map[string]any, error) {
	if format == "auto" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".cue":
			format = "cue"
		case ".toml":
			format = "toml"
		case ".yaml", ".yml":
			format = "yaml"
		case ".json":
			format = "json"
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
		}
	}

	out := map[string]any{}
	switch format {
	case "cue":
		return cueutil.DecodeMap(data, cueutil.WithFilename(path))
	case "toml":
		if err := toml.Unmarshal(data, &out); err != nil {
			return nil, err
		}
	default:
		// JSON is a subset of YAML.
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func runCalculation(_ context.Context, s *step.Instance) step.Result {
	formula, err := step.Value[string](s, "formula")
	if err != nil {
		return step.Fatal(err)
	}
	program, err := expr.Compile(formula, expr.AsFloat64())
	if err != nil {
		return step.Fatal(fmt.Errorf("formula %q: %w", formula, err))
	}
	out, err := expr.Run(program, nil)
	if err != nil {
		return step.Fatal(fmt.Errorf("formula %q: %w", formula, err))
	}
	s.Log().Info("Result: " + strconv.FormatFloat(out.(float64), 'g', -1, 64))
	return step.FromError(s.SetOutput("result", out))
}

func runMap(_ context.Context, s *step.Instance) step.Result {
	in := s.Values()
	input, mapping := in.String("input"), in.List("mapping")
	if err := in.Err(); err != nil {
		return step.Fatal(err)
	}

	for _, item := range mapping {
		pair := item.([]any)
		pattern, template := pair[0].(string), pair[1].(string)
		re, err := regexp.Compile(`^(?:` + pattern + `)`)
		if err != nil {
			return step.Fatal(fmt.Errorf("pattern %q: %w", pattern, err))
		}
		m := re.FindStringSubmatch(input)
		if m == nil {
			continue
		}
		result := group.ReplaceAllStringFunc(template, func(ref string) string {
			i, _ := strconv.Atoi(ref[1 : len(ref)-1])
			if i < len(m) {
				return m[i]
			}
			return ref
		})
		s.Log().Info("Mapped", "input", input, "pattern", pattern, "result", result)
		return step.FromError(s.SetOutput("result", result))
	}
	return step.Fatal(fmt.Errorf("%w %q", ErrNoMatch, input))
}
