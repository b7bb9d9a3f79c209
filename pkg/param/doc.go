// SPDX-License-Identifier: MPL-2.0

// Package param defines typed parameter descriptors and the value converters
// used to validate step and chain parameters.
//
// A Type converts an arbitrary input value (typically a string from a command
// line flag, or a decoded CUE/HCL/TOML value) into its validated native form:
//
//   - Str, NonEmptyStr, path and network types produce string
//   - Int produces int, Float produces float64, Bool produces bool
//   - ListOf, NonEmptyListOf and TupleOf produce []any
//   - DictOf produces map[string]any
//
// A Descriptor pairs a Type with a description and an optional default.
// Descriptors without a default are mandatory.
package param
