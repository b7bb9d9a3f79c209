// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/conduct/config.cue (or the XDG equivalent on Linux,
// ~/Library/Application Support/conduct/config.cue on macOS, %APPDATA%\conduct\config.cue
// on Windows), or from an explicit file given with --config. Every key can be overridden
// through a CONDUCT_<KEY> environment variable, e.g. CONDUCT_LOG_LEVEL=debug.
//
// Configuration validation is performed against a CUE schema (config_schema.cue) to ensure
// type safety and provide clear error messages for invalid configurations.
package config
