// SPDX-License-Identifier: MPL-2.0

// Package chainfile reads chain definitions from disk.
//
// A chain named "image" is looked up as image.cue, then image.hcl, in each
// configured chain directory in turn. Both formats describe the same
// model: a description, typed chain parameters and an ordered list of
// entries that are either steps of a registered type or nested chains.
//
// Parameter values for a chain may be overridden by a flat TOML file named
// <chain>.toml in the chain config directory.
package chainfile
