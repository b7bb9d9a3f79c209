// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// An ActionableError carries the failed operation, the resource involved and
// suggestions. It may link to an Issue, a Markdown page of guidance that the
// CLI renders with glamour below the error.
package issue
