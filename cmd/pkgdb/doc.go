// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for pkgdb.
//
// This package implements the Cobra command hierarchy: validate, compile,
// stats and watch drive the pipeline over a record tree, inspect reads a
// compiled database, and config and schema describe the inputs.
package cmd
