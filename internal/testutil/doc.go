// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers include file operations (MustMkdirAll, MustWriteFile,
// MustReadFile), record tree fixtures (WriteTree, ValidTree) used by the
// loader, validator, compiler and pipeline tests, and AssertSchemaInSync for
// keeping CUE definitions and Go structs aligned.
package testutil
