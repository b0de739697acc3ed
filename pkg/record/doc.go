// SPDX-License-Identifier: MPL-2.0

// Package record defines the typed entities of the package database.
//
// Records are produced by the schema validator from untyped YAML documents and
// are immutable afterwards. Each record kind (package, mapping, dependency edge,
// group, profile, suggestion) implements the sealed Record interface, and a
// complete snapshot of validated records travels through the pipeline as a Batch.
package record
