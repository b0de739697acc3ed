// SPDX-License-Identifier: MPL-2.0

// Package config handles pkgdb configuration using Viper with CUE as the file format.
//
// pkgdb.cue is looked up in the path given with --config, then the working
// directory, then the user config directory (~/.config/pkgdb on Linux). File
// contents are validated against the embedded #Config schema
// (config_schema.cue) before they are merged over the built-in defaults.
// PKGDB_* environment variables override both, and the final values are
// checked with struct validation.
package config
