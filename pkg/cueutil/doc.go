// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides shared CUE validation utilities.
//
// Two flows are supported. ParseAndDecode handles a single CUE source file
// (the pkgdb.cue configuration):
//
//  1. Compile the embedded schema
//  2. Compile user data and unify with schema
//  3. Validate and decode to Go struct
//
// Schema handles many already-decoded documents (YAML records) against one
// schema compiled once. Unify collects every problem in a document instead of
// stopping at the first one, so callers can report all of them together.
//
// # Usage
//
//	//go:embed schema.cue
//	var schemaBytes []byte
//
//	s, err := cueutil.CompileSchema(schemaBytes)
//	if err != nil {
//	    return nil, err
//	}
//	unified, problems := s.Unify("#Package", raw.Data, raw.Path)
//	if len(problems) > 0 {
//	    return nil, problems  // one ValidationError per field
//	}
//	pkg, err := cueutil.Decode[record.Package](unified, raw.Path)
package cueutil
