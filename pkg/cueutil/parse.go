// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"cuelang.org/go/cue"
)

// DefaultMaxFileSize is the largest configuration or record file accepted (5MB).
const DefaultMaxFileSize int64 = 5 * 1024 * 1024

type (
	// Option adjusts how ParseAndDecode treats its input.
	Option func(*parseOptions)

	parseOptions struct {
		maxFileSize int64
		incomplete  bool
		filename    string
	}
)

// WithMaxFileSize rejects inputs larger than size bytes instead of DefaultMaxFileSize.
func WithMaxFileSize(size int64) Option {
	return func(o *parseOptions) { o.maxFileSize = size }
}

// WithFilename names the input in positions and error messages.
func WithFilename(name string) Option {
	return func(o *parseOptions) { o.filename = name }
}

// AllowIncomplete accepts values that are still open after unification, for
// schemas whose defaults are applied outside CUE.
func AllowIncomplete() Option {
	return func(o *parseOptions) { o.incomplete = true }
}

// ParseAndDecode compiles the CUE source data, unifies it with the definition
// at defPath of schema, validates the result and decodes it into T.
//
//	//go:embed config_schema.cue
//	var configSchema []byte
//
//	cfg, err := cueutil.ParseAndDecode[map[string]any](configSchema, data, "#Config",
//		cueutil.WithFilename(path), cueutil.AllowIncomplete())
func ParseAndDecode[T any](schema, data []byte, defPath string, opts ...Option) (*T, error) {
	o := parseOptions{maxFileSize: DefaultMaxFileSize, filename: "<input>"}
	for _, opt := range opts {
		opt(&o)
	}

	if err := CheckFileSize(data, o.maxFileSize, o.filename); err != nil {
		return nil, err
	}

	s, err := CompileSchema(schema)
	if err != nil {
		return nil, err
	}
	def, err := s.Definition(defPath)
	if err != nil {
		return nil, err
	}

	doc := s.ctx.CompileBytes(data, cue.Filename(o.filename))
	if doc.Err() != nil {
		return nil, FormatError(doc.Err(), o.filename)
	}

	unified := def.Unify(doc)
	if err := unified.Validate(cue.All(), cue.Concrete(!o.incomplete)); err != nil {
		return nil, FormatError(err, o.filename)
	}
	return Decode[T](unified, o.filename)
}
