// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Schema is a compiled CUE schema that validates many documents.
// A Schema is not safe for concurrent use.
type Schema struct {
	ctx  *cue.Context
	root cue.Value
	defs map[string]cue.Value
}

// CompileSchema compiles schema source once for repeated validation.
func CompileSchema(src []byte) (*Schema, error) {
	ctx := cuecontext.New()
	root := ctx.CompileBytes(src)
	if root.Err() != nil {
		return nil, fmt.Errorf("internal error: failed to compile schema: %w", root.Err())
	}
	return &Schema{ctx: ctx, root: root, defs: make(map[string]cue.Value)}, nil
}

// Definition returns the schema value at path (e.g. "#Package").
func (s *Schema) Definition(path string) (cue.Value, error) {
	if def, ok := s.defs[path]; ok {
		return def, nil
	}
	def := s.root.LookupPath(cue.ParsePath(path))
	if def.Err() != nil {
		return cue.Value{}, fmt.Errorf("internal error: schema definition %s not found: %w", path, def.Err())
	}
	s.defs[path] = def
	return def, nil
}

// Unify encodes data, unifies it with the definition at path and validates
// that the result is concrete. Every problem found is returned; the value is
// only meaningful when no problems are returned.
func (s *Schema) Unify(path string, data any, filename string) (cue.Value, []*ValidationError) {
	def, err := s.Definition(path)
	if err != nil {
		return cue.Value{}, []*ValidationError{{FilePath: filename, Message: err.Error()}}
	}

	userValue := s.ctx.Encode(data)
	if userValue.Err() != nil {
		return cue.Value{}, Errors(userValue.Err(), filename)
	}

	unified := def.Unify(userValue)
	if err := unified.Validate(cue.Concrete(true), cue.All()); err != nil {
		problems := Errors(err, filename)
		// A closedness error stops CUE short of reporting absent required
		// fields in the same struct.
		for _, field := range missingRequired(def, data, "") {
			if !slices.ContainsFunc(problems, func(p *ValidationError) bool {
				return p.CUEPath == field && strings.HasPrefix(p.Message, "required field missing")
			}) {
				problems = append(problems, &ValidationError{
					FilePath:   filename,
					CUEPath:    field,
					Message:    "required field missing",
					Suggestion: suggestionFor("required field missing"),
				})
			}
		}
		return cue.Value{}, problems
	}
	return unified, nil
}

// missingRequired lists the paths of required fields of def that data does
// not provide. It descends into the structs and lists data does provide.
func missingRequired(def cue.Value, data any, prefix string) []string {
	switch data := data.(type) {
	case map[string]any:
		if def.IncompleteKind()&cue.StructKind == 0 {
			return nil
		}
		iter, err := def.Fields(cue.Optional(true))
		if err != nil {
			return nil
		}
		var out []string
		for iter.Next() {
			sel := iter.Selector()
			if sel.LabelType() != cue.StringLabel || sel.ConstraintType() >= cue.PatternConstraint {
				continue
			}
			name := sel.Unquoted()
			path := name
			if prefix != "" {
				path = prefix + "." + name
			}
			value, ok := data[name]
			switch {
			case !ok && sel.ConstraintType() == cue.RequiredConstraint:
				out = append(out, path)
			case ok:
				out = append(out, missingRequired(iter.Value(), value, path)...)
			}
		}
		return out
	case []any:
		if def.IncompleteKind()&cue.ListKind == 0 {
			return nil
		}
		elem := def.LookupPath(cue.MakePath(cue.AnyIndex))
		if !elem.Exists() {
			return nil
		}
		var out []string
		for i, item := range data {
			out = append(out, missingRequired(elem, item, fmt.Sprintf("%s[%d]", prefix, i))...)
		}
		return out
	}
	return nil
}

// Decode decodes a validated value into T.
func Decode[T any](v cue.Value, filename string) (*T, error) {
	var result T
	if err := v.Decode(&result); err != nil {
		return nil, FormatError(err, filename)
	}
	return &result, nil
}
