// SPDX-License-Identifier: MPL-2.0

// Package schema turns untyped record documents into typed records.
//
// Each document is unified with the CUE definition of its kind (see
// schema.cue), then structural rules that CUE cannot express are checked on
// the decoded value. All problems of a document are reported together. A
// document with any problem is excluded from the resulting batch.
package schema

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"cuelang.org/go/cue"

	"github.com/heimdal-dev/pkgdb/pkg/cueutil"
	"github.com/heimdal-dev/pkgdb/pkg/record"
	"github.com/heimdal-dev/pkgdb/pkg/violation"
)

//go:embed schema.cue
var schemaSource []byte

type (
	// Validator validates raw documents against the record schemas.
	// A Validator is not safe for concurrent use.
	Validator struct {
		schema *cueutil.Schema
	}

	mappingSet struct {
		Mappings []record.Mapping `json:"mappings"`
	}

	dependencySet struct {
		Edges []record.DependencyEdge `json:"edges"`
	}

	suggestionSet struct {
		Patterns []record.Suggestion `json:"patterns"`
	}

	// problem is a schema violation before it is attached to its source file.
	problem struct {
		field   string
		message string
	}
)

// Definition returns the CUE definition used to validate documents of kind k.
func Definition(k record.Kind) string {
	switch k {
	case record.KindPackage:
		return "#Package"
	case record.KindMapping:
		return "#MappingSet"
	case record.KindDependency:
		return "#DependencySet"
	case record.KindGroup:
		return "#Group"
	case record.KindProfile:
		return "#Profile"
	case record.KindSuggestion:
		return "#SuggestionSet"
	default:
		return ""
	}
}

// New compiles the embedded record schemas.
func New() (*Validator, error) {
	s, err := cueutil.CompileSchema(schemaSource)
	if err != nil {
		return nil, err
	}
	return &Validator{schema: s}, nil
}

// Validate checks every raw document and returns the batch of valid records
// together with all schema violations found.
func (v *Validator) Validate(raws []record.Raw) (*record.Batch, violation.Violations) {
	batch := &record.Batch{}
	var out violation.Violations

	for i := range raws {
		raw := &raws[i]
		problems := v.validateOne(raw, batch)
		if len(problems) == 0 {
			continue
		}

		id := identifier(raw)
		for _, p := range problems {
			pos := raw.Locate(p.field)
			out = append(out, violation.Violation{
				Kind:    violation.KindSchema,
				Path:    raw.Path,
				Record:  id,
				Field:   p.field,
				Message: p.message,
				Line:    pos.Line,
				Column:  pos.Column,
			})
		}
		if id != "" {
			batch.Excluded = append(batch.Excluded, record.Ref{Kind: raw.Kind, ID: id})
		}
	}

	return batch, out
}

// validateOne appends the decoded record(s) of raw to batch, or returns the
// problems that prevent it. The structural checks run even when CUE rejects
// the document, on a field-by-field decode of its data.
func (v *Validator) validateOne(raw *record.Raw, batch *record.Batch) []problem {
	if ok, errs := raw.Kind.IsValid(); !ok {
		return []problem{{message: errs[0].Error()}}
	}

	unified, cueProblems := v.schema.Unify(Definition(raw.Kind), raw.Data, raw.Path)
	problems := make([]problem, 0, len(cueProblems))
	for _, p := range cueProblems {
		problems = append(problems, problem{field: p.CUEPath, message: p.Message})
	}
	clean := len(problems) == 0

	switch raw.Kind {
	case record.KindPackage:
		pkg, err := decode[record.Package](unified, clean, raw)
		if err != nil {
			return decodeProblem(err)
		}
		if problems = merge(problems, checkPackage(pkg)); len(problems) > 0 {
			return problems
		}
		pkg.Path = raw.Path
		batch.Packages = append(batch.Packages, *pkg)

	case record.KindMapping:
		set, err := decode[mappingSet](unified, clean, raw)
		if err != nil {
			return decodeProblem(err)
		}
		var checked []problem
		for i := range set.Mappings {
			checked = append(checked, checkMapping(&set.Mappings[i], fmt.Sprintf("mappings[%d]", i))...)
		}
		if problems = merge(problems, checked); len(problems) > 0 {
			return problems
		}
		for _, m := range set.Mappings {
			m.Path = raw.Path
			batch.Mappings = append(batch.Mappings, m)
		}

	case record.KindDependency:
		if !clean {
			return problems
		}
		set, err := decode[dependencySet](unified, clean, raw)
		if err != nil {
			return decodeProblem(err)
		}
		for _, e := range set.Edges {
			e.Path = raw.Path
			batch.Dependencies = append(batch.Dependencies, e)
		}

	case record.KindGroup:
		group, err := decode[record.Group](unified, clean, raw)
		if err != nil {
			return decodeProblem(err)
		}
		if problems = merge(problems, checkGroup(group)); len(problems) > 0 {
			return problems
		}
		group.Path = raw.Path
		batch.Groups = append(batch.Groups, *group)

	case record.KindProfile:
		profile, err := decode[record.Profile](unified, clean, raw)
		if err != nil {
			return decodeProblem(err)
		}
		if problems = merge(problems, checkProfile(profile)); len(problems) > 0 {
			return problems
		}
		profile.Path = raw.Path
		batch.Profiles = append(batch.Profiles, *profile)

	case record.KindSuggestion:
		set, err := decode[suggestionSet](unified, clean, raw)
		if err != nil {
			return decodeProblem(err)
		}
		var checked []problem
		for i := range set.Patterns {
			checked = append(checked, checkSuggestion(&set.Patterns[i], fmt.Sprintf("patterns[%d]", i))...)
		}
		if problems = merge(problems, checked); len(problems) > 0 {
			return problems
		}
		for _, s := range set.Patterns {
			s.Path = raw.Path
			batch.Suggestions = append(batch.Suggestions, s)
		}
	}

	return nil
}

// decode returns the typed record of a document. A document CUE accepted is
// decoded from its unified value; any other is decoded leniently from its data.
func decode[T any](unified cue.Value, clean bool, raw *record.Raw) (*T, error) {
	if clean {
		return cueutil.Decode[T](unified, raw.Path)
	}
	return decodeLenient[T](raw.Data), nil
}

// merge appends the structural problems that do not overlap a field CUE
// already reported, so a mistyped value is not reported twice.
func merge(cueProblems, checked []problem) []problem {
	out := cueProblems
	for _, c := range checked {
		if !slices.ContainsFunc(cueProblems, func(p problem) bool { return overlaps(p.field, c.field) }) {
			out = append(out, c)
		}
	}
	return out
}

// overlaps reports whether one field path equals or contains the other.
func overlaps(a, b string) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	if !strings.HasPrefix(b, a) {
		return false
	}
	return len(a) == len(b) || b[len(a)] == '.' || b[len(a)] == '['
}

func decodeProblem(err error) []problem {
	return []problem{{message: err.Error()}}
}

// identifier returns the best-effort identifier of a document, falling back to the filename stem.
func identifier(raw *record.Raw) string {
	key := ""
	switch raw.Kind {
	case record.KindPackage:
		key = "name"
	case record.KindGroup, record.KindProfile:
		key = "id"
	default:
		return ""
	}
	if id, ok := raw.Data[key].(string); ok && id != "" {
		return id
	}
	return raw.Stem()
}
