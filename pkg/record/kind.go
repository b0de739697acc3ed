// SPDX-License-Identifier: MPL-2.0

package record

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// KindPackage identifies package records (packages/<id>.yaml).
	KindPackage Kind = "package"
	// KindMapping identifies name mapping records (mappings/*.yaml).
	KindMapping Kind = "mapping"
	// KindDependency identifies dependency edge records (dependencies/*.yaml).
	KindDependency Kind = "dependency"
	// KindGroup identifies curated group records (groups/<id>.yaml).
	KindGroup Kind = "group"
	// KindProfile identifies environment profile records (profiles/<id>.yaml).
	KindProfile Kind = "profile"
	// KindSuggestion identifies file-pattern suggestion records (suggestions/*.yaml).
	KindSuggestion Kind = "suggestion"
)

// ErrInvalidKind is returned when a Kind value is not one of the defined record kinds.
var ErrInvalidKind = errors.New("invalid record kind")

type (
	// Kind names one of the record kinds stored in the database.
	Kind string

	// InvalidKindError is returned when a Kind value is not recognized.
	// It wraps ErrInvalidKind for errors.Is() compatibility.
	InvalidKindError struct {
		Value Kind
	}

	// Position is a 1-based line and column in a source file.
	Position struct {
		Line   int
		Column int
	}

	// Raw is an untyped document as read from disk, before schema validation.
	Raw struct {
		// Kind is derived from the directory the file was found in.
		Kind Kind
		// Path is the source file path.
		Path string
		// Data is the decoded YAML document.
		Data map[string]any
		// Positions maps field paths (e.g. "platforms.apt", "tags[1]") to where
		// they appear in the source. The document itself is stored under "".
		Positions map[string]Position
	}
)

// Kinds returns every record kind in pipeline order.
func Kinds() []Kind {
	return []Kind{KindPackage, KindMapping, KindDependency, KindGroup, KindProfile, KindSuggestion}
}

// Error implements the error interface for InvalidKindError.
func (e *InvalidKindError) Error() string {
	return fmt.Sprintf("invalid record kind %q (valid: package, mapping, dependency, group, profile, suggestion)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidKindError) Unwrap() error {
	return ErrInvalidKind
}

// IsValid returns whether the Kind is one of the defined record kinds,
// and a list of validation errors if it is not.
func (k Kind) IsValid() (bool, []error) {
	switch k {
	case KindPackage, KindMapping, KindDependency, KindGroup, KindProfile, KindSuggestion:
		return true, nil
	default:
		return false, []error{&InvalidKindError{Value: k}}
	}
}

// Dir returns the directory name under the database root holding records of this kind.
func (k Kind) Dir() string {
	switch k {
	case KindPackage:
		return "packages"
	case KindMapping:
		return "mappings"
	case KindDependency:
		return "dependencies"
	case KindGroup:
		return "groups"
	case KindProfile:
		return "profiles"
	case KindSuggestion:
		return "suggestions"
	default:
		return ""
	}
}

// String returns the string representation of the Kind.
func (k Kind) String() string {
	return string(k)
}

// Locate returns the position of field, falling back to its closest enclosing field.
func (r Raw) Locate(field string) Position {
	for {
		if pos, ok := r.Positions[field]; ok {
			return pos
		}
		if field == "" {
			return Position{}
		}
		field = parentField(field)
	}
}

// Stem returns the source filename without directory and extension.
func (r Raw) Stem() string {
	return Stem(r.Path)
}

// Stem returns the filename of path without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func parentField(field string) string {
	cut := strings.LastIndexAny(field, ".[")
	if cut < 0 {
		return ""
	}
	return field[:cut]
}
