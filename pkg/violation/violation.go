// SPDX-License-Identifier: MPL-2.0

// Package violation models the problems found while validating a record tree
// and the ACCEPT/REJECT verdict derived from them.
package violation

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

const (
	// KindParse marks a file that could not be read or decoded as YAML.
	KindParse Kind = "parse"
	// KindSchema marks a record that violates its structural schema.
	KindSchema Kind = "schema"
	// KindIntegrity marks a cross-record invariant violation.
	KindIntegrity Kind = "integrity"
)

const (
	// SeverityError rejects the batch.
	SeverityError Severity = iota
	// SeverityWarning is reported but does not reject the batch.
	SeverityWarning
)

var (
	// ErrInvalidKind is returned when a Kind value is not one of the defined violation kinds.
	ErrInvalidKind = errors.New("invalid violation kind")
	// ErrInvalidSeverity is returned when a Severity value is not one of the defined severities.
	ErrInvalidSeverity = errors.New("invalid violation severity")
)

type (
	// Kind is the pipeline stage that produced a violation.
	Kind string

	// InvalidKindError is returned when a Kind value is not recognized.
	// It wraps ErrInvalidKind for errors.Is() compatibility.
	InvalidKindError struct {
		Value Kind
	}

	// Severity indicates whether a violation rejects the batch.
	Severity int

	// InvalidSeverityError is returned when a Severity value is not recognized.
	// It wraps ErrInvalidSeverity for errors.Is() compatibility.
	InvalidSeverityError struct {
		Value Severity
	}

	// Violation is a single problem found in the record tree.
	Violation struct {
		Kind     Kind     `json:"kind"`
		Severity Severity `json:"severity"`
		// Path is the source file the problem was found in.
		Path string `json:"path"`
		// Record is the identifier of the offending record, when known.
		Record string `json:"record,omitempty"`
		// Field is the path to the offending field (e.g. "platforms.apt", "tags[1]").
		Field string `json:"field,omitempty"`
		// Target is the identifier the violation is about: a missing reference,
		// a duplicate identifier or a colliding alias.
		Target  string `json:"target,omitempty"`
		Message string `json:"message"`
		// Line and Column are 1-based; zero when the position is unknown.
		Line   int `json:"line,omitempty"`
		Column int `json:"column,omitempty"`
	}

	// Violations is a collection of violations that implements the error interface.
	Violations []Violation
)

// Error implements the error interface for InvalidKindError.
func (e *InvalidKindError) Error() string {
	return fmt.Sprintf("invalid violation kind %q (valid: parse, schema, integrity)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidKindError) Unwrap() error {
	return ErrInvalidKind
}

// IsValid returns whether the Kind is one of the defined violation kinds,
// and a list of validation errors if it is not.
func (k Kind) IsValid() (bool, []error) {
	switch k {
	case KindParse, KindSchema, KindIntegrity:
		return true, nil
	default:
		return false, []error{&InvalidKindError{Value: k}}
	}
}

func (k Kind) order() int {
	switch k {
	case KindParse:
		return 0
	case KindSchema:
		return 1
	default:
		return 2
	}
}

// Error implements the error interface for InvalidSeverityError.
func (e *InvalidSeverityError) Error() string {
	return fmt.Sprintf("invalid violation severity %d (valid: 0=error, 1=warning)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidSeverityError) Unwrap() error {
	return ErrInvalidSeverity
}

// IsValid returns whether the Severity is one of the defined severity levels,
// and a list of validation errors if it is not.
func (s Severity) IsValid() (bool, []error) {
	switch s {
	case SeverityError, SeverityWarning:
		return true, nil
	default:
		return false, []error{&InvalidSeverityError{Value: s}}
	}
}

// String returns a human-readable representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// MarshalText encodes the severity by name so reports stay readable.
func (s Severity) MarshalText() ([]byte, error) {
	if ok, errs := s.IsValid(); !ok {
		return nil, errs[0]
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "error":
		*s = SeverityError
	case "warning":
		*s = SeverityWarning
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSeverity, text)
	}
	return nil
}

// Location returns "path:line:column", omitting unknown parts.
func (v Violation) Location() string {
	loc := v.Path
	if v.Line > 0 {
		loc += ":" + strconv.Itoa(v.Line)
		if v.Column > 0 {
			loc += ":" + strconv.Itoa(v.Column)
		}
	}
	return loc
}

// Error implements the error interface.
func (v Violation) Error() string {
	var b strings.Builder
	if loc := v.Location(); loc != "" {
		b.WriteString(loc)
		b.WriteString(": ")
	}
	b.WriteString(string(v.Kind))
	if v.Severity == SeverityWarning {
		b.WriteString(" warning")
	} else {
		b.WriteString(" error")
	}
	if v.Record != "" {
		b.WriteString(" in '")
		b.WriteString(v.Record)
		b.WriteString("'")
	}
	b.WriteString(": ")
	if v.Field != "" {
		b.WriteString(v.Field)
		b.WriteString(": ")
	}
	b.WriteString(v.Message)
	return b.String()
}

// IsError returns true if this violation rejects the batch.
func (v Violation) IsError() bool {
	return v.Severity == SeverityError
}

// IsWarning returns true if this violation is advisory.
func (v Violation) IsWarning() bool {
	return v.Severity == SeverityWarning
}

// Error implements the error interface by joining all violation messages.
func (vs Violations) Error() string {
	if len(vs) == 0 {
		return ""
	}
	if len(vs) == 1 {
		return vs[0].Error()
	}

	var b strings.Builder
	b.WriteString("validation failed with ")
	b.WriteString(vs.Summary())
	b.WriteString(":")
	for _, v := range vs {
		b.WriteString("\n  - ")
		b.WriteString(v.Error())
	}
	return b.String()
}

// Summary returns a count phrase such as "2 errors and 1 warning".
func (vs Violations) Summary() string {
	errCount, warnCount := vs.ErrorCount(), vs.WarningCount()
	var parts []string
	if errCount > 0 || warnCount == 0 {
		parts = append(parts, plural(errCount, "error"))
	}
	if warnCount > 0 {
		parts = append(parts, plural(warnCount, "warning"))
	}
	return strings.Join(parts, " and ")
}

// HasErrors returns true if any violation rejects the batch.
func (vs Violations) HasErrors() bool {
	return slices.ContainsFunc(vs, Violation.IsError)
}

// Errors returns only the error-level violations.
func (vs Violations) Errors() Violations {
	return vs.filter(Violation.IsError)
}

// Warnings returns only the warning-level violations.
func (vs Violations) Warnings() Violations {
	return vs.filter(Violation.IsWarning)
}

// OfKind returns the violations produced by stage k.
func (vs Violations) OfKind(k Kind) Violations {
	return vs.filter(func(v Violation) bool { return v.Kind == k })
}

// ErrorCount returns the number of error-level violations.
func (vs Violations) ErrorCount() int {
	return len(vs.Errors())
}

// WarningCount returns the number of warning-level violations.
func (vs Violations) WarningCount() int {
	return len(vs.Warnings())
}

// Sorted returns a copy ordered by stage, file, position, record and field.
func (vs Violations) Sorted() Violations {
	out := slices.Clone(vs)
	slices.SortStableFunc(out, func(a, b Violation) int {
		return cmp.Or(
			cmp.Compare(a.Kind.order(), b.Kind.order()),
			cmp.Compare(a.Path, b.Path),
			cmp.Compare(a.Line, b.Line),
			cmp.Compare(a.Column, b.Column),
			cmp.Compare(a.Record, b.Record),
			cmp.Compare(a.Field, b.Field),
			cmp.Compare(a.Message, b.Message),
		)
	})
	return out
}

func (vs Violations) filter(keep func(Violation) bool) Violations {
	var out Violations
	for _, v := range vs {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
