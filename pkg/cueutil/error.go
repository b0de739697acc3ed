// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"cuelang.org/go/cue/errors"
)

// ValidationError is one problem CUE found in a document, located by the
// document-relative field path, e.g. "platforms.apt" or "tags[1]".
type ValidationError struct {
	FilePath   string
	CUEPath    string
	Message    string
	Suggestion string // empty when there is no stock hint for Message
}

func (e *ValidationError) Error() string {
	parts := []string{e.FilePath}
	if e.CUEPath != "" {
		parts = append(parts, e.CUEPath)
	}
	return strings.Join(append(parts, e.Message), ": ")
}

// Unwrap always returns nil.
func (e *ValidationError) Unwrap() error { return nil }

// Errors flattens err into one ValidationError per distinct path and message.
// Errors that did not come from CUE become a single entry with no path.
func Errors(err error, filePath string) []*ValidationError {
	if err == nil {
		return nil
	}
	var cueErr errors.Error
	if !errors.As(err, &cueErr) {
		return []*ValidationError{{FilePath: filePath, Message: err.Error()}}
	}

	var out []*ValidationError
	for _, e := range errors.Errors(err) {
		format, args := e.Msg()
		ve := &ValidationError{
			FilePath: filePath,
			CUEPath:  formatPath(errors.Path(e)),
			Message:  normalizeMessage(fmt.Sprintf(format, args...)),
		}
		if slices.ContainsFunc(out, func(prev *ValidationError) bool {
			return prev.CUEPath == ve.CUEPath && prev.Message == ve.Message
		}) {
			continue
		}
		out = append(out, ve)
	}
	out = collapseDisjunctions(out)
	for _, ve := range out {
		ve.Suggestion = suggestionFor(ve.Message)
	}
	return out
}

var (
	conflictRe      = regexp.MustCompile(`^conflicting values (.+?) and (.+?)(?: \(mismatched types .+\))?$`)
	emptyDisjunctRe = regexp.MustCompile(`^(\d+ errors in )?empty disjunction:?$`)
)

// collapseDisjunctions merges the per-disjunct conflicts CUE reports for a
// value that matches no branch of a disjunction into one entry per path:
//
//	category: expected one of "essential", "editor", got "games"
//
// The rejected value is the one every conflict at the path shares.
func collapseDisjunctions(in []*ValidationError) []*ValidationError {
	conflicts := make(map[string][][2]string)
	for _, ve := range in {
		if m := conflictRe.FindStringSubmatch(ve.Message); m != nil {
			conflicts[ve.CUEPath] = append(conflicts[ve.CUEPath], [2]string{m[1], m[2]})
		}
	}

	out := make([]*ValidationError, 0, len(in))
	done := make(map[string]bool)
	for _, ve := range in {
		pairs := conflicts[ve.CUEPath]
		got, ok := sharedValue(pairs)
		switch {
		case !ok:
			if emptyDisjunctRe.MatchString(ve.Message) && len(pairs) > 0 {
				continue
			}
			out = append(out, ve)
		case done[ve.CUEPath]:
		case conflictRe.MatchString(ve.Message) || emptyDisjunctRe.MatchString(ve.Message):
			done[ve.CUEPath] = true
			var allowed []string
			for _, pair := range pairs {
				other := pair[0]
				if other == got {
					other = pair[1]
				}
				if !slices.Contains(allowed, other) {
					allowed = append(allowed, other)
				}
			}
			out = append(out, &ValidationError{
				FilePath: ve.FilePath,
				CUEPath:  ve.CUEPath,
				Message:  fmt.Sprintf("expected one of %s, got %s", strings.Join(allowed, ", "), got),
			})
		default:
			out = append(out, ve)
		}
	}
	return out
}

// sharedValue returns the value present in every pair when there are at least
// two pairs.
func sharedValue(pairs [][2]string) (string, bool) {
	if len(pairs) < 2 {
		return "", false
	}
	for _, candidate := range pairs[0] {
		shared := true
		for _, pair := range pairs[1:] {
			if pair[0] != candidate && pair[1] != candidate {
				shared = false
				break
			}
		}
		if shared {
			return candidate, true
		}
	}
	return "", false
}

// FormatError collapses err into a single error prefixed with filePath. A
// lone problem stays on one line:
//
//	pkgdb.cue: workers: invalid value 0 (out of bound >=1)
//
// Several problems are listed one per indented line under
// "validation failed:".
func FormatError(err error, filePath string) error {
	problems := Errors(err, filePath)
	switch len(problems) {
	case 0:
		return nil
	case 1:
		if problems[0].CUEPath == "" && problems[0].Message == err.Error() {
			return fmt.Errorf("%s: %w", filePath, err)
		}
		return problems[0]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: validation failed:", filePath)
	for _, p := range problems {
		b.WriteString("\n  ")
		if p.CUEPath != "" {
			b.WriteString(p.CUEPath + ": ")
		}
		b.WriteString(p.Message)
	}
	return errors.New(b.String())
}

// formatPath renders a CUE selector path the way users write it. Definition
// selectors are skipped and numeric selectors become indexes on the preceding
// field, so ["#Package", "tags", "1"] reads "tags[1]".
func formatPath(path []string) string {
	var segs []string
	for _, sel := range path {
		switch {
		case strings.HasPrefix(sel, "#"):
		case isIndex(sel) && len(segs) > 0:
			segs[len(segs)-1] += "[" + sel + "]"
		default:
			segs = append(segs, sel)
		}
	}
	return strings.Join(segs, ".")
}

func isIndex(sel string) bool {
	n, err := strconv.Atoi(sel)
	return err == nil && n >= 0 && !strings.HasPrefix(sel, "+")
}

// normalizeMessage replaces CUE's concreteness wording for absent fields.
func normalizeMessage(msg string) string {
	if strings.HasPrefix(msg, "field is required but not present") {
		return "required field missing"
	}
	for _, prefix := range []string{"incomplete value", "non-concrete value"} {
		if strings.HasPrefix(msg, prefix) {
			return "required field missing or incomplete: " + msg
		}
	}
	return msg
}

var stockSuggestions = []struct{ match, hint string }{
	{"required field missing", "add the field to the document"},
	{"field not allowed", "remove the field or check its spelling"},
	{"out of bound", "check the allowed pattern or range for this field"},
	{"expected one of", "use one of the listed values"},
}

func suggestionFor(msg string) string {
	for _, s := range stockSuggestions {
		if strings.Contains(msg, s.match) {
			return s.hint
		}
	}
	return ""
}

// CheckFileSize rejects data larger than maxSize bytes.
func CheckFileSize(data []byte, maxSize int64, filename string) error {
	if size := int64(len(data)); size > maxSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", filename, size, maxSize)
	}
	return nil
}
