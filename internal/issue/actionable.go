// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"strings"
)

const (
	bullet     = "\n  - "
	causedBy   = "\n  caused by: "
	verboseTip = "\n\nRun again with --verbose for guidance."
)

type (
	// ActionableError is a failure the user can act on: what pkgdb was doing,
	// on which path, and what to try next. Issue optionally points at a
	// guidance page that verbose mode prints under the message.
	ActionableError struct {
		Operation   string
		Resource    string
		Suggestions []string
		Issue       Id
		Cause       error
	}

	// ErrorContext accumulates the fields of an ActionableError.
	//
	//	return issue.NewErrorContext().
	//		WithOperation("read record tree").
	//		WithResource(root).
	//		WithIssue(issue.RootNotFoundId).
	//		Wrap(err).
	//		BuildError()
	ErrorContext struct {
		draft ActionableError
	}
)

// NewErrorContext starts an empty ErrorContext.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// Error renders "failed to <operation>[: <resource>][: <cause>]".
func (e *ActionableError) Error() string {
	parts := []string{"failed to " + e.Operation}
	if e.Resource != "" {
		parts = append(parts, e.Resource)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Format renders the message followed by one line per suggestion. Verbose
// output walks the cause chain; terse output ends with a hint when a
// guidance page exists.
func (e *ActionableError) Format(verbose bool) string {
	var b strings.Builder
	b.WriteString(e.Error())

	if len(e.Suggestions) > 0 {
		b.WriteByte('\n')
		for _, s := range e.Suggestions {
			b.WriteString(bullet)
			b.WriteString(s)
		}
	}

	switch {
	case verbose:
		if e.Cause != nil {
			b.WriteByte('\n')
		}
		for err := e.Cause; err != nil; err = errors.Unwrap(err) {
			b.WriteString(causedBy)
			b.WriteString(err.Error())
		}
	case e.Issue != 0:
		b.WriteString(verboseTip)
	}
	return b.String()
}

// Guidance returns the linked page, or nil when none is linked.
func (e *ActionableError) Guidance() *Issue {
	if e.Issue == 0 {
		return nil
	}
	return Get(e.Issue)
}

// WithOperation sets the verb phrase, e.g. "compile database".
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.draft.Operation = op
	return c
}

func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.draft.Resource = res
	return c
}

// WithSuggestion appends a hint. Hints print in the order they were added.
func (c *ErrorContext) WithSuggestion(sug string) *ErrorContext {
	c.draft.Suggestions = append(c.draft.Suggestions, sug)
	return c
}

func (c *ErrorContext) WithIssue(id Id) *ErrorContext {
	c.draft.Issue = id
	return c
}

func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.draft.Cause = err
	return c
}

// Build returns a copy of the accumulated error, or nil without an operation.
// Later calls on c do not affect errors already built.
func (c *ErrorContext) Build() *ActionableError {
	if c.draft.Operation == "" {
		return nil
	}
	ae := c.draft
	ae.Suggestions = append([]string(nil), c.draft.Suggestions...)
	return &ae
}

// BuildError is Build returning a plain error, so a missing operation yields
// an untyped nil rather than a nil *ActionableError.
func (c *ErrorContext) BuildError() error {
	if ae := c.Build(); ae != nil {
		return ae
	}
	return nil
}
