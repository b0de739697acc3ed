// SPDX-License-Identifier: MPL-2.0

// Package issue holds the guidance pages pkgdb prints when a run fails and
// the ActionableError type that links a failure to one of them.
//
// Pages are Markdown rendered with glamour. Violations map to pages by kind
// through ForKind and ForViolation; other failures link a page explicitly
// with ErrorContext.WithIssue.
package issue
