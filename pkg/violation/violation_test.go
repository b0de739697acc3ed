// SPDX-License-Identifier: MPL-2.0

package violation_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/heimdal-dev/pkgdb/pkg/violation"
)

func TestViolation_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		v    violation.Violation
		want string
	}{
		{
			name: "parse error with position",
			v: violation.Violation{
				Kind: violation.KindParse, Path: "packages/git.yaml", Line: 3, Column: 5,
				Message: "mapping key \"name\" already defined at line 1",
			},
			want: "packages/git.yaml:3:5: parse error: mapping key \"name\" already defined at line 1",
		},
		{
			name: "integrity error with record and field",
			v: violation.Violation{
				Kind: violation.KindIntegrity, Path: "groups/base.yaml", Record: "base",
				Field: "packages.required", Target: "nonexistent",
				Message: "unknown package 'nonexistent'",
			},
			want: "groups/base.yaml: integrity error in 'base': packages.required: unknown package 'nonexistent'",
		},
		{
			name: "warning",
			v: violation.Violation{
				Kind: violation.KindIntegrity, Severity: violation.SeverityWarning,
				Path: "mappings/core.yaml", Message: "conflict",
			},
			want: "mappings/core.yaml: integrity warning: conflict",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.v.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestViolations_Counts(t *testing.T) {
	t.Parallel()

	vs := violation.Violations{
		{Kind: violation.KindSchema, Message: "a"},
		{Kind: violation.KindIntegrity, Severity: violation.SeverityWarning, Message: "b"},
		{Kind: violation.KindIntegrity, Message: "c"},
	}

	if !vs.HasErrors() {
		t.Error("HasErrors() = false, want true")
	}
	if got := vs.ErrorCount(); got != 2 {
		t.Errorf("ErrorCount() = %d, want 2", got)
	}
	if got := vs.WarningCount(); got != 1 {
		t.Errorf("WarningCount() = %d, want 1", got)
	}
	if got := len(vs.OfKind(violation.KindIntegrity)); got != 2 {
		t.Errorf("OfKind(integrity) = %d, want 2", got)
	}
	if got := vs.Summary(); got != "2 errors and 1 warning" {
		t.Errorf("Summary() = %q", got)
	}
	if !strings.HasPrefix(vs.Error(), "validation failed with 2 errors and 1 warning:") {
		t.Errorf("Error() = %q", vs.Error())
	}
}

func TestViolations_Sorted(t *testing.T) {
	t.Parallel()

	vs := violation.Violations{
		{Kind: violation.KindIntegrity, Path: "a.yaml", Message: "x"},
		{Kind: violation.KindParse, Path: "z.yaml", Message: "y"},
		{Kind: violation.KindSchema, Path: "b.yaml", Line: 2, Message: "z"},
		{Kind: violation.KindSchema, Path: "b.yaml", Line: 1, Message: "w"},
	}

	sorted := vs.Sorted()
	wantMessages := []string{"y", "w", "z", "x"}
	for i, want := range wantMessages {
		if sorted[i].Message != want {
			t.Errorf("sorted[%d].Message = %q, want %q", i, sorted[i].Message, want)
		}
	}
	if vs[0].Message != "x" {
		t.Error("Sorted() must not reorder the receiver")
	}
}

func TestNewReport(t *testing.T) {
	t.Parallel()

	t.Run("no violations accepts", func(t *testing.T) {
		t.Parallel()

		r := violation.NewReport(nil)
		if !r.Accepted() || r.Verdict != violation.Accept {
			t.Errorf("verdict = %s, want ACCEPT", r.Verdict)
		}
		if r.Err() != nil {
			t.Errorf("Err() = %v, want nil", r.Err())
		}
		if r.Violations == nil {
			t.Error("Violations should be an empty list, not nil")
		}
	})

	t.Run("warnings only accept", func(t *testing.T) {
		t.Parallel()

		r := violation.NewReport(violation.Violations{{Severity: violation.SeverityWarning, Message: "w"}})
		if !r.Accepted() {
			t.Errorf("verdict = %s, want ACCEPT", r.Verdict)
		}
	})

	t.Run("errors reject", func(t *testing.T) {
		t.Parallel()

		r := violation.NewReport(violation.Violations{{Kind: violation.KindSchema, Message: "bad"}})
		if r.Accepted() {
			t.Fatal("expected REJECT")
		}
		var vs violation.Violations
		if !errors.As(r.Err(), &vs) || len(vs) != 1 {
			t.Errorf("Err() = %v, want Violations with 1 entry", r.Err())
		}
	})
}

func TestSeverity_Text(t *testing.T) {
	t.Parallel()

	text, err := violation.SeverityWarning.MarshalText()
	if err != nil || string(text) != "warning" {
		t.Fatalf("MarshalText() = %q, %v", text, err)
	}

	var s violation.Severity
	if err := s.UnmarshalText([]byte("error")); err != nil || s != violation.SeverityError {
		t.Fatalf("UnmarshalText(error) = %v, %v", s, err)
	}
	if err := s.UnmarshalText([]byte("fatal")); !errors.Is(err, violation.ErrInvalidSeverity) {
		t.Errorf("UnmarshalText(fatal) error = %v, want ErrInvalidSeverity", err)
	}
	if _, err := violation.Severity(7).MarshalText(); !errors.Is(err, violation.ErrInvalidSeverity) {
		t.Errorf("MarshalText(7) error = %v, want ErrInvalidSeverity", err)
	}
}
