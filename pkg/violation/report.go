// SPDX-License-Identifier: MPL-2.0

package violation

const (
	// Accept means the batch satisfied every invariant.
	Accept Verdict = "ACCEPT"
	// Reject means at least one error-level violation was found.
	Reject Verdict = "REJECT"
)

type (
	// Verdict is the outcome of validating a record tree.
	Verdict string

	// Report is the result of a full validation run.
	Report struct {
		Verdict    Verdict    `json:"verdict"`
		Violations Violations `json:"violations"`
	}
)

// NewReport sorts vs and derives the verdict: REJECT iff any error-level violation exists.
func NewReport(vs Violations) Report {
	sorted := vs.Sorted()
	if sorted == nil {
		sorted = Violations{}
	}
	verdict := Accept
	if sorted.HasErrors() {
		verdict = Reject
	}
	return Report{Verdict: verdict, Violations: sorted}
}

// Accepted reports whether the verdict is ACCEPT.
func (r Report) Accepted() bool {
	return r.Verdict == Accept
}

// Err returns the error-level violations as an error, or nil when accepted.
func (r Report) Err() error {
	if r.Accepted() {
		return nil
	}
	return r.Violations.Errors()
}
