// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/goccy/go-json"

	"github.com/heimdal-dev/pkgdb/internal/config"
	"github.com/heimdal-dev/pkgdb/internal/issue"
	"github.com/heimdal-dev/pkgdb/internal/pipeline"
	"github.com/heimdal-dev/pkgdb/pkg/violation"
)

// jsonReport is the machine-readable form of a validation run.
type jsonReport struct {
	violation.Report
	Root     string `json:"root"`
	Files    int    `json:"files"`
	Errors   int    `json:"errors"`
	Warnings int    `json:"warnings"`
}

// renderReport writes the outcome of a validation run in format.
func renderReport(w io.Writer, out *pipeline.Outcome, root string, format config.ReportFormat) error {
	if format == config.ReportFormatJSON {
		return renderReportJSON(w, out, root)
	}
	return renderReportText(w, out, root)
}

func renderReportJSON(w io.Writer, out *pipeline.Outcome, root string) error {
	data, err := json.MarshalIndent(jsonReport{
		Report:   out.Report,
		Root:     root,
		Files:    out.Files,
		Errors:   out.Report.Violations.ErrorCount(),
		Warnings: out.Report.Violations.WarningCount(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func renderReportText(w io.Writer, out *pipeline.Outcome, root string) error {
	var b strings.Builder

	vs := out.Report.Violations
	for _, v := range vs {
		icon := ErrorStyle.Render(errorIcon)
		if v.IsWarning() {
			icon = WarningStyle.Render(warningIcon)
		}
		fmt.Fprintf(&b, "%s %s %s", icon, kindTagStyle.Render("["+string(v.Kind)+"]"), CmdStyle.Render(v.Location()))
		if v.Record != "" {
			fmt.Fprintf(&b, " (%s)", v.Record)
		}
		b.WriteString("\n    ")
		if v.Field != "" {
			b.WriteString(FieldStyle.Render(v.Field) + ": ")
		}
		b.WriteString(v.Message + "\n")
	}
	if len(vs) > 0 {
		b.WriteString("\n")
	}

	badge := verdictAcceptStyle.Render(string(out.Report.Verdict))
	if !out.Report.Accepted() {
		badge = verdictRejectStyle.Render(string(out.Report.Verdict))
	}
	summary := "no problems"
	if len(vs) > 0 {
		summary = vs.Summary()
	}
	fmt.Fprintf(&b, "%s %s %s\n", badge, summary,
		SubtitleStyle.Render(fmt.Sprintf("(%d files under %s)", out.Files, root)))

	_, err := io.WriteString(w, b.String())
	return err
}

// renderGuidance writes each distinct guidance page for the violations in the
// report, ordered by issue id.
func renderGuidance(w io.Writer, report violation.Report) {
	var pages []*issue.Issue
	for _, v := range report.Violations {
		page := issue.ForViolation(v)
		if !slices.Contains(pages, page) {
			pages = append(pages, page)
		}
	}
	slices.SortFunc(pages, func(a, b *issue.Issue) int { return int(a.Id()) - int(b.Id()) })
	for _, page := range pages {
		rendered, err := page.Render("dark")
		if err != nil {
			continue
		}
		fmt.Fprint(w, rendered)
	}
}
