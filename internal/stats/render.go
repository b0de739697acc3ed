// SPDX-License-Identifier: MPL-2.0

package stats

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-json"
	"github.com/pelletier/go-toml/v2"
)

// Format selects a summary renderer.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatTOML     Format = "toml"
	FormatMarkdown Format = "markdown"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	labelStyle   = lipgloss.NewStyle().Bold(true)
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
)

// Formats returns every supported output format.
func Formats() []Format {
	return []Format{FormatText, FormatJSON, FormatTOML, FormatMarkdown}
}

// IsValid returns whether the Format is supported.
func (f Format) IsValid() (bool, []error) {
	switch f {
	case FormatText, FormatJSON, FormatTOML, FormatMarkdown:
		return true, nil
	default:
		return false, []error{fmt.Errorf("unknown stats format %q (valid: text, json, toml, markdown)", f)}
	}
}

// Render writes s to w in format f. Markdown is rendered for the terminal
// through glamour using style (see RenderMarkdown).
func Render(w io.Writer, s Summary, f Format, style string) error {
	switch f {
	case FormatText:
		return RenderText(w, s)
	case FormatJSON:
		return RenderJSON(w, s)
	case FormatTOML:
		return RenderTOML(w, s)
	case FormatMarkdown:
		return RenderMarkdown(w, s, style)
	default:
		_, errs := f.IsValid()
		return errs[0]
	}
}

// RenderText writes a styled overview of s.
func RenderText(w io.Writer, s Summary) error {
	var b strings.Builder

	b.WriteString(headingStyle.Render("Database overview") + "\n\n")
	row := func(label string, value any) {
		fmt.Fprintf(&b, "  %-14s %s\n", labelStyle.Render(label+":"), valueStyle.Render(fmt.Sprint(value)))
	}
	row("Packages", s.Packages)
	row("Groups", s.Groups)
	row("Profiles", s.Profiles)
	row("Mappings", s.Mappings)
	row("Dependencies", s.Dependencies)
	row("Suggestions", s.Suggestions)
	row("Tags", s.Tags)
	row("Popularity", fmt.Sprintf("%.1f avg", s.AveragePopularity))
	if s.Compiled() {
		row("Artifact", fmt.Sprintf("%d bytes (%.2f KB)", s.ArtifactSize, float64(s.ArtifactSize)/1024))
	} else {
		fmt.Fprintf(&b, "  %-14s %s\n", labelStyle.Render("Artifact:"), mutedStyle.Render("not compiled"))
	}

	b.WriteString("\n" + headingStyle.Render("Packages by category") + "\n\n")
	if len(s.Categories) == 0 {
		b.WriteString("  " + mutedStyle.Render("none") + "\n")
	}
	for _, c := range s.Categories {
		fmt.Fprintf(&b, "  %-16s %s packages\n", string(c.Category)+":", valueStyle.Render(fmt.Sprint(c.Packages)))
	}

	b.WriteString("\n" + headingStyle.Render("Platform coverage") + "\n\n")
	for _, p := range s.Platforms {
		fmt.Fprintf(&b, "  %-10s %s packages (%d%%)\n", string(p.Platform)+":", valueStyle.Render(fmt.Sprint(p.Packages)), p.Percent)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderJSON writes s as indented JSON.
func RenderJSON(w io.Writer, s Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding stats: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// RenderTOML writes s as a TOML document.
func RenderTOML(w io.Writer, s Summary) error {
	if err := toml.NewEncoder(w).Encode(s); err != nil {
		return fmt.Errorf("encoding stats: %w", err)
	}
	return nil
}

// Markdown returns s as a markdown document ending with README badges.
func Markdown(s Summary) string {
	var b strings.Builder

	b.WriteString("# Package database statistics\n\n")
	b.WriteString("| Records | Count |\n|---|---:|\n")
	for _, r := range []struct {
		label string
		n     int
	}{
		{"Packages", s.Packages},
		{"Groups", s.Groups},
		{"Profiles", s.Profiles},
		{"Mappings", s.Mappings},
		{"Dependencies", s.Dependencies},
		{"Suggestions", s.Suggestions},
		{"Tags", s.Tags},
	} {
		fmt.Fprintf(&b, "| %s | %d |\n", r.label, r.n)
	}

	if len(s.Categories) > 0 {
		b.WriteString("\n## Categories\n\n| Category | Packages |\n|---|---:|\n")
		for _, c := range s.Categories {
			fmt.Fprintf(&b, "| %s | %d |\n", c.Category, c.Packages)
		}
	}

	b.WriteString("\n## Platform coverage\n\n| Platform | Packages | Coverage |\n|---|---:|---:|\n")
	for _, p := range s.Platforms {
		fmt.Fprintf(&b, "| %s | %d | %d%% |\n", p.Platform, p.Packages, p.Percent)
	}

	b.WriteString("\n## Badges\n\n")
	b.WriteString(Badges(s))
	return b.String()
}

// Badges returns the shields.io badge markdown for a README.
func Badges(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[![Packages](https://img.shields.io/badge/packages-%d-green.svg)](#packages)\n", s.Packages)
	if s.Compiled() {
		fmt.Fprintf(&b, "[![Database Size](https://img.shields.io/badge/database-%dKB-orange.svg)](#database)\n", s.ArtifactKB())
	}
	return b.String()
}

// RenderMarkdown writes Markdown(s). An empty style writes the raw markdown;
// otherwise it is rendered with the named glamour style ("auto", "dark",
// "light", "notty", ...).
func RenderMarkdown(w io.Writer, s Summary, style string) error {
	md := Markdown(s)
	if style == "" {
		_, err := io.WriteString(w, md)
		return err
	}

	opt := glamour.WithStandardStyle(style)
	if style == "auto" {
		opt = glamour.WithAutoStyle()
	}
	renderer, err := glamour.NewTermRenderer(opt, glamour.WithWordWrap(100))
	if err != nil {
		return fmt.Errorf("creating markdown renderer: %w", err)
	}
	out, err := renderer.Render(md)
	if err != nil {
		return fmt.Errorf("rendering markdown: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}
