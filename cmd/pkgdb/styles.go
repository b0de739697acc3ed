// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Palette. Each color has a light and a dark terminal variant.
var (
	colorAccent  = lipgloss.AdaptiveColor{Light: "#6D28D9", Dark: "#7C3AED"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#4B5563", Dark: "#6B7280"}
	colorAccept  = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#10B981"}
	colorReject  = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#EF4444"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F59E0B"}
	colorPath    = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#3B82F6"}
)

var (
	TitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	SubtitleStyle = lipgloss.NewStyle().Foreground(colorMuted)
	SuccessStyle  = lipgloss.NewStyle().Foreground(colorAccept)
	ErrorStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorReject)
	WarningStyle  = lipgloss.NewStyle().Foreground(colorWarning)

	// CmdStyle marks anything the user can type back: paths, commands, keys.
	CmdStyle = lipgloss.NewStyle().Foreground(colorPath)

	// FieldStyle marks record field paths inside violation lines.
	FieldStyle = lipgloss.NewStyle().Foreground(colorPath).Italic(true)

	verdictBadge       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Padding(0, 1)
	verdictAcceptStyle = verdictBadge.Background(colorAccept)
	verdictRejectStyle = verdictBadge.Background(colorReject)

	kindTagStyle = lipgloss.NewStyle().Foreground(colorWarning)
)

const (
	successIcon = "✓"
	errorIcon   = "✗"
	warningIcon = "!"
	infoIcon    = "•"
	arrowIcon   = "→"
)
