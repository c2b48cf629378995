package tui

import "github.com/charmbracelet/lipgloss"

// Colors shared across TUI views, from the 256-color palette.
const (
	// ColorHeader is used for titles and the activity spinner.
	ColorHeader = lipgloss.Color("81")
	// ColorOK marks successful outcomes.
	ColorOK = lipgloss.Color("42")
	// ColorWarning marks memory pressure and other advisories.
	ColorWarning = lipgloss.Color("214")
	// ColorError marks failed batches and run errors.
	ColorError = lipgloss.Color("196")
	// ColorMuted is used for secondary detail lines.
	ColorMuted = lipgloss.Color("241")
)

// Icons shared across TUI views.
const (
	// IconOK marks a successfully processed batch.
	IconOK = "✓"
	// IconError marks a failed batch.
	IconError = "✗"
	// IconCache marks a batch served from the result cache.
	IconCache = "↺"
	// IconWarning marks a memory pressure advisory.
	IconWarning = "⚠"
)
