// Package styles centralizes the lipgloss styles used by the outline watcher.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/sbtinstruments/cyto/internal/tasktree"
)

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on both black and dark surfaces
	PrimaryColor = lipgloss.Color("#A78BFA") // Purple (violet-400)
	ErrorColor   = lipgloss.Color("#F87171") // Red (red-400)
	MutedColor   = lipgloss.Color("#9CA3AF") // Gray (brighter for readability)
	SurfaceColor = lipgloss.Color("#1F2937") // Dark surface
	TextColor    = lipgloss.Color("#F9FAFB") // Light text
	BorderColor  = lipgloss.Color("#6B7280") // Gray (gray-500)

	// State colors
	StateRunning   = lipgloss.Color("#10B981") // Green
	StatePending   = lipgloss.Color("#9CA3AF") // Gray
	StateCancel    = lipgloss.Color("#F59E0B") // Amber
	StateCancelled = lipgloss.Color("#60A5FA") // Blue
	StateComplete  = lipgloss.Color("#A78BFA") // Purple
	StateFailed    = lipgloss.Color("#F87171") // Red

	// Base styles
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		MarginBottom(1)

	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(BorderColor).
		MarginBottom(1).
		PaddingBottom(1)

	Muted = lipgloss.NewStyle().Foreground(MutedColor)

	// Outline rows
	Row = lipgloss.NewStyle().
		Padding(0, 1)

	RowSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextColor).
			Background(PrimaryColor).
			Padding(0, 1)

	// Help bar
	HelpBar = lipgloss.NewStyle().
		Foreground(MutedColor).
		MarginTop(1)

	HelpKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(StateRunning)

	// Footer / status bar
	StatusBar = lipgloss.NewStyle().
			Foreground(TextColor).
			Background(SurfaceColor).
			Padding(0, 1)

	// Error message
	ErrorMsg = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)
)

// StateColor returns the color for a node state
func StateColor(state tasktree.State) lipgloss.Color {
	switch state {
	case tasktree.StateRunning:
		return StateRunning
	case tasktree.StatePending:
		return StatePending
	case tasktree.StateCancelRequested:
		return StateCancel
	case tasktree.StateCancelled:
		return StateCancelled
	case tasktree.StateCompleted:
		return StateComplete
	case tasktree.StateFailed:
		return StateFailed
	default:
		return MutedColor
	}
}

// StateIcon returns an icon for a node state
func StateIcon(state tasktree.State) string {
	switch state {
	case tasktree.StateRunning:
		return "●"
	case tasktree.StatePending:
		return "○"
	case tasktree.StateCancelRequested:
		return "◍"
	case tasktree.StateCancelled:
		return "⊘"
	case tasktree.StateCompleted:
		return "✓"
	case tasktree.StateFailed:
		return "✗"
	default:
		return "●"
	}
}
