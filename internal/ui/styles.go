package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/stationreviews/internal/review"
)

// Colors used in the application.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorSuccess   = lipgloss.Color("78")  // Green
	colorWarning   = lipgloss.Color("214") // Amber
	colorDanger    = lipgloss.Color("196") // Red
)

// SelectedItem style for the currently highlighted row.
var SelectedItem = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1)

// NormalItem style for unselected rows.
var NormalItem = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Padding(0, 1)

// DimItem style for secondary text such as authors and dates.
var DimItem = lipgloss.NewStyle().
	Foreground(colorSecondary)

// TimeBandHeader style for time band labels (e.g., "Today", "This Week").
var TimeBandHeader = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight).
	Padding(0, 1)

// PaneTitle style for pane headings.
var PaneTitle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight).
	Padding(0, 1)

// Pane borders. The focused pane gets the primary color.
var (
	PaneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted)

	FocusedPaneStyle = PaneStyle.
				BorderForeground(colorPrimary)
)

// LineBadge style for metro line badges.
var LineBadge = lipgloss.NewStyle().
	Foreground(colorPrimary).
	Background(lipgloss.Color("236")).
	Padding(0, 1).
	MarginRight(1)

// Rating stars.
var RatingStyle = lipgloss.NewStyle().
	Foreground(colorWarning)

// Sentiment badges.
var (
	PositiveBadge = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	NegativeBadge = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	NeutralBadge  = lipgloss.NewStyle().Foreground(colorSecondary)
)

func sentimentStyle(s review.Sentiment) lipgloss.Style {
	switch s {
	case review.Positive:
		return PositiveBadge
	case review.Negative:
		return NegativeBadge
	default:
		return NeutralBadge
	}
}

// StatsBar style for rating distribution bars.
var StatsBar = lipgloss.NewStyle().
	Foreground(colorPrimary)

// InsightBanner style for the this-month / last-month summary.
var InsightBanner = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236")).
	Padding(0, 1)

// AspectCard style for per-aspect summaries.
var AspectCard = lipgloss.NewStyle().
	Border(lipgloss.NormalBorder()).
	BorderForeground(colorMuted).
	Padding(0, 1).
	Width(24)

// StatusBar style for the bottom status bar.
var StatusBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236")).
	Padding(0, 1)

// StatusBarKey style for key hints in status bar.
var StatusBarKey = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)

// StatusBarText style for descriptive text in status bar.
var StatusBarText = lipgloss.NewStyle().
	Foreground(colorSecondary)

// ErrorStyle for displaying errors.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(colorDanger).
	Bold(true).
	Padding(0, 1)

// NoticeStyle for transient confirmations.
var NoticeStyle = lipgloss.NewStyle().
	Foreground(colorSuccess).
	Padding(0, 1)

// HelpStyle for help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(colorMuted).
	Padding(1, 2)

// ComposePanel frames the new review form.
var ComposePanel = lipgloss.NewStyle().
	Border(lipgloss.DoubleBorder()).
	BorderForeground(colorHighlight).
	Padding(1, 2)

// ConfirmStyle for the delete confirmation prompt.
var ConfirmStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(colorDanger).
	Bold(true).
	Padding(0, 1)

// DebugPanel frames the debug overlay.
var DebugPanel = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorWarning).
	Padding(1, 2)

// DebugHeaderStyle for debug overlay section headings.
var DebugHeaderStyle = lipgloss.NewStyle().
	Foreground(colorWarning).
	Bold(true)
