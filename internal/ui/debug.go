package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/stationreviews/internal/otel"
)

// debugPanelChrome is the number of terminal lines consumed by DebugPanel's
// border (top + bottom = 2) and vertical padding (top + bottom = 2).
// Must be updated if DebugPanel style changes.
const debugPanelChrome = 4

// debugOverlay renders the debug panel showing feed stats and recent events.
// Pure function with no side effects. Returns empty string if ring is nil.
func debugOverlay(ring *otel.RingBuffer, width, height int, now time.Time) string {
	if ring == nil {
		return ""
	}

	stats := ring.Stats()
	recent := ring.Last(20)

	var lines []string
	lines = append(lines, DebugHeaderStyle.Render("Feed Stats"))
	lines = append(lines, fmt.Sprintf("  Selections: %d", stats[otel.KindSelect]))
	lines = append(lines, fmt.Sprintf("  Fetches:    %d started, %d complete, %d errors",
		stats[otel.KindFetchStart], stats[otel.KindFetchComplete], stats[otel.KindFetchError]))
	lines = append(lines, fmt.Sprintf("  Dropped:    %d stale, %d skipped",
		stats[otel.KindFetchStale], stats[otel.KindLoadMoreSkip]))
	lines = append(lines, fmt.Sprintf("  Mutations:  %d started, %d committed, %d failed",
		stats[otel.KindMutationStart], stats[otel.KindMutationCommit], stats[otel.KindMutationFail]))
	lines = append(lines, fmt.Sprintf("  Buffer:     %d / %d events", ring.Len(), ring.Cap()))
	if errs := ring.Filter(func(e otel.Event) bool { return e.Level == otel.LevelError }); len(errs) > 0 {
		last := errs[len(errs)-1]
		lines = append(lines, fmt.Sprintf("  Last error: %s %s %s", formatAge(now.Sub(last.Time)), last.Kind, truncateRunes(last.Err, 50)))
	}
	lines = append(lines, "")

	lines = append(lines, DebugHeaderStyle.Render("Recent Events"))
	for _, e := range recent {
		line := fmt.Sprintf("  %6s  %-16s", formatAge(now.Sub(e.Time)), string(e.Kind))
		if e.Fetch != "" {
			line += " " + e.Fetch
		}
		if e.Station != 0 {
			line += fmt.Sprintf(" st:%d", e.Station)
		}
		if e.Gen != 0 {
			line += fmt.Sprintf(" gen:%d", e.Gen)
		}
		if e.Msg != "" {
			line += "  " + truncateRunes(e.Msg, 30)
		}
		if e.Err != "" {
			line += "  ERR:" + truncateRunes(e.Err, 30)
		}
		lines = append(lines, line)
	}

	// Truncate to fit terminal height (subtract chrome added by DebugPanel border/padding)
	maxHeight := height - debugPanelChrome
	if maxHeight < 1 {
		maxHeight = 1
	}
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
	}

	panelWidth := 80
	if panelWidth > width-4 {
		panelWidth = width - 4
	}
	if panelWidth < 20 {
		panelWidth = 20
	}

	return DebugPanel.Width(panelWidth).Render(strings.Join(lines, "\n"))
}

// formatAge formats a duration as a compact human string.
// Handles negative durations from clock skew by clamping to "0ms".
func formatAge(d time.Duration) string {
	if d < 0 {
		return "0ms"
	}
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
}

// debugStatusBar renders the status bar for the debug overlay.
func debugStatusBar(width int) string {
	keys := StatusBarKey.Render("D") + StatusBarText.Render(":close")
	return StatusBar.Width(width).Render("  [DEBUG]  " + keys)
}
