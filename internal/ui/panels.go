package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/stationreviews/internal/feed"
	"github.com/abelbrown/stationreviews/internal/review"
)

// renderStations renders the station list. The focused station is marked
// with a bullet; the cursor row is highlighted.
func renderStations(stations []review.Station, cursor int, focusedID int64, width, height int) string {
	if len(stations) == 0 {
		return HelpStyle.Render("No stations.")
	}
	if height < 1 {
		height = 1
	}
	offset := 0
	if cursor >= height {
		offset = cursor - height + 1
	}

	var b strings.Builder
	for i := offset; i < len(stations) && i < offset+height; i++ {
		st := stations[i]
		mark := "  "
		if st.ID == focusedID {
			mark = "• "
		}
		name := truncateRunes(mark+st.Name, width-2)
		style := NormalItem
		if i == cursor {
			style = SelectedItem
		}
		b.WriteString(style.Width(width).Render(name))
		if i < len(stations)-1 && i < offset+height-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// renderStats renders the stats panel: the insight banner, the rating
// distribution and one card per aspect. While a recomputation is pending
// the previous stats stay visible under the spinner.
func renderStats(ch feed.StatsChannel, spin string, width int) string {
	var b strings.Builder
	switch ch.State {
	case feed.StatsPending:
		b.WriteString(spin + DimItem.Render(" analysing reviews..."))
		b.WriteString("\n")
	case feed.StatsErrored:
		b.WriteString(ErrorStyle.Render("Stats unavailable: " + ch.Err.Error()))
		b.WriteString("\n")
	}
	if ch.Stats == nil {
		if ch.State == feed.StatsIdle {
			b.WriteString(HelpStyle.Render("Select a station to see its stats."))
		}
		return strings.TrimRight(b.String(), "\n")
	}

	s := ch.Stats
	b.WriteString(fmt.Sprintf("%s %.1f  %s\n",
		RatingStyle.Render(stars(int(s.OverallRating+0.5))), s.OverallRating,
		DimItem.Render(fmt.Sprintf("%d reviews", s.TotalReviews))))
	b.WriteString(InsightBanner.Render(fmt.Sprintf("This month %d · Last month %d · Mood %s",
		s.RecentTrends.ThisMonth, s.RecentTrends.LastMonth,
		sentimentStyle(s.RecentTrends.Sentiment).Render(string(s.RecentTrends.Sentiment)))))
	b.WriteString("\n")
	b.WriteString(renderDistribution(s.ReviewDistribution, s.TotalReviews, width))

	if cards := renderAspectCards(s.Aspects, width); cards != "" {
		b.WriteString("\n")
		b.WriteString(cards)
	}
	return b.String()
}

func renderDistribution(dist map[int]int, total, width int) string {
	barWidth := width - 14
	if barWidth < 5 {
		barWidth = 5
	}
	var lines []string
	for r := review.MaxRating; r >= review.MinRating; r-- {
		n := dist[r]
		filled := 0
		if total > 0 {
			filled = n * barWidth / total
		}
		bar := StatsBar.Render(strings.Repeat("█", filled)) + DimItem.Render(strings.Repeat("░", barWidth-filled))
		lines = append(lines, fmt.Sprintf("%d★ %s %4d", r, bar, n))
	}
	return strings.Join(lines, "\n")
}

// aspectArrow maps a trend onto a glyph.
func aspectArrow(t review.Trend) string {
	switch t {
	case review.Up:
		return "↑"
	case review.Down:
		return "↓"
	default:
		return "→"
	}
}

func renderAspectCards(aspects map[string]review.Aspect, width int) string {
	if len(aspects) == 0 {
		return ""
	}
	names := make([]string, 0, len(aspects))
	for name := range aspects {
		names = append(names, name)
	}
	sort.Strings(names)

	cardWidth := lipgloss.Width(AspectCard.Render(""))
	perRow := width / cardWidth
	if perRow < 1 {
		perRow = 1
	}

	var rows []string
	var row []string
	for _, name := range names {
		a := aspects[name]
		body := fmt.Sprintf("%s\n%s %.0f%% %s", truncateRunes(name, 20),
			sentimentStyle(a.Sentiment).Render(string(a.Sentiment)), a.Percentage, aspectArrow(a.Trend))
		row = append(row, AspectCard.Render(body))
		if len(row) == perRow {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
