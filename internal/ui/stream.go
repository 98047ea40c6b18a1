package ui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/stationreviews/internal/feed"
	"github.com/abelbrown/stationreviews/internal/review"
)

// linesPerReview is the rendered height of one review: header and text.
const linesPerReview = 2

// TimeBand returns a display string for grouping reviews by age.
func TimeBand(now, created time.Time) string {
	age := now.Sub(created)
	switch {
	case age < 24*time.Hour:
		return "Today"
	case age < 48*time.Hour:
		return "Yesterday"
	case age < 7*24*time.Hour:
		return "This Week"
	case age < 30*24*time.Hour:
		return "This Month"
	default:
		return "Older"
	}
}

// RenderStream renders the loaded reviews grouped into time bands, keeping
// the cursor row visible, followed by a footer describing what is left to
// load.
func RenderStream(w feed.PageWindow, cursor int, width, height int, now time.Time) string {
	if w.Loading && len(w.Items) == 0 {
		return HelpStyle.Render("Loading reviews...")
	}
	if len(w.Items) == 0 {
		if w.Err != nil {
			return ErrorStyle.Render("Could not load reviews: " + w.Err.Error())
		}
		return HelpStyle.Render("No reviews yet. Press 'a' to write the first one.")
	}

	var b strings.Builder
	availableHeight := height - 1 // footer
	if availableHeight < linesPerReview {
		availableHeight = linesPerReview
	}

	scrollOffset := calcScrollOffset(w.Items, cursor, availableHeight, now)
	currentBand := ""
	if scrollOffset > 0 {
		currentBand = TimeBand(now, w.Items[scrollOffset-1].CreatedAt)
	}
	rendered := 0
	for i := scrollOffset; i < len(w.Items); i++ {
		item := w.Items[i]
		band := TimeBand(now, item.CreatedAt)
		if band != currentBand {
			currentBand = band
			if rendered+1+linesPerReview > availableHeight {
				break
			}
			b.WriteString(TimeBandHeader.Render(band))
			b.WriteString("\n")
			rendered++
		}
		if rendered+linesPerReview > availableHeight {
			break
		}
		b.WriteString(renderReview(item, i == cursor, width, now))
		b.WriteString("\n")
		rendered += linesPerReview
	}

	b.WriteString(streamFooter(w))
	return b.String()
}

// calcScrollOffset finds the smallest review index such that everything
// from that index through the cursor, band headers included, fits in
// availableHeight lines.
func calcScrollOffset(items []review.Review, cursor, availableHeight int, now time.Time) int {
	if len(items) == 0 || cursor < 0 {
		return 0
	}
	if cursor >= len(items) {
		cursor = len(items) - 1
	}
	offset := 0
	if fit := availableHeight / linesPerReview; cursor >= fit {
		offset = cursor - fit + 1
	}
	for offset <= cursor {
		if visibleLineCount(items, offset, cursor, now) <= availableHeight {
			return offset
		}
		offset++
	}
	return cursor
}

// visibleLineCount counts how many rendered lines items[from..to] would
// produce, including any band headers that appear within that range.
func visibleLineCount(items []review.Review, from, to int, now time.Time) int {
	lines := 0
	currentBand := ""
	if from > 0 {
		currentBand = TimeBand(now, items[from-1].CreatedAt)
	}
	for i := from; i <= to && i < len(items); i++ {
		if band := TimeBand(now, items[i].CreatedAt); band != currentBand {
			currentBand = band
			lines++
		}
		lines += linesPerReview
	}
	return lines
}

func stars(rating int) string {
	if rating < review.MinRating || rating > review.MaxRating {
		return "?"
	}
	return strings.Repeat("★", rating) + strings.Repeat("☆", review.MaxRating-rating)
}

// renderReview renders the header line (rating, author, age, sentiment)
// and one line of text.
func renderReview(r review.Review, selected bool, width int, now time.Time) string {
	sentiment := ""
	if r.Sentiment != "" {
		sentiment = " " + sentimentStyle(r.Sentiment).Render(string(r.Sentiment))
	}
	header := RatingStyle.Render(stars(r.Rating)) + " " +
		r.Author + DimItem.Render(" · "+formatAgeShort(now, r.CreatedAt)) + sentiment

	textWidth := width - 4
	if textWidth < 20 {
		textWidth = 20
	}
	text := truncateRunes(strings.Join(strings.Fields(r.Text), " "), textWidth)

	style := NormalItem
	if selected {
		style = SelectedItem
		header = RatingStyle.Render(stars(r.Rating)) + " " + r.Author + " · " +
			formatAgeShort(now, r.CreatedAt) + " " + string(r.Sentiment)
	}
	return style.Width(width).Render(header) + "\n" + style.Width(width).Render(text)
}

func streamFooter(w feed.PageWindow) string {
	shown := len(w.Items)
	var status string
	switch {
	case w.LoadingMore:
		status = "loading more..."
	case w.Err != nil:
		status = "load failed, press m to retry"
	case w.HasMore:
		status = "m: load more"
	default:
		status = "end of reviews"
	}
	count := fmt.Sprintf("%d", shown)
	if w.TotalKnown {
		count = fmt.Sprintf("%d of %d", shown, w.TotalCount)
	}
	return DimItem.Render(fmt.Sprintf("  %s reviews · %s", count, status))
}

func formatAgeShort(now, t time.Time) string {
	age := now.Sub(t)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}

// truncateRunes shortens s to max runes, appending "..." if truncated.
func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 3 {
		return string([]rune(s)[:max])
	}
	return string([]rune(s)[:max-3]) + "..."
}

// RenderStatusBar renders the bottom bar: a status message on the left and
// key hints on the right.
func RenderStatusBar(status string, width int, hints string) string {
	left := " " + status + " "
	padding := width - lipgloss.Width(left) - lipgloss.Width(hints) - 2
	if padding < 0 {
		padding = 0
	}
	return StatusBar.Width(width).Render(left + strings.Repeat(" ", padding) + hints)
}
