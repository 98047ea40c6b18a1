package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/stationreviews/internal/review"
)

// composeField is the form field that receives keys.
type composeField int

const (
	fieldText composeField = iota
	fieldRating
)

// composeForm is the new-review form: a free-text input and a 1-5 rating.
type composeForm struct {
	text   textinput.Model
	rating int
	field  composeField
	err    string
}

func newComposeForm() composeForm {
	ti := textinput.New()
	ti.Placeholder = "How was the station?"
	ti.CharLimit = 1000
	ti.Prompt = "› "
	ti.Cursor.SetMode(cursor.CursorStatic)
	ti.Focus()
	return composeForm{text: ti, rating: 5}
}

// update handles a key while the form is open. done is true when the user
// asked to submit.
func (f composeForm) update(msg tea.KeyMsg) (composeForm, bool, tea.Cmd) {
	if key.Matches(msg, keySubmit) {
		return f, true, nil
	}
	if msg.Type == tea.KeyTab || msg.Type == tea.KeyShiftTab {
		if f.field == fieldText {
			f.field = fieldRating
			f.text.Blur()
		} else {
			f.field = fieldText
			f.text.Focus()
		}
		return f, false, nil
	}

	if f.field == fieldRating {
		switch s := msg.String(); s {
		case "1", "2", "3", "4", "5":
			f.rating = int(s[0] - '0')
		case "left", "h", "-":
			if f.rating > review.MinRating {
				f.rating--
			}
		case "right", "l", "+":
			if f.rating < review.MaxRating {
				f.rating++
			}
		}
		return f, false, nil
	}

	var cmd tea.Cmd
	f.text, cmd = f.text.Update(msg)
	return f, false, cmd
}

func (f composeForm) view(stationName string, width int) string {
	var b strings.Builder
	b.WriteString(PaneTitle.Render("Review " + stationName))
	b.WriteString("\n\n")

	ratingLabel := "Rating: "
	if f.field == fieldRating {
		ratingLabel = StatusBarKey.Render("Rating: ")
	}
	b.WriteString(ratingLabel + RatingStyle.Render(stars(f.rating)) + fmt.Sprintf(" (%d)", f.rating))
	b.WriteString("\n\n")
	b.WriteString(f.text.View())
	b.WriteString("\n\n")
	if f.err != "" {
		b.WriteString(ErrorStyle.Render(f.err))
		b.WriteString("\n")
	}
	b.WriteString(DimItem.Render("tab: rating/text · 1-5 or ←/→: rating · enter: post · esc: cancel"))

	panelWidth := width - 4
	if panelWidth > 72 {
		panelWidth = 72
	}
	if panelWidth < 30 {
		panelWidth = 30
	}
	return ComposePanel.Width(panelWidth).Render(b.String())
}
