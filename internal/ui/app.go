package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/stationreviews/internal/access"
	"github.com/abelbrown/stationreviews/internal/feed"
	"github.com/abelbrown/stationreviews/internal/logging"
	"github.com/abelbrown/stationreviews/internal/otel"
	"github.com/abelbrown/stationreviews/internal/review"
)

// pane is the half of the screen that receives navigation keys.
type pane int

const (
	paneStations pane = iota
	paneReviews
)

// mode is what the screen is showing.
type mode int

const (
	modeBrowse mode = iota
	modeCompose
	modeConfirmDelete
)

const stationPaneWidth = 30

// AppConfig wires the App to its collaborators.
type AppConfig struct {
	// Controller owns review and stats state. Required.
	Controller *feed.Controller

	// LoadStartup fetches stations and identity; it must produce a
	// StartupLoaded message.
	LoadStartup func() tea.Cmd

	Ring           *otel.RingBuffer // debug overlay; optional
	Journal        *otel.Journal    // optional
	ConfirmDeletes bool
	Now            func() time.Time
}

// App is the root Bubble Tea model.
// IMPORTANT: App does NOT talk to the backend. The feed controller and
// LoadStartup hand it tea.Cmds; results come back as messages.
type App struct {
	ctrl           *feed.Controller
	loadStartup    func() tea.Cmd
	ring           *otel.RingBuffer
	journal        *otel.Journal
	confirmDeletes bool
	now            func() time.Time

	stations []review.Station
	who      review.Identity
	starting bool

	focus         pane
	mode          mode
	stationCursor int
	reviewCursor  int
	showDebug     bool

	compose       composeForm
	pendingDelete *access.Capability

	status string
	err    error

	spinner spinner.Model
	help    help.Model
	width   int
	height  int
	ready   bool
}

// NewAppWithConfig creates an App.
func NewAppWithConfig(cfg AppConfig) App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = RatingStyle

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return App{
		ctrl:           cfg.Controller,
		loadStartup:    cfg.LoadStartup,
		ring:           cfg.Ring,
		journal:        cfg.Journal,
		confirmDeletes: cfg.ConfirmDeletes,
		now:            now,
		starting:       cfg.LoadStartup != nil,
		spinner:        s,
		help:           help.New(),
	}
}

// Init starts the spinner and the startup load.
func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.spinner.Tick}
	if a.loadStartup != nil {
		cmds = append(cmds, a.loadStartup())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and returns the updated model and any commands.
// Every message is offered to the feed controller first.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if otel.TraceEnabled() {
		if _, isTick := msg.(spinner.TickMsg); !isTick {
			a.journal.Emit(otel.Event{Kind: otel.KindMsgReceived, Level: otel.LevelDebug, Comp: "ui", Msg: fmt.Sprintf("%T", msg)})
		}
	}

	var cmds []tea.Cmd
	if a.ctrl != nil {
		cmds = append(cmds, a.ctrl.Update(msg))
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		a.ready = true

	case tea.KeyMsg:
		var cmd tea.Cmd
		a, cmd = a.handleKeyMsg(msg)
		cmds = append(cmds, cmd)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case StartupLoaded:
		cmds = append(cmds, a.handleStartup(msg))

	case feed.MutationOutcome:
		a.handleOutcome(msg)
	}

	a.clampReviewCursor()
	return a, tea.Batch(cmds...)
}

func (a *App) handleStartup(msg StartupLoaded) tea.Cmd {
	a.starting = false
	a.who = msg.Identity
	if msg.IdentityErr != nil {
		logging.Warn("ui: identity unavailable, continuing anonymously", "err", msg.IdentityErr)
	}
	if msg.Err != nil {
		a.err = fmt.Errorf("loading stations: %w", msg.Err)
		a.journal.Error(otel.KindError, "ui", a.err)
		return nil
	}
	a.stations = msg.Stations
	if len(a.stations) == 0 || a.ctrl == nil {
		return nil
	}
	if _, focused := a.ctrl.Station(); focused {
		return nil
	}
	a.stationCursor = 0
	return a.ctrl.Select(a.stations[0])
}

func (a *App) handleOutcome(out feed.MutationOutcome) {
	if !out.OK() {
		a.err = mutationError(out)
		return
	}
	switch out.Op {
	case feed.OpSubmit:
		a.status = "Review posted"
		a.reviewCursor = 0
	case feed.OpDelete:
		a.status = "Review deleted"
	}
	if !out.Refreshed {
		a.status += " (station changed, not reloaded)"
	}
}

// mutationError phrases a failed write for the error bar.
func mutationError(out feed.MutationOutcome) error {
	verb := "post review"
	if out.Op == feed.OpDelete {
		verb = "delete review"
	}
	var ve *review.ValidationError
	switch {
	case errors.As(out.Err, &ve):
		return fmt.Errorf("could not %s: %s", verb, ve.Reason)
	case errors.Is(out.Err, review.ErrForbidden):
		return fmt.Errorf("could not %s: not allowed", verb)
	case errors.Is(out.Err, review.ErrNotFound):
		return fmt.Errorf("could not %s: it no longer exists", verb)
	}
	return fmt.Errorf("could not %s: %w", verb, out.Err)
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (App, tea.Cmd) {
	if otel.TraceEnabled() {
		a.journal.Emit(otel.Event{Kind: otel.KindKeyPress, Level: otel.LevelDebug, Comp: "ui", Msg: msg.String()})
	}

	switch a.mode {
	case modeCompose:
		return a.handleComposeKey(msg)
	case modeConfirmDelete:
		return a.handleConfirmKey(msg)
	}

	// Clear any existing error or notice on key press
	a.err = nil
	a.status = ""

	switch {
	case key.Matches(msg, keys.Quit):
		return a, tea.Quit
	case key.Matches(msg, keys.Debug):
		a.showDebug = !a.showDebug
		return a, nil
	case key.Matches(msg, keys.Help):
		a.help.ShowAll = !a.help.ShowAll
		return a, nil
	case key.Matches(msg, keys.SwitchPane):
		if a.focus == paneStations {
			a.focus = paneReviews
		} else {
			a.focus = paneStations
		}
		return a, nil
	case key.Matches(msg, keys.Refresh):
		if st, ok := a.ctrl.Station(); ok {
			a.reviewCursor = 0
			return a, a.ctrl.Select(st)
		}
		return a, nil
	case key.Matches(msg, keys.More):
		return a, a.ctrl.LoadNextPage()
	case key.Matches(msg, keys.Compose):
		return a.openCompose()
	case key.Matches(msg, keys.Delete):
		return a.requestDelete()
	}

	if a.focus == paneStations {
		return a.handleStationKey(msg)
	}
	return a.handleReviewKey(msg)
}

func (a App) handleStationKey(msg tea.KeyMsg) (App, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Down):
		if a.stationCursor < len(a.stations)-1 {
			a.stationCursor++
		}
	case key.Matches(msg, keys.Up):
		if a.stationCursor > 0 {
			a.stationCursor--
		}
	case key.Matches(msg, keys.Top):
		a.stationCursor = 0
	case key.Matches(msg, keys.Bottom):
		if len(a.stations) > 0 {
			a.stationCursor = len(a.stations) - 1
		}
	case key.Matches(msg, keys.Open):
		if a.stationCursor < len(a.stations) {
			a.reviewCursor = 0
			a.focus = paneReviews
			return a, a.ctrl.Select(a.stations[a.stationCursor])
		}
	}
	return a, nil
}

// handleReviewKey moves through the review list. Moving onto the last
// loaded review asks for the next page.
func (a App) handleReviewKey(msg tea.KeyMsg) (App, tea.Cmd) {
	n := a.ctrl.Len()
	switch {
	case key.Matches(msg, keys.Down):
		if a.reviewCursor < n-1 {
			a.reviewCursor++
		}
		if n > 0 && a.reviewCursor == n-1 {
			return a, a.ctrl.LoadNextPage()
		}
	case key.Matches(msg, keys.Up):
		if a.reviewCursor > 0 {
			a.reviewCursor--
		}
	case key.Matches(msg, keys.Top):
		a.reviewCursor = 0
	case key.Matches(msg, keys.Bottom):
		if n > 0 {
			a.reviewCursor = n - 1
			return a, a.ctrl.LoadNextPage()
		}
	}
	return a, nil
}

func (a App) openCompose() (App, tea.Cmd) {
	if _, ok := a.ctrl.Station(); !ok {
		a.err = review.ErrNoStation
		return a, nil
	}
	if a.who.Anonymous() {
		a.err = errors.New("log in to write reviews (stationreviews login)")
		return a, nil
	}
	a.compose = newComposeForm()
	a.mode = modeCompose
	return a, nil
}

func (a App) handleComposeKey(msg tea.KeyMsg) (App, tea.Cmd) {
	if key.Matches(msg, keyCancel) {
		a.mode = modeBrowse
		return a, nil
	}
	form, submit, cmd := a.compose.update(msg)
	a.compose = form
	if !submit {
		return a, cmd
	}

	if a.ctrl.Mutating() {
		a.compose.err = errBusy.Error()
		return a, nil
	}
	post, err := a.ctrl.SubmitReview(a.compose.rating, a.compose.text.Value())
	if err != nil {
		var ve *review.ValidationError
		if errors.As(err, &ve) {
			a.compose.err = strings.TrimPrefix(ve.Error(), "invalid review: ")
			return a, nil
		}
		a.mode = modeBrowse
		a.err = err
		return a, nil
	}
	a.mode = modeBrowse
	a.status = "Posting review..."
	return a, post
}

// errBusy refuses a second write while one is still in flight.
var errBusy = errors.New("another change is still being saved")

// selectedReview returns the review under the cursor.
func (a App) selectedReview() (review.Review, bool) {
	if a.focus != paneReviews {
		return review.Review{}, false
	}
	return a.ctrl.Item(a.reviewCursor)
}

func (a App) requestDelete() (App, tea.Cmd) {
	r, ok := a.selectedReview()
	if !ok {
		return a, nil
	}
	capability, err := access.Grant(a.who, r)
	if err != nil {
		a.err = errors.New("you can only delete your own reviews")
		return a, nil
	}
	if a.confirmDeletes {
		a.pendingDelete = capability
		a.mode = modeConfirmDelete
		return a, nil
	}
	return a.dispatchDelete(capability)
}

func (a App) handleConfirmKey(msg tea.KeyMsg) (App, tea.Cmd) {
	capability := a.pendingDelete
	a.pendingDelete = nil
	a.mode = modeBrowse
	if !key.Matches(msg, keyConfirm) {
		a.status = "Delete cancelled"
		return a, nil
	}
	return a.dispatchDelete(capability)
}

func (a App) dispatchDelete(capability *access.Capability) (App, tea.Cmd) {
	if a.ctrl.Mutating() {
		a.err = errBusy
		return a, nil
	}
	cmd, err := a.ctrl.DeleteReview(capability.ReviewID(), capability)
	if err != nil {
		a.err = err
		return a, nil
	}
	a.status = "Deleting review..."
	return a, cmd
}

func (a *App) clampReviewCursor() {
	if a.ctrl == nil {
		return
	}
	n := a.ctrl.Len()
	if a.reviewCursor >= n {
		a.reviewCursor = n - 1
	}
	if a.reviewCursor < 0 {
		a.reviewCursor = 0
	}
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}
	if a.showDebug {
		overlay := debugOverlay(a.ring, a.width, a.height-1, a.now())
		if overlay == "" {
			overlay = HelpStyle.Render("No event buffer attached.")
		}
		return lipgloss.JoinVertical(lipgloss.Left, overlay, debugStatusBar(a.width))
	}

	snap := a.ctrl.Snapshot()
	header := a.renderHeader(snap)
	footer := a.renderFooter(snap)
	bodyHeight := a.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if bodyHeight < 6 {
		bodyHeight = 6
	}

	var body string
	if a.mode == modeCompose {
		name := ""
		if snap.Station != nil {
			name = snap.Station.Name
		}
		body = lipgloss.Place(a.width, bodyHeight, lipgloss.Center, lipgloss.Center, a.compose.view(name, a.width))
	} else {
		body = a.renderBody(snap, bodyHeight)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (a App) renderHeader(snap feed.Snapshot) string {
	who := "anonymous"
	if !a.who.Anonymous() {
		who = a.who.Username
		if a.who.Privileged {
			who += " (staff)"
		}
	}
	left := "STATION REVIEWS │ " + who
	if snap.Station != nil {
		left += " │ " + snap.Station.Name
		if snap.Station.Line != "" {
			left += " " + LineBadge.Render(snap.Station.Line)
		}
	}
	right := ""
	if snap.Loading.FirstPage || snap.Loading.NextPage || snap.Loading.Mutation {
		right = a.spinner.View()
	}
	padding := a.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 0 {
		padding = 0
	}
	return StatusBar.Width(a.width).Render(left + strings.Repeat(" ", padding) + right)
}

func (a App) renderBody(snap feed.Snapshot, height int) string {
	var focusedID int64
	if snap.Station != nil {
		focusedID = snap.Station.ID
	}

	leftStyle, rightStyle := FocusedPaneStyle, PaneStyle
	if a.focus == paneReviews {
		leftStyle, rightStyle = PaneStyle, FocusedPaneStyle
	}

	innerHeight := height - 2 // borders
	stations := PaneTitle.Render("Stations") + "\n" +
		renderStations(a.stations, a.stationCursor, focusedID, stationPaneWidth, innerHeight-1)
	left := leftStyle.Width(stationPaneWidth).Height(innerHeight).Render(stations)

	rightWidth := a.width - stationPaneWidth - 4
	if rightWidth < 30 {
		rightWidth = 30
	}
	stats := renderStats(snap.Stats, a.spinner.View(), rightWidth-2)
	streamHeight := innerHeight - lipgloss.Height(stats) - 2
	if streamHeight < linesPerReview+1 {
		streamHeight = linesPerReview + 1
	}
	stream := RenderStream(snap.Window, a.reviewCursorFor(), rightWidth-2, streamHeight, a.now())
	right := rightStyle.Width(rightWidth).Height(innerHeight).Render(
		stats + "\n" + PaneTitle.Render("Reviews") + "\n" + stream)

	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

// reviewCursorFor hides the review cursor while the station pane has focus.
func (a App) reviewCursorFor() int {
	if a.focus != paneReviews {
		return -1
	}
	return a.reviewCursor
}

func (a App) renderFooter(snap feed.Snapshot) string {
	var lines []string
	switch {
	case a.mode == modeConfirmDelete:
		lines = append(lines, ConfirmStyle.Width(a.width).Render(
			fmt.Sprintf("Delete review #%d? y to confirm, any other key to cancel", a.pendingDelete.ReviewID())))
	case a.err != nil:
		lines = append(lines, ErrorStyle.Width(a.width).Render("Error: "+a.err.Error()+" (press any key to dismiss)"))
	case a.status != "":
		lines = append(lines, NoticeStyle.Width(a.width).Render(a.status))
	}

	status := "select a station"
	if snap.Station != nil {
		status = fmt.Sprintf("%d reviews loaded · stats %s", len(snap.Window.Items), snap.Stats.State)
	}
	if a.starting {
		status = "starting..."
	}
	lines = append(lines, RenderStatusBar(status, a.width, a.help.View(keys)))
	return strings.Join(lines, "\n")
}

// Stations returns the loaded stations (for testing).
func (a App) Stations() []review.Station {
	return a.stations
}

// Identity returns the session identity (for testing).
func (a App) Identity() review.Identity {
	return a.who
}

// Err returns the error being displayed (for testing).
func (a App) Err() error {
	return a.err
}

// Status returns the notice being displayed (for testing).
func (a App) Status() string {
	return a.status
}
