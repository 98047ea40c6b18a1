// Package feed is the feed synchronization controller: it keeps a station's
// paginated review list and its slow aggregate statistics consistent across
// station switches, pagination and review mutations.
//
// The controller is not goroutine-safe and does not need to be. It is driven
// from a single Bubble Tea update loop: operations return tea.Cmds that
// perform exactly one network call each, and the resulting messages are fed
// back through Update. Every fetch is stamped with a ticket; results whose
// ticket no longer matches the current selection or the latest load on their
// channel are dropped.
package feed

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/stationreviews/internal/backend"
	"github.com/abelbrown/stationreviews/internal/logging"
	"github.com/abelbrown/stationreviews/internal/metrics"
	"github.com/abelbrown/stationreviews/internal/otel"
	"github.com/abelbrown/stationreviews/internal/review"
)

// Config configures a Controller.
type Config struct {
	PageSize int
	Journal  *otel.Journal // optional
}

// Controller owns the feed state of one session.
type Controller struct {
	ctx     context.Context
	cancel  context.CancelFunc
	backend backend.Backend
	journal *otel.Journal

	fence    fence
	station  *review.Station
	window   PageWindow
	stats    StatsChannel
	mutating bool
}

// New creates a controller for one session. Cancelling parent or calling
// Close aborts in-flight requests (logout); it is not used for station
// switches, which rely on the fence.
func New(parent context.Context, b backend.Backend, cfg Config) *Controller {
	ctx, cancel := context.WithCancel(parent)
	return &Controller{
		ctx:     ctx,
		cancel:  cancel,
		backend: b,
		journal: cfg.Journal,
		window:  newWindow(cfg.PageSize),
	}
}

// Close tears the session down.
func (c *Controller) Close() {
	c.cancel()
}

// Loading groups the in-flight flags the views render.
type Loading struct {
	FirstPage bool
	NextPage  bool
	Stats     bool
	Mutation  bool
}

// Snapshot is a copy of the controller state. Nothing in it aliases the
// controller, so callers may modify it freely.
type Snapshot struct {
	Station    *review.Station
	Generation Generation
	Window     PageWindow
	Stats      StatsChannel
	Loading    Loading
	LastError  error
}

// Snapshot copies the current state.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		Generation: c.fence.current(),
		Window:     c.window.clone(),
		Stats:      c.stats,
		Loading: Loading{
			FirstPage: c.window.Loading,
			NextPage:  c.window.LoadingMore,
			Stats:     c.stats.Pending(),
			Mutation:  c.mutating,
		},
	}
	if c.station != nil {
		st := *c.station
		s.Station = &st
	}
	if c.stats.Stats != nil {
		stats := c.stats.Stats.Clone()
		s.Stats.Stats = &stats
	}
	switch {
	case c.window.Err != nil:
		s.LastError = c.window.Err
	case c.stats.Err != nil:
		s.LastError = c.stats.Err
	}
	return s
}

// Len returns the number of loaded reviews without copying them.
func (c *Controller) Len() int {
	return len(c.window.Items)
}

// Item returns the i-th loaded review.
func (c *Controller) Item(i int) (review.Review, bool) {
	if i < 0 || i >= len(c.window.Items) {
		return review.Review{}, false
	}
	return c.window.Items[i], true
}

// Mutating reports whether a submit or delete is in flight.
func (c *Controller) Mutating() bool {
	return c.mutating
}

// Station returns the focused station, if any.
func (c *Controller) Station() (review.Station, bool) {
	if c.station == nil {
		return review.Station{}, false
	}
	return *c.station, true
}

// Select focuses st and schedules its first review page and its stats.
// Selecting the focused station again is a full reset.
func (c *Controller) Select(st review.Station) tea.Cmd {
	gen := c.fence.advance()
	c.station = &st
	c.window.reset(st.ID)
	c.stats.reset(st.ID)

	logging.Debug("feed: select", "station", st.ID, "gen", gen)
	c.journal.Emit(otel.Event{Kind: otel.KindSelect, Comp: "feed", Gen: uint64(gen), Station: st.ID, Msg: st.Name})

	return tea.Batch(c.loadFirstPage(), c.loadStats())
}

// LoadNextPage schedules the next review page. It returns nil, and makes no
// request, while a page load is in flight or when nothing more is available.
func (c *Controller) LoadNextPage() tea.Cmd {
	if c.station == nil {
		return nil
	}
	offset, epoch, ok := c.window.beginNext()
	if !ok {
		c.journal.Fetch(otel.KindLoadMoreSkip, string(fetchNextPage), uint64(c.fence.current()), c.window.StationID, 0, nil)
		return nil
	}
	t := ticket{gen: c.fence.current(), seq: epoch}
	return c.fetchPage(t, fetchNextPage, c.window.StationID, c.window.PageSize, offset)
}

func (c *Controller) loadFirstPage() tea.Cmd {
	t := ticket{gen: c.fence.current(), seq: c.window.beginFirst()}
	return c.fetchPage(t, fetchFirstPage, c.window.StationID, c.window.PageSize, 0)
}

func (c *Controller) fetchPage(t ticket, kind fetchKind, stationID int64, limit, offset int) tea.Cmd {
	c.issued(kind, t, stationID)
	ctx, b := c.ctx, c.backend
	return func() tea.Msg {
		start := time.Now()
		page, err := b.ListReviews(ctx, stationID, limit, offset)
		return pageLoaded{t: t, kind: kind, stationID: stationID, page: page, err: err, dur: time.Since(start)}
	}
}

func (c *Controller) loadStats() tea.Cmd {
	t := ticket{gen: c.fence.current(), seq: c.stats.begin()}
	stationID := c.stats.StationID
	c.issued(fetchStats, t, stationID)
	ctx, b := c.ctx, c.backend
	return func() tea.Msg {
		start := time.Now()
		stats, err := b.ComputeStationStats(ctx, stationID)
		return statsLoaded{t: t, stationID: stationID, stats: stats, err: err, dur: time.Since(start)}
	}
}

func (c *Controller) issued(kind fetchKind, t ticket, stationID int64) {
	metrics.FeedFetches.WithLabelValues(string(kind)).Inc()
	c.journal.Fetch(otel.KindFetchStart, string(kind), uint64(t.gen), stationID, 0, nil)
}

// Update applies a fetch or mutation result. Messages it does not own are
// ignored and yield nil, so hosts can pass every message through.
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case pageLoaded:
		c.applyPage(msg)
	case statsLoaded:
		c.applyStats(msg)
	case mutationDone:
		return c.applyMutation(msg)
	}
	return nil
}

func (c *Controller) applyPage(msg pageLoaded) {
	if err := c.fence.admit(msg.t, c.window.epoch); err != nil {
		c.stale(msg.kind, msg.t, msg.stationID)
		return
	}
	if msg.err != nil {
		if msg.kind == fetchFirstPage {
			c.window.failFirst(msg.err)
		} else {
			c.window.failNext(msg.err)
		}
		c.failed(msg.kind, msg.t, msg.stationID, msg.err)
		return
	}

	n := len(msg.page.Items)
	if msg.kind == fetchFirstPage {
		c.window.applyFirst(msg.page)
	} else {
		n = c.window.applyNext(msg.page)
	}
	logging.Debug("feed: page applied", "kind", msg.kind, "station", msg.stationID, "added", n,
		"offset", c.window.Offset, "has_more", c.window.HasMore)
	c.journal.Emit(otel.Event{Kind: otel.KindFetchComplete, Comp: "feed", Fetch: string(msg.kind),
		Gen: uint64(msg.t.gen), Station: msg.stationID, Count: n, Dur: msg.dur})
}

func (c *Controller) applyStats(msg statsLoaded) {
	if err := c.fence.admit(msg.t, c.stats.seq); err != nil {
		c.stale(fetchStats, msg.t, msg.stationID)
		return
	}
	if msg.err != nil {
		c.stats.fail(msg.err)
		c.failed(fetchStats, msg.t, msg.stationID, msg.err)
		return
	}
	c.stats.apply(msg.stats)
	c.journal.Emit(otel.Event{Kind: otel.KindFetchComplete, Comp: "feed", Fetch: string(fetchStats),
		Gen: uint64(msg.t.gen), Station: msg.stationID, Count: msg.stats.TotalReviews, Dur: msg.dur})
}

func (c *Controller) stale(kind fetchKind, t ticket, stationID int64) {
	metrics.FeedStaleResults.WithLabelValues(string(kind)).Inc()
	logging.Debug("feed: stale result dropped", "kind", kind, "station", stationID,
		"gen", t.gen, "current_gen", c.fence.current())
	c.journal.Fetch(otel.KindFetchStale, string(kind), uint64(t.gen), stationID, 0, nil)
}

func (c *Controller) failed(kind fetchKind, t ticket, stationID int64, err error) {
	metrics.FeedFetchErrors.WithLabelValues(string(kind)).Inc()
	logging.Warn("feed: fetch failed", "kind", kind, "station", stationID, "err", err)
	c.journal.Fetch(otel.KindFetchError, string(kind), uint64(t.gen), stationID, 0, err)
}
