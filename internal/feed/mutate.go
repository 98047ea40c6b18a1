package feed

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/stationreviews/internal/access"
	"github.com/abelbrown/stationreviews/internal/logging"
	"github.com/abelbrown/stationreviews/internal/metrics"
	"github.com/abelbrown/stationreviews/internal/otel"
	"github.com/abelbrown/stationreviews/internal/review"
)

// SubmitReview schedules a new review for the focused station. Invalid input
// is rejected here with a *review.ValidationError and nothing is sent.
//
// The outcome arrives as a MutationOutcome. On success the window is
// reloaded from the first page and the stats are recomputed: the new
// review's position in server order and its effect on the aggregates are
// not knowable locally. On failure no state changes.
func (c *Controller) SubmitReview(rating int, text string) (tea.Cmd, error) {
	if c.station == nil {
		return nil, review.ErrNoStation
	}
	if err := review.ValidateSubmission(rating, text); err != nil {
		metrics.FeedMutations.WithLabelValues(string(OpSubmit), "rejected").Inc()
		return nil, err
	}

	t := ticket{gen: c.fence.current()}
	stationID := c.station.ID
	c.begin(OpSubmit, t, stationID)

	ctx, b := c.ctx, c.backend
	return func() tea.Msg {
		created, err := b.CreateReview(ctx, stationID, rating, text)
		return mutationDone{t: t, op: OpSubmit, stationID: stationID, reviewID: created.ID, created: created, err: err}
	}, nil
}

// DeleteReview schedules deletion of reviewID from the focused station.
// The caller must present a capability from the access package covering
// this review; without one the delete is refused locally with
// review.ErrNoCapability. Confirmation is the caller's business: each call
// deletes exactly once.
func (c *Controller) DeleteReview(reviewID int64, capability *access.Capability) (tea.Cmd, error) {
	if c.station == nil {
		return nil, review.ErrNoStation
	}
	if !capability.Covers(reviewID) {
		metrics.FeedMutations.WithLabelValues(string(OpDelete), "rejected").Inc()
		return nil, fmt.Errorf("delete review %d: %w", reviewID, review.ErrNoCapability)
	}

	t := ticket{gen: c.fence.current()}
	stationID := c.station.ID
	c.begin(OpDelete, t, stationID)

	ctx, b := c.ctx, c.backend
	return func() tea.Msg {
		err := b.DeleteReview(ctx, reviewID)
		return mutationDone{t: t, op: OpDelete, stationID: stationID, reviewID: reviewID, err: err}
	}, nil
}

func (c *Controller) begin(op Op, t ticket, stationID int64) {
	c.mutating = true
	c.journal.Emit(otel.Event{Kind: otel.KindMutationStart, Comp: "feed", Fetch: string(op),
		Gen: uint64(t.gen), Station: stationID})
}

// applyMutation turns a finished write into the refresh fetches plus the
// outcome notification. The refresh commands are created, and the window
// and stats flagged as loading, before the notification exists.
func (c *Controller) applyMutation(msg mutationDone) tea.Cmd {
	c.mutating = false
	out := MutationOutcome{
		Op:        msg.op,
		StationID: msg.stationID,
		ReviewID:  msg.reviewID,
		Review:    msg.created,
		Err:       msg.err,
	}

	if msg.err != nil {
		metrics.FeedMutations.WithLabelValues(string(msg.op), "failed").Inc()
		logging.Warn("feed: mutation failed", "op", msg.op, "station", msg.stationID, "review", msg.reviewID, "err", msg.err)
		c.journal.Emit(otel.Event{Level: otel.LevelError, Kind: otel.KindMutationFail, Comp: "feed",
			Fetch: string(msg.op), Gen: uint64(msg.t.gen), Station: msg.stationID, Err: msg.err.Error()})
		return notify(out)
	}

	metrics.FeedMutations.WithLabelValues(string(msg.op), "ok").Inc()
	c.journal.Emit(otel.Event{Kind: otel.KindMutationCommit, Comp: "feed", Fetch: string(msg.op),
		Gen: uint64(msg.t.gen), Station: msg.stationID, Count: int(msg.reviewID)})

	if msg.t.gen != c.fence.current() {
		// The focus moved while the write was in flight; the newer selection
		// already fetched fresh state.
		logging.Debug("feed: mutation refresh skipped", "op", msg.op, "gen", msg.t.gen, "current_gen", c.fence.current())
		return notify(out)
	}

	out.Refreshed = true
	return tea.Batch(c.loadFirstPage(), c.loadStats(), notify(out))
}

func notify(out MutationOutcome) tea.Cmd {
	return func() tea.Msg { return out }
}
