// Package local serves the review backend straight from a SQLite store,
// acting as one fixed identity. Stats are computed in process after an
// optional delay that stands in for the server's slow aggregation.
package local

import (
	"context"
	"time"

	"github.com/abelbrown/stationreviews/internal/analysis"
	"github.com/abelbrown/stationreviews/internal/backend"
	"github.com/abelbrown/stationreviews/internal/metrics"
	"github.com/abelbrown/stationreviews/internal/review"
	"github.com/abelbrown/stationreviews/internal/store"
)

// Backend implements backend.Backend over a store.
type Backend struct {
	store      *store.Store
	who        review.Identity
	statsDelay time.Duration
	now        func() time.Time
}

var _ backend.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithStatsDelay delays every stats computation by d.
func WithStatsDelay(d time.Duration) Option {
	return func(b *Backend) { b.statsDelay = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// New returns a backend acting as who.
func New(st *store.Store, who review.Identity, opts ...Option) *Backend {
	b := &Backend{store: st, who: who, now: time.Now}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Backend) ListStations(ctx context.Context) ([]review.Station, error) {
	return b.store.ListStations(ctx)
}

func (b *Backend) ListReviews(ctx context.Context, stationID int64, limit, offset int) (backend.Page, error) {
	items, total, err := b.store.ListReviews(ctx, stationID, limit, offset)
	if err != nil {
		return backend.Page{}, err
	}
	return backend.WithTotal(items, total), nil
}

func (b *Backend) ComputeStationStats(ctx context.Context, stationID int64) (review.StationStats, error) {
	if _, err := b.store.Station(ctx, stationID); err != nil {
		return review.StationStats{}, err
	}
	if b.statsDelay > 0 {
		t := time.NewTimer(b.statsDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return review.StationStats{}, ctx.Err()
		case <-t.C:
		}
	}

	start := time.Now()
	items, _, err := b.store.ListReviews(ctx, stationID, 0, 0)
	if err != nil {
		return review.StationStats{}, err
	}
	stats := analysis.Summarize(items, b.now())
	metrics.StatsCompute.Observe(time.Since(start).Seconds())
	return stats, nil
}

func (b *Backend) CreateReview(ctx context.Context, stationID int64, rating int, text string) (review.Review, error) {
	if b.who.Anonymous() {
		return review.Review{}, review.ErrForbidden
	}
	res := analysis.Analyze(text, rating)
	return b.store.InsertReview(ctx, store.NewReview{
		StationID: stationID,
		Author:    b.who.Username,
		Rating:    rating,
		Text:      text,
		CreatedAt: b.now(),
		Sentiment: res.Sentiment,
		Aspects:   res.Aspects,
	})
}

func (b *Backend) DeleteReview(ctx context.Context, reviewID int64) error {
	return b.store.DeleteReview(ctx, b.who, reviewID)
}

func (b *Backend) CurrentIdentity(ctx context.Context) (review.Identity, error) {
	return b.who, nil
}
