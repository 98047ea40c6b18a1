// Package backend declares the operations the client consumes from a review
// service. Implementations: httpapi (REST) and local (SQLite).
package backend

import (
	"context"

	"github.com/abelbrown/stationreviews/internal/review"
)

// Page is one slice of a station's review collection. TotalCount is only
// meaningful when HasTotal is true; bare-array responses carry no count.
type Page struct {
	Items      []review.Review
	TotalCount int
	HasTotal   bool
}

// Backend is the review service as seen by the client.
// All methods may block on the network and must honour ctx.
type Backend interface {
	ListStations(ctx context.Context) ([]review.Station, error)
	ListReviews(ctx context.Context, stationID int64, limit, offset int) (Page, error)

	// ComputeStationStats may be slow: the server runs aspect analysis
	// over the station's reviews on every call.
	ComputeStationStats(ctx context.Context, stationID int64) (review.StationStats, error)

	CreateReview(ctx context.Context, stationID int64, rating int, text string) (review.Review, error)
	DeleteReview(ctx context.Context, reviewID int64) error
	CurrentIdentity(ctx context.Context) (review.Identity, error)
}

// WithTotal returns a Page carrying a server-reported total.
func WithTotal(items []review.Review, total int) Page {
	return Page{Items: items, TotalCount: total, HasTotal: true}
}
