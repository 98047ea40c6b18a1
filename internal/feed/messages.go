package feed

import (
	"time"

	"github.com/abelbrown/stationreviews/internal/backend"
	"github.com/abelbrown/stationreviews/internal/review"
)

// fetchKind labels fetches in metrics and the event journal.
type fetchKind string

const (
	fetchFirstPage fetchKind = "first_page"
	fetchNextPage  fetchKind = "next_page"
	fetchStats     fetchKind = "stats"
)

// Op names a mutation.
type Op string

const (
	OpSubmit Op = "submit"
	OpDelete Op = "delete"
)

// pageLoaded is the result of a first-page or load-more fetch.
type pageLoaded struct {
	t         ticket
	kind      fetchKind
	stationID int64
	page      backend.Page
	err       error
	dur       time.Duration
}

// statsLoaded is the result of a stats fetch.
type statsLoaded struct {
	t         ticket
	stationID int64
	stats     review.StationStats
	err       error
	dur       time.Duration
}

// mutationDone is the result of a submit or delete write.
type mutationDone struct {
	t         ticket
	op        Op
	stationID int64
	reviewID  int64
	created   review.Review
	err       error
}

// MutationOutcome is delivered to the host once a submit or delete has
// finished. On success the refresh fetches have already been issued when
// this message is produced; Refreshed is false only when the focus moved
// to another selection while the write was in flight.
type MutationOutcome struct {
	Op        Op
	StationID int64
	ReviewID  int64
	Review    review.Review // created review, submit only
	Err       error
	Refreshed bool
}

// OK reports whether the write succeeded.
func (m MutationOutcome) OK() bool {
	return m.Err == nil
}
