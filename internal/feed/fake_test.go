package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/stationreviews/internal/backend"
	"github.com/abelbrown/stationreviews/internal/review"
)

// fakeBackend is an in-memory review service. Reviews are kept newest first,
// as the real API orders them.
type fakeBackend struct {
	mu sync.Mutex

	reviews   map[int64][]review.Review
	nextID    int64
	noTotal   bool      // serve bare pages without a count
	totalLie  int       // when >0, report this total instead of the real one
	listErr   error     // returned by ListReviews
	statsErr  error     // returned by ComputeStationStats
	createErr error     // returned by CreateReview
	deleteErr map[int64]error

	listCalls   int
	statsCalls  int
	createCalls int
	deleteCalls int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{reviews: make(map[int64][]review.Review), nextID: 1, deleteErr: make(map[int64]error)}
}

// seed adds n reviews to station, returning their IDs newest first.
func (f *fakeBackend) seed(station int64, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	base := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		r := review.Review{
			ID:        f.nextID,
			StationID: station,
			Rating:    1 + i%5,
			Text:      fmt.Sprintf("review %d of station %d", i, station),
			Author:    "rider",
			CreatedAt: base.Add(time.Duration(f.nextID) * time.Minute),
		}
		f.nextID++
		f.reviews[station] = append([]review.Review{r}, f.reviews[station]...)
	}
}

func (f *fakeBackend) ListStations(ctx context.Context) ([]review.Station, error) {
	return []review.Station{{ID: 1, Name: "Central"}, {ID: 2, Name: "Harbour"}}, nil
}

func (f *fakeBackend) ListReviews(ctx context.Context, stationID int64, limit, offset int) (backend.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return backend.Page{}, f.listErr
	}
	all := f.reviews[stationID]
	end := offset + limit
	if offset > len(all) {
		offset = len(all)
	}
	if end > len(all) {
		end = len(all)
	}
	items := append([]review.Review(nil), all[offset:end]...)
	if f.noTotal {
		return backend.Page{Items: items}, nil
	}
	total := len(all)
	if f.totalLie > 0 {
		total = f.totalLie
	}
	return backend.WithTotal(items, total), nil
}

func (f *fakeBackend) ComputeStationStats(ctx context.Context, stationID int64) (review.StationStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsCalls++
	if f.statsErr != nil {
		return review.StationStats{}, f.statsErr
	}
	all := f.reviews[stationID]
	dist := map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}
	sum := 0
	for _, r := range all {
		dist[r.Rating]++
		sum += r.Rating
	}
	s := review.StationStats{TotalReviews: len(all), ReviewDistribution: dist}
	if len(all) > 0 {
		s.OverallRating = float64(sum) / float64(len(all))
	}
	return s, nil
}

func (f *fakeBackend) CreateReview(ctx context.Context, stationID int64, rating int, text string) (review.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return review.Review{}, f.createErr
	}
	r := review.Review{ID: f.nextID, StationID: stationID, Rating: rating, Text: text, Author: "me", CreatedAt: time.Now()}
	f.nextID++
	f.reviews[stationID] = append([]review.Review{r}, f.reviews[stationID]...)
	return r, nil
}

func (f *fakeBackend) DeleteReview(ctx context.Context, reviewID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if err := f.deleteErr[reviewID]; err != nil {
		return err
	}
	for st, list := range f.reviews {
		for i, r := range list {
			if r.ID == reviewID {
				f.reviews[st] = append(list[:i:i], list[i+1:]...)
				return nil
			}
		}
	}
	return review.ErrNotFound
}

func (f *fakeBackend) CurrentIdentity(ctx context.Context) (review.Identity, error) {
	return review.Identity{Username: "me"}, nil
}

func (f *fakeBackend) calls() (list, stats int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.statsCalls
}

// run executes cmd and any batch it expands to, returning the messages
// in issue order without applying them.
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, run(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

// settle runs cmd to completion against c, feeding every result back
// through Update, and returns the messages the controller does not own.
func settle(c *Controller, cmd tea.Cmd) []tea.Msg {
	var external []tea.Msg
	queue := run(cmd)
	for len(queue) > 0 {
		msg := queue[0]
		queue = queue[1:]
		switch msg.(type) {
		case pageLoaded, statsLoaded, mutationDone:
			queue = append(queue, run(c.Update(msg))...)
		default:
			external = append(external, msg)
		}
	}
	return external
}

// deliver applies already-produced messages in the given order.
func deliver(c *Controller, msgs []tea.Msg) []tea.Msg {
	var external []tea.Msg
	for _, m := range msgs {
		external = append(external, settle(c, func() tea.Msg { return m })...)
	}
	return external
}
