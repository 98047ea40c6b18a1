package feed

import (
	"github.com/abelbrown/stationreviews/internal/backend"
	"github.com/abelbrown/stationreviews/internal/review"
)

// DefaultPageSize matches the web client's review page.
const DefaultPageSize = 20

// PageWindow is the loaded prefix of one station's review collection.
//
// Invariants after every successful load: Offset == len(Items), Items holds
// no duplicate IDs, and HasMore is Offset < TotalCount when the total is
// known, otherwise whether the last page came back full.
type PageWindow struct {
	StationID   int64
	Items       []review.Review
	Offset      int
	PageSize    int
	TotalCount  int
	TotalKnown  bool
	HasMore     bool
	Loading     bool // first page in flight
	LoadingMore bool // next page in flight
	Err         error

	epoch uint64 // bumped per first-page load; next-page tickets carry it
	seen  map[int64]struct{}
}

func newWindow(pageSize int) PageWindow {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return PageWindow{PageSize: pageSize}
}

// reset clears the window for stationID. The epoch survives so results of
// loads issued before the reset can never match again.
func (w *PageWindow) reset(stationID int64) {
	*w = PageWindow{
		StationID: stationID,
		PageSize:  w.PageSize,
		epoch:     w.epoch + 1,
	}
}

// beginFirst marks a first-page load in flight and returns its epoch.
// Any next-page load still in flight is superseded.
func (w *PageWindow) beginFirst() uint64 {
	w.epoch++
	w.Loading = true
	w.LoadingMore = false
	return w.epoch
}

// applyFirst replaces the window contents with p.
func (w *PageWindow) applyFirst(p backend.Page) {
	w.Loading = false
	w.Err = nil
	w.Items = make([]review.Review, 0, len(p.Items))
	w.seen = make(map[int64]struct{}, len(p.Items))
	w.append(p.Items)
	w.Offset = len(w.Items)
	w.TotalKnown = p.HasTotal
	w.TotalCount = 0
	if p.HasTotal {
		w.TotalCount = p.TotalCount
	}
	w.recompute(len(p.Items) >= w.PageSize)
}

// failFirst records err and keeps whatever was loaded before.
func (w *PageWindow) failFirst(err error) {
	w.Loading = false
	w.Err = err
}

// beginNext reserves the single load-more slot. It refuses while any page
// load is in flight or nothing more is available.
func (w *PageWindow) beginNext() (offset int, epoch uint64, ok bool) {
	if w.Loading || w.LoadingMore || !w.HasMore {
		return 0, 0, false
	}
	w.LoadingMore = true
	return w.Offset, w.epoch, true
}

// applyNext appends the unseen items of p and returns how many were added.
func (w *PageWindow) applyNext(p backend.Page) int {
	w.LoadingMore = false
	w.Err = nil
	added := w.append(p.Items)
	w.Offset += added
	if p.HasTotal {
		w.TotalKnown = true
		w.TotalCount = p.TotalCount
	}
	if added == 0 {
		// Nothing new came back; asking again for the same offset would loop.
		w.HasMore = false
		return 0
	}
	w.recompute(len(p.Items) >= w.PageSize)
	return added
}

func (w *PageWindow) failNext(err error) {
	w.LoadingMore = false
	w.Err = err
}

func (w *PageWindow) append(items []review.Review) int {
	if w.seen == nil {
		w.seen = make(map[int64]struct{}, len(items))
	}
	added := 0
	for _, r := range items {
		if _, dup := w.seen[r.ID]; dup {
			continue
		}
		w.seen[r.ID] = struct{}{}
		w.Items = append(w.Items, r)
		added++
	}
	return added
}

// recompute derives HasMore. A reported total below Offset (deletions
// elsewhere) resolves to false.
func (w *PageWindow) recompute(lastPageFull bool) {
	if w.TotalKnown {
		w.HasMore = w.Offset < w.TotalCount
		return
	}
	w.HasMore = lastPageFull
}

// clone returns a copy safe to hand to the presentation layer.
func (w PageWindow) clone() PageWindow {
	if w.Items != nil {
		items := make([]review.Review, len(w.Items))
		copy(items, w.Items)
		w.Items = items
	}
	w.seen = nil
	return w
}
