package otel

import (
	"strings"
	"sync"
	"testing"
)

func TestPushAndSnapshot(t *testing.T) {
	r := NewRingBuffer(8)
	for i := 0; i < 5; i++ {
		r.Push(Event{Kind: KindFetchStart, Count: i})
	}

	snap := r.Snapshot()
	if len(snap) != 5 {
		t.Fatalf("expected 5 events, got %d", len(snap))
	}
	for i, e := range snap {
		if e.Count != i {
			t.Errorf("snap[%d].Count=%d, want %d", i, e.Count, i)
		}
	}
}

func TestWrapAround(t *testing.T) {
	r := NewRingBuffer(4)
	for i := 0; i < 8; i++ {
		r.Push(Event{Kind: KindFetchStart, Count: i})
	}

	snap := r.Snapshot()
	if len(snap) != 4 {
		t.Fatalf("expected 4 events, got %d", len(snap))
	}
	for i, e := range snap {
		if want := i + 4; e.Count != want {
			t.Errorf("snap[%d].Count=%d, want %d", i, e.Count, want)
		}
	}
}

func TestLast(t *testing.T) {
	r := NewRingBuffer(4)
	if r.Last(3) != nil {
		t.Error("Last on empty buffer should be nil")
	}
	for i := 0; i < 6; i++ {
		r.Push(Event{Kind: KindFetchStart, Count: i})
	}

	last := r.Last(3)
	if len(last) != 3 {
		t.Fatalf("expected 3, got %d", len(last))
	}
	for i, e := range last {
		if want := i + 3; e.Count != want {
			t.Errorf("last[%d].Count=%d, want %d", i, e.Count, want)
		}
	}
	if got := len(r.Last(100)); got != 4 {
		t.Errorf("Last(100) returned %d events, want 4", got)
	}
	if r.Last(0) != nil {
		t.Error("Last(0) should be nil")
	}
}

func TestFilterAndStats(t *testing.T) {
	r := NewRingBuffer(16)
	r.Push(Event{Kind: KindSelect})
	r.Push(Event{Kind: KindFetchStart})
	r.Push(Event{Kind: KindFetchStale})
	r.Push(Event{Kind: KindMutationCommit})
	r.Push(Event{Kind: KindFetchStale})

	fetches := r.Filter(func(e Event) bool { return strings.HasPrefix(string(e.Kind), "fetch.") })
	if len(fetches) != 3 {
		t.Errorf("Filter(fetch.) = %d events, want 3", len(fetches))
	}

	stats := r.Stats()
	if stats[KindFetchStale] != 2 {
		t.Errorf("stale count = %d, want 2", stats[KindFetchStale])
	}
	if stats[KindSelect] != 1 {
		t.Errorf("select count = %d, want 1", stats[KindSelect])
	}
}

func TestPushCopiesExtra(t *testing.T) {
	r := NewRingBuffer(2)
	extra := map[string]any{"k": 1}
	r.Push(Event{Kind: KindSelect, Extra: extra})
	extra["k"] = 2

	if got := r.Snapshot()[0].Extra["k"]; got != 1 {
		t.Errorf("ring aliased Extra: got %v", got)
	}
}

func TestConcurrentPush(t *testing.T) {
	r := NewRingBuffer(64)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Push(Event{Kind: KindFetchComplete})
				_ = r.Last(5)
			}
		}()
	}
	wg.Wait()

	if r.Len() != r.Cap() {
		t.Errorf("Len = %d, want full buffer %d", r.Len(), r.Cap())
	}
}
