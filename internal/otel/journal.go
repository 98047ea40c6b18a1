package otel

// Goroutine safety:
// The drain goroutine is the sole reader of j.ch and the sole writer to j.w.
// Journal.mu protects only the ring pointer. The ring buffer has its own lock.

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// queueSize is the capacity of the async write channel.
const queueSize = 4096

type entry struct {
	line []byte
	ev   Event
}

// Journal serializes events as JSONL via an async background writer.
// A nil *Journal is valid and discards everything, so components can take
// an optional journal without nil checks at every call site.
type Journal struct {
	mu        sync.Mutex
	ring      *RingBuffer
	sessionID string
	ch        chan entry
	w         io.Writer
	dropped   atomic.Uint64
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewJournal creates a Journal writing JSONL to w. Call Close to flush.
func NewJournal(w io.Writer) *Journal {
	var sid [8]byte
	_, _ = rand.Read(sid[:])

	j := &Journal{
		sessionID: fmt.Sprintf("%x", sid[:]),
		ch:        make(chan entry, queueSize),
		w:         w,
		done:      make(chan struct{}),
	}
	go j.drain()
	return j
}

// OpenFile appends to the JSONL journal at path.
func OpenFile(path string) (*Journal, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open event journal: %w", err)
	}
	return NewJournal(f), f, nil
}

func (j *Journal) drain() {
	defer close(j.done)
	for e := range j.ch {
		if _, err := j.w.Write(e.line); err != nil {
			j.dropped.Add(1)
		}

		j.mu.Lock()
		rb := j.ring
		j.mu.Unlock()

		if rb != nil {
			rb.Push(e.ev)
		}
	}
}

// SessionID is the random identifier stamped on every event.
func (j *Journal) SessionID() string {
	if j == nil {
		return ""
	}
	return j.sessionID
}

// Emit queues an event. Non-blocking: when the queue is full or the journal
// is closed the event is dropped and counted.
func (j *Journal) Emit(e Event) {
	if j == nil {
		return
	}
	defer func() {
		if recover() != nil {
			j.dropped.Add(1)
		}
	}()

	if j.closed.Load() {
		j.dropped.Add(1)
		return
	}

	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if e.Level == "" {
		e.Level = LevelInfo
	}
	e.SessionID = j.sessionID

	line, err := json.Marshal(e)
	if err != nil {
		j.dropped.Add(1)
		return
	}
	line = append(line, '\n')

	select {
	case j.ch <- entry{line: line, ev: e}:
	default:
		j.dropped.Add(1)
	}
}

// Fetch records a fetch lifecycle event for the feed controller.
func (j *Journal) Fetch(kind EventKind, fetch string, gen uint64, station int64, count int, err error) {
	e := Event{Kind: kind, Comp: "feed", Fetch: fetch, Gen: gen, Station: station, Count: count}
	if err != nil {
		e.Level = LevelError
		e.Err = err.Error()
	}
	if kind == KindFetchStale || kind == KindLoadMoreSkip {
		e.Level = LevelDebug
	}
	j.Emit(e)
}

// Info emits an info-level event.
func (j *Journal) Info(kind EventKind, comp string, msg string) {
	j.Emit(Event{Level: LevelInfo, Kind: kind, Comp: comp, Msg: msg})
}

// Error emits an error-level event. Nil err is logged as empty string.
func (j *Journal) Error(kind EventKind, comp string, err error) {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	j.Emit(Event{Level: LevelError, Kind: kind, Comp: comp, Err: errStr})
}

// SetRingBuffer attaches a ring buffer for live inspection.
func (j *Journal) SetRingBuffer(rb *RingBuffer) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ring = rb
}

// Dropped returns the number of events dropped since creation.
func (j *Journal) Dropped() uint64 {
	if j == nil {
		return 0
	}
	return j.dropped.Load()
}

// Close flushes pending events and stops the drain goroutine.
// Emit calls racing with Close are dropped, not panicked.
func (j *Journal) Close() {
	if j == nil {
		return
	}
	j.closeOnce.Do(func() {
		j.closed.Store(true)
		close(j.ch)
		<-j.done

		if d := j.dropped.Load(); d > 0 {
			fmt.Fprintf(os.Stderr, "stationreviews: %d events dropped during session %s\n", d, j.sessionID)
		}
	})
}
