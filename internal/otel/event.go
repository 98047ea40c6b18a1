// Package otel is the session event journal.
//
// Events are typed structs serialized as JSONL lines. The Journal writes
// events asynchronously via a buffered channel and background drain goroutine.
// An optional RingBuffer keeps recent events in memory for the debug overlay.
package otel

import (
	"encoding/json"
	"time"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind identifies the category of an event.
// Dot-delimited: "<subsystem>.<action>".
type EventKind string

const (
	// Feed controller events
	KindSelect        EventKind = "feed.select"
	KindFetchStart    EventKind = "fetch.start"
	KindFetchComplete EventKind = "fetch.complete"
	KindFetchError    EventKind = "fetch.error"
	KindFetchStale    EventKind = "fetch.stale"
	KindLoadMoreSkip  EventKind = "fetch.skip"

	// Mutation events
	KindMutationStart  EventKind = "mutation.start"
	KindMutationCommit EventKind = "mutation.commit"
	KindMutationFail   EventKind = "mutation.fail"

	// UI events
	KindKeyPress    EventKind = "ui.key"
	KindMsgReceived EventKind = "trace.msg_received"

	// System events
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
	KindError    EventKind = "sys.error"
)

// Event is one journal record. Every field except Kind and Time is optional.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"`       // "feed", "ui", "main"
	SessionID string         `json:"session_id,omitempty"` // random hex, same for entire app run
	Gen       uint64         `json:"gen,omitempty"`        // fetch generation
	Station   int64          `json:"station,omitempty"`
	Fetch     string         `json:"fetch,omitempty"` // "first_page", "next_page", "stats", "submit", "delete"
	Dur       time.Duration  `json:"-"`
	DurMs     float64        `json:"dur_ms,omitempty"` // computed from Dur at marshal time
	Count     int            `json:"count,omitempty"`
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// MarshalJSON implements json.Marshaler, converting Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	a := struct {
		alias
	}{alias: alias(e)}
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}
