package otel

import (
	"os"
	"sync/atomic"
)

// traceEnabled is read on the UI goroutine for every message, so it is an
// atomic set once at init.
var traceEnabled atomic.Bool

func init() {
	traceEnabled.Store(os.Getenv("STATIONREVIEWS_TRACE") != "")
}

// TraceEnabled reports whether STATIONREVIEWS_TRACE is set. When it is, the
// UI journals every message it receives.
func TraceEnabled() bool {
	return traceEnabled.Load()
}

// SetTraceEnabled overrides the flag; used by the --trace CLI flag and tests.
func SetTraceEnabled(v bool) {
	traceEnabled.Store(v)
}
