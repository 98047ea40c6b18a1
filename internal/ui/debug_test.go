package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/stationreviews/internal/otel"
)

func TestDebugOverlayNilRing(t *testing.T) {
	result := debugOverlay(nil, 80, 24, time.Now())
	if result != "" {
		t.Errorf("debugOverlay(nil) should return empty string, got %q", result)
	}
}

func TestDebugOverlayRendersStats(t *testing.T) {
	now := time.Now()
	ring := otel.NewRingBuffer(64)
	ring.Push(otel.Event{Kind: otel.KindFetchComplete, Time: now})
	ring.Push(otel.Event{Kind: otel.KindFetchComplete, Time: now})
	ring.Push(otel.Event{Kind: otel.KindFetchError, Time: now})
	ring.Push(otel.Event{Kind: otel.KindFetchStale, Time: now})
	ring.Push(otel.Event{Kind: otel.KindMutationCommit, Time: now})

	result := debugOverlay(ring, 100, 40, now)

	if !strings.Contains(result, "Feed Stats") {
		t.Error("overlay should contain 'Feed Stats' header")
	}
	if !strings.Contains(result, "2 complete, 1 errors") {
		t.Errorf("overlay should show fetch stats, got:\n%s", result)
	}
	if !strings.Contains(result, "1 stale, 0 skipped") {
		t.Errorf("overlay should show dropped results, got:\n%s", result)
	}
	if !strings.Contains(result, "1 committed") {
		t.Errorf("overlay should show mutation stats, got:\n%s", result)
	}
	if !strings.Contains(result, "5 / 64 events") {
		t.Errorf("overlay should show buffer stats, got:\n%s", result)
	}
}

func TestDebugOverlayLastError(t *testing.T) {
	now := time.Now()
	ring := otel.NewRingBuffer(64)
	ring.Push(otel.Event{Kind: otel.KindError, Level: otel.LevelError, Time: now, Err: "disk full"})
	ring.Push(otel.Event{Kind: otel.KindFetchError, Level: otel.LevelError, Time: now, Err: "timeout"})
	ring.Push(otel.Event{Kind: otel.KindFetchComplete, Time: now})

	result := debugOverlay(ring, 100, 40, now)
	if !strings.Contains(result, "Last error: 0ms fetch.error timeout") {
		t.Errorf("overlay should show the newest error of any kind, got:\n%s", result)
	}

	ring.Push(otel.Event{Kind: otel.KindMutationFail, Level: otel.LevelError, Time: now, Err: "forbidden"})
	result = debugOverlay(ring, 100, 40, now)
	if !strings.Contains(result, "Last error: 0ms mutation.fail forbidden") {
		t.Errorf("mutation failures should show as the last error, got:\n%s", result)
	}
}

func TestDebugOverlayRecentEvents(t *testing.T) {
	now := time.Now()
	ring := otel.NewRingBuffer(64)
	ring.Push(otel.Event{Kind: otel.KindSelect, Time: now, Msg: "Rajiv Chowk", Station: 7, Gen: 3})
	ring.Push(otel.Event{Kind: otel.KindFetchError, Time: now, Fetch: "next_page", Err: "timeout"})

	result := debugOverlay(ring, 100, 40, now)

	for _, want := range []string{"Recent Events", "Rajiv Chowk", "st:7", "gen:3", "next_page", "ERR:timeout"} {
		if !strings.Contains(result, want) {
			t.Errorf("overlay missing %q, got:\n%s", want, result)
		}
	}
}

func TestDebugOverlayTruncation(t *testing.T) {
	ring := otel.NewRingBuffer(64)
	for i := 0; i < 30; i++ {
		ring.Push(otel.Event{Kind: otel.KindFetchStart, Time: time.Now()})
	}

	result := debugOverlay(ring, 80, 10, time.Now())
	if result == "" {
		t.Error("overlay should still render with small height")
	}
	// height 10 leaves 6 content lines plus border and padding
	if lines := strings.Count(result, "\n"); lines > 12 {
		t.Errorf("overlay should be truncated, got %d lines", lines)
	}
}

func TestDebugToggle(t *testing.T) {
	ring := otel.NewRingBuffer(16)
	app := NewAppWithConfig(AppConfig{Ring: ring})
	app.ready = true
	app.width = 80
	app.height = 24

	if app.showDebug {
		t.Error("debug should be hidden initially")
	}

	model, _ := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'D'}})
	updated := model.(App)
	if !updated.showDebug {
		t.Error("D should show debug overlay")
	}
	if view := updated.View(); !strings.Contains(view, "[DEBUG]") {
		t.Errorf("debug view should contain '[DEBUG]', got:\n%s", view)
	}

	model, _ = updated.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'D'}})
	if model.(App).showDebug {
		t.Error("second D should hide debug overlay")
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		dur  time.Duration
		want string
	}{
		{0, "0ms"},
		{50 * time.Millisecond, "50ms"},
		{1500 * time.Millisecond, "1.5s"},
		{30 * time.Second, "30.0s"},
		{90 * time.Second, "2m"},
		{-5 * time.Second, "0ms"},
	}
	for _, tt := range tests {
		if got := formatAge(tt.dur); got != tt.want {
			t.Errorf("formatAge(%v) = %q, want %q", tt.dur, got, tt.want)
		}
	}
}
