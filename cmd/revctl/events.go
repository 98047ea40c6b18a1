package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// eventRecord is the journal line shape. Decoding into a local struct keeps
// the viewer working across schema additions.
type eventRecord struct {
	Time      time.Time      `json:"t"`
	Level     string         `json:"level"`
	Kind      string         `json:"kind"`
	Comp      string         `json:"comp"`
	SessionID string         `json:"session_id"`
	Gen       uint64         `json:"gen"`
	Station   int64          `json:"station"`
	Fetch     string         `json:"fetch"`
	DurMs     float64        `json:"dur_ms"`
	Count     int            `json:"count"`
	Err       string         `json:"err"`
	Msg       string         `json:"msg"`
	Extra     map[string]any `json:"extra"`
}

// levelRank returns a numeric rank for filtering (higher = more severe).
func levelRank(level string) int {
	switch level {
	case "info":
		return 1
	case "warn":
		return 2
	case "error":
		return 3
	default:
		return 0
	}
}

type eventsCmd struct {
	Tail    int    `help:"Number of recent lines to show." default:"50"`
	Follow  bool   `short:"f" help:"Keep reading as events are appended."`
	Kind    string `help:"Event kind prefix (e.g. fetch, mutation)."`
	Level   string `help:"Minimum level: debug, info, warn or error."`
	Comp    string `help:"Component name."`
	Station int64  `help:"Station ID."`
	Session string `help:"Session ID."`
	JSON    bool   `name:"json" help:"Print raw JSON lines."`
	Path    string `help:"Journal file (defaults to the TUI data directory)." type:"path"`
}

// filter is the subset of eventsCmd that selects lines.
type filter struct {
	kind, level, comp, session string
	station                    int64
}

func (f filter) match(ev eventRecord) bool {
	if f.kind != "" && !strings.HasPrefix(ev.Kind, f.kind) {
		return false
	}
	if f.level != "" && levelRank(ev.Level) < levelRank(f.level) {
		return false
	}
	if f.comp != "" && ev.Comp != f.comp {
		return false
	}
	if f.station != 0 && ev.Station != f.station {
		return false
	}
	if f.session != "" && ev.SessionID != f.session {
		return false
	}
	return true
}

func (e *eventsCmd) Run(*globals) error {
	path := e.Path
	if path == "" {
		path = journalPath()
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w\n  run stationreviews first to generate events", err)
	}
	defer f.Close()

	flt := filter{kind: e.Kind, level: e.Level, comp: e.Comp, session: e.Session, station: e.Station}
	show := func(ev eventRecord, raw []byte) {
		if e.JSON {
			fmt.Println(string(raw))
			return
		}
		fmt.Println(formatEvent(ev))
	}

	reader := bufio.NewReader(f)
	lines, pending := readTailLines(reader, e.Tail, flt.match)
	for _, l := range lines {
		show(l.ev, l.raw)
	}
	if !e.Follow {
		return nil
	}

	for {
		chunk, err := reader.ReadBytes('\n')
		pending = append(pending, chunk...)
		if err == io.EOF {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if err != nil {
			return err
		}
		line := trimLine(pending)
		pending = nil
		var ev eventRecord
		if len(line) == 0 || json.Unmarshal(line, &ev) != nil {
			continue
		}
		if flt.match(ev) {
			show(ev, line)
		}
	}
}

// formatEvent renders one journal line for humans.
func formatEvent(ev eventRecord) string {
	lvl := strings.ToUpper(ev.Level)
	if lvl == "" {
		lvl = "INFO"
	}
	parts := []string{fmt.Sprintf("%s %-5s [%-4s] %-18s", ev.Time.Format("15:04:05.000"), lvl, ev.Comp, ev.Kind)}
	if ev.Fetch != "" {
		parts = append(parts, ev.Fetch)
	}
	if ev.Station != 0 {
		parts = append(parts, fmt.Sprintf("st=%d", ev.Station))
	}
	if ev.Gen != 0 {
		parts = append(parts, fmt.Sprintf("gen=%d", ev.Gen))
	}
	if ev.Msg != "" {
		parts = append(parts, ev.Msg)
	}
	if ev.DurMs > 0 {
		parts = append(parts, fmt.Sprintf("(%.*fms)", durPrecision(ev.DurMs), ev.DurMs))
	}
	if ev.Count > 0 {
		parts = append(parts, fmt.Sprintf("n=%d", ev.Count))
	}
	if ev.Err != "" {
		parts = append(parts, "err="+ev.Err)
	}
	return strings.Join(parts, " ")
}

type parsedLine struct {
	ev  eventRecord
	raw []byte
}

// readTailLines consumes r and returns the last n matching lines, plus any
// trailing partial line so follow mode can complete it.
func readTailLines(r *bufio.Reader, n int, match func(eventRecord) bool) ([]parsedLine, []byte) {
	if n <= 0 {
		n = 1
	}
	ring := make([]parsedLine, 0, n)
	for {
		raw, err := r.ReadBytes('\n')
		if err != nil {
			return ring, raw
		}
		raw = trimLine(raw)
		var ev eventRecord
		if len(raw) == 0 || json.Unmarshal(raw, &ev) != nil || !match(ev) {
			continue
		}
		if len(ring) == n {
			copy(ring, ring[1:])
			ring = ring[:n-1]
		}
		ring = append(ring, parsedLine{ev: ev, raw: raw})
	}
}

func trimLine(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

func durPrecision(ms float64) int {
	if ms >= 100 {
		return 0
	}
	if ms >= 1 {
		return 1
	}
	return 2
}
