package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestInitWriter(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, log.InfoLevel)
	defer func() { Logger = nil }()

	Debug("hidden", "k", 1)
	Info("feed: page loaded", "station", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug line should be filtered at info level")
	}
	if !strings.Contains(out, "feed: page loaded") || !strings.Contains(out, "station=3") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestInitCreatesDatedFile(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Warn("something odd")
	Close()
	Logger = nil

	entries, err := os.ReadDir(filepath.Join(dir, "logs"))
	if err != nil {
		t.Fatalf("read log dir: %v", err)
	}
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "stationreviews-") {
		t.Fatalf("expected one dated log file, got %v", entries)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	Logger = nil
	Info("no logger")
	Error("still fine")
	if WithPrefix("x") == nil {
		t.Error("WithPrefix should never return nil")
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != log.DebugLevel {
		t.Error("debug should parse")
	}
	if ParseLevel("nonsense") != log.InfoLevel {
		t.Error("unknown level should default to info")
	}
}
