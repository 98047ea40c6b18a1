package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func pipedStdin(t *testing.T, content string) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stdin")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestPromptPasswordPiped(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"first line", "hunter2\nignored\n", "hunter2", false},
		{"crlf", "hunter2\r\n", "hunter2", false},
		{"no newline", "hunter2", "hunter2", false},
		{"empty line", "\n", "", true},
		{"empty input", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := promptPassword(pipedStdin(t, tt.in), &out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("password = %q, want %q", got, tt.want)
			}
			if out.Len() != 0 {
				t.Errorf("piped input should not print a prompt, got %q", out.String())
			}
		})
	}
}

func TestPasswordOrPromptPrefersFlag(t *testing.T) {
	got, err := passwordOrPrompt("from-flag")
	if err != nil || got != "from-flag" {
		t.Errorf("passwordOrPrompt = %q, %v", got, err)
	}
}
