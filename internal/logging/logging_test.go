package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, slog.LevelInfo, JSON)
	if err != nil {
		t.Fatal(err)
	}
	log.Debug("hidden")
	log.Info("solve", "iterations", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 record, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if rec["msg"] != "solve" || rec["iterations"] != float64(3) {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, slog.LevelDebug, "")
	if err != nil {
		t.Fatal(err)
	}
	log.Debug("iteration", "residual", 0.5)
	if !strings.Contains(buf.String(), "residual=0.5") {
		t.Errorf("unexpected output %q", buf.String())
	}

	if _, err := New(&buf, slog.LevelInfo, "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
