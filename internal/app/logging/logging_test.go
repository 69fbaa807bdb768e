package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo}, // Default
		{"", slog.LevelInfo},        // Default
	}

	for _, tt := range tests {
		if got := ParseLogLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLogLevel(%q) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: slog.LevelWarn, Output: &buf})

	logger.Info("hidden")
	WithComponent(logger, "git").Warn("shown", "dir", "/w")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record below level was written: %q", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "component=git") {
		t.Errorf("output = %q", out)
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: slog.LevelDebug, Format: "json", Output: &buf})

	logger.Debug("process started", "pid", 42)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %q", buf.String())
	}
	if rec["msg"] != "process started" || rec["pid"] != float64(42) {
		t.Errorf("record = %v", rec)
	}
}
