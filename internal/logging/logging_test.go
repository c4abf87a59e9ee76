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
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSetupJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Setup("info", "json", &buf)

	slog.Info("hello", "bucket", "photos")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (got %q)", err, buf.String())
	}
	if record["msg"] != "hello" {
		t.Errorf("msg = %v, want hello", record["msg"])
	}
	if record["bucket"] != "photos" {
		t.Errorf("bucket = %v, want photos", record["bucket"])
	}
}

func TestSetupTextFormat(t *testing.T) {
	var buf bytes.Buffer
	Setup("info", "text", &buf)

	slog.Info("hello text")
	if !strings.Contains(buf.String(), "hello text") {
		t.Errorf("output should contain the message, got %q", buf.String())
	}
}

func TestSetupLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Setup("warn", "text", &buf)

	slog.Info("filtered out")
	if buf.Len() != 0 {
		t.Errorf("info record should be filtered at warn level, got %q", buf.String())
	}

	slog.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("warn record should pass, got %q", buf.String())
	}
}
