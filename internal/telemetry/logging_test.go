package telemetry

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
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" ERROR ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogLevelFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "ERROR")
	if LogLevel() != slog.LevelError {
		t.Errorf("expected ERROR, got %v", LogLevel())
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Service: "flowgraph-api", Output: &buf})

	WithNodeID(WithRunID(logger, "run-1"), "shape").Info("step completed")
	logger.Debug("hidden")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected single JSON record: %v (%s)", err, buf.String())
	}
	if entry["service"] != "flowgraph-api" || entry["run_id"] != "run-1" || entry["node_id"] != "shape" {
		t.Errorf("unexpected record: %v", entry)
	}
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Format: "TEXT", Level: slog.LevelWarn, Output: &buf})

	logger.Info("skipped")
	WithWorkflowID(logger, "orders").Warn("slow run")

	out := buf.String()
	if strings.Contains(out, "skipped") {
		t.Error("info should be filtered at WARN")
	}
	if !strings.Contains(out, "workflow_id=orders") || strings.Contains(out, "service=") {
		t.Errorf("unexpected text output: %s", out)
	}
}
