package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		enable  slog.Level
		disable *slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug, nil},
		{"warn level", "warn", slog.LevelWarn, ptr(slog.LevelInfo)},
		{"upper case error", "ERROR", slog.LevelError, ptr(slog.LevelWarn)},
		{"default info", "", slog.LevelInfo, ptr(slog.LevelDebug)},
		{"unknown falls back to info", "verbose", slog.LevelInfo, ptr(slog.LevelDebug)},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level)
			if !logger.Enabled(ctx, tt.enable) {
				t.Fatalf("expected level %s to be enabled", tt.enable)
			}
			if tt.disable != nil && logger.Enabled(ctx, *tt.disable) {
				t.Fatalf("expected level %s to be disabled", *tt.disable)
			}
		})
	}
}

func TestDefaultLogger(t *testing.T) {
	logger := Default()
	ctx := context.Background()
	if !logger.Enabled(ctx, slog.LevelInfo) {
		t.Error("Default() should enable info level")
	}
	if logger.Enabled(ctx, slog.LevelDebug) {
		t.Error("Default() should not enable debug level")
	}
	if logger == Default() {
		t.Error("Default() returned the same instance twice")
	}
}

func TestWithAddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("info", &buf).With("booking_id", "b-1")
	logger.Info("booking created")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["booking_id"] != "b-1" {
		t.Fatalf("expected booking_id attribute, got %v", entry)
	}
	if entry["msg"] != "booking created" {
		t.Fatalf("unexpected msg %v", entry["msg"])
	}
}

func TestContextRoundTrip(t *testing.T) {
	fallback := Default()
	if got := FromContext(context.Background(), fallback); got != fallback {
		t.Fatal("expected fallback when context has no logger")
	}

	scoped := Default().With("request_id", "r-1")
	ctx := WithContext(context.Background(), scoped)
	if got := FromContext(ctx, fallback); got != scoped {
		t.Fatal("expected scoped logger from context")
	}
	if FromContext(context.TODO(), nil) == nil {
		t.Fatal("expected a default logger when nothing is available")
	}
}

func ptr(l slog.Level) *slog.Level { return &l }
