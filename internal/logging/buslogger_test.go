package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/dronelab/tellosim/internal/bus"
	"github.com/rs/zerolog"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestBusLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	bl := NewBusLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	bl.Debug("test message", "key1", "value1", "key2", 42)

	entry := decodeLine(t, &buf)
	if entry["level"] != "debug" {
		t.Errorf("expected level 'debug', got %v", entry["level"])
	}
	if entry["message"] != "test message" {
		t.Errorf("expected message 'test message', got %v", entry["message"])
	}
	if entry["key1"] != "value1" {
		t.Errorf("expected key1='value1', got %v", entry["key1"])
	}
	if entry["key2"] != float64(42) {
		t.Errorf("expected key2=42, got %v", entry["key2"])
	}
}

func TestBusLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	bl := NewBusLogger(zerolog.New(&buf))

	bl.Info("info message", "topic", "tick")

	entry := decodeLine(t, &buf)
	if entry["level"] != "info" {
		t.Errorf("expected level 'info', got %v", entry["level"])
	}
	if entry["topic"] != "tick" {
		t.Errorf("expected topic='tick', got %v", entry["topic"])
	}
}

func TestBusLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	bl := NewBusLogger(zerolog.New(&buf))

	bl.Error("error occurred", "code", 500, "reason", "internal")

	entry := decodeLine(t, &buf)
	if entry["level"] != "error" {
		t.Errorf("expected level 'error', got %v", entry["level"])
	}
	if entry["code"] != float64(500) {
		t.Errorf("expected code=500, got %v", entry["code"])
	}
}

func TestBusLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	bl := NewBusLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	bl.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected debug to be filtered, got %q", buf.String())
	}
}

func TestToFields_DropsOddAndNonStringKeys(t *testing.T) {
	fields := toFields([]any{"a", 1, 2, "b", "dangling"})
	if len(fields) != 1 || fields["a"] != 1 {
		t.Errorf("unexpected fields %v", fields)
	}
}

func TestBusLogger_ImplementsInterface(t *testing.T) {
	var _ bus.Logger = NewBusLogger(zerolog.Nop())
}
