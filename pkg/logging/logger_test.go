package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  zerolog.Level
	}{
		{"debug level", "debug", zerolog.DebugLevel},
		{"warn level", "warn", zerolog.WarnLevel},
		{"default info", "", zerolog.InfoLevel},
		{"unknown falls back to info", "chatty", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewWithWriter(&bytes.Buffer{}, tt.level, "prod")
			if logger.GetLevel() != tt.want {
				t.Fatalf("expected level %s, got %s", tt.want, logger.GetLevel())
			}
		})
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info", "prod")
	logger.Info().Str("booking_reference", "APT2610150001").Msg("appointment created")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "appointment created" {
		t.Errorf("unexpected message %v", entry["message"])
	}
	if entry["booking_reference"] != "APT2610150001" {
		t.Errorf("unexpected booking_reference %v", entry["booking_reference"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected timestamp field")
	}
}
