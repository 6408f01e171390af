package zerolog

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sourcebox-llc/entitlements/pkg/billing"
)

func newBufferedLogger() (*Logger, *bytes.Buffer) {
	output := &bytes.Buffer{}
	return NewLogger(zerolog.New(output)), output
}

func TestNewLogger(t *testing.T) {
	logger, _ := newBufferedLogger()
	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name string
		log  func(*Logger)
	}{
		{name: "debug", log: func(l *Logger) { l.Debug("msg") }},
		{name: "info", log: func(l *Logger) { l.Info("msg") }},
		{name: "warn", log: func(l *Logger) { l.Warn("msg") }},
		{name: "error", log: func(l *Logger) { l.Error("msg") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, output := newBufferedLogger()
			tt.log(logger)
			if output.Len() == 0 {
				t.Errorf("Expected %s log to be written", tt.name)
			}
		})
	}
}

func TestLogger_Fields(t *testing.T) {
	logger, output := newBufferedLogger()

	logger.Info("entitlement change applied",
		billing.Field{Key: "user_id", Value: "42"},
		billing.Field{Key: "action", Value: "grant"},
	)

	var entry map[string]interface{}
	if err := json.Unmarshal(output.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to decode log entry: %v", err)
	}
	if entry["user_id"] != "42" {
		t.Errorf("user_id = %v, want %q", entry["user_id"], "42")
	}
	if entry["action"] != "grant" {
		t.Errorf("action = %v, want %q", entry["action"], "grant")
	}
	if entry["message"] != "entitlement change applied" {
		t.Errorf("message = %v", entry["message"])
	}
}
