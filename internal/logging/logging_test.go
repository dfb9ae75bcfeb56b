package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestJSONLoggerWritesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", JSONFormat: true, Component: "trader"}, &buf)
	risk := Component(l, "risk")
	risk.Info().Str("symbol", "AAPL").Msg("sized")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["component"] != "risk" {
		t.Errorf("Expected component risk, got %v", entry["component"])
	}
	if entry["service"] != "trader" {
		t.Errorf("Expected service trader, got %v", entry["service"])
	}
}

func TestTraceContext(t *testing.T) {
	ctx, _ := WithTraceContext(context.Background(), Nop())
	if TraceID(ctx) == "" {
		t.Error("Expected trace id in context")
	}
	// FromContext must return the stored logger rather than the default
	var buf bytes.Buffer
	l := NewWithWriter(&Config{JSONFormat: true}, &buf)
	ctx = NewContext(ctx, l)
	FromContext(ctx).Info().Msg("hello")
	if buf.Len() == 0 {
		t.Error("Expected context logger to be used")
	}
}
