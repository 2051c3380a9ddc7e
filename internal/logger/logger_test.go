package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestToZapLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := toZapLevel(tt.in); got != tt.want {
			t.Fatalf("toZapLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewTraceEnablesDebug(t *testing.T) {
	log := New("error", true)
	if !log.Desugar().Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected debug enabled when trace is set")
	}

	log = New("error", false)
	if log.Desugar().Core().Enabled(zapcore.WarnLevel) {
		t.Fatal("expected warn disabled at error level")
	}
}
