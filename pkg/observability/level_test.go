package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected LogLevel
	}{
		{"debug", "debug", DebugLevel},
		{"info", "info", InfoLevel},
		{"warn", "warn", WarnLevel},
		{"warning alias", "warning", WarnLevel},
		{"error", "error", ErrorLevel},
		{"mixed case", "DeBuG", DebugLevel},
		{"unknown defaults to info", "verbose", InfoLevel},
		{"empty defaults to info", "", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Equal(t, "INFO", InfoLevel.String())
	assert.Equal(t, "WARN", WarnLevel.String())
	assert.Equal(t, "ERROR", ErrorLevel.String())
}

func TestParseLevel_RoundTripsThroughString(t *testing.T) {
	for _, level := range []LogLevel{DebugLevel, InfoLevel, WarnLevel, ErrorLevel} {
		assert.Equal(t, level, ParseLevel(level.String()))
	}
}
