package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" info ", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestNewLogger_ReturnsNonNilLogger(t *testing.T) {
	assert.NotNil(t, NewLogger(slog.LevelInfo))
}

func TestNewTextLogger_ReturnsNonNilLogger(t *testing.T) {
	assert.NotNil(t, NewTextLogger(slog.LevelDebug))
}

func TestNewLoggerWithFormat_AcceptsKnownAndUnknownFormats(t *testing.T) {
	assert.NotNil(t, NewLoggerWithFormat(slog.LevelInfo, "json"))
	assert.NotNil(t, NewLoggerWithFormat(slog.LevelInfo, "text"))
	assert.NotNil(t, NewLoggerWithFormat(slog.LevelInfo, ""))
	assert.NotNil(t, NewLoggerWithFormat(slog.LevelInfo, "yaml"))
}
