package log_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/commonsense-kb/commonsense/internal/log"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected slog.Level
	}{
		{in: "trace", expected: log.LevelTrace},
		{in: "DEBUG", expected: slog.LevelDebug},
		{in: "", expected: slog.LevelInfo},
		{in: "warn", expected: slog.LevelWarn},
		{in: "error", expected: slog.LevelError},
		{in: "loud", expected: slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, log.ParseLevel(tt.in))
		})
	}
}

func TestHandlerSplitsErrors(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := slog.New(log.NewHandler(&out, &errOut, log.LevelTrace))

	logger.Log(context.Background(), log.LevelTrace, "queued", "keycode", 4)
	logger.Info("hello")
	logger.Error("boom")

	assert.Contains(t, out.String(), "level=TRACE")
	assert.Contains(t, out.String(), "hello")
	assert.NotContains(t, out.String(), "boom")
	assert.Contains(t, errOut.String(), "boom")
	assert.Equal(t, 1, strings.Count(errOut.String(), "\n"))
}

func TestHandlerRespectsLevel(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := slog.New(log.NewHandler(&out, &errOut, slog.LevelInfo))
	logger.Debug("hidden")
	assert.Empty(t, out.String())
}

func TestRawLogger(t *testing.T) {
	var buf bytes.Buffer
	raw := log.NewRaw(&buf)
	raw.Log("keyboard", []byte{0x00, 0x00, 0x04})
	raw.Log("keyboard", nil)

	line := buf.String()
	assert.Equal(t, 1, strings.Count(line, "\n"))
	assert.Contains(t, line, "keyboard")
	assert.Contains(t, line, " 3 bytes: 00 00 04")

	log.NewRaw(nil).Log("serial", []byte{1})
	assert.Equal(t, "0405", log.Hex([]byte{4, 5}))
}
