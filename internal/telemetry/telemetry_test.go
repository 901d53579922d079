package telemetry_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commonsense-kb/commonsense/device/keyboard"
	"github.com/commonsense-kb/commonsense/internal/telemetry"
)

type queueStats struct {
	n       int
	dropped uint64
}

func (q queueStats) Len() int        { return q.n }
func (q queueStats) Dropped() uint64 { return q.dropped }

func TestChannel(t *testing.T) {
	tests := []struct {
		code     uint8
		expected string
	}{
		{code: keyboard.KeyA, expected: "keyboard"},
		{code: keyboard.KeyLeftShift, expected: "modifier"},
		{code: keyboard.KeySystemPower, expected: "system"},
		{code: keyboard.KeyMediaMute, expected: "consumer"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, telemetry.Channel(tt.code))
		})
	}
}

func TestExpansionMetrics(t *testing.T) {
	e := telemetry.New()
	e.Observe(queueStats{n: 3, dropped: 2})

	e.Keypress(keyboard.KeyA)
	e.Keypress(keyboard.KeyB)
	e.Keypress(keyboard.KeyMediaMute)
	e.Toggle()
	assert.True(t, e.Enabled())
	e.Tick(5)

	expected := `
# HELP commonsense_keypresses_total Key-down reports emitted, by report channel.
# TYPE commonsense_keypresses_total counter
commonsense_keypresses_total{channel="consumer"} 1
commonsense_keypresses_total{channel="keyboard"} 2
`
	require.NoError(t, testutil.GatherAndCompare(e.Registry(), strings.NewReader(expected), "commonsense_keypresses_total"))

	expected = `
# HELP commonsense_queue_dropped Entries dropped by the output queue overflow policy.
# TYPE commonsense_queue_dropped gauge
commonsense_queue_dropped 2
# HELP commonsense_queue_pending Entries waiting in the output queue.
# TYPE commonsense_queue_pending gauge
commonsense_queue_pending 3
`
	require.NoError(t, testutil.GatherAndCompare(e.Registry(), strings.NewReader(expected),
		"commonsense_queue_dropped", "commonsense_queue_pending"))

	e.Toggle()
	assert.False(t, e.Enabled())
	n, err := testutil.GatherAndCount(e.Registry(), "commonsense_expansion_toggles_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHandler(t *testing.T) {
	e := telemetry.New()
	e.Tick(7)

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "commonsense_ticks_total 7")
}
