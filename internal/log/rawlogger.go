package log

import (
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"
)

// RawLogger traces the raw bytes sent on an output channel.
type RawLogger interface {
	Log(channel string, data []byte)
}

type rawLogger struct {
	w  io.Writer
	mu sync.Mutex
}

// NewRaw creates a RawLogger writing to w. A nil writer discards everything.
func NewRaw(w io.Writer) RawLogger {
	return &rawLogger{w: w}
}

// Log writes one timestamped line with the channel name and a hex dump.
func (r *rawLogger) Log(channel string, data []byte) {
	if len(data) == 0 || r.w == nil {
		return
	}
	line := fmt.Sprintf("%s %-8s %2d bytes: % x\n",
		time.Now().Format("2006/01/02 15:04:05.000"), channel, len(data), data)

	r.mu.Lock()
	_, _ = io.WriteString(r.w, line)
	r.mu.Unlock()
}

// Hex formats a report for log attributes.
func Hex(data []byte) string {
	return hex.EncodeToString(data)
}
