// Package extrakey builds the single-usage HID reports used for system
// control (power, sleep, wake) and consumer (media) keys.
package extrakey

import (
	"encoding/binary"

	"github.com/commonsense-kb/commonsense/device/keyboard"
)

// Report IDs on the shared keyboard endpoint.
const (
	ReportIDSystem   = 2
	ReportIDConsumer = 3
)

// ReportSize is the length of an extra-key report: id + 16-bit usage.
const ReportSize = 3

var systemUsages = map[uint8]uint16{
	keyboard.KeySystemPower: 0x0081, // System Power Down
	keyboard.KeySystemSleep: 0x0082, // System Sleep
	keyboard.KeySystemWake:  0x0083, // System Wake Up
}

var consumerUsages = map[uint8]uint16{
	keyboard.KeyMediaPlayPause: 0x00CD,
	keyboard.KeyMediaStop:      0x00B7,
	keyboard.KeyMediaMute:      0x00E2,
	keyboard.KeyMediaNext:      0x00B5,
	keyboard.KeyMediaPrevious:  0x00B6,
	keyboard.KeyMediaVolumeUp:  0x00E9,
	keyboard.KeyMediaVolumeDn:  0x00EA,
	keyboard.KeyMediaEject:     0x00B8,
	keyboard.KeyMediaCalc:      0x0192, // AL Calculator
	keyboard.KeyMediaBrowser:   0x0223, // AC Home
	keyboard.KeyMediaMail:      0x018A, // AL Email Reader
}

// SystemUsage maps a controller keycode to a Generic Desktop system usage.
func SystemUsage(code uint8) (uint16, bool) {
	u, ok := systemUsages[code]
	return u, ok
}

// ConsumerUsage maps a controller keycode to a Consumer page usage.
func ConsumerUsage(code uint8) (uint16, bool) {
	u, ok := consumerUsages[code]
	return u, ok
}

// Report is the state of one extra-key report. Only one usage can be active;
// a release clears it only if it matches the released key.
type Report struct {
	ID    uint8
	Usage uint16
	usage func(uint8) (uint16, bool)
}

// NewSystem returns an empty system control report.
func NewSystem() *Report {
	return &Report{ID: ReportIDSystem, usage: SystemUsage}
}

// NewConsumer returns an empty consumer control report.
func NewConsumer() *Report {
	return &Report{ID: ReportIDConsumer, usage: ConsumerUsage}
}

// Update applies a press or release of code. It reports whether the usage
// changed; unmapped codes never change the report.
func (r *Report) Update(code uint8, released bool) bool {
	u, ok := r.usage(code)
	if !ok {
		return false
	}
	if released {
		if r.Usage != u {
			return false
		}
		r.Usage = 0
		return true
	}
	if r.Usage == u {
		return false
	}
	r.Usage = u
	return true
}

// Reset clears the active usage.
func (r *Report) Reset() {
	r.Usage = 0
}

// BuildReport encodes the report as [id][usage lo][usage hi].
func (r *Report) BuildReport() []byte {
	b := make([]byte, ReportSize)
	b[0] = r.ID
	binary.LittleEndian.PutUint16(b[1:], r.Usage)
	return b
}
