// Package matrix defines the scancode events produced by the matrix scanner.
package matrix

// Transition flags carried by an Event.
const (
	FlagReleased = 0x80 // key-up transition
	FlagRealKey  = 0x40 // event originates from a physical key, not a macro
)

// NoKey is the scancode sentinel meaning "no key". With FlagReleased set it
// signals that all keys are up.
const NoKey = 0xFF

// Matrix bounds. Scancodes index row*MaxCols+col.
const (
	MaxRows = 8
	MaxCols = 16
	Size    = MaxRows * MaxCols
)

// Event is a single validated key transition.
type Event struct {
	Flags    uint8
	Scancode uint8
}

// Press returns a key-down event for scancode.
func Press(scancode uint8) Event {
	return Event{Scancode: scancode}
}

// Release returns a key-up event for scancode.
func Release(scancode uint8) Event {
	return Event{Flags: FlagReleased, Scancode: scancode}
}

// AllKeysUp is the sentinel emitted once the last held key is released.
var AllKeysUp = Event{Flags: FlagReleased, Scancode: NoKey}

// Nothing is returned by scanners with no pending transition.
var Nothing = Event{Scancode: NoKey}

// Released reports whether the event is a key-up transition.
func (e Event) Released() bool {
	return e.Flags&FlagReleased != 0
}

// IsNoKey reports whether the event carries the "no key" sentinel.
func (e Event) IsNoKey() bool {
	return e.Scancode == NoKey
}

// Scancode returns the scancode for a matrix position.
func Scancode(row, col uint8) uint8 {
	return row*MaxCols + col
}
