package testing

import (
	"errors"
	"fmt"

	"github.com/commonsense-kb/commonsense/matrix"
)

// Source replays a fixed list of transitions and returns matrix.Nothing once
// exhausted.
type Source struct {
	Events []matrix.Event
	Pushed int
}

func NewSource(events ...matrix.Event) *Source {
	return &Source{Events: events}
}

func (s *Source) Next() matrix.Event {
	if len(s.Events) == 0 {
		return matrix.Nothing
	}
	ev := s.Events[0]
	s.Events = s.Events[1:]
	return ev
}

func (s *Source) PushBack(ev matrix.Event) {
	s.Pushed++
	s.Events = append([]matrix.Event{ev}, s.Events...)
}

// Clock is a manually advanced tick counter.
type Clock struct{ T uint32 }

func (c *Clock) Now() uint32 { return c.T }

// ReportCall is one recorded Reporter call.
type ReportCall struct {
	At       uint32
	Keycode  uint8
	Released bool
	Reset    bool
}

func (c ReportCall) String() string {
	switch {
	case c.Reset:
		return fmt.Sprintf("@%d reset", c.At)
	case c.Released:
		return fmt.Sprintf("@%d up %02x", c.At, c.Keycode)
	default:
		return fmt.Sprintf("@%d down %02x", c.At, c.Keycode)
	}
}

// Reporter records report updates, stamped with the clock when one is set.
type Reporter struct {
	Clock *Clock
	Calls []ReportCall
	Fail  bool
}

var ErrReporter = errors.New("reporter failure")

func (r *Reporter) now() uint32 {
	if r.Clock == nil {
		return 0
	}
	return r.Clock.T
}

func (r *Reporter) Update(keycode uint8, released bool) error {
	r.Calls = append(r.Calls, ReportCall{At: r.now(), Keycode: keycode, Released: released})
	if r.Fail {
		return ErrReporter
	}
	return nil
}

func (r *Reporter) Reset() error {
	r.Calls = append(r.Calls, ReportCall{At: r.now(), Reset: true})
	return nil
}

// Keycodes lists the keycodes of recorded updates, key-downs only when down
// is true.
func (r *Reporter) Keycodes(down bool) []uint8 {
	var out []uint8
	for _, c := range r.Calls {
		if c.Reset || (down && c.Released) {
			continue
		}
		out = append(out, c.Keycode)
	}
	return out
}

// Host records raw scancodes sent in setup mode.
type Host struct {
	Sent []matrix.Event
}

func (h *Host) SendScancode(ev matrix.Event) error {
	h.Sent = append(h.Sent, ev)
	return nil
}

// Expansion counts toggles and keypresses.
type Expansion struct {
	Toggles    int
	Keypresses []uint8
}

func (e *Expansion) Toggle() { e.Toggles++ }

func (e *Expansion) Keypress(keycode uint8) { e.Keypresses = append(e.Keypresses, keycode) }
