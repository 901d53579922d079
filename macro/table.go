package macro

import (
	"errors"
	"fmt"

	"github.com/commonsense-kb/commonsense/matrix"
)

// Flags describe when a record triggers.
type Flags uint8

const (
	// OnKeyUp triggers on release. Equal to matrix.FlagReleased so lookups can
	// compare the event flags directly.
	OnKeyUp Flags = matrix.FlagReleased
	// Tap triggers only on a quick press and release. Implies OnKeyUp.
	Tap Flags = 0x40
)

// Terminator marks the end of the stored table (erased flash).
const Terminator = 0xFF

const (
	recordHeaderSize = 3 // keycode, flags, body length
	maxBodySize      = 0xFF
)

var (
	ErrTableTruncated = errors.New("macro: record overruns table")
	ErrTableFull      = errors.New("macro: table does not fit the macro area")
	ErrBodyTooLong    = errors.New("macro: body longer than 255 bytes")
	ErrDuplicate      = errors.New("macro: activation already taken")
	ErrTapOrder       = errors.New("macro: tap record after non-tap record of the same key")
	ErrReservedKey    = errors.New("macro: trigger keycode collides with the table terminator")
)

// Record is one stored macro.
type Record struct {
	Keycode uint8
	Flags   Flags
	Body    []byte
}

// IsTap reports whether the record is a tap macro.
func (r Record) IsTap() bool { return r.Flags&Tap != 0 }

// OnRelease reports whether the record triggers on key-up.
func (r Record) OnRelease() bool { return r.Flags&OnKeyUp != 0 }

// Trigger names the activation for display.
func (r Record) Trigger() string {
	switch {
	case r.IsTap():
		return "tap"
	case r.OnRelease():
		return "release"
	default:
		return "press"
	}
}

// ParseTrigger maps a trigger name to record flags.
func ParseTrigger(s string) (Flags, error) {
	switch s {
	case "press", "":
		return 0, nil
	case "release":
		return OnKeyUp, nil
	case "tap":
		return Tap | OnKeyUp, nil
	default:
		return 0, fmt.Errorf("unknown macro trigger %q", s)
	}
}

// Table is the ordered macro collection. Order matters: lookup returns the
// first match, so tap records precede non-tap records of the same keycode.
type Table struct {
	records []Record
}

// ParseTable reads records from a raw macro area until the terminator byte or
// the end of the area.
func ParseTable(raw []byte) (*Table, error) {
	t := &Table{}
	ptr := 0
	for ptr < len(raw) && raw[ptr] != Terminator {
		if ptr+recordHeaderSize > len(raw) {
			return t, fmt.Errorf("offset %d: %w", ptr, ErrTableTruncated)
		}
		n := int(raw[ptr+2])
		end := ptr + recordHeaderSize + n
		if end > len(raw) {
			return t, fmt.Errorf("offset %d: %w", ptr, ErrTableTruncated)
		}
		body := make([]byte, n)
		copy(body, raw[ptr+recordHeaderSize:end])
		t.records = append(t.records, Record{
			Keycode: raw[ptr],
			Flags:   Flags(raw[ptr+1]),
			Body:    body,
		})
		ptr = end
	}
	return t, nil
}

// Len returns the number of records.
func (t *Table) Len() int { return len(t.records) }

// Size returns the encoded size of the records, without the terminator.
func (t *Table) Size() int {
	n := 0
	for _, r := range t.records {
		n += recordHeaderSize + len(r.Body)
	}
	return n
}

// Records returns the records in lookup order.
func (t *Table) Records() []Record {
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// Lookup returns the first record for keycode whose key-up trigger matches the
// released bit of flags.
func (t *Table) Lookup(keycode uint8, flags uint8) (Record, bool) {
	if t == nil {
		return Record{}, false
	}
	for _, r := range t.records {
		if r.Keycode == keycode && flags&matrix.FlagReleased == uint8(r.Flags&OnKeyUp) {
			return r, true
		}
	}
	return Record{}, false
}

// Insert adds a record. Tap records go in front of the first non-tap record of
// the same keycode, everything else is appended.
func (t *Table) Insert(r Record) error {
	if r.IsTap() {
		r.Flags |= OnKeyUp
	}
	if r.Keycode == Terminator {
		return ErrReservedKey
	}
	if len(r.Body) > maxBodySize {
		return ErrBodyTooLong
	}
	for _, m := range t.records {
		if m.Keycode == r.Keycode && m.Flags == r.Flags {
			return fmt.Errorf("%w: key 0x%02X %s", ErrDuplicate, r.Keycode, r.Trigger())
		}
	}
	if r.IsTap() {
		for i, m := range t.records {
			if m.Keycode == r.Keycode && !m.IsTap() {
				t.records = append(t.records, Record{})
				copy(t.records[i+1:], t.records[i:])
				t.records[i] = r
				return nil
			}
		}
	}
	t.records = append(t.records, r)
	return nil
}

// Validate checks the ordering and uniqueness rules lookups depend on.
func (t *Table) Validate() error {
	var errs []error
	nonTapSeen := map[uint8]bool{}
	activation := map[[2]uint8]bool{}
	for i, r := range t.records {
		if r.Keycode == Terminator {
			errs = append(errs, fmt.Errorf("record %d: %w", i, ErrReservedKey))
		}
		key := [2]uint8{r.Keycode, uint8(r.Flags)}
		if activation[key] {
			errs = append(errs, fmt.Errorf("record %d: %w", i, ErrDuplicate))
		}
		activation[key] = true
		if r.IsTap() && nonTapSeen[r.Keycode] {
			errs = append(errs, fmt.Errorf("record %d: %w", i, ErrTapOrder))
		}
		if !r.IsTap() {
			nonTapSeen[r.Keycode] = true
		}
		if _, err := Disassemble(r.Body); err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Encode serializes the table into an area of size bytes. Unused space is
// filled with the terminator.
func (t *Table) Encode(size int) ([]byte, error) {
	out := make([]byte, 0, size)
	for _, r := range t.records {
		if len(r.Body) > maxBodySize {
			return nil, ErrBodyTooLong
		}
		out = append(out, r.Keycode, uint8(r.Flags), uint8(len(r.Body)))
		out = append(out, r.Body...)
	}
	if len(out) > size {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrTableFull, len(out), size)
	}
	for len(out) < size {
		out = append(out, Terminator)
	}
	return out, nil
}
