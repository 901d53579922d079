package scanner

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/commonsense-kb/commonsense/device/keyboard"
	"github.com/commonsense-kb/commonsense/internal/layer"
	"github.com/commonsense-kb/commonsense/matrix"
)

var ErrNotTerminal = errors.New("scanner: stdin is not a terminal")

const (
	ctrlC = 0x03
	ctrlD = 0x04
)

// Terminal turns keystrokes on a raw-mode terminal into matrix transitions.
// Each character is mapped back to the scancode that produces it on layer 0
// and typed as a press and release, wrapped in Shift when needed.
type Terminal struct {
	in     *os.File
	keys   map[uint8]uint8 // keycode -> scancode
	shift  uint8
	quit   func()
	logger *slog.Logger

	events  chan matrix.Event
	pending []matrix.Event
	state   *term.State
	napping bool
}

// NewTerminal builds a terminal scanner for the given base layer. quit is
// called on Ctrl-C or Ctrl-D.
func NewTerminal(in *os.File, base layer.Map, quit func(), logger *slog.Logger) *Terminal {
	t := &Terminal{
		in:     in,
		keys:   map[uint8]uint8{},
		shift:  matrix.NoKey,
		quit:   quit,
		logger: logger,
		events: make(chan matrix.Event, 256),
	}
	for sc := len(base) - 1; sc >= 0; sc-- {
		code := base[sc]
		if keyboard.IsControl(code) {
			continue
		}
		t.keys[code] = uint8(sc)
		if code == keyboard.KeyLeftShift || (code == keyboard.KeyRightShift && t.shift == matrix.NoKey) {
			t.shift = uint8(sc)
		}
	}
	return t
}

// Open switches the terminal to raw mode and starts reading keystrokes.
func (t *Terminal) Open() error {
	fd := int(t.in.Fd())
	if !term.IsTerminal(fd) {
		return ErrNotTerminal
	}
	st, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	t.state = st
	go t.read(t.in)
	return nil
}

// Close restores the terminal.
func (t *Terminal) Close() error {
	if t.state == nil {
		return nil
	}
	return term.Restore(int(t.in.Fd()), t.state)
}

func (t *Terminal) read(r io.Reader) {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		for _, c := range buf[:n] {
			if c == ctrlC || c == ctrlD {
				t.quit()
				return
			}
			t.Type(c)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.logger.Error("terminal read failed", "error", err)
			}
			t.quit()
			return
		}
	}
}

// Type queues the transitions for one character. It reports false when the
// base layer has no key producing it.
func (t *Terminal) Type(c byte) bool {
	sc, ok := t.keys[keyboard.CharToHID(c)]
	if !ok {
		t.logger.Debug("no key for character", "char", c)
		return false
	}
	shifted := keyboard.NeedsShift(c) && t.shift != matrix.NoKey
	if shifted {
		t.events <- matrix.Press(t.shift)
	}
	t.events <- matrix.Press(sc)
	t.events <- matrix.Release(sc)
	if shifted {
		t.events <- matrix.Release(t.shift)
	}
	t.events <- matrix.AllKeysUp
	return true
}

// Next returns the next transition, or matrix.Nothing.
func (t *Terminal) Next() matrix.Event {
	if t.napping {
		return matrix.Nothing
	}
	if len(t.pending) > 0 {
		ev := t.pending[0]
		t.pending = t.pending[1:]
		return ev
	}
	select {
	case ev := <-t.events:
		return ev
	default:
		return matrix.Nothing
	}
}

// PushBack returns ev to the front of the pending transitions.
func (t *Terminal) PushBack(ev matrix.Event) {
	t.pending = append([]matrix.Event{ev}, t.pending...)
}

func (t *Terminal) Start() { t.napping = false }
func (t *Terminal) Nap()   { t.napping = true }
func (t *Terminal) Wake()  { t.napping = false }

// ReportMatrix logs the number of queued transitions; a terminal has no
// matrix levels to read out.
func (t *Terminal) ReportMatrix() {
	t.logger.Info("matrix readout", "queued", len(t.events)+len(t.pending))
}
