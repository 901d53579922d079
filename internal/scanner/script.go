// Package scanner provides matrix scanners for running the controller core on
// a host: a scripted scenario player and an interactive terminal scanner.
package scanner

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	yaml "gopkg.in/yaml.v3"

	"github.com/commonsense-kb/commonsense/matrix"
)

// Step is one scripted action. Exactly one of Down, Up, Command or Power is
// set. Down and Up name a matrix position as [row, col].
type Step struct {
	At      uint32  `yaml:"at"`
	Down    []uint8 `yaml:"down,omitempty,flow"`
	Up      []uint8 `yaml:"up,omitempty,flow"`
	Command []int   `yaml:"command,omitempty,flow"`
	Power   string  `yaml:"power,omitempty"`
}

// Scenario is a timed script of key transitions and host actions.
type Scenario struct {
	Steps []Step `yaml:"steps"`
}

var ErrBadStep = errors.New("scanner: step must set exactly one of down, up, command, power")

// LoadScenario reads a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a YAML scenario. Steps are ordered by
// time, keeping the file order for equal times.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	for i, st := range sc.Steps {
		n := 0
		for _, set := range []bool{st.Down != nil, st.Up != nil, st.Command != nil, st.Power != ""} {
			if set {
				n++
			}
		}
		if n != 1 {
			return nil, fmt.Errorf("step %d: %w", i, ErrBadStep)
		}
		for _, pos := range [][]uint8{st.Down, st.Up} {
			if pos == nil {
				continue
			}
			if len(pos) != 2 || pos[0] >= matrix.MaxRows || pos[1] >= matrix.MaxCols {
				return nil, fmt.Errorf("step %d: invalid matrix position %v", i, pos)
			}
		}
	}
	sort.SliceStable(sc.Steps, func(i, j int) bool { return sc.Steps[i].At < sc.Steps[j].At })
	return &sc, nil
}

// Clock supplies the current tick.
type Clock interface {
	Now() uint32
}

// Hooks receive the non-key actions of a scenario.
type Hooks struct {
	Command func(packet []byte)
	Power   func(state string)
}

// Script plays a Scenario as a matrix scanner. Transitions become visible once
// the clock reaches their time. Releasing the last held key is followed by the
// all-keys-up sentinel.
type Script struct {
	steps   []Step
	clock   Clock
	hooks   Hooks
	logger  *slog.Logger
	pending []matrix.Event
	held    map[uint8]bool
	napping bool
}

// NewScript creates a scanner over sc.
func NewScript(sc *Scenario, clock Clock, hooks Hooks, logger *slog.Logger) *Script {
	return &Script{
		steps:  append([]Step(nil), sc.Steps...),
		clock:  clock,
		hooks:  hooks,
		logger: logger,
		held:   map[uint8]bool{},
	}
}

// Next returns the oldest pending transition, or matrix.Nothing.
func (s *Script) Next() matrix.Event {
	if s.napping {
		return matrix.Nothing
	}
	s.poll()
	if len(s.pending) == 0 {
		return matrix.Nothing
	}
	ev := s.pending[0]
	s.pending = s.pending[1:]
	return ev
}

// PushBack returns ev to the front of the pending transitions.
func (s *Script) PushBack(ev matrix.Event) {
	s.pending = append([]matrix.Event{ev}, s.pending...)
}

// Done reports whether every step was played and consumed.
func (s *Script) Done() bool {
	return len(s.steps) == 0 && len(s.pending) == 0
}

func (s *Script) Start() { s.napping = false }
func (s *Script) Nap()   { s.napping = true }
func (s *Script) Wake()  { s.napping = false }

// ReportMatrix logs the held matrix positions.
func (s *Script) ReportMatrix() {
	s.poll()
	held := make([]uint8, 0, len(s.held))
	for sc := range s.held {
		held = append(held, sc)
	}
	sort.Slice(held, func(i, j int) bool { return held[i] < held[j] })
	s.logger.Info("matrix readout", "held", held)
}

// poll moves due steps into the pending transitions.
func (s *Script) poll() {
	now := s.clock.Now()
	for len(s.steps) > 0 && int32(now-s.steps[0].At) >= 0 {
		st := s.steps[0]
		s.steps = s.steps[1:]
		switch {
		case st.Down != nil:
			sc := matrix.Scancode(st.Down[0], st.Down[1])
			s.held[sc] = true
			s.pending = append(s.pending, matrix.Press(sc))
		case st.Up != nil:
			sc := matrix.Scancode(st.Up[0], st.Up[1])
			delete(s.held, sc)
			s.pending = append(s.pending, matrix.Release(sc))
			if len(s.held) == 0 {
				s.pending = append(s.pending, matrix.AllKeysUp)
			}
		case st.Command != nil:
			packet := make([]byte, len(st.Command))
			for i, b := range st.Command {
				packet[i] = byte(b)
			}
			if s.hooks.Command != nil {
				s.hooks.Command(packet)
			}
		case st.Power != "":
			if s.hooks.Power != nil {
				s.hooks.Power(st.Power)
			}
		}
	}
}
