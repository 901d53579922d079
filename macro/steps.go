package macro

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/commonsense-kb/commonsense/device/keyboard"
)

// Action is the editor-level meaning of a macro step.
type Action uint8

const (
	ActionPress Action = iota + 1
	ActionRelease
	ActionTap
	ActionWait
)

var actionNames = map[Action]string{
	ActionPress:   "press",
	ActionRelease: "release",
	ActionTap:     "tap",
	ActionWait:    "wait",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return fmt.Sprintf("Action(%d)", uint8(a))
}

// ParseAction resolves an action name.
func ParseAction(s string) (Action, error) {
	for a, n := range actionNames {
		if strings.EqualFold(n, s) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown macro action %q", s)
}

// Step is one logical macro step as authored by the user.
type Step struct {
	Action Action
	Delay  uint8 // delay table index
	Key    uint8 // unused for ActionWait
}

// Instruction converts the step to its bytecode instruction.
func (s Step) Instruction() (Instruction, error) {
	switch s.Action {
	case ActionPress:
		return Instruction{Op: OpChangeMods, Delay: s.Delay, Keycode: s.Key}, nil
	case ActionRelease:
		return Instruction{Op: OpChangeMods, Delay: s.Delay, Keycode: s.Key, Release: true}, nil
	case ActionTap:
		return Instruction{Op: OpTypeOneKey, Delay: s.Delay, Keycode: s.Key}, nil
	case ActionWait:
		return Instruction{Op: OpWait, Delay: s.Delay}, nil
	default:
		return Instruction{}, fmt.Errorf("invalid macro action %d", s.Action)
	}
}

// StepOf converts an instruction back to its logical step.
func StepOf(ins Instruction) (Step, error) {
	switch ins.Op {
	case OpTypeOneKey:
		return Step{Action: ActionTap, Delay: ins.Delay, Key: ins.Keycode}, nil
	case OpChangeMods:
		if ins.Release {
			return Step{Action: ActionRelease, Delay: ins.Delay, Key: ins.Keycode}, nil
		}
		return Step{Action: ActionPress, Delay: ins.Delay, Key: ins.Keycode}, nil
	case OpWait:
		return Step{Action: ActionWait, Delay: ins.Delay}, nil
	default:
		return Step{}, ErrUnsupportedStep
	}
}

// EncodeSteps assembles logical steps into a macro body.
func EncodeSteps(steps []Step) ([]byte, error) {
	var body []byte
	for i, s := range steps {
		ins, err := s.Instruction()
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if body, err = EncodeInstruction(body, ins); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}
	return body, nil
}

// DecodeSteps disassembles a macro body into logical steps.
func DecodeSteps(body []byte) ([]Step, error) {
	instructions, err := Disassemble(body)
	if err != nil {
		return nil, err
	}
	steps := make([]Step, 0, len(instructions))
	for i, ins := range instructions {
		s, err := StepOf(ins)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// String renders the step as "<action> [key] [delay]", the form ParseStep reads.
func (s Step) String() string {
	var b strings.Builder
	b.WriteString(s.Action.String())
	if s.Action != ActionWait {
		b.WriteByte(' ')
		b.WriteString(keyboard.Name(s.Key))
	}
	if s.Delay != 0 || s.Action == ActionWait {
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(int(s.Delay)))
	}
	return b.String()
}

// ParseStep parses "press LShift", "tap A 2" or "wait 5".
func ParseStep(line string) (Step, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Step{}, fmt.Errorf("empty macro step")
	}
	action, err := ParseAction(fields[0])
	if err != nil {
		return Step{}, err
	}
	s := Step{Action: action}
	rest := fields[1:]
	if action != ActionWait {
		if len(rest) == 0 {
			return Step{}, fmt.Errorf("%s: missing key", action)
		}
		if s.Key, err = keyboard.Parse(rest[0]); err != nil {
			return Step{}, err
		}
		rest = rest[1:]
	}
	switch len(rest) {
	case 0:
	case 1:
		d, err := strconv.ParseUint(rest[0], 10, 8)
		if err != nil || d > MaxDelayIndex {
			return Step{}, fmt.Errorf("%s: %w: %q", action, ErrDelayRange, rest[0])
		}
		s.Delay = uint8(d)
	default:
		return Step{}, fmt.Errorf("%s: too many fields in %q", action, line)
	}
	return s, nil
}
