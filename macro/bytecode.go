// Package macro implements the controller's macro storage and bytecode.
//
// A macro body is a sequence of 1 or 2 byte instructions. The top two bits of
// the first byte select the opcode, the next four bits index the delay table:
//
//	7 6 | 5 4 3 2 | 1 | 0
//	op  | delay   | R | -
//
// TypeOneKey and ChangeMods are followed by a keycode byte. R is the release
// flag of ChangeMods. ModsStack is reserved and executes as a no-op.
package macro

import (
	"errors"
	"fmt"

	"github.com/commonsense-kb/commonsense/device/keyboard"
)

// Opcode selects what an instruction does.
type Opcode uint8

const (
	OpTypeOneKey Opcode = iota // press at now, release after delay
	OpChangeMods               // single press or release, then wait delay
	OpModsStack                // reserved
	OpWait                     // advance the virtual clock
)

const (
	releaseBit = 0x02
	// MaxDelayIndex is the largest delay table index an instruction can hold.
	MaxDelayIndex = 0x0F
)

var (
	ErrTruncated       = errors.New("macro: truncated instruction")
	ErrInvalidKeycode  = errors.New("macro: instruction targets the no-event keycode")
	ErrDelayRange      = errors.New("macro: delay index out of range")
	ErrUnsupportedStep = errors.New("macro: instruction has no step form")
)

func (op Opcode) String() string {
	switch op {
	case OpTypeOneKey:
		return "TypeOneKey"
	case OpChangeMods:
		return "ChangeMods"
	case OpModsStack:
		return "ModsStack"
	case OpWait:
		return "Wait"
	default:
		return fmt.Sprintf("Opcode(%d)", uint8(op))
	}
}

// Instruction is one decoded bytecode instruction.
type Instruction struct {
	Op      Opcode
	Delay   uint8 // delay table index
	Release bool  // ChangeMods direction
	Keycode uint8 // TypeOneKey, ChangeMods
}

// Size returns the encoded width of the instruction.
func (ins Instruction) Size() int {
	switch ins.Op {
	case OpTypeOneKey, OpChangeMods:
		return 2
	default:
		return 1
	}
}

func (ins Instruction) String() string {
	switch ins.Op {
	case OpTypeOneKey:
		return fmt.Sprintf("%s %s d%d", ins.Op, keyboard.Name(ins.Keycode), ins.Delay)
	case OpChangeMods:
		dir := "down"
		if ins.Release {
			dir = "up"
		}
		return fmt.Sprintf("%s %s %s d%d", ins.Op, dir, keyboard.Name(ins.Keycode), ins.Delay)
	default:
		return fmt.Sprintf("%s d%d", ins.Op, ins.Delay)
	}
}

// DecodeInstruction decodes the instruction at the start of body and returns
// it with its width in bytes.
func DecodeInstruction(body []byte) (Instruction, int, error) {
	if len(body) == 0 {
		return Instruction{}, 0, ErrTruncated
	}
	b := body[0]
	ins := Instruction{
		Op:    Opcode(b >> 6),
		Delay: (b >> 2) & MaxDelayIndex,
	}
	switch ins.Op {
	case OpTypeOneKey, OpChangeMods:
		if len(body) < 2 {
			return Instruction{}, 0, ErrTruncated
		}
		ins.Keycode = body[1]
		if ins.Keycode == keyboard.KeyNoEvent {
			return Instruction{}, 0, ErrInvalidKeycode
		}
		ins.Release = ins.Op == OpChangeMods && b&releaseBit != 0
		return ins, 2, nil
	default:
		return ins, 1, nil
	}
}

// EncodeInstruction appends the encoded form of ins to dst.
func EncodeInstruction(dst []byte, ins Instruction) ([]byte, error) {
	if ins.Delay > MaxDelayIndex {
		return dst, ErrDelayRange
	}
	b := uint8(ins.Op)<<6 | ins.Delay<<2
	switch ins.Op {
	case OpChangeMods:
		if ins.Release {
			b |= releaseBit
		}
		fallthrough
	case OpTypeOneKey:
		if ins.Keycode == keyboard.KeyNoEvent {
			return dst, ErrInvalidKeycode
		}
		return append(dst, b, ins.Keycode), nil
	default:
		return append(dst, b), nil
	}
}

// Disassemble decodes a whole body. Decoding stops at the first malformed
// instruction; the instructions before it are returned with the error.
func Disassemble(body []byte) ([]Instruction, error) {
	var out []Instruction
	for off := 0; off < len(body); {
		ins, n, err := DecodeInstruction(body[off:])
		if err != nil {
			return out, fmt.Errorf("offset %d: %w", off, err)
		}
		out = append(out, ins)
		off += n
	}
	return out, nil
}
