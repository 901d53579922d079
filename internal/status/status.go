// Package status holds the device status register and the host commands the
// controller core reacts to.
package status

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// Bit is one flag of the status register.
type Bit uint32

const (
	SetupMode     Bit = 1 << iota // raw scancodes go to the host, nothing is typed
	MatrixMonitor                 // raw matrix readouts replace the pipeline
	OutputEnabled                 // the pipeline runs
)

func (b Bit) String() string {
	switch b {
	case SetupMode:
		return "setup"
	case MatrixMonitor:
		return "matrix-monitor"
	case OutputEnabled:
		return "output"
	default:
		return fmt.Sprintf("Bit(%#x)", uint32(b))
	}
}

// Register is safe to read from the scheduler while the host link writes it.
type Register struct {
	bits atomic.Uint32
}

// Set turns b on.
func (r *Register) Set(b Bit) { r.bits.Or(uint32(b)) }

// Clear turns b off.
func (r *Register) Clear(b Bit) { r.bits.And(^uint32(b)) }

// Force sets or clears b.
func (r *Register) Force(b Bit, on bool) {
	if on {
		r.Set(b)
	} else {
		r.Clear(b)
	}
}

// Test reports whether b is on.
func (r *Register) Test(b Bit) bool { return Bit(r.bits.Load())&b != 0 }

// SetupMode reports whether setup mode is on.
func (r *Register) SetupMode() bool { return r.Test(SetupMode) }

// Bits returns the raw register value.
func (r *Register) Bits() Bit { return Bit(r.bits.Load()) }

// PacketSize is the size of a host command packet.
const PacketSize = 64

// Opcode selects a host command.
type Opcode uint8

const (
	CmdGetStatus      Opcode = 0x01
	CmdEmergencyStop  Opcode = 0x02
	CmdEnterBoot      Opcode = 0x03
	CmdUploadConfig   Opcode = 0x04
	CmdDownloadConfig Opcode = 0x05
	CmdCommit         Opcode = 0x06
	CmdMatrixMonitor  Opcode = 0x07
	CmdRollback       Opcode = 0x08
)

var (
	ErrNotHandled  = errors.New("status: command belongs to the configuration link")
	ErrPacketShort = errors.New("status: short command packet")
)

// Command is a decoded host packet.
type Command struct {
	Op      Opcode
	Payload []byte
}

// ParseCommand decodes a host packet.
func ParseCommand(packet []byte) (Command, error) {
	if len(packet) < 2 {
		return Command{}, ErrPacketShort
	}
	if len(packet) > PacketSize {
		packet = packet[:PacketSize]
	}
	return Command{Op: Opcode(packet[0]), Payload: packet[1:]}, nil
}

// Apply executes cmd against the register. Only the matrix monitor switch is
// handled here; everything else returns ErrNotHandled.
func (r *Register) Apply(cmd Command) error {
	switch cmd.Op {
	case CmdMatrixMonitor:
		r.Force(MatrixMonitor, cmd.Payload[0] != 0)
		return nil
	default:
		return fmt.Errorf("%w: opcode 0x%02X", ErrNotHandled, uint8(cmd.Op))
	}
}
