package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/goburrow/serial"

	"github.com/commonsense-kb/commonsense/internal/log"
)

// Companion PDU commands.
const (
	PDUKeyDown uint8 = 0x01
	PDUKeyUp   uint8 = 0x02
	PDUReset   uint8 = 0x03
	PDUResume  uint8 = 0x04
)

// PDUSize is the length of one companion PDU.
const PDUSize = 2

// ResumePDU is the handshake sent after leaving low-power sleep.
var ResumePDU = PDU{Command: PDUResume, Data: 0x05}

var ErrNapping = errors.New("transport: companion link napping")

// PDU is one companion link message.
type PDU struct {
	Command uint8
	Data    uint8
}

func (p PDU) MarshalBinary() ([]byte, error) {
	return []byte{p.Command, p.Data}, nil
}

func (p *PDU) UnmarshalBinary(b []byte) error {
	if len(b) != PDUSize {
		return fmt.Errorf("transport: pdu needs %d bytes, got %d", PDUSize, len(b))
	}
	p.Command, p.Data = b[0], b[1]
	return nil
}

// SerialConfig selects the companion serial port.
type SerialConfig struct {
	Port    string        `help:"Serial device of the companion link (disabled when empty)" env:"COMMONSENSE_SERIAL_PORT"`
	Baud    int           `help:"Companion link baud rate" default:"115200" env:"COMMONSENSE_SERIAL_BAUD"`
	Timeout time.Duration `help:"Companion link read/write timeout" default:"100ms" env:"COMMONSENSE_SERIAL_TIMEOUT"`
}

// Companion is the serial link to the companion device. Key updates are
// buffered and flushed on the next tick; the resume handshake goes out
// immediately.
type Companion struct {
	port    io.ReadWriteCloser
	raw     log.RawLogger
	logger  *slog.Logger
	out     []byte
	napping bool
}

// OpenCompanion opens the serial port named in cfg. An empty port returns a
// disconnected companion that discards everything.
func OpenCompanion(cfg SerialConfig, raw log.RawLogger, logger *slog.Logger) (*Companion, error) {
	if cfg.Port == "" {
		return NewCompanion(nil, raw, logger), nil
	}
	port, err := serial.Open(&serial.Config{
		Address:  cfg.Port,
		BaudRate: cfg.Baud,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open companion port %s: %w", cfg.Port, err)
	}
	logger.Info("companion link open", "port", cfg.Port, "baud", cfg.Baud)
	return NewCompanion(port, raw, logger), nil
}

// NewCompanion wraps an already open link. A nil port disconnects it.
func NewCompanion(port io.ReadWriteCloser, raw log.RawLogger, logger *slog.Logger) *Companion {
	if raw == nil {
		raw = log.NewRaw(nil)
	}
	return &Companion{port: port, raw: raw, logger: logger}
}

// Connected reports whether a port is attached.
func (c *Companion) Connected() bool { return c.port != nil }

func (c *Companion) queue(p PDU) error {
	if c.port == nil {
		return nil
	}
	if c.napping {
		return ErrNapping
	}
	b, _ := p.MarshalBinary()
	c.out = append(c.out, b...)
	return nil
}

// Update queues a key transition for the companion.
func (c *Companion) Update(code uint8, released bool) error {
	cmd := PDUKeyDown
	if released {
		cmd = PDUKeyUp
	}
	return c.queue(PDU{Command: cmd, Data: code})
}

// Reset queues the release-all command.
func (c *Companion) Reset() error {
	return c.queue(PDU{Command: PDUReset})
}

// Flush writes the queued PDUs.
func (c *Companion) Flush() error {
	if c.port == nil || len(c.out) == 0 {
		return nil
	}
	c.raw.Log(ChannelSerial, c.out)
	_, err := c.port.Write(c.out)
	c.out = c.out[:0]
	return err
}

// Tick flushes the buffered PDUs.
func (c *Companion) Tick(uint32) {
	if c.napping {
		return
	}
	if err := c.Flush(); err != nil {
		c.logger.Warn("companion write failed", "error", err)
	}
}

// Nap suspends the link. Buffered PDUs are kept until Wake.
func (c *Companion) Nap() { c.napping = true }

// Wake re-enables the link.
func (c *Companion) Wake() { c.napping = false }

// Resume flushes pending updates and sends the resume handshake.
func (c *Companion) Resume() error {
	if err := c.queue(ResumePDU); err != nil {
		return err
	}
	return c.Flush()
}

// Close closes the port.
func (c *Companion) Close() error {
	if c.port == nil {
		return nil
	}
	return c.port.Close()
}
