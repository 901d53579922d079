// Package transport implements the output links of the controller: the USB
// report sink and the serial companion.
package transport

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/commonsense-kb/commonsense/device"
	"github.com/commonsense-kb/commonsense/device/extrakey"
	"github.com/commonsense-kb/commonsense/device/keyboard"
	"github.com/commonsense-kb/commonsense/internal/log"
	"github.com/commonsense-kb/commonsense/internal/power"
	"github.com/commonsense-kb/commonsense/matrix"
)

var ErrSuspended = errors.New("transport: bus suspended")

// Sender delivers one encoded report to the host.
type Sender interface {
	SendReport(channel string, report []byte) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(channel string, report []byte) error

func (f SenderFunc) SendReport(channel string, report []byte) error { return f(channel, report) }

// Report channel names used in traces and metrics.
const (
	ChannelKeyboard = "keyboard"
	ChannelSystem   = "system"
	ChannelConsumer = "consumer"
	ChannelHost     = "host"
	ChannelSerial   = "serial"
)

// USB is the USB side of the device. It owns the keyboard, system and
// consumer report states, sends every changed report through a Sender and
// runs the bus power routines on behalf of the power scheduler.
type USB struct {
	sender   Sender
	raw      log.RawLogger
	logger   *slog.Logger
	setState func(power.State)
	desc     Descriptors

	keyboard keyboard.InputState
	system   *extrakey.Report
	consumer *extrakey.Report

	// channels whose last send failed, resent on the next tick
	stale map[string]device.ReportBuilder

	suspended atomic.Bool
}

// NewUSB creates a USB sink. setState moves the power scheduler; a nil
// sender only traces reports.
func NewUSB(sender Sender, raw log.RawLogger, setState func(power.State), logger *slog.Logger) *USB {
	if raw == nil {
		raw = log.NewRaw(nil)
	}
	return &USB{
		sender:   sender,
		raw:      raw,
		logger:   logger,
		setState: setState,
		desc:     DefaultDescriptors(),
		system:   extrakey.NewSystem(),
		consumer: extrakey.NewConsumer(),
		stale:    map[string]device.ReportBuilder{},
	}
}

// Keyboard returns the primary keyboard report channel.
func (u *USB) Keyboard() *Channel {
	return &Channel{
		name:   ChannelKeyboard,
		usb:    u,
		report: &u.keyboard,
		update: func(code uint8, released bool) bool {
			if released {
				return u.keyboard.Release(code)
			}
			return u.keyboard.Press(code)
		},
		reset: u.keyboard.Reset,
	}
}

// System returns the system control report channel.
func (u *USB) System() *Channel {
	return &Channel{name: ChannelSystem, usb: u, report: u.system, update: u.system.Update, reset: u.system.Reset}
}

// Consumer returns the consumer control report channel.
func (u *USB) Consumer() *Channel {
	return &Channel{name: ChannelConsumer, usb: u, report: u.consumer, update: u.consumer.Update, reset: u.consumer.Reset}
}

// Descriptors returns the descriptors the device enumerates with.
func (u *USB) Descriptors() Descriptors { return u.desc }

// SetDescriptors replaces the enumeration descriptors.
func (u *USB) SetDescriptors(d Descriptors) { u.desc = d }

// KeyboardState returns a copy of the primary keyboard report state.
func (u *USB) KeyboardState() keyboard.InputState { return u.keyboard }

func (u *USB) send(channel string, rb device.ReportBuilder) error {
	report := rb.BuildReport()
	u.raw.Log(channel, report)
	if u.suspended.Load() {
		u.stale[channel] = rb
		return ErrSuspended
	}
	if u.sender == nil {
		return nil
	}
	if err := u.sender.SendReport(channel, report); err != nil {
		u.stale[channel] = rb
		return err
	}
	delete(u.stale, channel)
	return nil
}

// SendScancode forwards a raw transition to the host while in setup mode.
func (u *USB) SendScancode(ev matrix.Event) error {
	packet := []byte{ev.Flags, ev.Scancode}
	u.raw.Log(ChannelHost, packet)
	if u.sender == nil {
		return nil
	}
	return u.sender.SendReport(ChannelHost, packet)
}

// Tick resends reports whose last transfer failed.
func (u *USB) Tick(uint32) {
	if u.suspended.Load() {
		return
	}
	for channel, rb := range u.stale {
		if err := u.send(channel, rb); err != nil {
			u.logger.Debug("report resend failed", "channel", channel, "error", err)
		}
	}
}

// HostSuspend signals that the host stopped the bus.
func (u *USB) HostSuspend() {
	u.logger.Debug("bus idle, preparing to sleep")
	u.setState(power.PreparingToSleep)
}

// HostResume signals that the host resumed the bus.
func (u *USB) HostResume() {
	u.logger.Debug("bus resume")
	u.setState(power.Resuming)
}

// CheckPower confirms a pending suspend. The bus may have resumed between
// the idle notification and the first tick.
func (u *USB) CheckPower() {
	if u.suspended.Load() {
		u.setState(power.Watch)
		return
	}
	u.setState(power.Suspending)
}

// Nap suspends the USB side and starts watching for a wakeup key.
func (u *USB) Nap() {
	u.suspended.Store(true)
	u.logger.Info("usb suspended")
	u.setState(power.Watch)
}

// SendWakeup signals remote wakeup to the host, if the configuration
// advertises it.
func (u *USB) SendWakeup() {
	if !u.desc.RemoteWakeup() {
		u.logger.Debug("remote wakeup not enabled")
		return
	}
	u.logger.Info("remote wakeup")
	u.setState(power.Resuming)
}

// Wake resumes the USB side.
func (u *USB) Wake() {
	u.suspended.Store(false)
	u.logger.Info("usb resumed")
	u.setState(power.FullThrottle)
}

// Suspended reports whether the USB side is napping.
func (u *USB) Suspended() bool { return u.suspended.Load() }

// Channel is one USB report channel. It satisfies the pipeline's reporter
// contract: Update sends the report only when the state changed.
type Channel struct {
	name   string
	usb    *USB
	report device.ReportBuilder
	update func(code uint8, released bool) bool
	reset  func()
}

func (c *Channel) Name() string { return c.name }

func (c *Channel) Update(code uint8, released bool) error {
	if !c.update(code, released) {
		return nil
	}
	return c.usb.send(c.name, c.report)
}

func (c *Channel) Reset() error {
	c.reset()
	return c.usb.send(c.name, c.report)
}
