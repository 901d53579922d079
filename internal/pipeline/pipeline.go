// Package pipeline turns scancode transitions into report updates.
//
// Each Process call handles at most one transition from the scanner, resolving
// it through the layer stack and either queueing the keycode or playing a
// macro, then drains the output queue once. All state lives in the Pipeline
// value and is owned by the caller's loop.
package pipeline

import (
	"log/slog"

	"github.com/commonsense-kb/commonsense/device/keyboard"
	"github.com/commonsense-kb/commonsense/internal/block"
	"github.com/commonsense-kb/commonsense/internal/layer"
	"github.com/commonsense-kb/commonsense/internal/queue"
	"github.com/commonsense-kb/commonsense/internal/status"
	"github.com/commonsense-kb/commonsense/macro"
	"github.com/commonsense-kb/commonsense/matrix"
)

// Source yields scancode transitions, one per call.
type Source interface {
	// Next returns the next transition, or matrix.Nothing.
	Next() matrix.Event
	// PushBack returns ev to the front of the source.
	PushBack(ev matrix.Event)
}

// Clock returns the tick counter in milliseconds.
type Clock interface {
	Now() uint32
}

// Host receives raw transitions while the device is in setup mode.
type Host interface {
	SendScancode(ev matrix.Event) error
}

// Reporter applies emitted keycodes to one report channel.
type Reporter interface {
	Update(keycode uint8, released bool) error
	Reset() error
}

// Expansion is the auxiliary output hook.
type Expansion interface {
	Toggle()
	Keypress(keycode uint8)
}

// Direction selects where keyboard-range codes go.
type Direction int

const (
	DirectionUSB Direction = iota
	DirectionSerial
)

func (d Direction) String() string {
	if d == DirectionSerial {
		return "serial"
	}
	return "usb"
}

// Outputs groups the report channels. Nil channels are skipped.
type Outputs struct {
	Keyboard Reporter
	Serial   Reporter
	System   Reporter
	Consumer Reporter
}

// Deps are the collaborators a Pipeline works with.
type Deps struct {
	Source    Source
	Clock     Clock
	Status    *status.Register
	Host      Host
	Outputs   Outputs
	Expansion Expansion
	Direction Direction
}

// Pipeline is the event pipeline context.
type Pipeline struct {
	deps   Deps
	logger *slog.Logger

	resolver *layer.Resolver
	macros   *macro.Table
	delay    macro.DelayFunc
	queue    *queue.Queue

	prevKey     uint8
	prevKeyTime uint32
}

// New builds a pipeline over the configuration in b.
func New(b *block.Block, q *queue.Queue, deps Deps, logger *slog.Logger) *Pipeline {
	if deps.Status == nil {
		deps.Status = &status.Register{}
	}
	if deps.Expansion == nil {
		deps.Expansion = nopExpansion{}
	}
	p := &Pipeline{
		deps:     deps,
		logger:   logger,
		resolver: layer.New(nil, nil),
		queue:    q,
	}
	p.Apply(b)
	return p
}

// Apply swaps in a new configuration block. Layer state is cleared; pending
// queue entries are kept.
func (p *Pipeline) Apply(b *block.Block) {
	p.resolver.Load(b.LayerMaps(), b.Conditions)
	p.macros = b.Macros
	p.delay = b.Delay
	p.queue.SetCooldown(b.Delay(block.DelayCooldown))
	p.prevKey = keyboard.KeyNoEvent
}

// Reset clears layer state, pending output and held keys on every channel.
func (p *Pipeline) Reset() {
	p.resolver.Reset()
	p.queue.Reset()
	p.prevKey = keyboard.KeyNoEvent
	p.resetReports()
}

// Layer exposes the resolver state.
func (p *Pipeline) Layer() *layer.Resolver { return p.resolver }

// Queue exposes the output queue.
func (p *Pipeline) Queue() *queue.Queue { return p.queue }

// SetDirection routes keyboard-range codes to the USB or serial report.
func (p *Pipeline) SetDirection(d Direction) { p.deps.Direction = d }

// Process handles one scancode transition and drains the queue once.
func (p *Pipeline) Process() {
	p.processKey()
	p.queue.Drain(p.deps.Clock.Now(), p)
}

// WakeupPending consumes one transition and reports whether it was a real
// key-down.
func (p *Pipeline) WakeupPending() bool {
	ev := p.deps.Source.Next()
	return !ev.IsNoKey() && !ev.Released()
}

func (p *Pipeline) processKey() {
	ev := p.deps.Source.Next()
	if ev.IsNoKey() {
		if !ev.Released() {
			return
		}
		if !p.queue.Empty() {
			p.deps.Source.PushBack(ev)
			return
		}
		p.logger.Debug("all keys up, resetting reports")
		p.resetReports()
		return
	}

	if p.deps.Status.SetupMode() {
		if p.deps.Host != nil {
			if err := p.deps.Host.SendScancode(ev); err != nil {
				p.logger.Warn("failed to report scancode", "scancode", ev.Scancode, "error", err)
			}
		}
		return
	}

	code := p.resolver.Resolve(ev.Scancode)
	if keyboard.IsControl(code) {
		if code == keyboard.KeyExpToggle && !ev.Released() {
			p.deps.Expansion.Toggle()
		}
		return
	}
	if keyboard.IsLayerMod(code) {
		if p.resolver.Update(ev.Flags, code) {
			p.logger.Debug("layer changed", "mods", p.resolver.Mods(), "layer", p.resolver.Current())
		}
		return
	}

	now := p.deps.Clock.Now()
	flags := ev.Flags | matrix.FlagRealKey
	rec, play := p.macros.Lookup(code, flags)
	enqueue := !play
	if play && ev.Released() && rec.IsTap() {
		// the press already went out unmodified, so its release must follow
		enqueue = true
		if code != p.prevKey || now-p.prevKeyTime > p.delay(block.DelayTapDeadline) {
			play = false
		}
	}
	p.prevKey = code
	p.prevKeyTime = now

	if enqueue {
		if err := p.queue.Schedule(now, flags, code); err != nil {
			p.logger.Warn("dropping key event", "keycode", keyboard.Name(code), "error", err)
		}
	}
	if play {
		if _, err := macro.Play(rec.Body, now, p.delay, p.queue); err != nil {
			p.logger.Warn("macro aborted", "trigger", keyboard.Name(code), "error", err)
		}
	}
}

// Dispatch routes an emitted queue entry to its report channel. Only key-downs
// on a connected report channel restart the cooldown.
func (p *Pipeline) Dispatch(e queue.Entry) bool {
	released := e.Released()
	var out Reporter
	switch {
	case keyboard.IsControl(e.Keycode):
		// toggles on key-down only, so a full press flips the mode once
		if !released {
			p.deps.Expansion.Toggle()
		}
		return false
	case keyboard.IsConsumer(e.Keycode):
		out = p.deps.Outputs.Consumer
	case keyboard.IsSystem(e.Keycode):
		out = p.deps.Outputs.System
	case p.deps.Direction == DirectionSerial:
		out = p.deps.Outputs.Serial
	default:
		out = p.deps.Outputs.Keyboard
	}
	if out == nil {
		return false
	}
	if err := out.Update(e.Keycode, released); err != nil {
		p.logger.Warn("report update failed", "keycode", keyboard.Name(e.Keycode), "error", err)
	}
	if released {
		return false
	}
	p.deps.Expansion.Keypress(e.Keycode)
	return true
}

func (p *Pipeline) resetReports() {
	for _, out := range []Reporter{p.deps.Outputs.Keyboard, p.deps.Outputs.System, p.deps.Outputs.Consumer, p.deps.Outputs.Serial} {
		if out == nil {
			continue
		}
		if err := out.Reset(); err != nil {
			p.logger.Warn("report reset failed", "error", err)
		}
	}
}

type nopExpansion struct{}

func (nopExpansion) Toggle()        {}
func (nopExpansion) Keypress(uint8) {}
