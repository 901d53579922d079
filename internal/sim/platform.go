// Package sim emulates the MCU platform on a host: a periodic timer feeding
// the tick counter and interruptible idle and sleep waits.
package sim

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Ticker receives timer interrupts.
type Ticker interface {
	Interrupt()
}

// Config tunes the emulated platform.
type Config struct {
	Tick      time.Duration `help:"Period of the emulated timer interrupt" default:"1ms" env:"COMMONSENSE_TICK"`
	SleepTime time.Duration `help:"Time spent in low-power sleep before the emulated wake source fires (0 waits for a wake event)" default:"250ms" env:"COMMONSENSE_SLEEP_TIME"`
}

// Platform runs the timer goroutine. It is safe for use by the foreground
// loop and the timer concurrently.
type Platform struct {
	cfg    Config
	ticker Ticker
	logger *slog.Logger

	irq  chan struct{}
	wake chan struct{}

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	saved   bool
}

// New creates a stopped platform.
func New(cfg Config, ticker Ticker, logger *slog.Logger) *Platform {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Millisecond
	}
	return &Platform{
		cfg:    cfg,
		ticker: ticker,
		logger: logger,
		irq:    make(chan struct{}, 1),
		wake:   make(chan struct{}, 1),
	}
}

// StartTimer starts the periodic interrupt.
func (p *Platform) StartTimer() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(p.stop, p.done)
}

// StopTimer stops the periodic interrupt and waits for the timer goroutine.
func (p *Platform) StopTimer() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stop, done := p.stop, p.done
	p.mu.Unlock()
	close(stop)
	<-done
}

// Running reports whether the timer is running.
func (p *Platform) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Platform) run(stop, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(p.cfg.Tick)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			p.ticker.Interrupt()
			select {
			case p.irq <- struct{}{}:
			default:
			}
		}
	}
}

// WaitForInterrupt blocks until the next timer interrupt or ctx is done.
func (p *Platform) WaitForInterrupt(ctx context.Context) {
	select {
	case <-p.irq:
	case <-ctx.Done():
	}
}

// SaveClocks records that the clock tree was saved.
func (p *Platform) SaveClocks() {
	p.mu.Lock()
	p.saved = true
	p.mu.Unlock()
	p.logger.Debug("clocks saved")
}

// RestoreClocks restores the saved clock tree.
func (p *Platform) RestoreClocks() {
	p.mu.Lock()
	if !p.saved {
		p.mu.Unlock()
		p.logger.Warn("restoring clocks that were never saved")
		return
	}
	p.saved = false
	p.mu.Unlock()
	p.logger.Debug("clocks restored")
}

// Sleep blocks until the wake source fires or ctx is done.
func (p *Platform) Sleep(ctx context.Context) {
	p.logger.Info("low-power sleep")
	var timeout <-chan time.Time
	if p.cfg.SleepTime > 0 {
		t := time.NewTimer(p.cfg.SleepTime)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case <-p.wake:
	case <-timeout:
	case <-ctx.Done():
	}
	p.logger.Info("woke from low-power sleep")
}

// Wake fires the wake source. It is a no-op when one is already pending.
func (p *Platform) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Platform) Delay(d time.Duration) { time.Sleep(d) }
