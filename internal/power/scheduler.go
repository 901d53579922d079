// Package power runs the controller's foreground loop.
//
// The Scheduler inspects the power state once per iteration and decides
// whether the event pipeline runs, whether the device idles, or whether it
// walks the suspend and resume sequences.
package power

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/commonsense-kb/commonsense/internal/status"
)

// Platform abstracts the MCU facilities the scheduler drives.
type Platform interface {
	// WaitForInterrupt idles until the next timer tick or ctx is done.
	WaitForInterrupt(ctx context.Context)
	StopTimer()
	StartTimer()
	SaveClocks()
	RestoreClocks()
	// Sleep enters low-power sleep until an external wake source fires.
	Sleep(ctx context.Context)
	Delay(d time.Duration)
}

// Scanner controls the matrix scanner.
type Scanner interface {
	Start()
	Nap()
	Wake()
	// ReportMatrix sends raw matrix readouts to the host.
	ReportMatrix()
}

// Pipeline is the event pipeline.
type Pipeline interface {
	Process()
	WakeupPending() bool
}

// Transport runs the USB power routines. CheckPower, Nap and Wake move the
// scheduler to a new state through SetState.
type Transport interface {
	CheckPower()
	SendWakeup()
	Nap()
	Wake()
}

// Companion is the serial link to the companion device.
type Companion interface {
	Nap()
	Wake()
	// Resume sends the resume handshake.
	Resume() error
}

// Housekeeper runs periodic work; elapsed is the number of coalesced ticks.
type Housekeeper interface {
	Tick(elapsed uint32)
}

// Config tunes the scheduler.
type Config struct {
	WatchDivisor uint32        `help:"Ticks between matrix polls while watching for a wakeup key" default:"10" env:"COMMONSENSE_WATCH_DIVISOR"`
	ResumeDelay  time.Duration `help:"Settle time after leaving low-power sleep" default:"50ms" env:"COMMONSENSE_RESUME_DELAY"`
}

// Deps are the collaborators of a Scheduler.
type Deps struct {
	Platform     Platform
	Scanner      Scanner
	Pipeline     Pipeline
	Transport    Transport
	Companion    Companion
	Status       *status.Register
	Housekeepers []Housekeeper
}

// Scheduler is the power state machine.
type Scheduler struct {
	cfg    Config
	clock  *Clock
	deps   Deps
	logger *slog.Logger
	state  atomic.Int32
}

// New creates a scheduler in FullThrottle.
func New(cfg Config, clock *Clock, deps Deps, logger *slog.Logger) *Scheduler {
	if deps.Status == nil {
		deps.Status = &status.Register{}
	}
	return &Scheduler{cfg: cfg, clock: clock, deps: deps, logger: logger}
}

// State returns the current power state.
func (s *Scheduler) State() State { return State(s.state.Load()) }

// SetState changes the power state. Transport power notifications call it
// from outside the foreground loop.
func (s *Scheduler) SetState(st State) {
	if prev := State(s.state.Swap(int32(st))); prev != st {
		s.logger.Debug("power state", "from", prev, "to", st)
	}
}

// Boot prepares the first iteration. A device not configured as a keyboard
// starts in setup mode.
func (s *Scheduler) Boot(asKeyboard bool) {
	s.deps.Status.Force(status.SetupMode, !asKeyboard)
	s.deps.Status.Set(status.OutputEnabled)
	s.SetState(FullThrottle)
	s.deps.Scanner.Start()
}

// Run loops until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler running", "state", s.State())
	for ctx.Err() == nil {
		s.Step(ctx)
	}
	s.logger.Info("scheduler stopped", "state", s.State())
	return nil
}

// Step runs one loop iteration.
func (s *Scheduler) Step(ctx context.Context) {
	switch s.State() {
	case FullThrottle:
		if n := s.clock.Take(); n > 0 {
			for _, h := range s.deps.Housekeepers {
				h.Tick(n)
			}
			switch {
			case s.deps.Status.Test(status.MatrixMonitor):
				s.deps.Scanner.ReportMatrix()
			case s.deps.Status.Test(status.OutputEnabled):
				s.deps.Pipeline.Process()
			}
		}
		s.deps.Platform.WaitForInterrupt(ctx)
	case PreparingToSleep:
		if s.clock.Take() > 0 {
			s.deps.Transport.CheckPower()
		}
	case Sleep:
		s.deps.Platform.WaitForInterrupt(ctx)
	case Watch:
		if s.clock.Pending() > s.cfg.WatchDivisor {
			s.clock.Clear()
			s.deps.Scanner.Start()
			if s.deps.Pipeline.WakeupPending() {
				s.logger.Debug("key pressed while suspended, requesting wakeup")
				s.deps.Transport.SendWakeup()
			}
		}
		s.deps.Platform.WaitForInterrupt(ctx)
	case Suspending:
		s.deps.Transport.Nap()
	case Resuming:
		s.clock.Clear()
		s.deps.Transport.Wake()
	case ShutdownRequest:
		s.shutdown(ctx)
	default:
		// unknown state, stay awake and look again next iteration
	}
}

func (s *Scheduler) shutdown(ctx context.Context) {
	s.logger.Debug("entering low-power sleep")
	s.deps.Scanner.Nap()
	s.deps.Companion.Nap()
	s.deps.Platform.StopTimer()
	s.deps.Platform.SaveClocks()
	s.deps.Platform.Sleep(ctx)
	s.deps.Platform.RestoreClocks()
	s.deps.Platform.Delay(s.cfg.ResumeDelay)
	s.deps.Platform.StartTimer()
	s.deps.Companion.Wake()
	if err := s.deps.Companion.Resume(); err != nil {
		s.logger.Warn("failed to send resume handshake", "error", err)
	}
	s.deps.Scanner.Wake()
	s.SetState(FullThrottle)
	s.logger.Debug("resumed from low-power sleep")
}
