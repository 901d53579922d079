package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/commonsense-kb/commonsense/internal/block"
	"github.com/commonsense-kb/commonsense/internal/log"
	"github.com/commonsense-kb/commonsense/internal/pipeline"
	"github.com/commonsense-kb/commonsense/internal/power"
	"github.com/commonsense-kb/commonsense/internal/queue"
	"github.com/commonsense-kb/commonsense/internal/scanner"
	"github.com/commonsense-kb/commonsense/internal/sim"
	"github.com/commonsense-kb/commonsense/internal/status"
	"github.com/commonsense-kb/commonsense/internal/telemetry"
	"github.com/commonsense-kb/commonsense/internal/transport"
)

// Runner runs the controller core against an emulated platform.
type Runner struct {
	Keymap    string `arg:"" help:"Keymap source (yaml, toml, json) or block image" type:"existingfile"`
	Script    string `help:"Scenario to play instead of reading keys from the terminal" type:"existingfile"`
	Keyboard  bool   `help:"Boot configured as a keyboard (setup mode off)" default:"true" negatable:"" env:"COMMONSENSE_KEYBOARD"`
	Direction string `help:"Report channel for keyboard codes" enum:"usb,serial" default:"usb" env:"COMMONSENSE_DIRECTION"`
	QueueSize int    `help:"Output queue capacity" default:"64" env:"COMMONSENSE_QUEUE_SIZE"`
	Overflow  string `help:"Output queue overflow policy" enum:"reject,drop-oldest" default:"reject" env:"COMMONSENSE_OVERFLOW"`

	Power    power.Config           `embed:"" prefix:"power."`
	Platform sim.Config             `embed:"" prefix:"sim."`
	Serial   transport.SerialConfig `embed:"" prefix:"serial."`
	Metrics  telemetry.Config       `embed:"" prefix:"metrics."`
}

// matrixScanner is what both the pipeline and the scheduler need from a scanner.
type matrixScanner interface {
	pipeline.Source
	power.Scanner
}

// Run is called by Kong when the run command is executed.
func (r *Runner) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return r.Start(ctx, logger, rawLogger)
}

// Start wires the core and runs the scheduler until ctx is done or the
// scenario has been played out.
func (r *Runner) Start(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b, raw, err := block.Load(r.Keymap)
	if err != nil {
		return err
	}
	logger.Info("configuration loaded", "keymap", r.Keymap, "fingerprint", block.Fingerprint(raw),
		"matrix", fmt.Sprintf("%dx%d", b.Rows, b.Cols), "macros", b.Macros.Len())

	policy := queue.Reject
	if r.Overflow == "drop-oldest" {
		policy = queue.DropOldest
	}
	direction := pipeline.DirectionUSB
	if r.Direction == "serial" {
		if r.Serial.Port == "" {
			return errors.New("--direction serial needs --serial.port")
		}
		direction = pipeline.DirectionSerial
	}

	clock := &power.Clock{}
	reg := &status.Register{}
	q := queue.New(r.QueueSize, policy)
	tele := telemetry.New()
	tele.Observe(q)
	plat := sim.New(r.Platform, clock, logger)

	var sched *power.Scheduler
	setState := func(st power.State) { sched.SetState(st) }

	usb := transport.NewUSB(transport.SenderFunc(func(channel string, report []byte) error {
		logger.Log(ctx, log.LevelTrace, "report", "channel", channel, "data", log.Hex(report))
		return nil
	}), rawLogger, setState, logger)
	desc := usb.Descriptors()
	logger.Debug("usb descriptors", "device", log.Hex(desc.Device.Bytes()),
		"configuration", log.Hex(desc.Configuration.Bytes()), "remote-wakeup", desc.RemoteWakeup())

	comp, err := transport.OpenCompanion(r.Serial, rawLogger, logger)
	if err != nil {
		return err
	}
	defer func() { _ = comp.Close() }()

	hooks := scanner.Hooks{
		Command: func(packet []byte) {
			cmd, err := status.ParseCommand(packet)
			if err == nil {
				err = reg.Apply(cmd)
			}
			if err != nil {
				logger.Warn("host command ignored", "packet", log.Hex(packet), "error", err)
			}
		},
		Power: func(event string) {
			switch event {
			case "suspend":
				usb.HostSuspend()
			case "resume":
				usb.HostResume()
			case "wake":
				plat.Wake()
			default:
				st, err := power.ParseState(event)
				if err != nil {
					logger.Warn("power event ignored", "event", event, "error", err)
					return
				}
				setState(st)
			}
		},
	}

	var scan matrixScanner
	housekeepers := []power.Housekeeper{tele, usb, comp}
	if r.Script != "" {
		sc, err := scanner.LoadScenario(r.Script)
		if err != nil {
			return err
		}
		script := scanner.NewScript(sc, clock, hooks, logger)
		scan = script
		housekeepers = append(housekeepers, &playedOut{script: script, queue: q, stop: cancel})
	} else {
		term := scanner.NewTerminal(os.Stdin, b.Layers[0], cancel, logger)
		if err := term.Open(); err != nil {
			if errors.Is(err, scanner.ErrNotTerminal) {
				return fmt.Errorf("%w; use --script to play a scenario", err)
			}
			return err
		}
		defer func() { _ = term.Close() }()
		scan = term
	}

	outputs := pipeline.Outputs{
		Keyboard: usb.Keyboard(),
		System:   usb.System(),
		Consumer: usb.Consumer(),
	}
	if comp.Connected() {
		outputs.Serial = comp
	}
	pipe := pipeline.New(b, q, pipeline.Deps{
		Source:    scan,
		Clock:     clock,
		Status:    reg,
		Host:      usb,
		Outputs:   outputs,
		Expansion: tele,
		Direction: direction,
	}, logger)

	sched = power.New(r.Power, clock, power.Deps{
		Platform:     plat,
		Scanner:      scan,
		Pipeline:     pipe,
		Transport:    usb,
		Companion:    comp,
		Status:       reg,
		Housekeepers: housekeepers,
	}, logger)

	if r.Metrics.Addr != "" {
		go func() {
			if err := tele.Serve(ctx, r.Metrics.Addr, logger); err != nil {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	sched.Boot(r.Keyboard)
	plat.StartTimer()
	defer plat.StopTimer()

	err = sched.Run(ctx)
	st := usb.KeyboardState()
	logger.Info("core stopped", "layer", pipe.Layer().Current(), "held", len(st.Keys()),
		"queued", q.Len(), "dropped", q.Dropped(), "expansion", tele.Enabled())
	return err
}

// playedOut stops the run once the scenario is exhausted and every queued
// report went out.
type playedOut struct {
	script *scanner.Script
	queue  *queue.Queue
	stop   context.CancelFunc
}

func (p *playedOut) Tick(uint32) {
	if p.script.Done() && p.queue.Empty() {
		p.stop()
	}
}
