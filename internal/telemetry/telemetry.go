// Package telemetry implements the pipeline expansion hook on top of
// Prometheus metrics.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/commonsense-kb/commonsense/device/keyboard"
)

const namespace = "commonsense"

// Config selects the metrics endpoint.
type Config struct {
	Addr string `help:"Listen address of the Prometheus metrics endpoint (disabled when empty)" env:"COMMONSENSE_METRICS_ADDR"`
}

// QueueStats is the part of the output queue the hook samples on each tick.
type QueueStats interface {
	Len() int
	Dropped() uint64
}

// Expansion counts emitted keypresses per report channel and tracks the
// expansion mode flipped by the toggle control code.
type Expansion struct {
	reg *prometheus.Registry

	keypresses *prometheus.CounterVec
	toggles    prometheus.Counter
	mode       prometheus.Gauge
	ticks      prometheus.Counter
	queueLen   prometheus.Gauge
	dropped    prometheus.Gauge

	enabled atomic.Bool
	queue   QueueStats
}

// New creates the hook with its own registry.
func New() *Expansion {
	e := &Expansion{
		reg: prometheus.NewRegistry(),
		keypresses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keypresses_total",
			Help:      "Key-down reports emitted, by report channel.",
		}, []string{"channel"}),
		toggles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expansion_toggles_total",
			Help:      "Expansion toggle control codes seen.",
		}),
		mode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "expansion_enabled",
			Help:      "1 while the expansion mode is on.",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Timer ticks handled by the foreground loop.",
		}),
		queueLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "pending",
			Help:      "Entries waiting in the output queue.",
		}),
		dropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "dropped",
			Help:      "Entries dropped by the output queue overflow policy.",
		}),
	}
	e.reg.MustRegister(e.keypresses, e.toggles, e.mode, e.ticks, e.queueLen, e.dropped)
	return e
}

// Observe samples q on every tick.
func (e *Expansion) Observe(q QueueStats) { e.queue = q }

// Registry exposes the hook's registry.
func (e *Expansion) Registry() *prometheus.Registry { return e.reg }

// Enabled reports the expansion mode.
func (e *Expansion) Enabled() bool { return e.enabled.Load() }

// Toggle flips the expansion mode.
func (e *Expansion) Toggle() {
	e.toggles.Inc()
	if e.enabled.Load() {
		e.enabled.Store(false)
		e.mode.Set(0)
		return
	}
	e.enabled.Store(true)
	e.mode.Set(1)
}

// Keypress counts one emitted key-down.
func (e *Expansion) Keypress(code uint8) {
	e.keypresses.WithLabelValues(Channel(code)).Inc()
}

// Tick advances the tick counter and samples the queue.
func (e *Expansion) Tick(elapsed uint32) {
	e.ticks.Add(float64(elapsed))
	if e.queue != nil {
		e.queueLen.Set(float64(e.queue.Len()))
		e.dropped.Set(float64(e.queue.Dropped()))
	}
}

// Channel names the report channel label for a keycode.
func Channel(code uint8) string {
	switch {
	case keyboard.IsConsumer(code):
		return "consumer"
	case keyboard.IsSystem(code):
		return "system"
	case keyboard.IsModifier(code):
		return "modifier"
	default:
		return "keyboard"
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (e *Expansion) Handler() http.Handler {
	return promhttp.HandlerFor(e.reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (e *Expansion) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", e.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
