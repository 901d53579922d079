package sim_test

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/commonsense-kb/commonsense/internal/sim"
)

type counter struct{ n atomic.Uint32 }

func (c *counter) Interrupt() { c.n.Add(1) }

func TestTimer(t *testing.T) {
	c := &counter{}
	p := sim.New(sim.Config{Tick: time.Millisecond}, c, slog.Default())

	p.StartTimer()
	p.StartTimer()
	assert.True(t, p.Running())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p.WaitForInterrupt(ctx)
	assert.NoError(t, ctx.Err())
	assert.Eventually(t, func() bool { return c.n.Load() >= 2 }, time.Second, time.Millisecond)

	p.StopTimer()
	p.StopTimer()
	assert.False(t, p.Running())
	n := c.n.Load()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, n, c.n.Load(), "no interrupts while stopped")
}

func TestWaitForInterruptHonoursContext(t *testing.T) {
	p := sim.New(sim.Config{}, &counter{}, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.WaitForInterrupt(ctx)
}

func TestSleep(t *testing.T) {
	p := sim.New(sim.Config{}, &counter{}, slog.Default())

	p.Wake()
	p.Wake()
	done := make(chan struct{})
	go func() {
		p.Sleep(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sleep did not return after wake")
	}

	timed := sim.New(sim.Config{SleepTime: time.Millisecond}, &counter{}, slog.Default())
	start := time.Now()
	timed.Sleep(context.Background())
	assert.GreaterOrEqual(t, time.Since(start), time.Millisecond)

	p.SaveClocks()
	p.RestoreClocks()
	p.RestoreClocks()
}
