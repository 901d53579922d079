package power

import "sync/atomic"

// Clock is the only state shared with the timer interrupt. Interrupt bumps a
// pending tick count and the millisecond system time; the scheduler consumes
// pending ticks as one batch, so backlogged ticks are coalesced.
type Clock struct {
	ticks   atomic.Uint32
	systime atomic.Uint32
}

// Interrupt is called once per timer period.
func (c *Clock) Interrupt() {
	c.ticks.Add(1)
	c.systime.Add(1)
}

// Take returns the pending ticks and clears them.
func (c *Clock) Take() uint32 { return c.ticks.Swap(0) }

// Pending returns the pending ticks without clearing them.
func (c *Clock) Pending() uint32 { return c.ticks.Load() }

// Clear drops pending ticks.
func (c *Clock) Clear() { c.ticks.Store(0) }

// Now returns the system time in milliseconds. It wraps after ~49 days.
func (c *Clock) Now() uint32 { return c.systime.Load() }
