// Package queue holds keycodes waiting for their scheduled emission time and
// releases them under a cooldown rate limiter.
package queue

import (
	"cmp"
	"errors"
	"slices"
)

// DefaultCapacity matches the controller's output buffer.
const DefaultCapacity = 64

// Policy decides what Enqueue does when no slot is free.
type Policy int

const (
	// Reject refuses the new entry and counts it as dropped.
	Reject Policy = iota
	// DropOldest discards the longest-queued entry to make room.
	DropOldest
)

var ErrFull = errors.New("queue: output queue full")

const releasedFlag = 0x80

// Entry is a pending keycode emission.
type Entry struct {
	Time    uint32
	Flags   uint8
	Keycode uint8
}

// Released reports whether the entry is a key-up.
func (e Entry) Released() bool { return e.Flags&releasedFlag != 0 }

// Due reports whether the entry may leave at now. The comparison survives
// wrap-around of the tick counter.
func (e Entry) Due(now uint32) bool { return int32(now-e.Time) >= 0 }

// Dispatcher routes an emitted entry to its report channel. It returns true when
// the emission must restart the cooldown.
type Dispatcher interface {
	Dispatch(e Entry) bool
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(e Entry) bool

func (f DispatchFunc) Dispatch(e Entry) bool { return f(e) }

type slot struct {
	Entry
	seq  uint64
	used bool
}

// Queue is a fixed-capacity slot buffer. Enqueue takes the first free slot at
// or after the write cursor, so pending data is never overwritten and slots
// freed out of order are reused at once.
type Queue struct {
	slots    []slot
	tail     int // write cursor
	count    int // occupied slots
	seq      uint64
	policy   Policy
	dropped  uint64
	cooldown uint32
	cooling  uint32
}

// New creates a queue with the given capacity and overflow policy.
func New(capacity int, policy Policy) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		slots:  make([]slot, capacity),
		policy: policy,
	}
}

// Cap returns the number of slots.
func (q *Queue) Cap() int { return len(q.slots) }

// Len returns the number of pending entries.
func (q *Queue) Len() int { return q.count }

// Empty reports whether nothing is pending.
func (q *Queue) Empty() bool { return q.count == 0 }

// Dropped returns how many entries were lost to overflow.
func (q *Queue) Dropped() uint64 { return q.dropped }

// SetCooldown sets the number of drain calls a key-down emission blocks
// further key-downs for.
func (q *Queue) SetCooldown(ticks uint32) { q.cooldown = ticks }

// Cooling reports the remaining cooldown.
func (q *Queue) Cooling() uint32 { return q.cooling }

// Reset discards all entries and the running cooldown.
func (q *Queue) Reset() {
	clear(q.slots)
	q.tail, q.count = 0, 0
	q.cooling = 0
}

// Enqueue stores e in a free slot. The overflow policy applies only when
// every slot is occupied.
func (q *Queue) Enqueue(e Entry) error {
	if q.count == len(q.slots) {
		if q.policy != DropOldest {
			q.dropped++
			return ErrFull
		}
		oldest := q.oldest()
		q.slots[oldest].used = false
		q.count--
		q.dropped++
		q.tail = oldest
	}
	for q.slots[q.tail].used {
		q.tail = (q.tail + 1) % len(q.slots)
	}
	q.seq++
	q.slots[q.tail] = slot{Entry: e, seq: q.seq, used: true}
	q.tail = (q.tail + 1) % len(q.slots)
	q.count++
	return nil
}

// Schedule enqueues a keycode for emission at tick at.
func (q *Queue) Schedule(at uint32, flags uint8, keycode uint8) error {
	return q.Enqueue(Entry{Time: at, Flags: flags, Keycode: keycode})
}

// Drain emits at most one due entry. The earliest due entry is chosen, ties
// going to the one enqueued first. While the cooldown runs only a key-up may
// leave; a due key-down holds everything behind it. Each call counts down the
// cooldown by one.
func (q *Queue) Drain(now uint32, d Dispatcher) (Entry, bool) {
	cooling := q.cooling > 0
	if cooling {
		q.cooling--
	}

	best := -1
	var bestAge uint32
	for i := range q.slots {
		s := &q.slots[i]
		if !s.used || !s.Due(now) {
			continue
		}
		age := now - s.Time
		if best < 0 || age > bestAge || (age == bestAge && s.seq < q.slots[best].seq) {
			best, bestAge = i, age
		}
	}
	if best < 0 {
		return Entry{}, false
	}
	e := q.slots[best].Entry
	if cooling && !e.Released() {
		return Entry{}, false
	}

	q.slots[best].used = false
	q.count--

	if d != nil && d.Dispatch(e) && !e.Released() {
		q.cooling = q.cooldown
	}
	return e, true
}

// Pending returns the entries in the order they were enqueued.
func (q *Queue) Pending() []Entry {
	used := make([]slot, 0, q.count)
	for _, s := range q.slots {
		if s.used {
			used = append(used, s)
		}
	}
	slices.SortFunc(used, func(a, b slot) int { return cmp.Compare(a.seq, b.seq) })
	out := make([]Entry, len(used))
	for i, s := range used {
		out[i] = s.Entry
	}
	return out
}

// oldest returns the occupied slot enqueued first.
func (q *Queue) oldest() int {
	best := -1
	for i, s := range q.slots {
		if s.used && (best < 0 || s.seq < q.slots[best].seq) {
			best = i
		}
	}
	return best
}
