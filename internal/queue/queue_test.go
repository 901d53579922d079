package queue_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commonsense-kb/commonsense/internal/queue"
)

const up = 0x80

type sink struct {
	got []queue.Entry
	at  []uint32
	now uint32
}

func (s *sink) Dispatch(e queue.Entry) bool {
	s.got = append(s.got, e)
	s.at = append(s.at, s.now)
	return true
}

func drainAll(q *queue.Queue, s *sink, from, to uint32) {
	for now := from; now <= to; now++ {
		s.now = now
		q.Drain(now, s)
	}
}

func TestOrdering(t *testing.T) {
	q := queue.New(8, queue.Reject)
	require.NoError(t, q.Schedule(100, 0, 0x04))
	require.NoError(t, q.Schedule(130, up, 0x04))
	require.NoError(t, q.Schedule(105, 0, 0x05))
	require.NoError(t, q.Schedule(110, up, 0x05))

	s := &sink{}
	drainAll(q, s, 200, 210)
	require.Len(t, s.got, 4)
	for i := 1; i < len(s.got); i++ {
		assert.LessOrEqual(t, s.got[i-1].Time, s.got[i].Time)
	}
	assert.True(t, q.Empty())
}

func TestNotDue(t *testing.T) {
	q := queue.New(4, queue.Reject)
	require.NoError(t, q.Schedule(50, 0, 0x04))
	_, ok := q.Drain(49, nil)
	assert.False(t, ok)
	e, ok := q.Drain(50, nil)
	require.True(t, ok)
	assert.Equal(t, uint8(0x04), e.Keycode)
}

func TestWrapAround(t *testing.T) {
	q := queue.New(4, queue.Reject)
	require.NoError(t, q.Schedule(3, 0, 0x05))
	require.NoError(t, q.Schedule(0xFFFFFFFE, 0, 0x04))

	_, ok := q.Drain(0xFFFFFFFD, nil)
	assert.False(t, ok)
	e, ok := q.Drain(0xFFFFFFFF, nil)
	require.True(t, ok)
	assert.Equal(t, uint8(0x04), e.Keycode)
	_, ok = q.Drain(2, nil)
	assert.False(t, ok)
	e, ok = q.Drain(3, nil)
	require.True(t, ok)
	assert.Equal(t, uint8(0x05), e.Keycode)
}

func TestOverflow(t *testing.T) {
	const capacity = 4

	t.Run("reject", func(t *testing.T) {
		q := queue.New(capacity, queue.Reject)
		for i := 0; i < capacity; i++ {
			require.NoError(t, q.Schedule(uint32(i), 0, uint8(0x04+i)))
		}
		assert.ErrorIs(t, q.Schedule(99, 0, 0x20), queue.ErrFull)
		assert.Equal(t, uint64(1), q.Dropped())
		assert.Equal(t, capacity, q.Len())
		assert.Equal(t, uint8(0x04), q.Pending()[0].Keycode, "pending data untouched")
	})

	t.Run("drop oldest", func(t *testing.T) {
		q := queue.New(capacity, queue.DropOldest)
		for i := 0; i < capacity; i++ {
			require.NoError(t, q.Schedule(uint32(i), 0, uint8(0x04+i)))
		}
		require.NoError(t, q.Schedule(99, 0, 0x20))
		assert.Equal(t, uint64(1), q.Dropped())
		assert.Equal(t, capacity, q.Len())
		pending := q.Pending()
		assert.Equal(t, uint8(0x05), pending[0].Keycode)
		assert.Equal(t, uint8(0x20), pending[capacity-1].Keycode)
	})
}

func TestFreedSlotsAreReused(t *testing.T) {
	q := queue.New(3, queue.Reject)
	require.NoError(t, q.Schedule(100, 0, 0x04)) // future, stays put
	require.NoError(t, q.Schedule(1, 0, 0x05))
	require.NoError(t, q.Schedule(2, 0, 0x06))

	_, ok := q.Drain(10, nil)
	require.True(t, ok)
	_, ok = q.Drain(10, nil)
	require.True(t, ok)
	assert.Equal(t, 1, q.Len())

	require.NoError(t, q.Schedule(11, 0, 0x07))
	require.NoError(t, q.Schedule(12, 0, 0x08))
	assert.ErrorIs(t, q.Schedule(13, 0, 0x09), queue.ErrFull)
	assert.Equal(t, uint64(1), q.Dropped())

	var got []uint8
	for now := uint32(11); now <= 100; now++ {
		if e, ok := q.Drain(now, nil); ok {
			got = append(got, e.Keycode)
		}
	}
	assert.Equal(t, []uint8{0x07, 0x08, 0x04}, got)
	assert.True(t, q.Empty())
}

func TestFutureKeyUpSurvivesTraffic(t *testing.T) {
	for _, policy := range []queue.Policy{queue.Reject, queue.DropOldest} {
		q := queue.New(4, policy)
		require.NoError(t, q.Schedule(0, 0, 0x04))
		require.NoError(t, q.Schedule(1000, up, 0x04))
		_, ok := q.Drain(0, nil)
		require.True(t, ok)

		for i := uint32(1); i <= 4; i++ {
			require.NoError(t, q.Schedule(i, 0, uint8(0x05+i)), "policy %d", policy)
			_, ok := q.Drain(i, nil)
			require.True(t, ok)
		}
		assert.Zero(t, q.Dropped())
		assert.Equal(t, []queue.Entry{{Time: 1000, Flags: up, Keycode: 0x04}}, q.Pending())
	}
}

func TestSameTimeKeepsEnqueueOrder(t *testing.T) {
	q := queue.New(2, queue.Reject)
	require.NoError(t, q.Schedule(0, 0, 0x05))
	require.NoError(t, q.Schedule(50, 0, 0x04))
	_, ok := q.Drain(0, nil)
	require.True(t, ok)
	// the freed slot sits before 0x04 in storage
	require.NoError(t, q.Schedule(50, 0, 0x06))

	e, ok := q.Drain(60, nil)
	require.True(t, ok)
	assert.Equal(t, uint8(0x04), e.Keycode)
	e, ok = q.Drain(60, nil)
	require.True(t, ok)
	assert.Equal(t, uint8(0x06), e.Keycode)
}

func TestCooldown(t *testing.T) {
	q := queue.New(16, queue.Reject)
	q.SetCooldown(3)
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Schedule(0, 0, uint8(0x04+i)))
	}
	s := &sink{}
	drainAll(q, s, 0, 20)
	require.Len(t, s.got, 3)
	for i := 1; i < len(s.at); i++ {
		assert.GreaterOrEqual(t, s.at[i]-s.at[i-1], uint32(3))
	}
}

func TestCooldownLetsKeyUpThrough(t *testing.T) {
	q := queue.New(16, queue.Reject)
	q.SetCooldown(5)
	require.NoError(t, q.Schedule(0, 0, 0x04))
	require.NoError(t, q.Schedule(1, up, 0x04))
	require.NoError(t, q.Schedule(2, 0, 0x05))

	s := &sink{}
	drainAll(q, s, 0, 2)
	require.Len(t, s.got, 2)
	assert.Equal(t, []uint32{0, 1}, s.at, "key-up not delayed")
	assert.Equal(t, uint32(3), q.Cooling())

	drainAll(q, s, 3, 10)
	require.Len(t, s.got, 3)
	assert.Equal(t, uint32(6), s.at[2])
}

func TestNoRestartWhenDispatcherDeclines(t *testing.T) {
	q := queue.New(4, queue.Reject)
	q.SetCooldown(10)
	require.NoError(t, q.Schedule(0, 0, 0x03))
	require.NoError(t, q.Schedule(0, 0, 0x04))

	n := 0
	d := queue.DispatchFunc(func(e queue.Entry) bool {
		n++
		return e.Keycode != 0x03
	})
	_, ok := q.Drain(0, d)
	require.True(t, ok)
	assert.Zero(t, q.Cooling())
	_, ok = q.Drain(1, d)
	require.True(t, ok)
	assert.Equal(t, uint32(10), q.Cooling())
	assert.Equal(t, 2, n)
}

func TestReset(t *testing.T) {
	q := queue.New(2, queue.Reject)
	q.SetCooldown(4)
	require.NoError(t, q.Schedule(0, 0, 0x04))
	q.Drain(0, queue.DispatchFunc(func(queue.Entry) bool { return true }))
	require.NoError(t, q.Schedule(5, 0, 0x05))
	q.Reset()
	assert.True(t, q.Empty())
	assert.Zero(t, q.Cooling())
	assert.Equal(t, 2, q.Cap())
}
