package macro

import (
	"fmt"

	"github.com/commonsense-kb/commonsense/matrix"
)

// Scheduler receives the timestamped key events a macro produces.
type Scheduler interface {
	Schedule(at uint32, flags uint8, keycode uint8) error
}

// DelayFunc resolves a delay table index to ticks.
type DelayFunc func(index uint8) uint32

// Play executes body eagerly. The virtual clock starts at now and advances as
// instructions run; every event is handed to out with its virtual timestamp.
// Execution stops at the end of the body, on a malformed instruction or when
// out refuses an event. Nothing already scheduled is withdrawn. Play returns
// the final virtual time.
func Play(body []byte, now uint32, delay DelayFunc, out Scheduler) (uint32, error) {
	for off := 0; off < len(body); {
		ins, n, err := DecodeInstruction(body[off:])
		if err != nil {
			return now, fmt.Errorf("offset %d: %w", off, err)
		}
		d := delay(ins.Delay)
		switch ins.Op {
		case OpTypeOneKey:
			if err := out.Schedule(now, 0, ins.Keycode); err != nil {
				return now, err
			}
			now += d
			if err := out.Schedule(now, matrix.FlagReleased, ins.Keycode); err != nil {
				return now, err
			}
		case OpChangeMods:
			var flags uint8
			if ins.Release {
				flags = matrix.FlagReleased
			}
			if err := out.Schedule(now, flags, ins.Keycode); err != nil {
				return now, err
			}
			now += d
		case OpModsStack:
			// Push/pop of modifier state is not implemented.
		case OpWait:
			now += d
		}
		off += n
	}
	return now, nil
}
