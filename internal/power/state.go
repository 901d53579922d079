package power

import "fmt"

// State is the device power state.
type State int32

const (
	FullThrottle State = iota
	PreparingToSleep
	Sleep
	Watch
	Suspending
	Resuming
	ShutdownRequest
)

var stateNames = [...]string{
	FullThrottle:     "full-throttle",
	PreparingToSleep: "preparing-to-sleep",
	Sleep:            "sleep",
	Watch:            "watch",
	Suspending:       "suspending",
	Resuming:         "resuming",
	ShutdownRequest:  "shutdown-request",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// ParseState resolves a state name.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown power state %q", name)
}
