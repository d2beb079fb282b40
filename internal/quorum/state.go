package quorum

import "sync"

// CallState represents where a single logical call sits in the dispatch state machine
// described in §4.4: DISPATCHING while required slots are still being filled or retargeted,
// RESOLVING_TIES once all required slots succeeded but disagreed, and one of the two
// terminal states once a final answer (or final rejection) has been reached.
type CallState int

// Dispatch states.
const (
	StateDispatching CallState = iota
	StateResolvingTies
	StateResolved
	StateRejected
)

func (s CallState) String() string {
	switch s {
	case StateDispatching:
		return "dispatching"
	case StateResolvingTies:
		return "resolving-ties"
	case StateResolved:
		return "resolved"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// callStateTracker guards the state of one in-flight logical call. Both terminal states are
// sinks — once reached, no further transition is accepted, matching the spec's "a late
// success does not undo an already-taken decision" rule for the no-cancellation design.
type callStateTracker struct {
	mu    sync.Mutex
	state CallState
}

func newCallStateTracker() *callStateTracker {
	return &callStateTracker{state: StateDispatching}
}

// transition moves to next unless the tracker is already in a terminal state. It reports
// whether the transition was applied.
func (t *callStateTracker) transition(next CallState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateResolved || t.state == StateRejected {
		return false
	}
	t.state = next
	return true
}

func (t *callStateTracker) current() CallState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
