package orchestrator

import "fmt"

// State is the orchestration loop's phase for one chat turn.
type State string

const (
	// StateIdle is the initial state before the first model call.
	StateIdle State = "idle"
	// StateReasoning means a model call is in flight.
	StateReasoning State = "reasoning"
	// StateAwaitingTools means the model requested tools and they are
	// being dispatched.
	StateAwaitingTools State = "awaiting_tools"
	// StateAnswered means the model produced a final answer.
	StateAnswered State = "answered"
	// StateTerminated is the terminal state after cleanup.
	StateTerminated State = "terminated"
)

// transitions enumerates every legal state change. Anything absent here is a
// bug in the loop, not a recoverable condition.
var transitions = map[State][]State{
	StateIdle:          {StateReasoning, StateTerminated},
	StateReasoning:     {StateAwaitingTools, StateAnswered, StateTerminated},
	StateAwaitingTools: {StateReasoning, StateTerminated},
	StateAnswered:      {StateTerminated},
	StateTerminated:    {},
}

// machine guards the loop's state changes against the transition table.
type machine struct {
	state State
}

func newMachine() *machine {
	return &machine{state: StateIdle}
}

func (m *machine) current() State { return m.state }

func (m *machine) transition(to State) error {
	for _, allowed := range transitions[m.state] {
		if allowed == to {
			m.state = to
			return nil
		}
	}
	return fmt.Errorf("illegal state transition %s -> %s", m.state, to)
}

// mustTransition panics on an illegal transition. The transition table is
// static, so a violation is a programming error on par with an out-of-range
// slice index.
func (m *machine) mustTransition(to State) {
	if err := m.transition(to); err != nil {
		panic(err)
	}
}
