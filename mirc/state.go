package mirc

import (
	"fmt"
	"log/slog"
	"slices"
)

// State is a phase of a compiler run.
type State string

const (
	StateIdle       State = "Idle"
	StateLoading    State = "Loading"
	StateCompiling  State = "Compiling"
	StateEncoding   State = "Encoding"
	StateCollecting State = "Collecting"
	StateDone       State = "Done"
	StateFailed     State = "Failed"
)

// transitions lists the legal successors of each state. Failed is reachable
// from Loading and, on cancellation, from every later working state.
var transitions = map[State][]State{
	StateIdle:       {StateLoading},
	StateLoading:    {StateCompiling, StateFailed},
	StateCompiling:  {StateEncoding, StateFailed},
	StateEncoding:   {StateCollecting, StateFailed},
	StateCollecting: {StateDone, StateFailed},
}

// Terminal reports whether no transition leaves the state.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// TransitionError reports an illegal state change.
type TransitionError struct {
	From, To State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal run state transition %s -> %s", e.From, e.To)
}

// machine tracks the state of one run and its history.
type machine struct {
	run     string
	state   State
	history []State
	logger  *slog.Logger
}

func newMachine(run string, logger *slog.Logger) *machine {
	return &machine{run: run, state: StateIdle, history: []State{StateIdle}, logger: logger}
}

func (m *machine) to(next State) error {
	if !slices.Contains(transitions[m.state], next) {
		return &TransitionError{From: m.state, To: next}
	}
	m.logger.Debug("run state", "run", m.run, "from", m.state, "state", next)
	m.state = next
	m.history = append(m.history, next)
	return nil
}

// must applies a transition the run loop knows to be legal.
func (m *machine) must(next State) {
	if err := m.to(next); err != nil {
		panic(err)
	}
}
