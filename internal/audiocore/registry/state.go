package registry

import (
	"slices"
	"time"
)

// State is the lifecycle state of a source.
type State string

const (
	StateStopped      State = "stopped"
	StateStarting     State = "starting"
	StateRunning      State = "running"
	StateError        State = "error"
	StateDisconnected State = "disconnected"
)

// Transition records one state change.
type Transition struct {
	From   State     `json:"from"`
	To     State     `json:"to"`
	At     time.Time `json:"at"`
	Reason string    `json:"reason,omitempty"`
}

// validStateTransitions lists the allowed state changes. error only leaves
// through an explicit Start or Stop.
var validStateTransitions = map[State][]State{
	StateStopped:      {StateStarting},
	StateStarting:     {StateRunning, StateError, StateStopped, StateDisconnected},
	StateRunning:      {StateStopped, StateError, StateDisconnected},
	StateDisconnected: {StateStarting, StateStopped, StateError},
	StateError:        {StateStarting, StateStopped},
}

func isValidTransition(from, to State) bool {
	allowed, ok := validStateTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// active reports whether a capture task exists in this state.
func (s State) active() bool {
	return s == StateStarting || s == StateRunning || s == StateDisconnected
}
