package session

import (
	"errors"
	"fmt"
)

// State is a session's position in its single-pass lifecycle.
type State int

const (
	StateCreated State = iota
	StateConfigured
	StateIndexed
	StateFiltered
	StateMapped
	StateWritten
	StateClosed
)

var stateNames = [...]string{
	StateCreated:    "created",
	StateConfigured: "configured",
	StateIndexed:    "indexed",
	StateFiltered:   "filtered",
	StateMapped:     "mapped",
	StateWritten:    "written",
	StateClosed:     "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// ErrInvalidTransition is returned for an operation the current state does
// not allow.
var ErrInvalidTransition = errors.New("invalid session transition")

// transitions lists, per target state, the states it may be entered from.
// Reconfiguring before indexing and registering several mappings are the
// only self-loops.
var transitions = map[State][]State{
	StateConfigured: {StateCreated, StateConfigured},
	StateIndexed:    {StateConfigured},
	StateFiltered:   {StateIndexed},
	StateMapped:     {StateFiltered, StateMapped},
	StateWritten:    {StateFiltered, StateMapped},
}

// CanTransition reports whether a session in from may move to to. Any
// state may close.
func CanTransition(from, to State) bool {
	if to == StateClosed {
		return true
	}
	for _, s := range transitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

func checkTransition(op string, from, to State) error {
	if CanTransition(from, to) {
		return nil
	}
	return fmt.Errorf("%s in state %s: %w", op, from, ErrInvalidTransition)
}
