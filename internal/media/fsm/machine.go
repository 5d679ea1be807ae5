package fsm

import (
	"fmt"
	"sync"
)

// State describes where a media session is in capture and negotiation.
type State string

const (
	StateUninitialized      State = "uninitialized"
	StatePermissionsGranted State = "permissions_granted"
	StatePermissionsDenied  State = "permissions_denied"
	StateTracksAttached     State = "tracks_attached"
	StateOfferReceived      State = "offer_received"
	StateAnswerSent         State = "answer_sent"
	StateConnected          State = "connected"
	StateClosed             State = "closed"
)

var transitions = map[State][]State{
	StateUninitialized:      {StatePermissionsGranted, StatePermissionsDenied, StateClosed},
	StatePermissionsGranted: {StateTracksAttached, StateOfferReceived, StateClosed},
	StateTracksAttached:     {StateOfferReceived, StateClosed},
	StateOfferReceived:      {StateOfferReceived, StateAnswerSent, StateClosed},
	StateAnswerSent:         {StateConnected, StateOfferReceived, StateClosed},
	StateConnected:          {StateOfferReceived, StateClosed},
	StatePermissionsDenied:  nil,
	StateClosed:             nil,
}

// TransitionError reports a move the table does not allow.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid media transition: %s -> %s", e.From, e.To)
}

// Machine is a lightweight deterministic state machine for one media session.
type Machine struct {
	mu    sync.RWMutex
	state State
}

// New creates a machine in the uninitialized state.
func New() *Machine {
	return &Machine{state: StateUninitialized}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Can reports whether moving to next is legal from the current state.
func (m *Machine) Can(next State) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return allowed(m.state, next)
}

// Transition moves to next or returns a *TransitionError.
func (m *Machine) Transition(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !allowed(m.state, next) {
		return &TransitionError{From: m.state, To: next}
	}
	m.state = next
	return nil
}

// Advance moves from -> to only when the machine is currently in from.
func (m *Machine) Advance(from, to State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != from || !allowed(from, to) {
		return false
	}
	m.state = to
	return true
}

// Terminal reports whether no further transitions are possible.
func (m *Machine) Terminal() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(transitions[m.state]) == 0
}

func allowed(from, to State) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
