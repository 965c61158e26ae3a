package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/roomchat/internal/bus"
)

// State is the lifecycle state of one room session.
type State string

const (
	Loading      State = "LOADING"
	Connecting   State = "CONNECTING"
	Open         State = "OPEN"
	Disconnected State = "DISCONNECTED"
	Errored      State = "ERRORED"
	Closed       State = "CLOSED"
)

// EventStatusChanged is emitted on the bus after every successful transition.
const EventStatusChanged = "room.status_changed"

// validTransitions defines allowed state transitions. Closed is terminal;
// Disconnected and Errored only leave through a manual reconnect.
var validTransitions = map[State][]State{
	Loading:      {Connecting, Errored, Closed},
	Connecting:   {Open, Disconnected, Errored, Closed},
	Open:         {Disconnected, Errored, Closed},
	Disconnected: {Connecting, Errored, Closed},
	Errored:      {Connecting, Disconnected, Closed},
	Closed:       {},
}

// Machine tracks and enforces room session state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	room    string
	bus     *bus.Bus
}

// NewMachine creates a new state machine for room starting in Loading state.
func NewMachine(room string, b *bus.Bus) *Machine {
	return &Machine{
		current: Loading,
		room:    room,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Can reports whether the machine may move to the given state now.
func (m *Machine) Can(to State) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Contains(validTransitions[m.current], to)
}

// Transition moves to a new state and emits EventStatusChanged. Returns an
// error if the transition is invalid. Moving to the current state is a no-op.
func (m *Machine) Transition(to State) error {
	change, err := m.Move(to)
	if err != nil {
		return err
	}
	m.Announce(change)
	return nil
}

// Move changes state like Transition but leaves the event to Announce, for
// callers that must not emit while holding their own lock. The change is nil
// when to is already the current state.
func (m *Machine) Move(to State) (*StatusChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == to {
		return nil, nil
	}
	if !slices.Contains(validTransitions[m.current], to) {
		return nil, fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	change := &StatusChange{Room: m.room, From: m.current, To: to}
	m.current = to
	return change, nil
}

// Announce emits change on the bus. A nil change is ignored.
func (m *Machine) Announce(change *StatusChange) {
	if change == nil || m.bus == nil {
		return
	}
	m.bus.Emit(EventStatusChanged, *change)
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	Room string
	From State
	To   State
}
