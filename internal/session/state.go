package session

import "github.com/skobkin/clemremote/internal/connectors"

// stateMachine holds the lifecycle state. Only the dispatch loop touches it.
type stateMachine struct {
	state connectors.ConnectionState
	fire  func(to connectors.ConnectionState, reason string)
}

func newStateMachine(fire func(connectors.ConnectionState, string)) *stateMachine {
	return &stateMachine{state: connectors.ConnectionStateIdle, fire: fire}
}

func (m *stateMachine) current() connectors.ConnectionState {
	return m.state
}

// transition moves to the next state and fires exactly one notification.
// Invalid transitions fire nothing.
func (m *stateMachine) transition(to connectors.ConnectionState, reason string) error {
	if !connectors.CanTransition(m.state, to) {
		return &connectors.TransitionError{From: m.state, To: to}
	}
	m.state = to
	if m.fire != nil {
		m.fire(to, reason)
	}

	return nil
}
