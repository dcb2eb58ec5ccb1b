package connectors

import "fmt"

// ConnectionState describes where a remote session is in its lifecycle.
type ConnectionState string

const (
	ConnectionStateIdle           ConnectionState = "idle"
	ConnectionStateConnecting     ConnectionState = "connecting"
	ConnectionStateConnected      ConnectionState = "connected"
	ConnectionStateNoConnection   ConnectionState = "no_connection"
	ConnectionStateLostConnection ConnectionState = "lost_connection"
	ConnectionStateDisconnected   ConnectionState = "disconnected"
)

var allowedTransitions = map[ConnectionState][]ConnectionState{
	ConnectionStateIdle:           {ConnectionStateConnecting, ConnectionStateDisconnected},
	ConnectionStateConnecting:     {ConnectionStateConnected, ConnectionStateNoConnection},
	ConnectionStateNoConnection:   {ConnectionStateConnecting, ConnectionStateDisconnected},
	ConnectionStateConnected:      {ConnectionStateLostConnection, ConnectionStateDisconnected},
	ConnectionStateLostConnection: {ConnectionStateDisconnected},
}

// CanTransition reports whether a session may move from one state to another.
func CanTransition(from, to ConnectionState) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}

	return false
}

// Terminal reports whether no further transitions leave this state.
func (s ConnectionState) Terminal() bool {
	return s == ConnectionStateDisconnected
}

// TransitionError is returned for a state change the lifecycle does not allow.
type TransitionError struct {
	From ConnectionState
	To   ConnectionState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid connection state transition %s -> %s", e.From, e.To)
}
