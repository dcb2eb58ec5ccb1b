package connectors

import (
	"errors"
	"testing"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to ConnectionState }{
		{ConnectionStateIdle, ConnectionStateConnecting},
		{ConnectionStateIdle, ConnectionStateDisconnected},
		{ConnectionStateConnecting, ConnectionStateConnected},
		{ConnectionStateConnecting, ConnectionStateNoConnection},
		{ConnectionStateNoConnection, ConnectionStateConnecting},
		{ConnectionStateNoConnection, ConnectionStateDisconnected},
		{ConnectionStateConnected, ConnectionStateLostConnection},
		{ConnectionStateConnected, ConnectionStateDisconnected},
		{ConnectionStateLostConnection, ConnectionStateDisconnected},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	rejected := []struct{ from, to ConnectionState }{
		{ConnectionStateIdle, ConnectionStateConnected},
		{ConnectionStateConnecting, ConnectionStateDisconnected},
		{ConnectionStateConnected, ConnectionStateConnecting},
		{ConnectionStateLostConnection, ConnectionStateConnecting},
		{ConnectionStateDisconnected, ConnectionStateConnecting},
		{ConnectionStateDisconnected, ConnectionStateIdle},
		{ConnectionStateConnected, ConnectionStateConnected},
	}
	for _, tc := range rejected {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestConnectionStateTerminal(t *testing.T) {
	if !ConnectionStateDisconnected.Terminal() {
		t.Fatalf("expected disconnected to be terminal")
	}
	if ConnectionStateLostConnection.Terminal() {
		t.Fatalf("expected lost connection to be non-terminal")
	}
}

func TestTransitionErrorMessage(t *testing.T) {
	var err error = &TransitionError{From: ConnectionStateDisconnected, To: ConnectionStateConnecting}
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransitionError")
	}
	if err.Error() != "invalid connection state transition disconnected -> connecting" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
