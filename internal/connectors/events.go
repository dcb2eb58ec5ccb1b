package connectors

import (
	"time"

	"github.com/skobkin/clemremote/internal/transport"
)

// ConnectionStatus is a bus event snapshot of the current session status.
// Reconnects counts silent reconnects completed by the session so far.
type ConnectionStatus struct {
	State      ConnectionState
	Err        string
	SessionID  string
	Target     string
	Timestamp  time.Time
	Reconnects int
	Stats      transport.Stats
}

// RawFrame carries frame diagnostics for debug/log views.
type RawFrame struct {
	Hex string
	Len int
}
