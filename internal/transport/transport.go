package transport

import (
	"context"
	"errors"
)

var (
	// ErrReadTimeout is returned by ReadFrame when the read deadline expires
	// before a complete frame is available.
	ErrReadTimeout = errors.New("frame read timed out")
	// ErrFrameTooLarge is returned when a peer announces a frame above MaxFrameLen.
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrNotConnected is returned by operations on a closed connection.
	ErrNotConnected = errors.New("transport is not connected")
)

// Conn is a single open framed connection to the player.
type Conn interface {
	ReadFrame(ctx context.Context) ([]byte, error)
	WriteFrame(ctx context.Context, payload []byte) error
	Close() error
	RemoteAddr() string
	Stats() Stats
}

// Dialer opens framed connections. Each successful Dial yields a fresh Conn.
type Dialer interface {
	Dial(ctx context.Context, host string, port int) (Conn, error)
}

// Stats holds raw traffic counters of one connection.
type Stats struct {
	BytesRead     uint64
	BytesWritten  uint64
	FramesRead    uint64
	FramesWritten uint64
}

// Add returns the element-wise sum of two stats snapshots.
func (s Stats) Add(other Stats) Stats {
	return Stats{
		BytesRead:     s.BytesRead + other.BytesRead,
		BytesWritten:  s.BytesWritten + other.BytesWritten,
		FramesRead:    s.FramesRead + other.FramesRead,
		FramesWritten: s.FramesWritten + other.FramesWritten,
	}
}
