package session

import (
	"sync/atomic"
	"time"
)

const (
	DefaultKeepAliveTimeout = 25 * time.Second
	DefaultPollInterval     = 3 * time.Second
)

type KeepAliveStatus int

const (
	KeepAliveOK KeepAliveStatus = iota
	KeepAliveExpired
)

func (s KeepAliveStatus) String() string {
	if s == KeepAliveExpired {
		return "expired"
	}

	return "ok"
}

// KeepAlive tracks the time of the last successfully decoded inbound frame.
// A zero timestamp means no attempt is armed and never expires.
type KeepAlive struct {
	timeout time.Duration
	last    atomic.Int64
}

func NewKeepAlive(timeout time.Duration) *KeepAlive {
	if timeout <= 0 {
		timeout = DefaultKeepAliveTimeout
	}

	return &KeepAlive{timeout: timeout}
}

func (k *KeepAlive) Timeout() time.Duration {
	return k.timeout
}

// Reset clears the timestamp. Called at the start of every connection attempt.
func (k *KeepAlive) Reset() {
	k.last.Store(0)
}

// Arm starts the timeout window once a handshake has completed.
func (k *KeepAlive) Arm(now time.Time) {
	k.last.Store(now.UnixNano())
}

// OnFrameReceived advances the timestamp. Only decoded, non-error frames count.
func (k *KeepAlive) OnFrameReceived(now time.Time) {
	k.last.Store(now.UnixNano())
}

// Last returns the last alive time, or the zero time when unarmed.
func (k *KeepAlive) Last() time.Time {
	v := k.last.Load()
	if v == 0 {
		return time.Time{}
	}

	return time.Unix(0, v)
}

func (k *KeepAlive) Check(now time.Time) KeepAliveStatus {
	v := k.last.Load()
	if v == 0 {
		return KeepAliveOK
	}
	if now.Sub(time.Unix(0, v)) > k.timeout {
		return KeepAliveExpired
	}

	return KeepAliveOK
}
