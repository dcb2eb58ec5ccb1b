package session

import (
	"context"
	"errors"
	"log/slog"
)

const DefaultMaxReconnects = 5

type ReconnectResult int

const (
	ReconnectConnected ReconnectResult = iota
	ReconnectExhausted
)

func (r ReconnectResult) String() string {
	if r == ReconnectConnected {
		return "connected"
	}

	return "exhausted"
}

// AttemptFunc performs one full dial and connect handshake.
type AttemptFunc func(ctx context.Context) error

// ReconnectPolicy bounds silent reconnect attempts. It is owned by the
// dispatch loop and is not safe for concurrent use.
type ReconnectPolicy struct {
	max    int
	left   int
	logger *slog.Logger
}

func NewReconnectPolicy(maxAttempts int, logger *slog.Logger) *ReconnectPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxReconnects
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ReconnectPolicy{max: maxAttempts, left: maxAttempts, logger: logger}
}

// Refill restores the full budget after a successful connect.
func (p *ReconnectPolicy) Refill() {
	p.left = p.max
}

func (p *ReconnectPolicy) Left() int {
	return p.left
}

func (p *ReconnectPolicy) Max() int {
	return p.max
}

// Run retries attempt until it succeeds or the budget is spent. A canceled
// context ends the run as exhausted.
func (p *ReconnectPolicy) Run(ctx context.Context, attempt AttemptFunc) ReconnectResult {
	for p.left > 0 {
		if ctx.Err() != nil {
			return ReconnectExhausted
		}
		err := attempt(ctx)
		if err == nil {
			p.logger.Info("reconnected", "attempts_left", p.left)
			p.Refill()

			return ReconnectConnected
		}
		p.left--
		p.logger.Warn("reconnect attempt failed", "attempts_left", p.left, "error", err)
	}

	return ReconnectExhausted
}

var errReconnectCanceled = errors.New("reconnect canceled")

// Once performs a single attempt and leaves the budget untouched.
func (p *ReconnectPolicy) Once(ctx context.Context, attempt AttemptFunc) error {
	if ctx.Err() != nil {
		return errReconnectCanceled
	}
	if err := attempt(ctx); err != nil {
		p.logger.Warn("single reconnect failed", "error", err)

		return err
	}
	p.logger.Info("reconnected after send failure")

	return nil
}
