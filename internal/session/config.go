package session

import "time"

const (
	DefaultHandshakeTimeout = 3 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
)

// Config holds the session timing and retry knobs.
type Config struct {
	KeepAliveTimeout time.Duration
	PollInterval     time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	MaxReconnects    int
}

func DefaultConfig() Config {
	return Config{
		KeepAliveTimeout: DefaultKeepAliveTimeout,
		PollInterval:     DefaultPollInterval,
		HandshakeTimeout: DefaultHandshakeTimeout,
		WriteTimeout:     DefaultWriteTimeout,
		MaxReconnects:    DefaultMaxReconnects,
	}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.KeepAliveTimeout <= 0 {
		c.KeepAliveTimeout = def.KeepAliveTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.MaxReconnects <= 0 {
		c.MaxReconnects = def.MaxReconnects
	}

	return c
}
