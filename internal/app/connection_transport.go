package app

import (
	"log/slog"

	"github.com/skobkin/clemremote/internal/config"
	"github.com/skobkin/clemremote/internal/session"
	"github.com/skobkin/clemremote/internal/transport"
)

func NewDialer(cfg config.SessionConfig, logger *slog.Logger) transport.Dialer {
	return transport.NewTCPDialer(cfg.DialTimeout.Std(), logger)
}

func SessionConfig(cfg config.SessionConfig) session.Config {
	return session.Config{
		KeepAliveTimeout: cfg.KeepAliveTimeout.Std(),
		PollInterval:     cfg.PollInterval.Std(),
		HandshakeTimeout: cfg.HandshakeTimeout.Std(),
		WriteTimeout:     cfg.WriteTimeout.Std(),
		MaxReconnects:    cfg.MaxReconnects,
	}
}
