package app

import (
	"strings"

	"github.com/skobkin/clemremote/internal/config"
	"github.com/skobkin/clemremote/internal/connectors"
	"github.com/skobkin/clemremote/internal/protocol"
)

// ConnectionTarget renders host:port of the configured player, or "" when
// no host is set.
func ConnectionTarget(cfg config.ConnectionConfig) string {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return ""
	}

	return ConnectionParams(cfg).Target()
}

// ConnectionStatusFromConfig is the status reported before any session ran.
func ConnectionStatusFromConfig(cfg config.ConnectionConfig) connectors.ConnectionStatus {
	return connectors.ConnectionStatus{
		State:  connectors.ConnectionStateIdle,
		Target: ConnectionTarget(cfg),
	}
}

func ConnectionParams(cfg config.ConnectionConfig) protocol.ConnectionParameters {
	return protocol.ConnectionParameters{
		Host:              strings.TrimSpace(cfg.Host),
		Port:              cfg.Port,
		AuthCode:          cfg.AuthCode,
		SendPlaylistSongs: cfg.SendPlaylistSongs,
		Downloader:        cfg.Downloader,
	}
}
