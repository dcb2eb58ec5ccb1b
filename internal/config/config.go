package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultPort               = 5500
	MaxAuthCode               = 99999
	DefaultKeepAliveTimeout   = 25 * time.Second
	DefaultPollInterval       = 3 * time.Second
	DefaultDialTimeout        = 3 * time.Second
	DefaultHandshakeTimeout   = 3 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultMaxReconnects      = 5
	DefaultMinProtocolVersion = 21
	DefaultRelayListen        = "127.0.0.1:8765"
	DefaultHistoryRetention   = 90
)

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level     string `json:"level"`
	Format    string `json:"format"`
	LogToFile bool   `json:"log_to_file"`
}

// ConnectionConfig holds the player endpoint and CONNECT options.
type ConnectionConfig struct {
	Host              string `json:"host"`
	Port              int    `json:"port"`
	AuthCode          int32  `json:"auth_code"`
	SendPlaylistSongs bool   `json:"send_playlist_songs"`
	Downloader        bool   `json:"downloader"`
}

// SessionConfig holds keep-alive, reconnect and timeout tuning.
type SessionConfig struct {
	KeepAliveTimeout   Duration `json:"keep_alive_timeout"`
	PollInterval       Duration `json:"poll_interval"`
	DialTimeout        Duration `json:"dial_timeout"`
	HandshakeTimeout   Duration `json:"handshake_timeout"`
	WriteTimeout       Duration `json:"write_timeout"`
	MaxReconnects      int      `json:"max_reconnects"`
	MinProtocolVersion int32    `json:"min_protocol_version"`
}

// RelayConfig controls the local HTTP/WebSocket relay.
type RelayConfig struct {
	Listen string `json:"listen"`
}

// HistoryConfig controls the sqlite session and playback history.
type HistoryConfig struct {
	Enabled       bool `json:"enabled"`
	RetentionDays int  `json:"retention_days"`
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	Connection ConnectionConfig `json:"connection"`
	Session    SessionConfig    `json:"session"`
	Logging    LoggingConfig    `json:"logging"`
	Relay      RelayConfig      `json:"relay"`
	History    HistoryConfig    `json:"history"`
}

func Default() AppConfig {
	return AppConfig{
		Connection: ConnectionConfig{
			Host:              "",
			Port:              DefaultPort,
			SendPlaylistSongs: true,
		},
		Session: SessionConfig{
			KeepAliveTimeout:   Duration(DefaultKeepAliveTimeout),
			PollInterval:       Duration(DefaultPollInterval),
			DialTimeout:        Duration(DefaultDialTimeout),
			HandshakeTimeout:   Duration(DefaultHandshakeTimeout),
			WriteTimeout:       Duration(DefaultWriteTimeout),
			MaxReconnects:      DefaultMaxReconnects,
			MinProtocolVersion: DefaultMinProtocolVersion,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "text",
			LogToFile: false,
		},
		Relay: RelayConfig{
			Listen: DefaultRelayListen,
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: DefaultHistoryRetention,
		},
	}
}

func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path is resolved by app runtime and points to user config dir.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config json: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

func (c *AppConfig) FillMissingDefaults() {
	def := Default()
	if c.Connection.Port <= 0 {
		c.Connection.Port = def.Connection.Port
	}
	fillDuration(&c.Session.KeepAliveTimeout, def.Session.KeepAliveTimeout)
	fillDuration(&c.Session.PollInterval, def.Session.PollInterval)
	fillDuration(&c.Session.DialTimeout, def.Session.DialTimeout)
	fillDuration(&c.Session.HandshakeTimeout, def.Session.HandshakeTimeout)
	fillDuration(&c.Session.WriteTimeout, def.Session.WriteTimeout)
	if c.Session.MaxReconnects <= 0 {
		c.Session.MaxReconnects = def.Session.MaxReconnects
	}
	if c.Session.MinProtocolVersion <= 0 {
		c.Session.MinProtocolVersion = def.Session.MinProtocolVersion
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
	if strings.TrimSpace(c.Relay.Listen) == "" {
		c.Relay.Listen = def.Relay.Listen
	}
	if c.History.RetentionDays < 0 {
		c.History.RetentionDays = 0
	}
}

func fillDuration(d *Duration, def Duration) {
	if *d <= 0 {
		*d = def
	}
}

func (c AppConfig) Validate() error {
	if c.Connection.Port < 1 || c.Connection.Port > 65535 {
		return fmt.Errorf("port must be within 1..65535, got %d", c.Connection.Port)
	}
	if c.Connection.AuthCode < 0 || c.Connection.AuthCode > MaxAuthCode {
		return fmt.Errorf("auth code must be within 0..%d", MaxAuthCode)
	}
	if c.Session.KeepAliveTimeout.Std() <= c.Session.PollInterval.Std() {
		return errors.New("keep-alive timeout must be longer than the poll interval")
	}
	if c.Session.MaxReconnects < 1 {
		return errors.New("max reconnects must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("unknown log format: %s", c.Logging.Format)
	}
	if _, _, err := net.SplitHostPort(c.Relay.Listen); err != nil {
		return fmt.Errorf("relay listen address: %w", err)
	}

	return nil
}

func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}
