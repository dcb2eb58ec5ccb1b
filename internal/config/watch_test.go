package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchReloadsOnSave(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "config.json")
	if err := Save(path, Default()); err != nil {
		t.Fatalf("save initial config: %v", err)
	}

	reloaded := make(chan AppConfig, 4)
	err := Watch(ctx, path, 50*time.Millisecond, nil, func(cfg AppConfig, err error) {
		if err != nil {
			t.Errorf("reload failed: %v", err)

			return
		}
		reloaded <- cfg
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	cfg := Default()
	cfg.Connection.Host = "changed.local"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save changed config: %v", err)
	}

	select {
	case got := <-reloaded:
		if got.Connection.Host != "changed.local" {
			t.Fatalf("expected reloaded host, got %q", got.Connection.Host)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for config reload")
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "absent", "config.json"), 0, nil, func(AppConfig, error) {})
	if err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
