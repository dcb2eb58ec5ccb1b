package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultWatchDebounce = 500 * time.Millisecond

// Watch reloads the config file after it changes and passes the result to
// onChange. Editors that save via rename are handled by watching the
// directory. Bursts of events are collapsed into one reload.
func Watch(ctx context.Context, path string, debounce time.Duration, logger *slog.Logger, onChange func(AppConfig, error)) error {
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "config_watch", "path", path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()

		return fmt.Errorf("watch config dir %s: %w", dir, err)
	}
	name := filepath.Clean(path)

	go func() {
		defer func() { _ = w.Close() }()

		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		reload := func() {
			cfg, err := Load(name)
			if err == nil {
				err = cfg.Validate()
			}
			onChange(cfg, err)
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != name {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				logger.Debug("config file changed", "op", event.Op.String())
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, reload)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", "error", err)
			}
		}
	}()

	return nil
}
