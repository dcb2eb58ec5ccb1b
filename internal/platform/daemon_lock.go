package platform

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrDaemonRunning means another process holds the daemon lock for the directory.
var ErrDaemonRunning = errors.New("another clemremote daemon is running")

// ErrDaemonLockUnsupported means the platform has no file locking backend.
var ErrDaemonLockUnsupported = errors.New("daemon lock unsupported")

// DaemonLock is held for the lifetime of a relay daemon.
type DaemonLock interface {
	Release() error
}

// AcquireDaemonLock takes an exclusive, non-blocking lock on name.lock in dir.
// The lock is dropped by the OS when the process exits.
func AcquireDaemonLock(dir, name string) (DaemonLock, error) {
	return acquireDaemonLock(daemonLockPath(dir, name))
}

func daemonLockPath(dir, name string) string {
	return filepath.Join(dir, sanitizeLockName(name, "daemon")+".lock")
}

func sanitizeLockName(raw, fallback string) string {
	raw = strings.TrimSpace(raw)

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	name := strings.Trim(b.String(), "_-.")
	if name == "" {
		return fallback
	}

	return name
}
