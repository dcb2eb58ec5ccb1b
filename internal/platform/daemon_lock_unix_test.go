//go:build unix

package platform

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"
)

func TestAcquireDaemonLock_ContentionAndRelease(t *testing.T) {
	dir := t.TempDir()

	first, err := AcquireDaemonLock(dir, "relay")
	if err != nil {
		t.Fatalf("acquire first lock: %v", err)
	}

	second, err := AcquireDaemonLock(dir, "relay")
	if !errors.Is(err, ErrDaemonRunning) {
		t.Fatalf("expected %v, got %v", ErrDaemonRunning, err)
	}
	if second != nil {
		t.Fatalf("expected no second lock, got %#v", second)
	}

	other, err := AcquireDaemonLock(dir, "other")
	if err != nil {
		t.Fatalf("lock with another name should not contend: %v", err)
	}
	if err := other.Release(); err != nil {
		t.Fatalf("release other lock: %v", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("release first lock: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("second release should be a no-op: %v", err)
	}

	third, err := AcquireDaemonLock(dir, "relay")
	if err != nil {
		t.Fatalf("acquire lock after release: %v", err)
	}
	defer func() { _ = third.Release() }()
}

func TestAcquireDaemonLock_WritesPID(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireDaemonLock(dir, "relay")
	if err != nil {
		t.Fatalf("acquire lock: %v", err)
	}
	defer func() { _ = lock.Release() }()

	raw, err := os.ReadFile(daemonLockPath(dir, "relay"))
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	if got := strings.TrimSpace(string(raw)); got != strconv.Itoa(os.Getpid()) {
		t.Fatalf("expected pid %d in lock file, got %q", os.Getpid(), got)
	}
}
