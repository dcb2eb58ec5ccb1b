//go:build windows

package platform

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/windows"
)

type windowsDaemonLock struct {
	file *os.File
}

func acquireDaemonLock(path string) (DaemonLock, error) {
	// #nosec G304 -- path is built from the app config directory.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open daemon lock file: %w", err)
	}

	ol := new(windows.Overlapped)
	flags := uint32(windows.LOCKFILE_EXCLUSIVE_LOCK | windows.LOCKFILE_FAIL_IMMEDIATELY)
	if err := windows.LockFileEx(windows.Handle(file.Fd()), flags, 0, 1, 0, ol); err != nil {
		_ = file.Close()
		if errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
			return nil, ErrDaemonRunning
		}

		return nil, fmt.Errorf("lock daemon file: %w", err)
	}

	err = file.Truncate(0)
	if err == nil {
		_, err = file.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	if err != nil {
		_ = windows.UnlockFileEx(windows.Handle(file.Fd()), 0, 1, 0, ol)
		_ = file.Close()

		return nil, fmt.Errorf("write daemon pid: %w", err)
	}

	return &windowsDaemonLock{file: file}, nil
}

func (l *windowsDaemonLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	unlockErr := windows.UnlockFileEx(windows.Handle(l.file.Fd()), 0, 1, 0, new(windows.Overlapped))
	closeErr := l.file.Close()
	l.file = nil

	if unlockErr != nil {
		return fmt.Errorf("unlock daemon file: %w", unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close daemon lock file: %w", closeErr)
	}

	return nil
}
