//go:build unix

package platform

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"syscall"
)

type unixDaemonLock struct {
	file *os.File
}

func acquireDaemonLock(path string) (DaemonLock, error) {
	// #nosec G304 -- path is built from the app config directory.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open daemon lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN) {
			return nil, ErrDaemonRunning
		}

		return nil, fmt.Errorf("lock daemon file: %w", err)
	}

	if err := writePID(file); err != nil {
		_ = file.Close()

		return nil, err
	}

	return &unixDaemonLock{file: file}, nil
}

func writePID(file *os.File) error {
	if err := file.Truncate(0); err != nil {
		return fmt.Errorf("truncate daemon lock file: %w", err)
	}
	if _, err := file.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		return fmt.Errorf("write daemon pid: %w", err)
	}

	return nil
}

func (l *unixDaemonLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	unlockErr := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if unlockErr != nil && !errors.Is(unlockErr, syscall.EBADF) {
		return fmt.Errorf("unlock daemon file: %w", unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close daemon lock file: %w", closeErr)
	}

	return nil
}
