//go:build !unix && !windows

package platform

import (
	"fmt"
	"runtime"
)

func acquireDaemonLock(_ string) (DaemonLock, error) {
	return nil, fmt.Errorf("%w on %s", ErrDaemonLockUnsupported, runtime.GOOS)
}
