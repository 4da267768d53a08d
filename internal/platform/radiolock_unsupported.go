//go:build !unix && !windows

package platform

import (
	"fmt"
	"runtime"
)

func acquireRadioLock(_, _ string) (RadioLock, error) {
	return nil, fmt.Errorf("%w on %s", ErrRadioLockUnsupported, runtime.GOOS)
}
