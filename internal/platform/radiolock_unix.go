//go:build unix

package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

type flockRadioLock struct {
	file *os.File
}

func acquireRadioLock(appID, target string) (RadioLock, error) {
	dir, err := radioLockDir(appID)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, target+".lock")

	// #nosec G304 -- path is built from the runtime dir and a sanitised target.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open radio lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN) {
			return nil, ErrRadioInUse
		}

		return nil, fmt.Errorf("acquire radio lock: %w", err)
	}
	_ = file.Truncate(0)
	_, _ = file.WriteString(strconv.Itoa(os.Getpid()) + "\n")

	return &flockRadioLock{file: file}, nil
}

func (l *flockRadioLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	unlockErr := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if unlockErr != nil && !errors.Is(unlockErr, syscall.EBADF) {
		return fmt.Errorf("unlock radio lock: %w", unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close radio lock file: %w", closeErr)
	}

	return nil
}

// radioLockDir prefers XDG_RUNTIME_DIR and falls back to a per-user temp dir.
func radioLockDir(appID string) (string, error) {
	dir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if dir != "" {
		dir = filepath.Join(dir, appID)
	} else {
		dir = filepath.Join(os.TempDir(), appID+"-"+strconv.Itoa(os.Getuid()))
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create radio lock dir: %w", err)
	}

	return dir, nil
}
