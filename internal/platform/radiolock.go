package platform

import (
	"errors"
	"strings"
)

// ErrRadioInUse means another bridge process holds the lock for the same stick.
var ErrRadioInUse = errors.New("ANT radio is in use by another process")

var ErrRadioLockUnsupported = errors.New("radio lock unsupported")

type RadioLock interface {
	Release() error
}

// AcquireRadioLock takes a per-user, per-target process lock. Two bridges
// driving one stick would interleave channel configuration, so the second
// one has to fail fast.
func AcquireRadioLock(appID, target string) (RadioLock, error) {
	return acquireRadioLock(
		lockComponent(appID, "app"),
		lockComponent(target, "default"),
	)
}

func lockComponent(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

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

	normalized := strings.Trim(b.String(), "_-.")
	if normalized == "" {
		return fallback
	}

	return normalized
}
