package bluetoothutil

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"tinygo.org/x/bluetooth"
)

const defaultDiscoverWait = 12 * time.Second

func ParseAddress(raw string) (bluetooth.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return bluetooth.Address{}, errors.New("bluetooth address is empty")
	}

	mac, err := bluetooth.ParseMAC(strings.ToUpper(trimmed))
	if err != nil {
		return bluetooth.Address{}, fmt.Errorf("invalid bluetooth address %q: %w", trimmed, err)
	}

	return bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}, nil
}

// ShouldRetryConnectWithDiscovery reports whether BlueZ refused a direct
// connect because it has not seen the device in this session yet.
func ShouldRetryConnectWithDiscovery(err error) bool {
	if err == nil || runtime.GOOS != "linux" {
		return false
	}

	return isUnknownDeviceError(err)
}

func isUnknownDeviceError(err error) bool {
	msg := strings.ToLower(err.Error())
	if IsDBusErrorName(err, "org.freedesktop.DBus.Error.UnknownMethod") {
		return strings.Contains(msg, "org.freedesktop.dbus.properties") &&
			strings.Contains(msg, "method \"get\"")
	}

	return strings.Contains(msg, "org.freedesktop.dbus.properties") &&
		strings.Contains(msg, "method \"get\"") &&
		strings.Contains(msg, "doesn't exist")
}

// DiscoverDevice scans until target shows up, ctx ends or the default
// discovery window passes.
func DiscoverDevice(ctx context.Context, adapter *bluetooth.Adapter, target bluetooth.Address) error {
	if err := StopScan(adapter); err != nil {
		return fmt.Errorf("reset bluetooth scan state: %w", err)
	}

	scanCtx := ctx
	if _, hasDeadline := scanCtx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(scanCtx, defaultDiscoverWait)
		defer cancel()
	}

	foundCh := make(chan struct{}, 1)
	scanErrCh := make(chan error, 1)
	go func() {
		scanErrCh <- adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			if result.Address.MAC != target.MAC {
				return
			}
			select {
			case foundCh <- struct{}{}:
			default:
			}
			_ = adapter.StopScan()
		})
	}()

	found := false
	select {
	case <-foundCh:
		found = true
	case <-scanCtx.Done():
		_ = StopScan(adapter)
	}

	if scanErr := NormalizeScanError(<-scanErrCh); scanErr != nil {
		if IsScanAlreadyInProgressError(scanErr) {
			return fmt.Errorf("another bluetooth scan is running: %w", scanErr)
		}
		return fmt.Errorf("scan bluetooth devices: %w", scanErr)
	}
	if !found {
		return fmt.Errorf("device %q was not discovered; wake the trainer and keep it nearby", target.String())
	}

	return nil
}
