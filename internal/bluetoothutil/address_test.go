package bluetoothutil

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress(" aa:bb:cc:dd:ee:ff ")
	if err != nil {
		t.Fatalf("parse address: %v", err)
	}
	if addr.MAC.String() != "AA:BB:CC:DD:EE:FF" {
		t.Fatalf("unexpected MAC: %s", addr.MAC.String())
	}

	if _, err := ParseAddress("   "); err == nil {
		t.Fatalf("expected error for empty address")
	}
	if _, err := ParseAddress("not-a-mac"); err == nil {
		t.Fatalf("expected error for malformed address")
	}
}

func TestIsUnknownDeviceError(t *testing.T) {
	unknown := dbus.NewError("org.freedesktop.DBus.Error.UnknownMethod", []interface{}{
		`Method "Get" with signature "ss" on interface "org.freedesktop.DBus.Properties" doesn't exist`,
	})
	if !isUnknownDeviceError(unknown) {
		t.Fatalf("expected unknown method error to trigger discovery")
	}
	if isUnknownDeviceError(errors.New("connection refused")) {
		t.Fatalf("unexpected discovery retry for unrelated error")
	}
	if ShouldRetryConnectWithDiscovery(nil) {
		t.Fatalf("nil error must not trigger discovery")
	}
}
