package transport

import (
	"errors"
	"testing"
	"time"
)

func TestUSBTransportMatches(t *testing.T) {
	tr := NewUSBTransport(0x0FCF, []uint16{0x1008, 0x1009}, time.Second)

	tests := []struct {
		name    string
		vendor  uint16
		product uint16
		want    bool
	}{
		{name: "antusb2", vendor: 0x0FCF, product: 0x1008, want: true},
		{name: "antusb-m", vendor: 0x0FCF, product: 0x1009, want: true},
		{name: "antusb1 is serial only", vendor: 0x0FCF, product: 0x1004, want: false},
		{name: "foreign vendor", vendor: 0x1234, product: 0x1008, want: false},
	}

	for _, tc := range tests {
		if got := tr.matches(tc.vendor, tc.product); got != tc.want {
			t.Fatalf("%s: matches(%#04x, %#04x) = %v, want %v", tc.name, tc.vendor, tc.product, got, tc.want)
		}
	}
}

func TestUSBTransportNotConnected(t *testing.T) {
	tr := NewUSBTransport(0x0FCF, []uint16{0x1008}, 0)

	if tr.Name() != "usb" {
		t.Fatalf("unexpected name: %q", tr.Name())
	}
	if tr.StatusTarget() != "" {
		t.Fatalf("expected empty target before connect")
	}
	if err := tr.WriteFrame(t.Context(), []byte{0x4A, 0x00}); !errors.Is(err, errNotConnected) {
		t.Fatalf("expected not connected error, got %v", err)
	}
	if _, err := tr.ReadFrame(t.Context()); !errors.Is(err, errNotConnected) {
		t.Fatalf("expected not connected error, got %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("close without connect must be a no-op: %v", err)
	}
}

func TestNewUSBTransportCopiesProductIDs(t *testing.T) {
	ids := []uint16{0x1008}
	tr := NewUSBTransport(0x0FCF, ids, 0)
	ids[0] = 0x9999

	if !tr.matches(0x0FCF, 0x1008) {
		t.Fatalf("transport must keep its own product id list")
	}
}
