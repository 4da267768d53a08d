package ant

import (
	"bytes"
	"testing"
)

func TestPowerOnlyPageLayout(t *testing.T) {
	got := PowerOnlyPage(5, 90, 1000, 200)
	want := []byte{0x10, 0x05, 0xFF, 0x5A, 0xE8, 0x03, 0xC8, 0x00}
	if !bytes.Equal(got[:], want) {
		t.Fatalf("power page mismatch: got % X want % X", got, want)
	}
}

func TestSpeedDefaultPageLayout(t *testing.T) {
	got := SpeedDefaultPage(2000, 50)
	want := []byte{0x00, 0xFF, 0xFF, 0xFF, 0xD0, 0x07, 0x32, 0x00}
	if !bytes.Equal(got[:], want) {
		t.Fatalf("speed page mismatch: got % X want % X", got, want)
	}
}

func TestPagesUseAllOnesForReservedFields(t *testing.T) {
	power := PowerOnlyPage(0, 0, 0, 0)
	if power[2] != 0xFF {
		t.Fatalf("power page reserved byte must be 0xFF, got %#02x", power[2])
	}
	speed := SpeedDefaultPage(0, 0)
	if speed[1] != 0xFF || speed[2] != 0xFF || speed[3] != 0xFF {
		t.Fatalf("speed page reserved bytes must be 0xFF, got % X", speed[1:4])
	}
}
