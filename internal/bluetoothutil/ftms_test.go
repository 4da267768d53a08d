package bluetoothutil

import (
	"strings"
	"testing"
)

func TestFTMSUUIDsAreDistinct(t *testing.T) {
	service := FTMSServiceUUID()
	bikeData := FTMSIndoorBikeDataUUID()

	if service == bikeData {
		t.Fatalf("FTMS UUIDs must be distinct")
	}
}

func TestFTMSUUIDsUseBluetoothBase(t *testing.T) {
	got := strings.ToLower(FTMSIndoorBikeDataUUID().String())
	if got != "00002ad2-0000-1000-8000-00805f9b34fb" {
		t.Fatalf("unexpected indoor bike data UUID: %s", got)
	}
	if !FTMSServiceUUID().Is16Bit() {
		t.Fatalf("expected a 16-bit service UUID")
	}
}
