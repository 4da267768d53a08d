package bluetoothutil

import (
	"runtime"
	"strings"

	"tinygo.org/x/bluetooth"
)

// EnableAdapter powers up the adapter used to reach the trainer. Enabling an
// adapter that is already up is not an error.
func EnableAdapter(adapter *bluetooth.Adapter) error {
	err := adapter.Enable()
	if err == nil || isBenignEnableAdapterError(err) {
		return nil
	}

	return err
}

func isBenignEnableAdapterError(err error) bool {
	if err == nil || runtime.GOOS != "windows" {
		return false
	}

	// tinygo.org/x/bluetooth on Windows surfaces RoInitialize(S_FALSE=1) as
	// "Incorrect function.", even though this means COM is already initialized.
	msg := strings.TrimSpace(strings.ToLower(err.Error()))

	return msg == "incorrect function" || msg == "incorrect function."
}
