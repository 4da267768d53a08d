package bluetoothutil

import "tinygo.org/x/bluetooth"

// Fitness Machine Service assigned numbers.
var (
	ftmsServiceUUID        = bluetooth.New16BitUUID(0x1826)
	ftmsIndoorBikeDataUUID = bluetooth.New16BitUUID(0x2AD2)
)

func FTMSServiceUUID() bluetooth.UUID {
	return ftmsServiceUUID
}

func FTMSIndoorBikeDataUUID() bluetooth.UUID {
	return ftmsIndoorBikeDataUUID
}
