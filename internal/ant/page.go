package ant

import "encoding/binary"

// PageSize is the fixed ANT+ broadcast payload size.
const PageSize = 8

const (
	PowerOnlyPageID    byte = 0x10
	SpeedDefaultPageID byte = 0x00

	reservedByte byte   = 0xFF
	reservedWord uint16 = 0xFFFF
)

// Page is one ANT+ data page. Reserved fields are all ones.
type Page [PageSize]byte

// PowerOnlyPage builds the bicycle power "standard power-only" page 0x10.
// Pedal power is not reported.
func PowerOnlyPage(eventCount, cadence uint8, accumulatedPower, instantaneousPower uint16) Page {
	var p Page
	p[0] = PowerOnlyPageID
	p[1] = eventCount
	p[2] = reservedByte
	p[3] = cadence
	binary.LittleEndian.PutUint16(p[4:6], accumulatedPower)
	binary.LittleEndian.PutUint16(p[6:8], instantaneousPower)

	return p
}

// SpeedDefaultPage builds the bicycle speed default page 0x00.
func SpeedDefaultPage(eventTime, revolutionCount uint16) Page {
	var p Page
	p[0] = SpeedDefaultPageID
	p[1] = reservedByte
	binary.LittleEndian.PutUint16(p[2:4], reservedWord)
	binary.LittleEndian.PutUint16(p[4:6], eventTime)
	binary.LittleEndian.PutUint16(p[6:8], revolutionCount)

	return p
}
