package connectors

import "time"

// ConnectionState describes the radio lifecycle state.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateConnected    ConnectionState = "connected"
	ConnectionStateClosed       ConnectionState = "closed"
)

// ConnStatus is a bus event snapshot of the radio connection.
type ConnStatus struct {
	State         ConnectionState
	Err           string
	TransportName string
	Target        string
	Timestamp     time.Time
}

// RawFrame carries ANT message diagnostics for debug logging.
type RawFrame struct {
	Hex string
	Len int
}

// BroadcastEvent describes one transmitted tick.
type BroadcastEvent struct {
	At           time.Time
	Power        int
	Cadence      int
	CumRevCount  uint16
	CumPower     uint16
	EventCount   uint8
	EventTimeMS  uint16
	SpeedMPS     float64
	DisplaySpeed float64
	PowerPage    [8]byte
	SpeedPage    [8]byte
}

// TickSkipped is published when a tick had no telemetry to send.
type TickSkipped struct {
	At time.Time
}
