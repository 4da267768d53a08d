package telemetry

// Snapshot is a read-only view of the bike at one point in time. Counter
// fields are free-running; encoders truncate them to the wire width.
type Snapshot struct {
	Power       int
	Cadence     int
	CumRevCount uint32
	CumPower    uint32
	EventCount  uint32
	EventTimeMS uint32
	SpeedMPS    float64
	NoData      bool
}

// Source is pulled once per broadcast tick.
type Source interface {
	Snapshot() Snapshot
}
