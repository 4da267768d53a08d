package broadcast

import (
	"github.com/skobkin/antbridge/internal/ant"
	"github.com/skobkin/antbridge/internal/telemetry"
)

// EncodePowerPage truncates snapshot counters to their on-air widths.
func EncodePowerPage(s telemetry.Snapshot) ant.Page {
	return ant.PowerOnlyPage(
		uint8(s.EventCount),
		uint8(s.Cadence),
		uint16(s.CumPower),
		uint16(s.Power),
	)
}

func EncodeSpeedPage(s telemetry.Snapshot) ant.Page {
	return ant.SpeedDefaultPage(uint16(s.EventTimeMS), uint16(s.CumRevCount))
}
