package telemetry

import (
	"math"
	"sync"
	"time"
)

// Sample is one instantaneous reading from a bike.
type Sample struct {
	At       time.Time
	Power    int
	Cadence  float64
	SpeedMPS float64
}

// Accumulator turns instantaneous samples into the cumulative counters ANT+
// pages carry. It is safe for one writer and many readers.
type Accumulator struct {
	staleAfter time.Duration
	now        func() time.Time

	mu          sync.RWMutex
	seen        bool
	start       time.Time
	last        Sample
	revolutions float64
	cumRevs     uint32
	cumPower    uint32
	eventCount  uint32
	eventTimeMS uint32
}

func NewAccumulator(staleAfter time.Duration) *Accumulator {
	return &Accumulator{staleAfter: staleAfter, now: time.Now}
}

// Update records s. Each sample is one power event. Crank revolutions are
// integrated from cadence; the event time is the interpolated moment of the
// last completed revolution, in ms since the first sample.
func (a *Accumulator) Update(s Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.seen {
		a.seen = true
		a.start = s.At
		a.last = s
		a.record(s)
		return
	}

	dt := s.At.Sub(a.last.At).Seconds()
	if dt > 0 && a.last.Cadence > 0 {
		revsPerSec := a.last.Cadence / 60
		before := a.revolutions
		a.revolutions += revsPerSec * dt
		if whole := math.Floor(a.revolutions); whole > math.Floor(before) {
			sinceLast := (whole - before) / revsPerSec
			at := a.last.At.Sub(a.start).Seconds() + sinceLast
			a.eventTimeMS = uint32(int64(at * 1000))
			a.cumRevs += uint32(whole - math.Floor(before))
		}
	}
	a.last = s
	a.record(s)
}

func (a *Accumulator) record(s Sample) {
	a.eventCount++
	if s.Power > 0 {
		a.cumPower += uint32(s.Power)
	}
}

func (a *Accumulator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	snap := Snapshot{
		Power:       a.last.Power,
		Cadence:     int(math.Round(a.last.Cadence)),
		CumRevCount: a.cumRevs,
		CumPower:    a.cumPower,
		EventCount:  a.eventCount,
		EventTimeMS: a.eventTimeMS,
		SpeedMPS:    a.last.SpeedMPS,
	}
	if !a.seen || (a.staleAfter > 0 && a.now().Sub(a.last.At) > a.staleAfter) {
		snap.NoData = true
	}

	return snap
}
