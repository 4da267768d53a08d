package telemetry

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	defaultSimInterval = 250 * time.Millisecond
	simGearRatio       = 2.75
	simWheelMeters     = 2.105
)

// SimSource drives an Accumulator with a rider holding roughly steady power
// and cadence. Useful for checking a head unit without a trainer.
type SimSource struct {
	acc      *Accumulator
	power    int
	cadence  int
	interval time.Duration
	rng      *rand.Rand
}

func NewSimSource(power, cadence int, staleAfter time.Duration) *SimSource {
	return &SimSource{
		acc:      NewAccumulator(staleAfter),
		power:    power,
		cadence:  cadence,
		interval: defaultSimInterval,
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(power)<<16|uint64(cadence))),
	}
}

func (s *SimSource) Snapshot() Snapshot {
	return s.acc.Snapshot()
}

// Run feeds samples until ctx is done and returns ctx.Err().
func (s *SimSource) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.step(time.Now())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case at := <-ticker.C:
			s.step(at)
		}
	}
}

func (s *SimSource) step(at time.Time) {
	s.acc.Update(s.sample(at))
}

func (s *SimSource) sample(at time.Time) Sample {
	power := s.power
	if spread := s.power / 20; spread > 0 {
		power += s.rng.IntN(2*spread+1) - spread
	}
	cadence := float64(s.cadence) + s.rng.Float64()*4 - 2
	if cadence < 0 || s.cadence == 0 {
		cadence = 0
	}

	return Sample{
		At:       at,
		Power:    max(power, 0),
		Cadence:  cadence,
		SpeedMPS: cadence / 60 * simGearRatio * simWheelMeters,
	}
}
