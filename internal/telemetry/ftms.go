package telemetry

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Indoor Bike Data flag bits. Bit 0 is inverted: clear means the
// instantaneous speed field is present.
const (
	ibdMoreData uint16 = 1 << iota
	ibdAverageSpeed
	ibdInstantaneousCadence
	ibdAverageCadence
	ibdTotalDistance
	ibdResistanceLevel
	ibdInstantaneousPower
	ibdAveragePower
	ibdExpendedEnergy
	ibdHeartRate
)

var ErrShortIndoorBikeData = errors.New("indoor bike data truncated")

// IndoorBikeData is the decoded subset of an FTMS Indoor Bike Data
// notification. Has* report which optional fields were present.
type IndoorBikeData struct {
	SpeedKPH      float64
	CadenceRPM    float64
	PowerW        int
	HeartRateBPM  int
	DistanceM     uint32
	Resistance    int
	HasSpeed      bool
	HasCadence    bool
	HasPower      bool
	HasHeartRate  bool
	HasDistance   bool
	HasResistance bool
}

func ParseIndoorBikeData(payload []byte) (IndoorBikeData, error) {
	r := fieldReader{buf: payload}
	flags, err := r.uint16()
	if err != nil {
		return IndoorBikeData{}, err
	}

	var out IndoorBikeData
	if flags&ibdMoreData == 0 {
		v, err := r.uint16()
		if err != nil {
			return IndoorBikeData{}, fmt.Errorf("speed: %w", err)
		}
		out.SpeedKPH = float64(v) / 100
		out.HasSpeed = true
	}
	if flags&ibdAverageSpeed != 0 {
		if err := r.skip(2); err != nil {
			return IndoorBikeData{}, fmt.Errorf("average speed: %w", err)
		}
	}
	if flags&ibdInstantaneousCadence != 0 {
		v, err := r.uint16()
		if err != nil {
			return IndoorBikeData{}, fmt.Errorf("cadence: %w", err)
		}
		out.CadenceRPM = float64(v) / 2
		out.HasCadence = true
	}
	if flags&ibdAverageCadence != 0 {
		if err := r.skip(2); err != nil {
			return IndoorBikeData{}, fmt.Errorf("average cadence: %w", err)
		}
	}
	if flags&ibdTotalDistance != 0 {
		b, err := r.take(3)
		if err != nil {
			return IndoorBikeData{}, fmt.Errorf("distance: %w", err)
		}
		out.DistanceM = uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
		out.HasDistance = true
	}
	if flags&ibdResistanceLevel != 0 {
		v, err := r.uint16()
		if err != nil {
			return IndoorBikeData{}, fmt.Errorf("resistance: %w", err)
		}
		out.Resistance = int(int16(v))
		out.HasResistance = true
	}
	if flags&ibdInstantaneousPower != 0 {
		v, err := r.uint16()
		if err != nil {
			return IndoorBikeData{}, fmt.Errorf("power: %w", err)
		}
		out.PowerW = int(int16(v))
		out.HasPower = true
	}
	if flags&ibdAveragePower != 0 {
		if err := r.skip(2); err != nil {
			return IndoorBikeData{}, fmt.Errorf("average power: %w", err)
		}
	}
	if flags&ibdExpendedEnergy != 0 {
		if err := r.skip(5); err != nil {
			return IndoorBikeData{}, fmt.Errorf("expended energy: %w", err)
		}
	}
	if flags&ibdHeartRate != 0 {
		b, err := r.take(1)
		if err != nil {
			return IndoorBikeData{}, fmt.Errorf("heart rate: %w", err)
		}
		out.HeartRateBPM = int(b[0])
		out.HasHeartRate = true
	}

	return out, nil
}

type fieldReader struct {
	buf []byte
	off int
}

func (r *fieldReader) take(n int) ([]byte, error) {
	if r.off+n > len(r.buf) {
		return nil, ErrShortIndoorBikeData
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *fieldReader) skip(n int) error {
	_, err := r.take(n)
	return err
}

func (r *fieldReader) uint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}
