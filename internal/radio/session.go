package radio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/skobkin/antbridge/internal/ant"
	"github.com/skobkin/antbridge/internal/config"
)

// Session owns the node and the power and speed channels for the lifetime
// of one broadcast run.
type Session struct {
	node     *Node
	channels []*Channel
	Power    *Channel
	Speed    *Channel

	closeOnce sync.Once
	closeErr  error
}

// ChannelSpecs derives the power and speed channel specs from cfg.
func ChannelSpecs(cfg config.AntConfig) (ChannelSpec, ChannelSpec) {
	base := ChannelSpec{
		Type:             ant.ChannelTypeBidirectionalTransmit,
		Network:          cfg.NetworkNumber,
		DeviceNumber:     cfg.SensorID,
		TransmissionType: cfg.TransmissionType,
	}

	power := base
	power.Name = "power"
	power.DeviceType = cfg.Power.DeviceType
	power.Period = cfg.Power.Period
	power.RFFrequency = cfg.Power.RFFrequency

	speed := base
	speed.Name = "speed"
	speed.DeviceType = cfg.Speed.DeviceType
	speed.Period = cfg.Speed.Period
	speed.RFFrequency = cfg.Speed.RFFrequency

	return power, speed
}

// OpenSession starts node and opens both channels. Any failure is fatal for
// the session: whatever was opened is closed again before returning.
func OpenSession(ctx context.Context, node *Node, cfg config.AntConfig) (*Session, error) {
	key, err := cfg.Key()
	if err != nil {
		return nil, err
	}

	s := &Session{node: node}
	if err := node.Start(ctx, cfg.NetworkNumber, key); err != nil {
		_ = node.Stop()
		return nil, err
	}

	node.logger.Info("starting CSC/CP", "sensor_id", cfg.SensorID)
	powerSpec, speedSpec := ChannelSpecs(cfg)
	for _, spec := range []ChannelSpec{powerSpec, speedSpec} {
		ch, err := node.OpenChannel(ctx, spec)
		if err != nil {
			return nil, errors.Join(err, s.Close(context.WithoutCancel(ctx)))
		}
		s.channels = append(s.channels, ch)
	}
	s.Power = s.channels[0]
	s.Speed = s.channels[1]

	return s, nil
}

// Close closes every opened channel in opening order, then stops the node.
// Only the first call does anything; later calls return the same result.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		var errs []error
		for _, ch := range s.channels {
			if err := ch.Close(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		if err := s.node.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop node: %w", err))
		}
		s.closeErr = errors.Join(errs...)
	})

	return s.closeErr
}
