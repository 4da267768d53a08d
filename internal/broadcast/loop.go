package broadcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/skobkin/antbridge/internal/ant"
	"github.com/skobkin/antbridge/internal/bus"
	"github.com/skobkin/antbridge/internal/connectors"
	"github.com/skobkin/antbridge/internal/telemetry"
)

const (
	DefaultInterval     = 250 * time.Millisecond
	DefaultSpeedDivisor = 1.67
	cleanupTimeout      = 5 * time.Second
)

var ErrAlreadyStarted = errors.New("broadcast loop already started")

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Sender transmits one page on an open channel.
type Sender interface {
	Send(ctx context.Context, page ant.Page) error
}

type Options struct {
	Interval     time.Duration
	SpeedDivisor float64
	Out          io.Writer
	Now          func() time.Time
}

// Loop pushes one power page and one speed page per tick until cancelled.
// It runs once; cleanup is called exactly once when Run returns.
type Loop struct {
	logger  *slog.Logger
	bus     bus.MessageBus
	source  telemetry.Source
	power   Sender
	speed   Sender
	cleanup func(context.Context) error
	opts    Options

	state atomic.Int32
}

func New(logger *slog.Logger, b bus.MessageBus, src telemetry.Source, power, speed Sender, cleanup func(context.Context) error, opts Options) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.SpeedDivisor <= 0 {
		opts.SpeedDivisor = DefaultSpeedDivisor
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Loop{
		logger:  logger,
		bus:     b,
		source:  src,
		power:   power,
		speed:   speed,
		cleanup: cleanup,
		opts:    opts,
	}
}

func (l *Loop) State() State {
	return State(l.state.Load())
}

// Run blocks until ctx is cancelled or a transmit fails. Cancellation is a
// clean exit and returns nil.
func (l *Loop) Run(ctx context.Context) (err error) {
	if !l.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyStarted
	}
	defer func() {
		if cleanupErr := l.runCleanup(ctx); cleanupErr != nil {
			err = errors.Join(err, cleanupErr)
		}
		l.state.Store(int32(StateStopped))
	}()

	ticker := time.NewTicker(l.opts.Interval)
	defer ticker.Stop()

	l.logger.Info("broadcast loop started", "interval", l.opts.Interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := l.tick(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (l *Loop) tick(ctx context.Context) error {
	now := l.opts.Now()
	snap := l.source.Snapshot()
	if snap.NoData {
		l.logger.Info("ANT: No data")
		l.publish(connectors.TopicTickSkipped, connectors.TickSkipped{At: now})
		return nil
	}

	powerPage := EncodePowerPage(snap)
	if err := l.power.Send(ctx, powerPage); err != nil {
		return fmt.Errorf("send power page: %w", err)
	}
	speedPage := EncodeSpeedPage(snap)
	if err := l.speed.Send(ctx, speedPage); err != nil {
		return fmt.Errorf("send speed page: %w", err)
	}

	event := connectors.BroadcastEvent{
		At:           now,
		Power:        snap.Power,
		Cadence:      snap.Cadence,
		CumRevCount:  uint16(snap.CumRevCount),
		CumPower:     uint16(snap.CumPower),
		EventCount:   uint8(snap.EventCount),
		EventTimeMS:  uint16(snap.EventTimeMS),
		SpeedMPS:     snap.SpeedMPS,
		DisplaySpeed: snap.SpeedMPS * 3.6 / l.opts.SpeedDivisor,
		PowerPage:    powerPage,
		SpeedPage:    speedPage,
	}
	_, _ = fmt.Fprintln(l.opts.Out, StatusLine(event))
	l.publish(connectors.TopicBroadcast, event)

	return nil
}

func (l *Loop) runCleanup(ctx context.Context) error {
	_, _ = fmt.Fprintln(l.opts.Out, "Cancelled: Clean Up ANT+ Channels ....")
	var err error
	if l.cleanup != nil {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		err = l.cleanup(cleanupCtx)
		cancel()
		if err != nil {
			l.logger.Warn("cleanup failed", "error", err)
		}
	}
	_, _ = fmt.Fprintln(l.opts.Out, "Exiting: Finished Cleanup.")

	return err
}

func (l *Loop) publish(topic string, msg any) {
	if l.bus == nil {
		return
	}
	l.bus.Publish(topic, msg)
}

// StatusLine renders the per-tick console line.
func StatusLine(e connectors.BroadcastEvent) string {
	return fmt.Sprintf("ANT TX: %3d W %3d RPM %5d REV %5d ms %2.1f mph %d",
		e.Power, e.Cadence, e.CumRevCount, e.EventTimeMS, e.DisplaySpeed, e.At.Unix())
}
