package sink

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/skobkin/antbridge/internal/bus"
	"github.com/skobkin/antbridge/internal/config"
	"github.com/skobkin/antbridge/internal/connectors"
)

const (
	defaultWriteTimeout = 2 * time.Second
	defaultQueueSize    = 256
)

// PointWriter is satisfied by api.WriteAPIBlocking.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxSink exports every transmitted tick as one point. Points wait in a
// bounded queue and are dropped when InfluxDB falls behind, so the bus never
// backs up into the broadcast loop.
type InfluxSink struct {
	logger      *slog.Logger
	writer      PointWriter
	measurement string
	tags        map[string]string
	queue       chan *write.Point
	done        chan struct{}
}

// NewInfluxClient returns the client, which the caller closes, and its
// blocking write API.
func NewInfluxClient(cfg config.InfluxConfig) (influxdb2.Client, PointWriter) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return client, client.WriteAPIBlocking(cfg.Org, cfg.Bucket)
}

func NewInfluxSink(logger *slog.Logger, writer PointWriter, measurement string, sensorID uint16) *InfluxSink {
	if logger == nil {
		logger = slog.Default()
	}
	if measurement == "" {
		measurement = config.DefaultInfluxMeasurement
	}

	return &InfluxSink{
		logger:      logger,
		writer:      writer,
		measurement: measurement,
		tags:        map[string]string{"sensor_id": strconv.Itoa(int(sensorID))},
		queue:       make(chan *write.Point, defaultQueueSize),
		done:        make(chan struct{}),
	}
}

func (s *InfluxSink) Start(ctx context.Context, b bus.MessageBus) {
	sub := b.Subscribe(connectors.TopicBroadcast)
	go bus.Consume(ctx, b, sub, s.enqueue)
	go s.run(ctx)
}

// Wait blocks until the writer goroutine has exited.
func (s *InfluxSink) Wait() {
	<-s.done
}

func (s *InfluxSink) enqueue(e connectors.BroadcastEvent) {
	select {
	case s.queue <- s.Point(e):
	default:
		s.logger.Warn("influx queue full, dropping point", "at", e.At)
	}
}

func (s *InfluxSink) run(ctx context.Context) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case p := <-s.queue:
			s.write(ctx, p)
		}
	}
}

func (s *InfluxSink) write(ctx context.Context, p *write.Point) {
	writeCtx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	if err := s.writer.WritePoint(writeCtx, p); err != nil {
		s.logger.Warn("influx write failed", "error", err)
	}
}

func (s *InfluxSink) Point(e connectors.BroadcastEvent) *write.Point {
	return influxdb2.NewPoint(s.measurement, s.tags, map[string]interface{}{
		"power":         e.Power,
		"cadence":       e.Cadence,
		"speed_mps":     e.SpeedMPS,
		"cum_rev_count": int(e.CumRevCount),
		"cum_power":     int(e.CumPower),
		"event_count":   int(e.EventCount),
		"event_time_ms": int(e.EventTimeMS),
	}, e.At)
}
