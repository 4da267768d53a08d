package persistence

import (
	"context"
	"log/slog"
	"sync"

	"github.com/skobkin/antbridge/internal/bus"
	"github.com/skobkin/antbridge/internal/connectors"
)

// Recorder persists broadcast ticks and radio status changes from the bus.
type Recorder struct {
	logger      *slog.Logger
	queue       *WriterQueue
	broadcasts  *BroadcastRepo
	connections *ConnectionRepo

	wg sync.WaitGroup
}

func NewRecorder(logger *slog.Logger, queue *WriterQueue, broadcasts *BroadcastRepo, connections *ConnectionRepo) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}

	return &Recorder{
		logger:      logger,
		queue:       queue,
		broadcasts:  broadcasts,
		connections: connections,
	}
}

// Start subscribes before returning so no event published afterwards is
// missed. Events published before ctx ends are recorded even if they are
// still queued on the bus at that moment.
func (r *Recorder) Start(ctx context.Context, b bus.MessageBus) {
	broadcastSub := b.Subscribe(connectors.TopicBroadcast)
	statusSub := b.Subscribe(connectors.TopicConnStatus)

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		bus.Consume(ctx, b, broadcastSub, r.recordBroadcast)
	}()
	go func() {
		defer r.wg.Done()
		bus.Consume(ctx, b, statusSub, r.recordStatus)
	}()
	r.logger.Debug("recorder started")
}

// Wait blocks until both subscriptions are released. Every event seen by
// then has been handed to the writer queue.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) recordBroadcast(e connectors.BroadcastEvent) {
	rec := RecordFromEvent(e)
	r.queue.Enqueue("insert broadcast", func(ctx context.Context) error {
		_, err := r.broadcasts.Insert(ctx, rec)
		return err
	})
}

func (r *Recorder) recordStatus(status connectors.ConnStatus) {
	r.queue.Enqueue("insert connection event", func(ctx context.Context) error {
		return r.connections.Insert(ctx, status)
	})
}
