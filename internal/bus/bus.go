package bus

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/cskr/pubsub"
)

const defaultCapacity = 128

type Subscription chan any

type MessageBus interface {
	Publish(topic string, msg any)
	Subscribe(topic string) Subscription
	Unsubscribe(ch Subscription, topics ...string)
	Close()
}

// PubSubBus fans broadcast and status events out to the recorder, the
// InfluxDB sink and diagnostics.
type PubSubBus struct {
	ps     *pubsub.PubSub
	logger *slog.Logger
}

func New(logger *slog.Logger) *PubSubBus {
	if logger == nil {
		logger = slog.Default()
	}

	return &PubSubBus{
		ps:     pubsub.New(defaultCapacity),
		logger: logger,
	}
}

func (b *PubSubBus) Publish(topic string, msg any) {
	b.logger.Debug("publish", "topic", topic, "payload_type", payloadType(msg))
	b.ps.Pub(msg, topic)
}

func (b *PubSubBus) Subscribe(topic string) Subscription {
	ch := b.ps.Sub(topic)
	b.logger.Debug("subscribe", "topic", topic)

	return ch
}

func (b *PubSubBus) Unsubscribe(ch Subscription, topics ...string) {
	if len(topics) == 0 {
		b.ps.Unsub(ch)
		b.logger.Debug("unsubscribe", "mode", "all")
		return
	}
	b.ps.Unsub(ch, topics...)
	b.logger.Debug("unsubscribe", "topics", topics)
}

func (b *PubSubBus) Close() {
	b.ps.Shutdown()
}

// Consume delivers every message of type T from sub to fn until ctx is done
// or the subscription is closed. Messages of other types are dropped.
//
// When ctx ends, sub is unsubscribed from b and whatever was published to it
// before the unsubscribe is still handed to fn. Publishers never block on a
// subscription whose reader has gone away.
func Consume[T any](ctx context.Context, b MessageBus, sub Subscription, fn func(T)) {
	deliver := func(raw any) {
		if msg, ok := raw.(T); ok {
			fn(msg)
		}
	}

	for {
		select {
		case <-ctx.Done():
			release(b, sub, deliver)
			return
		case raw, ok := <-sub:
			if !ok {
				return
			}
			deliver(raw)
		}
	}
}

// release unsubscribes sub and drains it until the bus closes the channel.
func release(b MessageBus, sub Subscription, fn func(any)) {
	go b.Unsubscribe(sub)
	for raw := range sub {
		fn(raw)
	}
}

func payloadType(v any) string {
	if v == nil {
		return "<nil>"
	}

	return reflect.TypeOf(v).String()
}
