package persistence

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestWriterQueueRetriesFailedWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWriterQueue(nil, 4)
	w.Start(ctx)

	var attempts atomic.Int32
	done := make(chan struct{})
	w.Enqueue("flaky", func(context.Context) error {
		if attempts.Add(1) < 2 {
			return errors.New("database is locked")
		}
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("write was not retried")
	}
	if attempts.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts.Load())
	}
}

func TestWriterQueueDropsWhenFull(t *testing.T) {
	w := NewWriterQueue(nil, 1)
	noop := func(context.Context) error { return nil }

	if !w.Enqueue("first", noop) {
		t.Fatalf("first write must be queued")
	}
	if w.Enqueue("second", noop) {
		t.Fatalf("second write must be dropped while the queue is full")
	}
}

func TestWriterQueueFlushesOnShutdown(t *testing.T) {
	w := NewWriterQueue(nil, 8)
	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		w.Enqueue("pending", func(ctx context.Context) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			ran.Add(1)
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Start(ctx)
	w.Wait()

	if ran.Load() != 3 {
		t.Fatalf("expected all pending writes flushed, got %d", ran.Load())
	}
}
