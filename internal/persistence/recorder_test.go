package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/skobkin/antbridge/internal/bus"
	"github.com/skobkin/antbridge/internal/connectors"
)

func TestRecorderPersistsBusEvents(t *testing.T) {
	repo := openTestDB(t)
	conns := NewConnectionRepo(repo.db)

	b := bus.New(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := NewWriterQueue(nil, 16)
	queue.Start(ctx)
	NewRecorder(nil, queue, repo, conns).Start(ctx, b)

	at := time.UnixMilli(1700000000000)
	b.Publish(connectors.TopicConnStatus, connectors.ConnStatus{State: connectors.ConnectionStateConnected, TransportName: "usb", Timestamp: at})
	b.Publish(connectors.TopicBroadcast, connectors.BroadcastEvent{At: at, Power: 180, Cadence: 88})
	b.Publish(connectors.TopicBroadcast, "not an event")

	deadline := time.Now().Add(2 * time.Second)
	for {
		n, err := repo.Count(context.Background())
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		events, err := conns.ListRecent(context.Background(), 10)
		if err != nil {
			t.Fatalf("list connection events: %v", err)
		}
		if n == 1 && len(events) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 1 broadcast and 1 connection event, got %d and %d", n, len(events))
		}
		time.Sleep(10 * time.Millisecond)
	}

	recent, err := repo.ListRecent(context.Background(), 1)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if recent[0].Power != 180 || recent[0].Cadence != 88 {
		t.Fatalf("unexpected stored record: %+v", recent[0])
	}
}

func TestRecorderKeepsStatusPublishedRightBeforeStop(t *testing.T) {
	repo := openTestDB(t)
	conns := NewConnectionRepo(repo.db)

	b := bus.New(nil)
	defer b.Close()

	writerCtx, stopWriter := context.WithCancel(context.Background())
	queue := NewWriterQueue(nil, 16)
	queue.Start(writerCtx)

	recorderCtx, stopRecorder := context.WithCancel(context.Background())
	rec := NewRecorder(nil, queue, repo, conns)
	rec.Start(recorderCtx, b)

	at := time.UnixMilli(1700000000000)
	b.Publish(connectors.TopicConnStatus, connectors.ConnStatus{State: connectors.ConnectionStateConnected, TransportName: "usb", Timestamp: at})
	b.Publish(connectors.TopicConnStatus, connectors.ConnStatus{State: connectors.ConnectionStateClosed, TransportName: "usb", Timestamp: at.Add(time.Second)})

	stopRecorder()
	rec.Wait()
	stopWriter()
	queue.Wait()

	events, err := conns.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("list connection events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected both status events persisted, got %d", len(events))
	}
	if events[0].State != connectors.ConnectionStateClosed {
		t.Fatalf("expected newest event to be closed, got %+v", events[0])
	}
}
