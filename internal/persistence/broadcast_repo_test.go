package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/skobkin/antbridge/internal/connectors"
)

func TestBroadcastRepoInsertAndListRecent(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t)
	base := time.UnixMilli(1700000000000)

	for i := 0; i < 5; i++ {
		rec := RecordFromEvent(connectors.BroadcastEvent{
			At:          base.Add(time.Duration(i) * 250 * time.Millisecond),
			Power:       200 + i,
			Cadence:     90,
			CumRevCount: 65535,
			CumPower:    1000,
			EventCount:  255,
			EventTimeMS: 2000,
			SpeedMPS:    8.5,
			PowerPage:   [8]byte{0x10, 0x05, 0xFF, 0x5A, 0xE8, 0x03, 0xC8, 0x00},
			SpeedPage:   [8]byte{0x00, 0xFF, 0xFF, 0xFF, 0xD0, 0x07, 0x32, 0x00},
		})
		if _, err := repo.Insert(ctx, rec); err != nil {
			t.Fatalf("insert #%d: %v", i, err)
		}
	}

	recent, err := repo.ListRecent(ctx, 3)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recent))
	}
	if recent[0].Power != 204 || recent[2].Power != 202 {
		t.Fatalf("expected newest first, got powers %d..%d", recent[0].Power, recent[2].Power)
	}
	got := recent[0]
	if !got.At.Equal(base.Add(time.Second)) {
		t.Fatalf("unexpected timestamp: %s", got.At)
	}
	if got.CumRevCount != 65535 || got.EventCount != 255 || got.EventTimeMS != 2000 || got.CumPower != 1000 {
		t.Fatalf("counters did not roundtrip: %+v", got)
	}
	if got.PowerPage != "1005ff5ae803c800" || got.SpeedPage != "00ffffffd0073200" {
		t.Fatalf("unexpected page hex: %s %s", got.PowerPage, got.SpeedPage)
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 records, got %d", n)
	}
}

func TestBroadcastRepoPruneBefore(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t)
	base := time.UnixMilli(1700000000000)

	for i := 0; i < 4; i++ {
		if _, err := repo.Insert(ctx, BroadcastRecord{At: base.Add(time.Duration(i) * time.Minute), PowerPage: "10", SpeedPage: "00"}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	removed, err := repo.PruneBefore(ctx, base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 pruned rows, got %d", removed)
	}
	if recent, _ := repo.ListRecent(ctx, 0); recent != nil {
		t.Fatalf("zero limit must return nothing, got %d", len(recent))
	}
}

func TestConnectionRepoRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewConnectionRepo(openTestDB(t).db)
	at := time.UnixMilli(1700000000000)

	if err := repo.Insert(ctx, connectors.ConnStatus{State: connectors.ConnectionStateConnecting, TransportName: "usb", Timestamp: at}); err != nil {
		t.Fatalf("insert connecting: %v", err)
	}
	if err := repo.Insert(ctx, connectors.ConnStatus{State: connectors.ConnectionStateDisconnected, TransportName: "usb", Target: "bus 1 addr 4", Err: "no ANT devices available", Timestamp: at.Add(time.Second)}); err != nil {
		t.Fatalf("insert disconnected: %v", err)
	}

	events, err := repo.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].State != connectors.ConnectionStateDisconnected || events[0].Err != "no ANT devices available" || events[0].Target != "bus 1 addr 4" {
		t.Fatalf("unexpected newest event: %+v", events[0])
	}
	if events[1].Target != "" || events[1].Err != "" {
		t.Fatalf("empty fields must come back empty: %+v", events[1])
	}
}
