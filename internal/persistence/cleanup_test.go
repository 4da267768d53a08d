package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/skobkin/antbridge/internal/connectors"
)

func openTestDB(t *testing.T) *BroadcastRepo {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "broadcasts.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return NewBroadcastRepo(db)
}

func TestClearDatabase_ClearsAllTables(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t)
	conns := NewConnectionRepo(repo.db)

	if _, err := repo.Insert(ctx, BroadcastRecord{At: time.Now(), PowerPage: "10", SpeedPage: "00"}); err != nil {
		t.Fatalf("seed broadcasts: %v", err)
	}
	if err := conns.Insert(ctx, connectors.ConnStatus{State: connectors.ConnectionStateConnected, TransportName: "usb", Timestamp: time.Now()}); err != nil {
		t.Fatalf("seed connection events: %v", err)
	}

	if err := ClearDatabase(ctx, repo.db); err != nil {
		t.Fatalf("clear database: %v", err)
	}

	tableChecks := []struct {
		name  string
		query string
	}{
		{name: "broadcasts", query: "SELECT COUNT(*) FROM broadcasts;"},
		{name: "connection_events", query: "SELECT COUNT(*) FROM connection_events;"},
	}
	for _, table := range tableChecks {
		var count int
		if err := repo.db.QueryRowContext(ctx, table.query).Scan(&count); err != nil {
			t.Fatalf("count rows in %s: %v", table.name, err)
		}
		if count != 0 {
			t.Fatalf("expected %s to be empty after clear, got %d rows", table.name, count)
		}
	}
}

func TestClearDatabase_RejectsNilDB(t *testing.T) {
	if err := ClearDatabase(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil db")
	}
}

func TestOpen_IsIdempotentAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "broadcasts.db")

	for i := 0; i < 2; i++ {
		db, err := Open(ctx, path)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		var version int
		if err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
			t.Fatalf("read version: %v", err)
		}
		if version != len(migrations) {
			t.Fatalf("expected schema version %d, got %d", len(migrations), version)
		}
		_ = db.Close()
	}
}
