package persistence

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are applied in order; PRAGMA user_version tracks the last one.
var migrations = []string{
	`
	CREATE TABLE IF NOT EXISTS broadcasts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at INTEGER NOT NULL,
		power INTEGER NOT NULL,
		cadence INTEGER NOT NULL,
		cum_rev_count INTEGER NOT NULL,
		cum_power INTEGER NOT NULL,
		event_count INTEGER NOT NULL,
		event_time_ms INTEGER NOT NULL,
		speed_mps REAL NOT NULL,
		power_page TEXT NOT NULL,
		speed_page TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_broadcasts_at ON broadcasts(at);
	`,
	`
	CREATE TABLE IF NOT EXISTS connection_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at INTEGER NOT NULL,
		state TEXT NOT NULL,
		transport TEXT NOT NULL,
		target TEXT,
		error_text TEXT
	);
	`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("bump schema version to %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}

	return nil
}
