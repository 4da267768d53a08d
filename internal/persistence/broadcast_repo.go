package persistence

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/skobkin/antbridge/internal/connectors"
)

// BroadcastRecord is one stored tick.
type BroadcastRecord struct {
	ID          int64
	At          time.Time
	Power       int
	Cadence     int
	CumRevCount uint16
	CumPower    uint16
	EventCount  uint8
	EventTimeMS uint16
	SpeedMPS    float64
	PowerPage   string
	SpeedPage   string
}

func RecordFromEvent(e connectors.BroadcastEvent) BroadcastRecord {
	return BroadcastRecord{
		At:          e.At,
		Power:       e.Power,
		Cadence:     e.Cadence,
		CumRevCount: e.CumRevCount,
		CumPower:    e.CumPower,
		EventCount:  e.EventCount,
		EventTimeMS: e.EventTimeMS,
		SpeedMPS:    e.SpeedMPS,
		PowerPage:   hex.EncodeToString(e.PowerPage[:]),
		SpeedPage:   hex.EncodeToString(e.SpeedPage[:]),
	}
}

type BroadcastRepo struct {
	db *sql.DB
}

func NewBroadcastRepo(db *sql.DB) *BroadcastRepo {
	return &BroadcastRepo{db: db}
}

func (r *BroadcastRepo) Insert(ctx context.Context, rec BroadcastRecord) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO broadcasts(
			at, power, cadence, cum_rev_count, cum_power, event_count, event_time_ms, speed_mps, power_page, speed_page
		)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		timeToUnixMillis(rec.At),
		rec.Power,
		rec.Cadence,
		int(rec.CumRevCount),
		int(rec.CumPower),
		int(rec.EventCount),
		int(rec.EventTimeMS),
		rec.SpeedMPS,
		rec.PowerPage,
		rec.SpeedPage,
	)
	if err != nil {
		return 0, fmt.Errorf("insert broadcast: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("broadcast insert id: %w", err)
	}

	return id, nil
}

// ListRecent returns up to limit records, newest first.
func (r *BroadcastRepo) ListRecent(ctx context.Context, limit int) ([]BroadcastRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, at, power, cadence, cum_rev_count, cum_power, event_count, event_time_ms, speed_mps, power_page, speed_page
		FROM broadcasts
		ORDER BY at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query broadcasts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]BroadcastRecord, 0, limit)
	for rows.Next() {
		var rec BroadcastRecord
		var at int64
		var cumRevCount, cumPower, eventCount, eventTime int
		if err := rows.Scan(
			&rec.ID, &at, &rec.Power, &rec.Cadence, &cumRevCount, &cumPower, &eventCount, &eventTime,
			&rec.SpeedMPS, &rec.PowerPage, &rec.SpeedPage,
		); err != nil {
			return nil, fmt.Errorf("scan broadcast: %w", err)
		}
		rec.At = unixMillisToTime(at)
		rec.CumRevCount = uint16(cumRevCount)
		rec.CumPower = uint16(cumPower)
		rec.EventCount = uint8(eventCount)
		rec.EventTimeMS = uint16(eventTime)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate broadcasts: %w", err)
	}

	return out, nil
}

func (r *BroadcastRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM broadcasts;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count broadcasts: %w", err)
	}

	return n, nil
}

// PruneBefore drops records older than cutoff.
func (r *BroadcastRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM broadcasts WHERE at < ?;`, timeToUnixMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune broadcasts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruned broadcasts count: %w", err)
	}

	return n, nil
}
