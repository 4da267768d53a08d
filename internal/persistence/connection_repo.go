package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/skobkin/antbridge/internal/connectors"
)

// ConnectionRepo keeps the radio connection history.
type ConnectionRepo struct {
	db *sql.DB
}

func NewConnectionRepo(db *sql.DB) *ConnectionRepo {
	return &ConnectionRepo{db: db}
}

func (r *ConnectionRepo) Insert(ctx context.Context, status connectors.ConnStatus) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO connection_events(at, state, transport, target, error_text)
		VALUES(?, ?, ?, ?, ?)
	`,
		timeToUnixMillis(status.Timestamp),
		string(status.State),
		status.TransportName,
		nullableString(status.Target),
		nullableString(status.Err),
	)
	if err != nil {
		return fmt.Errorf("insert connection event: %w", err)
	}

	return nil
}

func (r *ConnectionRepo) ListRecent(ctx context.Context, limit int) ([]connectors.ConnStatus, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT at, state, transport, target, error_text
		FROM connection_events
		ORDER BY at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query connection events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []connectors.ConnStatus
	for rows.Next() {
		var (
			at            int64
			state         string
			status        connectors.ConnStatus
			target, errTx sql.NullString
		)
		if err := rows.Scan(&at, &state, &status.TransportName, &target, &errTx); err != nil {
			return nil, fmt.Errorf("scan connection event: %w", err)
		}
		status.Timestamp = unixMillisToTime(at)
		status.State = connectors.ConnectionState(state)
		status.Target = target.String
		status.Err = errTx.String
		out = append(out, status)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connection events: %w", err)
	}

	return out, nil
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}

	return v
}
