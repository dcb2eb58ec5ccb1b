package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/skobkin/clemremote/internal/domain"
)

// SessionRepo implements domain.SessionRepository using SQLite.
type SessionRepo struct {
	db *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) Upsert(ctx context.Context, rec domain.SessionRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions(session_id, target, started_at, ended_at, final_state, bytes_in, bytes_out, reconnects)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			target = excluded.target,
			started_at = MIN(sessions.started_at, excluded.started_at),
			ended_at = COALESCE(excluded.ended_at, sessions.ended_at),
			final_state = excluded.final_state,
			bytes_in = MAX(sessions.bytes_in, excluded.bytes_in),
			bytes_out = MAX(sessions.bytes_out, excluded.bytes_out),
			reconnects = MAX(sessions.reconnects, excluded.reconnects)
	`,
		rec.ID,
		rec.Target,
		timeToUnixMillis(rec.StartedAt),
		nullableMillis(rec.EndedAt),
		rec.FinalState,
		int64(rec.BytesIn),
		int64(rec.BytesOut),
		rec.Reconnects,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	return nil
}

func (r *SessionRepo) ListRecent(ctx context.Context, limit int) ([]domain.SessionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, target, started_at, ended_at, final_state, bytes_in, bytes_out, reconnects
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []domain.SessionRecord
	for rows.Next() {
		var (
			rec       domain.SessionRecord
			startedAt int64
			endedAt   sql.NullInt64
			bytesIn   int64
			bytesOut  int64
		)
		if err := rows.Scan(&rec.ID, &rec.Target, &startedAt, &endedAt, &rec.FinalState, &bytesIn, &bytesOut, &rec.Reconnects); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.StartedAt = unixMillisToTime(startedAt)
		rec.EndedAt = nullInt64ToTime(endedAt)
		rec.BytesIn = uint64(bytesIn)
		rec.BytesOut = uint64(bytesOut)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return out, nil
}
