package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/skobkin/clemremote/internal/domain"
)

type PlaybackRepo struct {
	db *sql.DB
}

func NewPlaybackRepo(db *sql.DB) *PlaybackRepo {
	return &PlaybackRepo{db: db}
}

func (r *PlaybackRepo) Insert(ctx context.Context, e domain.PlaybackEntry) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO playback_history(session_id, song_id, title, artist, album, length_sec, playlist_id, at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, e.SessionID, e.SongID, e.Title, e.Artist, e.Album, e.LengthSec, e.PlaylistID, timeToUnixMillis(e.At))
	if err != nil {
		return 0, fmt.Errorf("insert playback entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get playback entry local id: %w", err)
	}

	return id, nil
}

// ListRecent returns entries newest first.
func (r *PlaybackRepo) ListRecent(ctx context.Context, limit int) ([]domain.PlaybackEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT local_id, session_id, song_id, title, artist, album, length_sec, playlist_id, at
		FROM playback_history
		ORDER BY at DESC, local_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list playback history: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []domain.PlaybackEntry
	for rows.Next() {
		e, err := scanPlaybackEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate playback history: %w", err)
	}

	return out, nil
}

func scanPlaybackEntry(scanner interface {
	Scan(dest ...any) error
}) (domain.PlaybackEntry, error) {
	var (
		e  domain.PlaybackEntry
		at int64
	)
	if err := scanner.Scan(&e.LocalID, &e.SessionID, &e.SongID, &e.Title, &e.Artist, &e.Album, &e.LengthSec, &e.PlaylistID, &at); err != nil {
		return domain.PlaybackEntry{}, fmt.Errorf("scan playback entry: %w", err)
	}
	e.At = unixMillisToTime(at)

	return e, nil
}
