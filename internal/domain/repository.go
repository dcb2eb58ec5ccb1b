package domain

import "context"

type SessionRepository interface {
	Upsert(ctx context.Context, r SessionRecord) error
	ListRecent(ctx context.Context, limit int) ([]SessionRecord, error)
}

type PlaybackRepository interface {
	Insert(ctx context.Context, e PlaybackEntry) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]PlaybackEntry, error)
}
