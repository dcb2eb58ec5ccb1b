package domain

import (
	"context"
	"fmt"
)

func LoadStoresFromRepositories(ctx context.Context, history *HistoryStore, playbackRepo PlaybackRepository) error {
	entries, err := playbackRepo.ListRecent(ctx, history.limit)
	if err != nil {
		return fmt.Errorf("load playback history from db: %w", err)
	}
	history.Load(entries)

	return nil
}
