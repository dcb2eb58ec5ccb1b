package domain

import (
	"context"
	"slices"
	"sync"

	"github.com/skobkin/clemremote/internal/bus"
	"github.com/skobkin/clemremote/internal/connectors"
)

const defaultHistoryLimit = 200

// HistoryStore keeps the most recent playback entries, newest first.
type HistoryStore struct {
	mu      sync.RWMutex
	limit   int
	entries []PlaybackEntry
	changes chan struct{}
}

func NewHistoryStore(limit int) *HistoryStore {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	return &HistoryStore{
		limit:   limit,
		changes: make(chan struct{}, 1),
	}
}

// Load replaces the contents with entries already sorted newest first.
func (s *HistoryStore) Load(entries []PlaybackEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(entries) > s.limit {
		entries = entries[:s.limit]
	}
	s.entries = slices.Clone(entries)
	s.notify()
}

func (s *HistoryStore) Start(ctx context.Context, b bus.MessageBus) {
	sub := b.Subscribe(connectors.TopicPlayback)
	go func() {
		defer b.Unsubscribe(sub, connectors.TopicPlayback)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-sub:
				if !ok {
					return
				}
				entry, ok := raw.(PlaybackEntry)
				if !ok {
					continue
				}
				s.Append(entry)
			}
		}
	}()
}

func (s *HistoryStore) Append(entry PlaybackEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = slices.Insert(s.entries, 0, entry)
	if len(s.entries) > s.limit {
		s.entries = s.entries[:s.limit]
	}
	s.notify()
}

func (s *HistoryStore) Recent(n int) []PlaybackEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.entries) {
		n = len(s.entries)
	}

	return slices.Clone(s.entries[:n])
}

func (s *HistoryStore) Changes() <-chan struct{} {
	return s.changes
}

func (s *HistoryStore) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
