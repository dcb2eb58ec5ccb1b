package domain

import (
	"context"
	"time"

	"github.com/skobkin/clemremote/internal/bus"
	"github.com/skobkin/clemremote/internal/connectors"
	"github.com/skobkin/clemremote/internal/protocol"
)

// WriteQueue serializes persistence writes from async domain events.
type WriteQueue interface {
	Enqueue(name string, fn func(context.Context) error)
}

// StartPersistenceProjection records sessions and track changes seen on the
// bus. Stored playback entries are republished on TopicPlayback.
func StartPersistenceProjection(ctx context.Context, b bus.MessageBus, queue WriteQueue, sessionRepo SessionRepository, playbackRepo PlaybackRepository) *PersistenceProjection {
	sub := b.Subscribe(connectors.TopicConnStatus, connectors.TopicMessage)
	p := &PersistenceProjection{
		bus:          b,
		queue:        queue,
		sessionRepo:  sessionRepo,
		playbackRepo: playbackRepo,
		now:          time.Now,
	}

	go func() {
		defer b.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-sub:
				if !ok {
					return
				}
				switch v := raw.(type) {
				case connectors.ConnectionStatus:
					p.onStatus(v)
				case protocol.Message:
					p.onMessage(v)
				case syncMarker:
					close(v.done)
				}
			}
		}
	}()

	return p
}

// PersistenceProjection state is owned by the single subscriber goroutine.
type PersistenceProjection struct {
	bus          bus.MessageBus
	queue        WriteQueue
	sessionRepo  SessionRepository
	playbackRepo PlaybackRepository
	now          func() time.Time

	current    *SessionRecord
	activeList int32
}

type syncMarker struct {
	done chan struct{}
}

// Sync returns once every status published before the call has been handed
// to the write queue.
func (p *PersistenceProjection) Sync(ctx context.Context) error {
	marker := syncMarker{done: make(chan struct{})}
	p.bus.Publish(connectors.TopicConnStatus, marker)

	select {
	case <-marker.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *PersistenceProjection) onStatus(status connectors.ConnectionStatus) {
	if status.SessionID == "" || status.State == connectors.ConnectionStateIdle {
		return
	}
	if p.current == nil || p.current.ID != status.SessionID {
		p.current = &SessionRecord{ID: status.SessionID, StartedAt: status.Timestamp}
		p.activeList = 0
	}

	rec := p.current
	rec.Target = status.Target
	rec.FinalState = string(status.State)
	rec.BytesIn = status.Stats.BytesRead
	rec.BytesOut = status.Stats.BytesWritten
	rec.Reconnects = status.Reconnects
	if status.State.Terminal() {
		rec.EndedAt = status.Timestamp
		if rec.EndedAt.IsZero() {
			rec.EndedAt = p.now()
		}
	}

	snapshot := *rec
	p.queue.Enqueue("upsert_session", func(writeCtx context.Context) error {
		return p.sessionRepo.Upsert(writeCtx, snapshot)
	})
	if status.State.Terminal() {
		p.current = nil
	}
}

func (p *PersistenceProjection) onMessage(msg protocol.Message) {
	if msg.IsError() {
		return
	}
	switch msg.Type() {
	case protocol.MsgTypePlaylists:
		for _, pl := range msg.Playlists() {
			if pl.Active {
				p.activeList = pl.ID
			}
		}
	case protocol.MsgTypeActivePlaylistChanged:
		p.activeList = msg.ActivePlaylistID()
	case protocol.MsgTypeCurrentMetainfo:
		song := msg.Song()
		if song == nil || p.current == nil {
			return
		}
		entry := PlaybackEntryFromSong(p.current.ID, *song, p.activeList, p.now())
		p.queue.Enqueue("insert_playback", func(writeCtx context.Context) error {
			id, err := p.playbackRepo.Insert(writeCtx, entry)
			if err != nil {
				return err
			}
			entry.LocalID = id
			p.bus.Publish(connectors.TopicPlayback, entry)

			return nil
		})
	}
}
