package domain

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/skobkin/clemremote/internal/bus"
	"github.com/skobkin/clemremote/internal/connectors"
	"github.com/skobkin/clemremote/internal/protocol"
)

// PlayerStore keeps the latest player state in memory for the CLI and relay.
type PlayerStore struct {
	mu      sync.RWMutex
	state   PlayerState
	now     func() time.Time
	changes chan struct{}
}

func NewPlayerStore() *PlayerStore {
	return &PlayerStore{
		state:   PlayerState{PlaylistSongs: make(map[int32][]protocol.Song)},
		now:     time.Now,
		changes: make(chan struct{}, 1),
	}
}

// Start follows session notifications on the bus until ctx is done.
func (s *PlayerStore) Start(ctx context.Context, b bus.MessageBus) {
	sub := b.Subscribe(connectors.TopicMessage, connectors.TopicConnStatus)
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
				case protocol.Message:
					s.Apply(v)
				case connectors.ConnectionStatus:
					if v.State == connectors.ConnectionStateDisconnected {
						s.Reset()
					}
				}
			}
		}
	}()
}

// Apply folds one inbound message into the state. It reports whether
// anything changed; error values and requests are ignored.
func (s *PlayerStore) Apply(msg protocol.Message) bool {
	if msg.IsError() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.state
	switch msg.Type() {
	case protocol.MsgTypeInfo:
		info := msg.Info()
		if info == nil {
			return false
		}
		st.ServerVersion = info.Version
		st.Engine = info.State
	case protocol.MsgTypeCurrentMetainfo:
		st.CurrentSong = msg.Song()
		st.Position = 0
	case protocol.MsgTypeEngineStateChanged:
		st.Engine = msg.EngineState()
	case protocol.MsgTypeUpdateTrackPosition:
		st.Position = msg.Position()
	case protocol.MsgTypeSetVolume:
		st.Volume = msg.Volume()
	case protocol.MsgTypeRepeat:
		st.Repeat = msg.RepeatMode()
	case protocol.MsgTypeShuffle:
		st.Shuffle = msg.ShuffleMode()
	case protocol.MsgTypePlaylists:
		st.Playlists = msg.Playlists()
		for _, pl := range st.Playlists {
			if pl.Active {
				st.ActivePlaylistID = pl.ID
			}
		}
	case protocol.MsgTypePlaylistSongs:
		songs := msg.PlaylistSongs()
		if songs == nil {
			return false
		}
		st.PlaylistSongs[songs.Playlist.ID] = songs.Songs
	case protocol.MsgTypeActivePlaylistChanged:
		st.ActivePlaylistID = msg.ActivePlaylistID()
	case protocol.MsgTypeFirstDataSentComplete:
		st.FirstDataComplete = true
	default:
		return false
	}
	st.UpdatedAt = s.now()
	s.notify()

	return true
}

// Snapshot returns a copy that is safe to keep after further updates.
func (s *PlayerStore) Snapshot() PlayerState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.state
	if out.CurrentSong != nil {
		song := *out.CurrentSong
		out.CurrentSong = &song
	}
	out.Playlists = slices.Clone(out.Playlists)
	out.PlaylistSongs = maps.Clone(out.PlaylistSongs)
	for id, songs := range out.PlaylistSongs {
		out.PlaylistSongs[id] = slices.Clone(songs)
	}

	return out
}

func (s *PlayerStore) Changes() <-chan struct{} {
	return s.changes
}

func (s *PlayerStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = PlayerState{PlaylistSongs: make(map[int32][]protocol.Song)}
	s.notify()
}

func (s *PlayerStore) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
