package relay

import (
	"time"

	"github.com/skobkin/clemremote/internal/connectors"
	"github.com/skobkin/clemremote/internal/domain"
	"github.com/skobkin/clemremote/internal/protocol"
)

type statusView struct {
	State      string    `json:"state"`
	Known      bool      `json:"known"`
	Target     string    `json:"target,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	Reconnects int       `json:"reconnects"`
	BytesIn    uint64    `json:"bytes_in"`
	BytesOut   uint64    `json:"bytes_out"`
	Timestamp  time.Time `json:"timestamp,omitzero"`
}

func newStatusView(status connectors.ConnectionStatus, known bool) statusView {
	return statusView{
		State:      string(status.State),
		Known:      known,
		Target:     status.Target,
		SessionID:  status.SessionID,
		Error:      status.Err,
		Reconnects: status.Reconnects,
		BytesIn:    status.Stats.BytesRead,
		BytesOut:   status.Stats.BytesWritten,
		Timestamp:  status.Timestamp,
	}
}

type songView struct {
	ID        int32  `json:"id"`
	Index     int32  `json:"index"`
	Title     string `json:"title"`
	Artist    string `json:"artist,omitempty"`
	Album     string `json:"album,omitempty"`
	LengthSec int32  `json:"length_sec"`
}

func newSongView(s *protocol.Song) *songView {
	if s == nil {
		return nil
	}

	return &songView{
		ID:        s.ID,
		Index:     s.Index,
		Title:     s.Title,
		Artist:    s.Artist,
		Album:     s.Album,
		LengthSec: s.LengthSec,
	}
}

type playlistView struct {
	ID        int32  `json:"id"`
	Name      string `json:"name"`
	ItemCount int32  `json:"item_count"`
	Active    bool   `json:"active"`
}

type playerView struct {
	ServerVersion string         `json:"server_version,omitempty"`
	Engine        string         `json:"engine"`
	Song          *songView      `json:"song,omitempty"`
	Position      int32          `json:"position"`
	Volume        int32          `json:"volume"`
	Shuffle       string         `json:"shuffle"`
	Repeat        string         `json:"repeat"`
	Playlists     []playlistView `json:"playlists"`
	Ready         bool           `json:"ready"`
}

func newPlayerView(state domain.PlayerState) playerView {
	view := playerView{
		ServerVersion: state.ServerVersion,
		Engine:        state.Engine.String(),
		Song:          newSongView(state.CurrentSong),
		Position:      state.Position,
		Volume:        state.Volume,
		Shuffle:       state.Shuffle.String(),
		Repeat:        state.Repeat.String(),
		Playlists:     make([]playlistView, 0, len(state.Playlists)),
		Ready:         state.FirstDataComplete,
	}
	for _, pl := range state.Playlists {
		view.Playlists = append(view.Playlists, playlistView{
			ID:        pl.ID,
			Name:      pl.Name,
			ItemCount: pl.ItemCount,
			Active:    pl.ID == state.ActivePlaylistID,
		})
	}

	return view
}

type playbackView struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	SongID     int32     `json:"song_id"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist,omitempty"`
	Album      string    `json:"album,omitempty"`
	LengthSec  int32     `json:"length_sec"`
	PlaylistID int32     `json:"playlist_id"`
	At         time.Time `json:"at"`
}

func newPlaybackView(e domain.PlaybackEntry) playbackView {
	return playbackView{
		ID:         e.LocalID,
		SessionID:  e.SessionID,
		SongID:     e.SongID,
		Title:      e.Title,
		Artist:     e.Artist,
		Album:      e.Album,
		LengthSec:  e.LengthSec,
		PlaylistID: e.PlaylistID,
		At:         e.At,
	}
}

type messageView struct {
	Type    string `json:"type,omitempty"`
	Error   string `json:"error,omitempty"`
	Summary string `json:"summary"`
}

func newMessageView(msg protocol.Message) messageView {
	if msg.IsError() {
		return messageView{Error: msg.ErrorKind().String(), Summary: msg.String()}
	}

	return messageView{Type: msg.Type().String(), Summary: msg.String()}
}

// event is one frame of the websocket stream.
type event struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}
