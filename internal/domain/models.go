package domain

import (
	"time"

	"github.com/skobkin/clemremote/internal/protocol"
)

// PlayerState is the player picture rebuilt from inbound messages.
type PlayerState struct {
	ServerVersion     string
	Engine            protocol.EngineState
	CurrentSong       *protocol.Song
	Position          int32
	Volume            int32
	Shuffle           protocol.ShuffleMode
	Repeat            protocol.RepeatMode
	Playlists         []protocol.Playlist
	ActivePlaylistID  int32
	PlaylistSongs     map[int32][]protocol.Song
	FirstDataComplete bool
	UpdatedAt         time.Time
}

// ActivePlaylist returns the playlist flagged active, if it is known.
func (s PlayerState) ActivePlaylist() (protocol.Playlist, bool) {
	for _, pl := range s.Playlists {
		if pl.ID == s.ActivePlaylistID {
			return pl, true
		}
	}

	return protocol.Playlist{}, false
}

// SessionRecord is one remote-control session as kept in history.
type SessionRecord struct {
	ID         string
	Target     string
	StartedAt  time.Time
	EndedAt    time.Time
	FinalState string
	BytesIn    uint64
	BytesOut   uint64
	Reconnects int
}

func (r SessionRecord) Ended() bool {
	return !r.EndedAt.IsZero()
}

// Duration is the session length, or zero while it is still open.
func (r SessionRecord) Duration() time.Duration {
	if !r.Ended() || r.StartedAt.IsZero() {
		return 0
	}

	return r.EndedAt.Sub(r.StartedAt)
}

// PlaybackEntry is one track change reported by the player.
type PlaybackEntry struct {
	LocalID    int64
	SessionID  string
	SongID     int32
	Title      string
	Artist     string
	Album      string
	LengthSec  int32
	PlaylistID int32
	At         time.Time
}

func PlaybackEntryFromSong(sessionID string, song protocol.Song, playlistID int32, at time.Time) PlaybackEntry {
	return PlaybackEntry{
		SessionID:  sessionID,
		SongID:     song.ID,
		Title:      song.Title,
		Artist:     song.Artist,
		Album:      song.Album,
		LengthSec:  song.LengthSec,
		PlaylistID: playlistID,
		At:         at,
	}
}

// Label renders the entry as "Artist - Title".
func (e PlaybackEntry) Label() string {
	switch {
	case e.Artist == "" && e.Title == "":
		return "unknown track"
	case e.Artist == "":
		return e.Title
	case e.Title == "":
		return e.Artist
	default:
		return e.Artist + " - " + e.Title
	}
}
