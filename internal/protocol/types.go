package protocol

import "fmt"

// MsgType is the remote-control message discriminator carried in every frame.
type MsgType int32

const (
	MsgTypeUnknown               MsgType = 0
	MsgTypeConnect               MsgType = 1
	MsgTypeDisconnect            MsgType = 2
	MsgTypeRequestPlaylists      MsgType = 3
	MsgTypeRequestPlaylistSongs  MsgType = 4
	MsgTypeChangeSong            MsgType = 5
	MsgTypeSetVolume             MsgType = 6
	MsgTypeSetTrackPosition      MsgType = 7
	MsgTypeLove                  MsgType = 12
	MsgTypeBan                   MsgType = 13
	MsgTypeSongOfferResponse     MsgType = 16
	MsgTypePlay                  MsgType = 20
	MsgTypePlayPause             MsgType = 21
	MsgTypePause                 MsgType = 22
	MsgTypeStop                  MsgType = 23
	MsgTypeNext                  MsgType = 24
	MsgTypePrevious              MsgType = 25
	MsgTypeShufflePlaylist       MsgType = 26
	MsgTypeRepeat                MsgType = 27
	MsgTypeShuffle               MsgType = 28
	MsgTypeInfo                  MsgType = 40
	MsgTypeCurrentMetainfo       MsgType = 41
	MsgTypePlaylists             MsgType = 42
	MsgTypePlaylistSongs         MsgType = 43
	MsgTypeEngineStateChanged    MsgType = 44
	MsgTypeKeepAlive             MsgType = 45
	MsgTypeUpdateTrackPosition   MsgType = 46
	MsgTypeActivePlaylistChanged MsgType = 47
	MsgTypeFirstDataSentComplete MsgType = 48
)

var msgTypeNames = map[MsgType]string{
	MsgTypeUnknown:               "UNKNOWN",
	MsgTypeConnect:               "CONNECT",
	MsgTypeDisconnect:            "DISCONNECT",
	MsgTypeRequestPlaylists:      "REQUEST_PLAYLISTS",
	MsgTypeRequestPlaylistSongs:  "REQUEST_PLAYLIST_SONGS",
	MsgTypeChangeSong:            "CHANGE_SONG",
	MsgTypeSetVolume:             "SET_VOLUME",
	MsgTypeSetTrackPosition:      "SET_TRACK_POSITION",
	MsgTypeLove:                  "LOVE",
	MsgTypeBan:                   "BAN",
	MsgTypeSongOfferResponse:     "SONG_OFFER_RESPONSE",
	MsgTypePlay:                  "PLAY",
	MsgTypePlayPause:             "PLAYPAUSE",
	MsgTypePause:                 "PAUSE",
	MsgTypeStop:                  "STOP",
	MsgTypeNext:                  "NEXT",
	MsgTypePrevious:              "PREVIOUS",
	MsgTypeShufflePlaylist:       "SHUFFLE_PLAYLIST",
	MsgTypeRepeat:                "REPEAT",
	MsgTypeShuffle:               "SHUFFLE",
	MsgTypeInfo:                  "INFO",
	MsgTypeCurrentMetainfo:       "CURRENT_METAINFO",
	MsgTypePlaylists:             "PLAYLISTS",
	MsgTypePlaylistSongs:         "PLAYLIST_SONGS",
	MsgTypeEngineStateChanged:    "ENGINE_STATE_CHANGED",
	MsgTypeKeepAlive:             "KEEP_ALIVE",
	MsgTypeUpdateTrackPosition:   "UPDATE_TRACK_POSITION",
	MsgTypeActivePlaylistChanged: "ACTIVE_PLAYLIST_CHANGED",
	MsgTypeFirstDataSentComplete: "FIRST_DATA_SENT_COMPLETE",
}

func (t MsgType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("MSG_TYPE_%d", int32(t))
}

// EngineState is the playback engine state reported by the player.
type EngineState int32

const (
	EngineStateEmpty   EngineState = 0
	EngineStateIdle    EngineState = 1
	EngineStatePlaying EngineState = 2
	EngineStatePaused  EngineState = 3
)

func (s EngineState) String() string {
	switch s {
	case EngineStateEmpty:
		return "empty"
	case EngineStateIdle:
		return "idle"
	case EngineStatePlaying:
		return "playing"
	case EngineStatePaused:
		return "paused"
	default:
		return fmt.Sprintf("engine_state_%d", int32(s))
	}
}

type RepeatMode int32

const (
	RepeatOff      RepeatMode = 0
	RepeatTrack    RepeatMode = 1
	RepeatAlbum    RepeatMode = 2
	RepeatPlaylist RepeatMode = 3
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatOff:
		return "off"
	case RepeatTrack:
		return "track"
	case RepeatAlbum:
		return "album"
	case RepeatPlaylist:
		return "playlist"
	default:
		return fmt.Sprintf("repeat_%d", int32(m))
	}
}

type ShuffleMode int32

const (
	ShuffleOff         ShuffleMode = 0
	ShuffleAll         ShuffleMode = 1
	ShuffleInsideAlbum ShuffleMode = 2
	ShuffleAlbums      ShuffleMode = 3
)

func (m ShuffleMode) String() string {
	switch m {
	case ShuffleOff:
		return "off"
	case ShuffleAll:
		return "all"
	case ShuffleInsideAlbum:
		return "inside_album"
	case ShuffleAlbums:
		return "albums"
	default:
		return fmt.Sprintf("shuffle_%d", int32(m))
	}
}

// DisconnectReason explains why either side closed the session.
type DisconnectReason int32

const (
	DisconnectReasonUnspecified      DisconnectReason = 0
	DisconnectReasonServerShutdown   DisconnectReason = 1
	DisconnectReasonWrongAuthCode    DisconnectReason = 2
	DisconnectReasonNotAuthenticated DisconnectReason = 3
	DisconnectReasonDownloadForbid   DisconnectReason = 4
)

func (r DisconnectReason) String() string {
	switch r {
	case DisconnectReasonUnspecified:
		return "unspecified"
	case DisconnectReasonServerShutdown:
		return "server_shutdown"
	case DisconnectReasonWrongAuthCode:
		return "wrong_auth_code"
	case DisconnectReasonNotAuthenticated:
		return "not_authenticated"
	case DisconnectReasonDownloadForbid:
		return "download_forbidden"
	default:
		return fmt.Sprintf("reason_%d", int32(r))
	}
}

// ClementineInfo is the server greeting sent right after a connect.
type ClementineInfo struct {
	Version string
	State   EngineState
}

// Song is the track metadata the player reports for the current and listed songs.
type Song struct {
	ID           int32
	Index        int32
	Title        string
	Album        string
	Artist       string
	AlbumArtist  string
	Track        int32
	Disc         int32
	PrettyYear   string
	Genre        string
	PlayCount    int32
	PrettyLength string
	Art          []byte
	LengthSec    int32
	IsLocal      bool
	Filename     string
	FileSize     int64
	Rating       float32
}

type Playlist struct {
	ID        int32
	Name      string
	ItemCount int32
	Active    bool
	Closed    bool
}

type PlaylistSongs struct {
	Playlist Playlist
	Songs    []Song
}
