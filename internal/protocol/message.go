package protocol

import (
	"fmt"
	"slices"
)

// ErrorKind classifies inbound values that carry no protocol message.
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	ErrorInvalidData
	ErrorOldProtocolVersion
	ErrorKeepAliveTimeout
	ErrorNoConnection
	ErrorIOException
	ErrorTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "none"
	case ErrorInvalidData:
		return "invalid_data"
	case ErrorOldProtocolVersion:
		return "old_protocol_version"
	case ErrorKeepAliveTimeout:
		return "keep_alive_timeout"
	case ErrorNoConnection:
		return "no_connection"
	case ErrorIOException:
		return "io_exception"
	case ErrorTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("error_kind_%d", int(k))
	}
}

// ConnectRequest is the decoded body of a CONNECT message.
type ConnectRequest struct {
	AuthCode          int32
	SendPlaylistSongs bool
	Downloader        bool
}

// ChangeSong is the decoded body of a CHANGE_SONG message.
type ChangeSong struct {
	SongIndex  int32
	PlaylistID int32
}

// Message is one decoded inbound value: either a protocol message or an
// error kind. It is immutable. Payload accessors panic on error values.
type Message struct {
	errKind ErrorKind
	version int32
	msgType MsgType
	body    body
}

type body struct {
	info             *ClementineInfo
	song             *Song
	playlists        []Playlist
	playlistSongs    *PlaylistSongs
	engineState      EngineState
	position         int32
	volume           int32
	activePlaylistID int32
	requestedID      int32
	reason           DisconnectReason
	repeat           RepeatMode
	shuffle          ShuffleMode
	connect          *ConnectRequest
	changeSong       ChangeSong
	accepted         bool
}

// NewErrorMessage wraps an error kind as an inbound value.
func NewErrorMessage(kind ErrorKind) Message {
	if kind == ErrorNone {
		kind = ErrorInvalidData
	}

	return Message{errKind: kind}
}

// NewDisconnectMessage builds a DISCONNECT message as if the peer had sent it.
func NewDisconnectMessage(reason DisconnectReason) Message {
	return Message{
		version: CurrentProtocolVersion,
		msgType: MsgTypeDisconnect,
		body:    body{reason: reason},
	}
}

func (m Message) IsError() bool {
	return m.errKind != ErrorNone
}

func (m Message) ErrorKind() ErrorKind {
	return m.errKind
}

func (m Message) mustPayload() {
	if m.errKind != ErrorNone {
		panic(fmt.Sprintf("protocol: payload read from error message (%s)", m.errKind))
	}
}

func (m Message) Type() MsgType {
	m.mustPayload()

	return m.msgType
}

func (m Message) Version() int32 {
	m.mustPayload()

	return m.version
}

// Info returns the INFO greeting, or nil for other types.
func (m Message) Info() *ClementineInfo {
	m.mustPayload()
	if m.body.info == nil {
		return nil
	}
	info := *m.body.info

	return &info
}

// Song returns the CURRENT_METAINFO track, or nil for other types.
func (m Message) Song() *Song {
	m.mustPayload()
	if m.body.song == nil {
		return nil
	}
	song := *m.body.song
	song.Art = slices.Clone(song.Art)

	return &song
}

func (m Message) Playlists() []Playlist {
	m.mustPayload()

	return slices.Clone(m.body.playlists)
}

// PlaylistSongs returns the PLAYLIST_SONGS body, or nil for other types.
func (m Message) PlaylistSongs() *PlaylistSongs {
	m.mustPayload()
	if m.body.playlistSongs == nil {
		return nil
	}
	out := PlaylistSongs{
		Playlist: m.body.playlistSongs.Playlist,
		Songs:    make([]Song, len(m.body.playlistSongs.Songs)),
	}
	for i, song := range m.body.playlistSongs.Songs {
		song.Art = slices.Clone(song.Art)
		out.Songs[i] = song
	}

	return &out
}

func (m Message) EngineState() EngineState {
	m.mustPayload()

	return m.body.engineState
}

// Position is the track position in seconds (UPDATE_TRACK_POSITION, SET_TRACK_POSITION).
func (m Message) Position() int32 {
	m.mustPayload()

	return m.body.position
}

func (m Message) Volume() int32 {
	m.mustPayload()

	return m.body.volume
}

func (m Message) ActivePlaylistID() int32 {
	m.mustPayload()

	return m.body.activePlaylistID
}

// RequestedPlaylistID is the playlist asked for by REQUEST_PLAYLIST_SONGS.
func (m Message) RequestedPlaylistID() int32 {
	m.mustPayload()

	return m.body.requestedID
}

func (m Message) DisconnectReason() DisconnectReason {
	m.mustPayload()

	return m.body.reason
}

func (m Message) RepeatMode() RepeatMode {
	m.mustPayload()

	return m.body.repeat
}

func (m Message) ShuffleMode() ShuffleMode {
	m.mustPayload()

	return m.body.shuffle
}

// Connect returns the CONNECT body, or nil for other types.
func (m Message) Connect() *ConnectRequest {
	m.mustPayload()
	if m.body.connect == nil {
		return nil
	}
	req := *m.body.connect

	return &req
}

func (m Message) ChangeSong() ChangeSong {
	m.mustPayload()

	return m.body.changeSong
}

func (m Message) SongOfferAccepted() bool {
	m.mustPayload()

	return m.body.accepted
}

func (m Message) String() string {
	if m.IsError() {
		return "error:" + m.errKind.String()
	}

	return m.msgType.String()
}
