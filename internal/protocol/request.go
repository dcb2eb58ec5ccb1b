package protocol

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

const (
	// DefaultPort is the remote-control port the player listens on out of the box.
	DefaultPort = 5500
	// MaxAuthCode bounds the five digit auth code shown in the player settings.
	MaxAuthCode = 99999
)

// ConnectionParameters describes one connect target and the handshake options.
type ConnectionParameters struct {
	Host              string
	Port              int
	AuthCode          int32
	SendPlaylistSongs bool
	Downloader        bool
}

func (p ConnectionParameters) Validate() error {
	if p.Host == "" {
		return errors.New("host is required")
	}
	if p.Port <= 0 || p.Port > 65535 {
		return fmt.Errorf("port %d is out of range", p.Port)
	}
	if p.AuthCode < 0 || p.AuthCode > MaxAuthCode {
		return fmt.Errorf("auth code %d is out of range", p.AuthCode)
	}

	return nil
}

// Target returns the host:port string used for logging and dialing.
func (p ConnectionParameters) Target() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// WithoutPlaylistRequest returns a copy that does not ask for the full
// playlist dump again. Reconnects use it.
func (p ConnectionParameters) WithoutPlaylistRequest() ConnectionParameters {
	p.SendPlaylistSongs = false

	return p
}

// Request is one outbound command. Only the fields relevant to Type are encoded.
type Request struct {
	Type       MsgType
	Connect    *ConnectRequest
	Volume     int32
	Position   int32
	ChangeSong ChangeSong
	PlaylistID int32
	Repeat     RepeatMode
	Shuffle    ShuffleMode
	Accepted   bool
	Reason     DisconnectReason
}

func (r Request) String() string {
	return r.Type.String()
}

// Validate rejects requests the codec cannot express.
func (r Request) Validate() error {
	switch r.Type {
	case MsgTypeUnknown:
		return errors.New("request type is not set")
	case MsgTypeConnect:
		if r.Connect == nil {
			return errors.New("connect request has no parameters")
		}
	case MsgTypeSetVolume:
		if r.Volume < 0 || r.Volume > 100 {
			return fmt.Errorf("volume %d is out of range", r.Volume)
		}
	case MsgTypeSetTrackPosition:
		if r.Position < 0 {
			return fmt.Errorf("track position %d is negative", r.Position)
		}
	}

	return nil
}

func NewConnectRequest(p ConnectionParameters) Request {
	return Request{
		Type: MsgTypeConnect,
		Connect: &ConnectRequest{
			AuthCode:          p.AuthCode,
			SendPlaylistSongs: p.SendPlaylistSongs,
			Downloader:        p.Downloader,
		},
	}
}

func NewDisconnectRequest() Request {
	return Request{Type: MsgTypeDisconnect}
}

// NewSimpleRequest builds a request that carries no body (PLAY, NEXT, LOVE, ...).
func NewSimpleRequest(t MsgType) Request {
	return Request{Type: t}
}

func NewVolumeRequest(volume int32) Request {
	return Request{Type: MsgTypeSetVolume, Volume: volume}
}

func NewTrackPositionRequest(seconds int32) Request {
	return Request{Type: MsgTypeSetTrackPosition, Position: seconds}
}

func NewShuffleRequest(mode ShuffleMode) Request {
	return Request{Type: MsgTypeShuffle, Shuffle: mode}
}

func NewRepeatRequest(mode RepeatMode) Request {
	return Request{Type: MsgTypeRepeat, Repeat: mode}
}

func NewPlaylistSongsRequest(playlistID int32) Request {
	return Request{Type: MsgTypeRequestPlaylistSongs, PlaylistID: playlistID}
}

func NewChangeSongRequest(songIndex, playlistID int32) Request {
	return Request{
		Type:       MsgTypeChangeSong,
		ChangeSong: ChangeSong{SongIndex: songIndex, PlaylistID: playlistID},
	}
}

func NewSongOfferResponse(accepted bool) Request {
	return Request{Type: MsgTypeSongOfferResponse, Accepted: accepted}
}
