package protocol

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Top-level Message field numbers.
const (
	fieldVersion                 protowire.Number = 1
	fieldType                    protowire.Number = 2
	fieldRequestPlaylistSongs    protowire.Number = 10
	fieldRequestChangeSong       protowire.Number = 11
	fieldRequestSetVolume        protowire.Number = 12
	fieldRepeat                  protowire.Number = 13
	fieldShuffle                 protowire.Number = 14
	fieldResponseClementineInfo  protowire.Number = 15
	fieldResponseCurrentMetadata protowire.Number = 16
	fieldResponsePlaylists       protowire.Number = 17
	fieldResponsePlaylistSongs   protowire.Number = 18
	fieldResponseEngineState     protowire.Number = 19
	fieldResponseTrackPosition   protowire.Number = 20
	fieldRequestConnect          protowire.Number = 21
	fieldResponseDisconnect      protowire.Number = 22
	fieldRequestSetTrackPosition protowire.Number = 23
	fieldResponseActiveChanged   protowire.Number = 24
	fieldResponseSongOffer       protowire.Number = 32
)

var errOldProtocolVersion = errors.New("old protocol version")

// ProtobufCodec implements Codec for the player's protobuf remote-control wire format.
type ProtobufCodec struct {
	minVersion int32
}

// NewProtobufCodec returns a codec that rejects servers older than minVersion.
// A non-positive minVersion selects MinProtocolVersion.
func NewProtobufCodec(minVersion int32) *ProtobufCodec {
	if minVersion <= 0 {
		minVersion = MinProtocolVersion
	}

	return &ProtobufCodec{minVersion: minVersion}
}

func (c *ProtobufCodec) Encode(req Request) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("encode %s: %w", req.Type, err)
	}

	b := appendInt32(nil, fieldVersion, CurrentProtocolVersion)
	b = appendInt32(b, fieldType, int32(req.Type))

	switch req.Type {
	case MsgTypeConnect:
		var sub []byte
		sub = appendInt32(sub, 1, req.Connect.AuthCode)
		sub = appendBool(sub, 2, req.Connect.SendPlaylistSongs)
		sub = appendBool(sub, 3, req.Connect.Downloader)
		b = appendBytes(b, fieldRequestConnect, sub)
	case MsgTypeRequestPlaylistSongs:
		b = appendBytes(b, fieldRequestPlaylistSongs, appendInt32(nil, 1, req.PlaylistID))
	case MsgTypeChangeSong:
		sub := appendInt32(nil, 1, req.ChangeSong.SongIndex)
		sub = appendInt32(sub, 2, req.ChangeSong.PlaylistID)
		b = appendBytes(b, fieldRequestChangeSong, sub)
	case MsgTypeSetVolume:
		b = appendBytes(b, fieldRequestSetVolume, appendInt32(nil, 1, req.Volume))
	case MsgTypeSetTrackPosition:
		b = appendBytes(b, fieldRequestSetTrackPosition, appendInt32(nil, 1, req.Position))
	case MsgTypeRepeat:
		b = appendBytes(b, fieldRepeat, appendInt32(nil, 1, int32(req.Repeat)))
	case MsgTypeShuffle:
		b = appendBytes(b, fieldShuffle, appendInt32(nil, 1, int32(req.Shuffle)))
	case MsgTypeSongOfferResponse:
		b = appendBytes(b, fieldResponseSongOffer, appendBool(nil, 1, req.Accepted))
	case MsgTypeDisconnect:
		if req.Reason != DisconnectReasonUnspecified {
			b = appendBytes(b, fieldResponseDisconnect, appendInt32(nil, 1, int32(req.Reason)))
		}
	}

	return b, nil
}

// Decode parses one frame payload. A version below the minimum wins over any
// other problem with the payload, including a missing version whose default
// is below the minimum.
func (c *ProtobufCodec) Decode(payload []byte) Message {
	msg := Message{version: DefaultMessageVersion}
	haveType := false
	subs := make(map[protowire.Number][]byte)

	err := forEachField(payload, func(f field) error {
		switch f.num {
		case fieldVersion:
			v, err := f.int32()
			if err != nil {
				return err
			}
			if v < c.minVersion {
				return errOldProtocolVersion
			}
			msg.version = v
		case fieldType:
			v, err := f.int32()
			if err != nil {
				return err
			}
			msg.msgType = MsgType(v)
			haveType = true
		default:
			if f.typ == protowire.BytesType {
				// Repeated embedded messages merge, which is plain concatenation on the wire.
				subs[f.num] = append(subs[f.num], f.bytes...)
			}
		}

		return nil
	})
	if errors.Is(err, errOldProtocolVersion) || msg.version < c.minVersion {
		return NewErrorMessage(ErrorOldProtocolVersion)
	}
	if err != nil || !haveType || msg.msgType == MsgTypeUnknown {
		return NewErrorMessage(ErrorInvalidData)
	}

	if err := decodeBody(msg.msgType, subs, &msg.body); err != nil {
		return NewErrorMessage(ErrorInvalidData)
	}

	return msg
}

func decodeBody(t MsgType, subs map[protowire.Number][]byte, out *body) error {
	var err error
	switch t {
	case MsgTypeInfo:
		var info ClementineInfo
		info, err = decodeClementineInfo(subs[fieldResponseClementineInfo])
		out.info = &info
	case MsgTypeCurrentMetainfo:
		var song Song
		err = forEachField(subs[fieldResponseCurrentMetadata], func(f field) error {
			if f.num != 1 {
				return nil
			}
			raw, err := f.message()
			if err != nil {
				return err
			}
			song, err = decodeSong(raw)

			return err
		})
		out.song = &song
	case MsgTypePlaylists:
		out.playlists, err = decodePlaylists(subs[fieldResponsePlaylists])
	case MsgTypePlaylistSongs:
		var songs PlaylistSongs
		songs, err = decodePlaylistSongs(subs[fieldResponsePlaylistSongs])
		out.playlistSongs = &songs
	case MsgTypeEngineStateChanged:
		var v int32
		v, err = decodeSingleInt32(subs[fieldResponseEngineState])
		out.engineState = EngineState(v)
	case MsgTypeUpdateTrackPosition:
		out.position, err = decodeSingleInt32(subs[fieldResponseTrackPosition])
	case MsgTypeSetTrackPosition:
		out.position, err = decodeSingleInt32(subs[fieldRequestSetTrackPosition])
	case MsgTypeActivePlaylistChanged:
		out.activePlaylistID, err = decodeSingleInt32(subs[fieldResponseActiveChanged])
	case MsgTypeDisconnect:
		var v int32
		v, err = decodeSingleInt32(subs[fieldResponseDisconnect])
		out.reason = DisconnectReason(v)
	case MsgTypeSetVolume:
		out.volume, err = decodeSingleInt32(subs[fieldRequestSetVolume])
	case MsgTypeRepeat:
		var v int32
		v, err = decodeSingleInt32(subs[fieldRepeat])
		out.repeat = RepeatMode(v)
	case MsgTypeShuffle:
		var v int32
		v, err = decodeSingleInt32(subs[fieldShuffle])
		out.shuffle = ShuffleMode(v)
	case MsgTypeRequestPlaylistSongs:
		out.requestedID, err = decodeSingleInt32(subs[fieldRequestPlaylistSongs])
	case MsgTypeChangeSong:
		out.changeSong, err = decodeChangeSong(subs[fieldRequestChangeSong])
	case MsgTypeConnect:
		var req ConnectRequest
		req, err = decodeConnect(subs[fieldRequestConnect])
		out.connect = &req
	case MsgTypeSongOfferResponse:
		err = forEachField(subs[fieldResponseSongOffer], func(f field) error {
			if f.num != 1 {
				return nil
			}
			v, err := f.bool()
			out.accepted = v

			return err
		})
	}

	return err
}

// decodeSingleInt32 reads field 1 of a one-field wrapper message.
func decodeSingleInt32(b []byte) (int32, error) {
	var out int32
	err := forEachField(b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		v, err := f.int32()
		out = v

		return err
	})

	return out, err
}

func decodeClementineInfo(b []byte) (ClementineInfo, error) {
	var out ClementineInfo
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			out.Version, err = f.string()
		case 2:
			var v int32
			v, err = f.int32()
			out.State = EngineState(v)
		}

		return err
	})

	return out, err
}

func decodeSong(b []byte) (Song, error) {
	var out Song
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			out.ID, err = f.int32()
		case 2:
			out.Index, err = f.int32()
		case 3:
			out.Title, err = f.string()
		case 4:
			out.Album, err = f.string()
		case 5:
			out.Artist, err = f.string()
		case 6:
			out.AlbumArtist, err = f.string()
		case 7:
			out.Track, err = f.int32()
		case 8:
			out.Disc, err = f.int32()
		case 9:
			out.PrettyYear, err = f.string()
		case 10:
			out.Genre, err = f.string()
		case 11:
			out.PlayCount, err = f.int32()
		case 12:
			out.PrettyLength, err = f.string()
		case 13:
			var raw []byte
			raw, err = f.message()
			out.Art = append([]byte(nil), raw...)
		case 14:
			out.LengthSec, err = f.int32()
		case 15:
			out.IsLocal, err = f.bool()
		case 16:
			out.Filename, err = f.string()
		case 17:
			out.FileSize, err = f.int64()
		case 18:
			out.Rating, err = f.float32()
		}

		return err
	})

	return out, err
}

func decodePlaylist(b []byte) (Playlist, error) {
	var out Playlist
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			out.ID, err = f.int32()
		case 2:
			out.Name, err = f.string()
		case 3:
			out.ItemCount, err = f.int32()
		case 4:
			out.Active, err = f.bool()
		case 5:
			out.Closed, err = f.bool()
		}

		return err
	})

	return out, err
}

func decodePlaylists(b []byte) ([]Playlist, error) {
	var out []Playlist
	err := forEachField(b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		raw, err := f.message()
		if err != nil {
			return err
		}
		pl, err := decodePlaylist(raw)
		if err != nil {
			return err
		}
		out = append(out, pl)

		return nil
	})

	return out, err
}

func decodePlaylistSongs(b []byte) (PlaylistSongs, error) {
	var out PlaylistSongs
	err := forEachField(b, func(f field) error {
		switch f.num {
		case 1:
			raw, err := f.message()
			if err != nil {
				return err
			}
			out.Playlist, err = decodePlaylist(raw)

			return err
		case 2:
			raw, err := f.message()
			if err != nil {
				return err
			}
			song, err := decodeSong(raw)
			if err != nil {
				return err
			}
			out.Songs = append(out.Songs, song)
		}

		return nil
	})

	return out, err
}

func decodeChangeSong(b []byte) (ChangeSong, error) {
	var out ChangeSong
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			out.SongIndex, err = f.int32()
		case 2:
			out.PlaylistID, err = f.int32()
		}

		return err
	})

	return out, err
}

func decodeConnect(b []byte) (ConnectRequest, error) {
	var out ConnectRequest
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			out.AuthCode, err = f.int32()
		case 2:
			out.SendPlaylistSongs, err = f.bool()
		case 3:
			out.Downloader, err = f.bool()
		}

		return err
	})

	return out, err
}
