package protocol

// Player-side encoders. They produce the frames a player sends to a remote
// and back the fake players in tests.

func playerFrame(version int32, t MsgType) []byte {
	b := appendInt32(nil, fieldVersion, version)

	return appendInt32(b, fieldType, int32(t))
}

// EncodePlayerMessage builds a body-less player message at the current version.
func EncodePlayerMessage(t MsgType) []byte {
	return playerFrame(CurrentProtocolVersion, t)
}

// EncodePlayerMessageVersion is EncodePlayerMessage with an explicit version.
func EncodePlayerMessageVersion(version int32, t MsgType) []byte {
	return playerFrame(version, t)
}

func EncodeInfo(version string, state EngineState) []byte {
	sub := appendString(nil, 1, version)
	sub = appendInt32(sub, 2, int32(state))

	return appendBytes(playerFrame(CurrentProtocolVersion, MsgTypeInfo), fieldResponseClementineInfo, sub)
}

func EncodeEngineState(state EngineState) []byte {
	return appendBytes(
		playerFrame(CurrentProtocolVersion, MsgTypeEngineStateChanged),
		fieldResponseEngineState,
		appendInt32(nil, 1, int32(state)),
	)
}

func EncodeTrackPosition(seconds int32) []byte {
	return appendBytes(
		playerFrame(CurrentProtocolVersion, MsgTypeUpdateTrackPosition),
		fieldResponseTrackPosition,
		appendInt32(nil, 1, seconds),
	)
}

func EncodeVolume(volume int32) []byte {
	return appendBytes(
		playerFrame(CurrentProtocolVersion, MsgTypeSetVolume),
		fieldRequestSetVolume,
		appendInt32(nil, 1, volume),
	)
}

func EncodeActivePlaylist(id int32) []byte {
	return appendBytes(
		playerFrame(CurrentProtocolVersion, MsgTypeActivePlaylistChanged),
		fieldResponseActiveChanged,
		appendInt32(nil, 1, id),
	)
}

func EncodeDisconnect(reason DisconnectReason) []byte {
	return appendBytes(
		playerFrame(CurrentProtocolVersion, MsgTypeDisconnect),
		fieldResponseDisconnect,
		appendInt32(nil, 1, int32(reason)),
	)
}

func EncodeCurrentSong(song Song) []byte {
	return appendBytes(
		playerFrame(CurrentProtocolVersion, MsgTypeCurrentMetainfo),
		fieldResponseCurrentMetadata,
		appendBytes(nil, 1, encodeSong(song)),
	)
}

func EncodePlaylists(playlists []Playlist) []byte {
	var sub []byte
	for _, pl := range playlists {
		sub = appendBytes(sub, 1, encodePlaylist(pl))
	}

	return appendBytes(playerFrame(CurrentProtocolVersion, MsgTypePlaylists), fieldResponsePlaylists, sub)
}

func EncodePlaylistSongs(songs PlaylistSongs) []byte {
	sub := appendBytes(nil, 1, encodePlaylist(songs.Playlist))
	for _, song := range songs.Songs {
		sub = appendBytes(sub, 2, encodeSong(song))
	}

	return appendBytes(playerFrame(CurrentProtocolVersion, MsgTypePlaylistSongs), fieldResponsePlaylistSongs, sub)
}

func encodePlaylist(pl Playlist) []byte {
	b := appendInt32(nil, 1, pl.ID)
	b = appendString(b, 2, pl.Name)
	b = appendInt32(b, 3, pl.ItemCount)
	b = appendBool(b, 4, pl.Active)

	return appendBool(b, 5, pl.Closed)
}

func encodeSong(s Song) []byte {
	var b []byte
	b = appendInt32(b, 1, s.ID)
	b = appendInt32(b, 2, s.Index)
	b = appendString(b, 3, s.Title)
	b = appendString(b, 4, s.Album)
	b = appendString(b, 5, s.Artist)
	b = appendString(b, 6, s.AlbumArtist)
	b = appendInt32(b, 7, s.Track)
	b = appendInt32(b, 8, s.Disc)
	b = appendString(b, 9, s.PrettyYear)
	b = appendString(b, 10, s.Genre)
	b = appendInt32(b, 11, s.PlayCount)
	b = appendString(b, 12, s.PrettyLength)
	if len(s.Art) > 0 {
		b = appendBytes(b, 13, s.Art)
	}
	b = appendInt32(b, 14, s.LengthSec)
	b = appendBool(b, 15, s.IsLocal)
	b = appendString(b, 16, s.Filename)
	b = appendInt64(b, 17, s.FileSize)

	return appendFloat32(b, 18, s.Rating)
}
