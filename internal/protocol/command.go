package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrMissingArgument = errors.New("missing argument")
	ErrInvalidArgument = errors.New("invalid argument")
)

// CommandError reports a command line that could not be turned into a request.
type CommandError struct {
	Input string
	Err   error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q: %v", e.Input, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// CommandHelp lists the accepted command lines, one per entry.
var CommandHelp = []string{
	"play | pause | playpause | stop",
	"next | prev",
	"volume <0-100>",
	"seek <seconds>",
	"shuffle off|all|album|albums",
	"shuffle-playlist",
	"repeat off|track|album|playlist",
	"playlists",
	"songs <playlist-id>",
	"change <song-index> [playlist-id]",
	"love | ban",
	"offer accept|decline",
}

var simpleCommands = map[string]MsgType{
	"play":             MsgTypePlay,
	"pause":            MsgTypePause,
	"playpause":        MsgTypePlayPause,
	"stop":             MsgTypeStop,
	"next":             MsgTypeNext,
	"prev":             MsgTypePrevious,
	"previous":         MsgTypePrevious,
	"playlists":        MsgTypeRequestPlaylists,
	"love":             MsgTypeLove,
	"ban":              MsgTypeBan,
	"shuffle-playlist": MsgTypeShufflePlaylist,
}

var shuffleModes = map[string]ShuffleMode{
	"off":    ShuffleOff,
	"all":    ShuffleAll,
	"album":  ShuffleInsideAlbum,
	"albums": ShuffleAlbums,
}

var repeatModes = map[string]RepeatMode{
	"off":      RepeatOff,
	"track":    RepeatTrack,
	"album":    RepeatAlbum,
	"playlist": RepeatPlaylist,
}

// ParseCommand turns a shell/relay command line such as "volume 40" into a request.
func ParseCommand(line string) (Request, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(line)))
	if len(fields) == 0 {
		return Request{}, &CommandError{Input: line, Err: ErrUnknownCommand}
	}
	name, args := fields[0], fields[1:]
	fail := func(err error) (Request, error) {
		return Request{}, &CommandError{Input: line, Err: err}
	}

	if t, ok := simpleCommands[name]; ok {
		return NewSimpleRequest(t), nil
	}

	switch name {
	case "volume", "vol":
		v, err := intArg(args, 0, 0, 100)
		if err != nil {
			return fail(err)
		}

		return NewVolumeRequest(v), nil
	case "seek":
		v, err := intArg(args, 0, 0, 1<<31-1)
		if err != nil {
			return fail(err)
		}

		return NewTrackPositionRequest(v), nil
	case "shuffle":
		if len(args) == 0 {
			return fail(ErrMissingArgument)
		}
		mode, ok := shuffleModes[args[0]]
		if !ok {
			return fail(fmt.Errorf("%w: shuffle mode %q", ErrInvalidArgument, args[0]))
		}

		return NewShuffleRequest(mode), nil
	case "repeat":
		if len(args) == 0 {
			return fail(ErrMissingArgument)
		}
		mode, ok := repeatModes[args[0]]
		if !ok {
			return fail(fmt.Errorf("%w: repeat mode %q", ErrInvalidArgument, args[0]))
		}

		return NewRepeatRequest(mode), nil
	case "songs":
		id, err := intArg(args, 0, 0, 1<<31-1)
		if err != nil {
			return fail(err)
		}

		return NewPlaylistSongsRequest(id), nil
	case "change":
		index, err := intArg(args, 0, 0, 1<<31-1)
		if err != nil {
			return fail(err)
		}
		var playlist int32
		if len(args) > 1 {
			playlist, err = intArg(args, 1, 0, 1<<31-1)
			if err != nil {
				return fail(err)
			}
		}

		return NewChangeSongRequest(index, playlist), nil
	case "offer":
		if len(args) == 0 {
			return fail(ErrMissingArgument)
		}
		switch args[0] {
		case "accept", "yes":
			return NewSongOfferResponse(true), nil
		case "decline", "no":
			return NewSongOfferResponse(false), nil
		default:
			return fail(fmt.Errorf("%w: offer answer %q", ErrInvalidArgument, args[0]))
		}
	default:
		return fail(ErrUnknownCommand)
	}
}

func intArg(args []string, idx int, lo, hi int64) (int32, error) {
	if idx >= len(args) {
		return 0, ErrMissingArgument
	}
	v, err := strconv.ParseInt(args[idx], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidArgument, args[idx])
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%w: %d is outside %d..%d", ErrInvalidArgument, v, lo, hi)
	}

	// #nosec G115 -- bounded by ParseInt bit size.
	return int32(v), nil
}
