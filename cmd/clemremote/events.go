package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/skobkin/clemremote/internal/connectors"
	"github.com/skobkin/clemremote/internal/domain"
	"github.com/skobkin/clemremote/internal/protocol"
)

const maxHexPreviewLen = 64

func formatStatus(status connectors.ConnectionStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[status] %s", status.State)
	if status.Target != "" {
		fmt.Fprintf(&b, " %s", status.Target)
	}
	if status.Reconnects > 0 {
		fmt.Fprintf(&b, " reconnects=%d", status.Reconnects)
	}
	if status.Err != "" {
		fmt.Fprintf(&b, " error=%q", status.Err)
	}

	return b.String()
}

func formatMessage(msg protocol.Message) string {
	if msg.IsError() {
		return "[error] " + msg.ErrorKind().String()
	}

	switch msg.Type() {
	case protocol.MsgTypeInfo:
		if info := msg.Info(); info != nil {
			return fmt.Sprintf("[info] Clementine %s, %s", info.Version, info.State)
		}
	case protocol.MsgTypeCurrentMetainfo:
		if song := msg.Song(); song != nil {
			return "[song] " + songLabel(*song)
		}
	case protocol.MsgTypeEngineStateChanged:
		return "[engine] " + msg.EngineState().String()
	case protocol.MsgTypeSetVolume:
		return fmt.Sprintf("[volume] %d", msg.Volume())
	case protocol.MsgTypeUpdateTrackPosition:
		return "[position] " + formatSeconds(msg.Position())
	case protocol.MsgTypeDisconnect:
		return "[disconnect] " + msg.DisconnectReason().String()
	}

	return "[message] " + msg.String()
}

func formatRawFrame(direction string, frame connectors.RawFrame) string {
	return fmt.Sprintf("[raw %s] len=%d %s", direction, frame.Len, previewHex(frame.Hex))
}

func previewHex(hex string) string {
	hex = strings.TrimSpace(hex)
	if len(hex) <= maxHexPreviewLen {
		return hex
	}

	return hex[:maxHexPreviewLen] + "..."
}

func songLabel(song protocol.Song) string {
	entry := domain.PlaybackEntryFromSong("", song, 0, time.Time{})
	label := entry.Label()
	if song.LengthSec > 0 {
		label += " (" + formatSeconds(song.LengthSec) + ")"
	}

	return label
}

func formatSeconds(total int32) string {
	if total < 0 {
		total = 0
	}

	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func printPlayerState(w io.Writer, state domain.PlayerState) {
	if state.ServerVersion != "" {
		fmt.Fprintf(w, "player:   Clementine %s\n", state.ServerVersion)
	}
	fmt.Fprintf(w, "engine:   %s\n", state.Engine)
	if state.CurrentSong != nil {
		fmt.Fprintf(w, "song:     %s\n", songLabel(*state.CurrentSong))
		fmt.Fprintf(w, "position: %s\n", formatSeconds(state.Position))
	}
	fmt.Fprintf(w, "volume:   %d\n", state.Volume)
	fmt.Fprintf(w, "shuffle:  %s\n", state.Shuffle)
	fmt.Fprintf(w, "repeat:   %s\n", state.Repeat)
	if pl, ok := state.ActivePlaylist(); ok {
		fmt.Fprintf(w, "playlist: %s (%d items)\n", pl.Name, pl.ItemCount)
	}
}
