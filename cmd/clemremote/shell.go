package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/skobkin/clemremote/internal/app"
	"github.com/skobkin/clemremote/internal/connectors"
	"github.com/skobkin/clemremote/internal/domain"
	"github.com/skobkin/clemremote/internal/protocol"
	"github.com/spf13/cobra"
)

const (
	shellHistoryFilename = "shell_history"
	shellPrompt          = "clementine> "
	disconnectWait       = 5 * time.Second
)

var shellBuiltins = []string{"help", "status", "history", "connect", "disconnect", "quit", "exit"}

var shellVerbs = []string{
	"play", "pause", "playpause", "stop", "next", "prev", "volume", "seek",
	"shuffle", "shuffle-playlist", "repeat", "playlists", "songs", "change",
	"love", "ban", "offer",
}

// shellBackend is the part of the runtime the shell drives.
type shellBackend interface {
	ConnectionParams() protocol.ConnectionParameters
	Connect(params protocol.ConnectionParameters) error
	Disconnect(ctx context.Context) error
	SubmitCommand(line string) (protocol.Request, error)
	CurrentConnStatus() (connectors.ConnectionStatus, bool)
	PlayerState() domain.PlayerState
	RecentPlayback(n int) []domain.PlaybackEntry
}

func shellCmd(global *globalOptions) *cobra.Command {
	var noConnect bool
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive shell for controlling the player",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			rt, err := global.openRuntime()
			if err != nil {
				return err
			}
			defer closeRuntime(rt)

			return runShell(ctx, rt, !noConnect, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&noConnect, "no-connect", false, "start without connecting; use the connect builtin later")

	return cmd
}

func runShell(ctx context.Context, rt *app.Runtime, autoConnect bool, out io.Writer) error {
	editor := newLineEditor(filepath.Join(rt.Paths.RootDir, shellHistoryFilename), out)
	defer func() { _ = editor.Close() }()

	events := rt.Bus.Subscribe(connectors.TopicConnStatus, connectors.TopicMessage)
	defer rt.Bus.Unsubscribe(events)
	go printShellEvents(ctx, events, out)

	fmt.Fprintf(out, "%s %s, type \"help\" for commands\n", app.Name, app.CurrentBuildInfo())
	if autoConnect {
		if err := requireHost(rt); err != nil {
			fmt.Fprintln(out, err)
		} else {
			runShellLine(ctx, rt, "connect", out)
		}
	}

	for {
		line, err := editor.ReadLine(shellPrompt)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if quit := runShellLine(ctx, rt, line, out); quit {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// printShellEvents shows the events worth interrupting the prompt for.
func printShellEvents(ctx context.Context, events <-chan any, out io.Writer) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-events:
			if !ok {
				return
			}
			switch v := raw.(type) {
			case connectors.ConnectionStatus:
				fmt.Fprintln(out, formatStatus(v))
			case protocol.Message:
				if v.IsError() || v.Type() == protocol.MsgTypeCurrentMetainfo || v.Type() == protocol.MsgTypeDisconnect {
					fmt.Fprintln(out, formatMessage(v))
				}
			}
		}
	}
}

// runShellLine executes one shell line and reports whether the shell should exit.
func runShellLine(ctx context.Context, backend shellBackend, line string, out io.Writer) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return true
	case "help", "?":
		printShellHelp(out)
	case "status":
		status, _ := backend.CurrentConnStatus()
		fmt.Fprintln(out, formatStatus(status))
		if status.State == connectors.ConnectionStateConnected {
			printPlayerState(out, backend.PlayerState())
		}
	case "history":
		n := 10
		if len(fields) > 1 {
			parsed, err := strconv.Atoi(fields[1])
			if err != nil || parsed <= 0 {
				fmt.Fprintln(out, "usage: history [count]")

				return false
			}
			n = parsed
		}
		printPlaybackEntries(out, backend.RecentPlayback(n))
	case "connect":
		params := backend.ConnectionParams()
		if err := backend.Connect(params); err != nil {
			fmt.Fprintf(out, "connect %s: %v\n", params.Target(), err)
		}
	case "disconnect":
		waitCtx, cancel := context.WithTimeout(ctx, disconnectWait)
		defer cancel()
		if err := backend.Disconnect(waitCtx); err != nil {
			fmt.Fprintf(out, "disconnect: %v\n", err)
		}
	default:
		req, err := backend.SubmitCommand(line)
		if err != nil {
			fmt.Fprintln(out, err)

			return false
		}
		fmt.Fprintf(out, "sent %s\n", req)
	}

	return false
}

func printShellHelp(out io.Writer) {
	fmt.Fprintln(out, "shell:")
	fmt.Fprintln(out, "  status | history [count] | connect | disconnect | help | quit")
	fmt.Fprintln(out, "player:")
	for _, line := range protocol.CommandHelp {
		fmt.Fprintf(out, "  %s\n", line)
	}
}

func printPlaybackEntries(out io.Writer, entries []domain.PlaybackEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "no playback history")

		return
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s  %s\n", e.At.Local().Format(time.DateTime), e.Label())
	}
}
