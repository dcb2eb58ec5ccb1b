package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/skobkin/clemremote/internal/app"
	"github.com/skobkin/clemremote/internal/bus"
	"github.com/skobkin/clemremote/internal/connectors"
	"github.com/skobkin/clemremote/internal/protocol"
	"github.com/spf13/cobra"
)

type connectOptions struct {
	listenFor time.Duration
	raw       bool
	all       bool
	exec      []string
}

func connectCmd(global *globalOptions) *cobra.Command {
	opts := &connectOptions{}
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect to the player and print its events",
		Example: `  clemremote connect --host 192.168.1.20
  clemremote connect --exec "volume 40" --exec play --listen-for 5s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			rt, err := global.openRuntime()
			if err != nil {
				return err
			}
			defer closeRuntime(rt)

			return runConnect(ctx, rt, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().DurationVar(&opts.listenFor, "listen-for", 0, "exit after this long, e.g. 30s (default: until interrupted)")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "also print raw frames as hex")
	cmd.Flags().BoolVar(&opts.all, "all", false, "include keep-alive and track position updates")
	cmd.Flags().StringArrayVar(&opts.exec, "exec", nil, "command to send once connected, may be repeated")

	return cmd
}

func runConnect(ctx context.Context, rt *app.Runtime, opts *connectOptions, out io.Writer) error {
	if err := requireHost(rt); err != nil {
		return err
	}

	subs := eventSubs{events: rt.Bus.Subscribe(connectors.TopicConnStatus, connectors.TopicMessage)}
	defer rt.Bus.Unsubscribe(subs.events)
	if opts.raw {
		subs.rawIn = rt.Bus.Subscribe(connectors.TopicRawFrameIn)
		subs.rawOut = rt.Bus.Subscribe(connectors.TopicRawFrameOut)
		defer rt.Bus.Unsubscribe(subs.rawIn)
		defer rt.Bus.Unsubscribe(subs.rawOut)
	}

	params := rt.ConnectionParams()
	if err := rt.Connect(params); err != nil {
		return fmt.Errorf("connect to %s: %w", params.Target(), err)
	}

	var deadline <-chan time.Time
	if opts.listenFor > 0 {
		timer := time.NewTimer(opts.listenFor)
		defer timer.Stop()
		deadline = timer.C
	}

	return followEvents(ctx, rt, subs, opts, deadline, out)
}

// eventSubs holds the bus subscriptions followed by connect. Raw frame
// subscriptions stay nil unless requested.
type eventSubs struct {
	events bus.Subscription
	rawIn  bus.Subscription
	rawOut bus.Subscription
}

// followEvents prints bus events until the session ends, ctx is done or
// the deadline fires. A failed connect attempt ends it with an error since
// the session will not retry on its own. Queued --exec commands go out on
// the first connect.
func followEvents(ctx context.Context, rt *app.Runtime, subs eventSubs, opts *connectOptions, deadline <-chan time.Time, out io.Writer) error {
	pending := opts.exec
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline:
			return nil
		case raw := <-subs.rawIn:
			if frame, ok := raw.(connectors.RawFrame); ok {
				fmt.Fprintln(out, formatRawFrame("in", frame))
			}
		case raw := <-subs.rawOut:
			if frame, ok := raw.(connectors.RawFrame); ok {
				fmt.Fprintln(out, formatRawFrame("out", frame))
			}
		case raw, ok := <-subs.events:
			if !ok {
				return nil
			}
			switch v := raw.(type) {
			case connectors.ConnectionStatus:
				fmt.Fprintln(out, formatStatus(v))
				if v.State == connectors.ConnectionStateConnected && len(pending) > 0 {
					execCommands(rt, pending, out)
					pending = nil
				}
				if v.State == connectors.ConnectionStateNoConnection {
					return fmt.Errorf("connect to %s: %s", v.Target, noConnectionReason(v))
				}
				if v.State.Terminal() {
					return nil
				}
			case protocol.Message:
				if !opts.all && isChatty(v) {
					continue
				}
				fmt.Fprintln(out, formatMessage(v))
			}
		}
	}
}

func noConnectionReason(status connectors.ConnectionStatus) string {
	if status.Err == "" {
		return "no connection"
	}

	return status.Err
}

func execCommands(rt *app.Runtime, lines []string, out io.Writer) {
	for _, line := range lines {
		req, err := rt.SubmitCommand(line)
		if err != nil {
			fmt.Fprintf(out, "[exec] %s: %v\n", line, err)

			continue
		}
		fmt.Fprintf(out, "[exec] sent %s\n", req)
	}
}

func isChatty(msg protocol.Message) bool {
	if msg.IsError() {
		return false
	}
	switch msg.Type() {
	case protocol.MsgTypeKeepAlive, protocol.MsgTypeUpdateTrackPosition:
		return true
	default:
		return false
	}
}
