package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/skobkin/clemremote/internal/app"
	"github.com/skobkin/clemremote/internal/config"
	"github.com/skobkin/clemremote/internal/platform"
	"github.com/skobkin/clemremote/internal/relay"
	"github.com/spf13/cobra"
)

const relayLockName = "relay"

func serveCmd(global *globalOptions) *cobra.Command {
	var (
		listen  string
		connect bool
		noWatch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/websocket relay in front of a player session",
		Long: `serve keeps a runtime open and exposes it over HTTP:

  GET  /status       connection status and player state
  GET  /history      stored track changes, newest first
  POST /connect      connect, optionally overriding host/port/auth_code
  POST /disconnect   end the session
  POST /commands     {"command": "volume 40"}
  GET  /ws           JSON event stream; accepts {"command": ...} frames
  GET  /metrics      Prometheus metrics

The config file is watched and reloaded while serving.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			paths, err := global.paths()
			if err != nil {
				return err
			}
			lock, err := platform.AcquireDaemonLock(paths.RootDir, relayLockName)
			if errors.Is(err, platform.ErrDaemonRunning) {
				return fmt.Errorf("a relay is already serving %s", paths.RootDir)
			}
			if err != nil {
				return err
			}
			defer func() { _ = lock.Release() }()

			rt, err := global.openRuntime()
			if err != nil {
				return err
			}
			defer closeRuntime(rt)
			logger := rt.LogManager.Logger("serve")

			srv, err := relay.New(relay.Deps{
				Controller: rt,
				Bus:        rt.Bus,
				Player:     rt.PlayerStore,
				History:    rt.HistoryStore,
				Registry:   rt.Registry,
				Logger:     rt.LogManager.Logger("relay"),
			})
			if err != nil {
				return err
			}

			if !noWatch {
				err := config.Watch(ctx, rt.Paths.ConfigFile, 0, rt.LogManager.Logger("config"), func(cfg config.AppConfig, err error) {
					if err != nil {
						logger.Warn("config reload rejected", "error", err)

						return
					}
					if err := rt.ApplyConfig(global.applyOverrides(cfg)); err != nil {
						logger.Warn("config reload rejected", "error", err)
					}
				})
				if err != nil {
					logger.Warn("config watch disabled", "error", err)
				}
			}

			if connect {
				if err := requireHost(rt); err != nil {
					return err
				}
				if err := rt.Connect(rt.ConnectionParams()); err != nil {
					return err
				}
			}

			addr := relayListenAddr(listen, rt)
			fmt.Fprintf(cmd.OutOrStdout(), "relay listening on http://%s\n", addr)

			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "relay listen address, overrides config (default "+config.DefaultRelayListen+")")
	cmd.Flags().BoolVar(&connect, "connect", false, "connect to the player on startup")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not reload the config file on change")

	return cmd
}

func relayListenAddr(flagValue string, rt *app.Runtime) string {
	if addr := strings.TrimSpace(flagValue); addr != "" {
		return addr
	}

	return rt.CurrentConfig().Relay.Listen
}
