package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/skobkin/clemremote/internal/app"
	"github.com/skobkin/clemremote/internal/config"
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configDir string
	host      string
	port      int
	authCode  int32
	logLevel  string
	noHistory bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:   app.Name,
		Short: "Remote control client for the Clementine music player",
		Long: `clemremote talks to Clementine's network remote over TCP.

It can follow player events, send commands from an interactive shell,
and expose the session to other tools through a small HTTP/websocket relay.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configDir, "config-dir", "", "directory holding config, history and logs (default: user config dir)")
	flags.StringVar(&opts.host, "host", "", "player host, overrides config")
	flags.IntVar(&opts.port, "port", 0, "player remote port, overrides config")
	flags.Int32Var(&opts.authCode, "auth-code", -1, "player auth code, overrides config")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error), overrides config")
	flags.BoolVar(&opts.noHistory, "no-history", false, "do not open the sqlite history")

	rootCmd.AddCommand(
		connectCmd(opts),
		shellCmd(opts),
		serveCmd(opts),
		historyCmd(opts),
		versionCmd(),
	)

	return rootCmd
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func (o *globalOptions) paths() (app.Paths, error) {
	if strings.TrimSpace(o.configDir) != "" {
		return app.PathsIn(o.configDir)
	}

	return app.ResolvePaths()
}

// openRuntime initializes the runtime and layers flag overrides on top of
// the stored config without saving them. The runtime outlives signal
// cancellation so Close can still record the end of the session.
func (o *globalOptions) openRuntime() (*app.Runtime, error) {
	paths, err := o.paths()
	if err != nil {
		return nil, err
	}

	rt, err := app.InitializeWithOptions(context.Background(), app.Options{Paths: &paths, SkipHistory: o.noHistory})
	if err != nil {
		return nil, err
	}

	cfg := o.applyOverrides(rt.CurrentConfig())
	if err := rt.ApplyConfig(cfg); err != nil {
		_ = rt.Close()

		return nil, fmt.Errorf("apply flag overrides: %w", err)
	}

	return rt, nil
}

func (o *globalOptions) applyOverrides(cfg config.AppConfig) config.AppConfig {
	if host := strings.TrimSpace(o.host); host != "" {
		cfg.Connection.Host = host
	}
	if o.port > 0 {
		cfg.Connection.Port = o.port
	}
	if o.authCode >= 0 {
		cfg.Connection.AuthCode = o.authCode
	}
	if level := strings.TrimSpace(o.logLevel); level != "" {
		cfg.Logging.Level = level
	}

	return cfg
}

func closeRuntime(rt *app.Runtime) {
	if err := rt.Close(); err != nil {
		slog.Warn("close runtime", "error", err)
	}
}

func requireHost(rt *app.Runtime) error {
	if strings.TrimSpace(rt.CurrentConfig().Connection.Host) == "" {
		return fmt.Errorf("missing player host: pass --host or set connection.host in %s", rt.Paths.ConfigFile)
	}

	return nil
}
