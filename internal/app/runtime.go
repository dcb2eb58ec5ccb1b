package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/skobkin/clemremote/internal/bus"
	"github.com/skobkin/clemremote/internal/config"
	"github.com/skobkin/clemremote/internal/connectors"
	"github.com/skobkin/clemremote/internal/domain"
	"github.com/skobkin/clemremote/internal/logging"
	"github.com/skobkin/clemremote/internal/persistence"
	"github.com/skobkin/clemremote/internal/protocol"
	"github.com/skobkin/clemremote/internal/session"
	"github.com/skobkin/clemremote/internal/transport"
)

var ErrNoSession = errors.New("no active session")

// Options overrides runtime collaborators. Zero values use the defaults.
type Options struct {
	// Paths replaces the user config directory layout.
	Paths *Paths
	// Dialer replaces the TCP dialer built from config.
	Dialer transport.Dialer
	// SkipHistory disables the sqlite history regardless of config.
	SkipHistory bool
}

type Runtime struct {
	mu sync.RWMutex

	Ctx    context.Context
	cancel context.CancelFunc

	Paths  Paths
	Config config.AppConfig

	LogManager *logging.Manager
	Bus        *bus.PubSubBus
	DB         *sql.DB
	Registry   *prometheus.Registry
	Metrics    *session.Metrics

	SessionRepo  *persistence.SessionRepo
	PlaybackRepo *persistence.PlaybackRepo
	WriterQueue  *persistence.WriterQueue

	PlayerStore  *domain.PlayerStore
	HistoryStore *domain.HistoryStore
	projection   *domain.PersistenceProjection

	dialer transport.Dialer
	logger *slog.Logger

	sessMu  sync.Mutex
	current *session.Session

	connStatusMu    sync.RWMutex
	connStatus      connectors.ConnectionStatus
	connStatusKnown bool
}

func Initialize(parent context.Context) (*Runtime, error) {
	return InitializeWithOptions(parent, Options{})
}

func InitializeWithOptions(parent context.Context, opts Options) (*Runtime, error) {
	var paths Paths
	if opts.Paths != nil {
		paths = *opts.Paths
	} else {
		resolved, err := ResolvePaths()
		if err != nil {
			return nil, err
		}
		paths = resolved
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", paths.ConfigFile, err)
	}

	ctx, cancel := context.WithCancel(parent)
	rt := &Runtime{
		Ctx:    ctx,
		cancel: cancel,
		Paths:  paths,
		Config: cfg,
	}

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		_ = logMgr.Close()
		cancel()

		return nil, fmt.Errorf("configure logging: %w", err)
	}
	rt.LogManager = logMgr
	rt.logger = logMgr.Logger("runtime")
	build := CurrentBuildInfo()
	rt.logger.Info("starting clemremote runtime", "version", build.Version, "build_date", build.Date, "revision", build.ShortRevision())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := registerBuildInfo(reg, build); err != nil {
		rt.logger.Warn("register build info metric", "error", err)
	}
	rt.Registry = reg
	rt.Metrics = session.NewMetrics(reg)

	b := bus.New(logMgr.Logger("bus"))
	rt.Bus = b
	connSub := b.Subscribe(connectors.TopicConnStatus)
	go rt.captureConnStatus(ctx, connSub)

	rt.PlayerStore = domain.NewPlayerStore()
	rt.PlayerStore.Start(ctx, b)
	rt.HistoryStore = domain.NewHistoryStore(0)

	if cfg.History.Enabled && !opts.SkipHistory {
		if err := rt.openHistory(ctx, cfg.History); err != nil {
			_ = rt.Close()

			return nil, err
		}
	}
	rt.HistoryStore.Start(ctx, b)

	rt.dialer = opts.Dialer
	if rt.dialer == nil {
		rt.dialer = NewDialer(cfg.Session, logMgr.Logger("transport"))
	}

	return rt, nil
}

func (r *Runtime) openHistory(ctx context.Context, cfg config.HistoryConfig) error {
	db, err := persistence.Open(ctx, r.Paths.DBFile)
	if err != nil {
		return err
	}
	r.DB = db
	r.SessionRepo = persistence.NewSessionRepo(db)
	r.PlaybackRepo = persistence.NewPlaybackRepo(db)

	if cfg.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -cfg.RetentionDays)
		n, err := persistence.PruneSessionsBefore(ctx, db, cutoff)
		if err != nil {
			r.logger.Warn("prune history", "error", err)
		} else if n > 0 {
			r.logger.Info("pruned old sessions", "count", n, "retention_days", cfg.RetentionDays)
		}
	}
	if err := domain.LoadStoresFromRepositories(ctx, r.HistoryStore, r.PlaybackRepo); err != nil {
		return err
	}

	writerQueue := persistence.NewWriterQueue(r.LogManager.Logger("persistence"), 512)
	writerQueue.Start(ctx)
	r.WriterQueue = writerQueue
	r.projection = domain.StartPersistenceProjection(ctx, r.Bus, writerQueue, r.SessionRepo, r.PlaybackRepo)

	return nil
}

func (r *Runtime) captureConnStatus(ctx context.Context, sub bus.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub:
			if !ok {
				return
			}
			status, ok := raw.(connectors.ConnectionStatus)
			if !ok {
				continue
			}
			r.setConnStatus(status)
		}
	}
}

func (r *Runtime) setConnStatus(status connectors.ConnectionStatus) {
	r.connStatusMu.Lock()
	r.connStatus = status
	r.connStatusKnown = true
	r.connStatusMu.Unlock()
}

// CurrentConnStatus returns the last published status, or an idle status
// derived from config before any session ran.
func (r *Runtime) CurrentConnStatus() (connectors.ConnectionStatus, bool) {
	r.connStatusMu.RLock()
	status := r.connStatus
	known := r.connStatusKnown
	r.connStatusMu.RUnlock()
	if !known {
		return ConnectionStatusFromConfig(r.CurrentConfig().Connection), false
	}

	return status, true
}

func (r *Runtime) CurrentConfig() config.AppConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.Config
}

// ConnectionParams returns the CONNECT parameters from the current config.
func (r *Runtime) ConnectionParams() protocol.ConnectionParameters {
	return ConnectionParams(r.CurrentConfig().Connection)
}

// Connect starts a connection to the player. A finished session is never
// reused: a fresh one is created when none is live. It fails with
// session.ErrSessionActive while the live session is connecting or connected.
func (r *Runtime) Connect(params protocol.ConnectionParameters) error {
	if err := params.Validate(); err != nil {
		return fmt.Errorf("connection parameters: %w", err)
	}

	r.sessMu.Lock()
	defer r.sessMu.Unlock()

	if r.current != nil && !r.current.State().Terminal() {
		err := r.current.TryConnect(params)
		if !errors.Is(err, session.ErrSessionClosed) {
			return err
		}
	}

	s, err := r.newSession()
	if err != nil {
		return err
	}
	r.current = s

	return s.TryConnect(params)
}

func (r *Runtime) newSession() (*session.Session, error) {
	cfg := r.CurrentConfig()
	s, err := session.New(session.Options{
		Dialer:  r.dialer,
		Codec:   protocol.NewProtobufCodec(cfg.Session.MinProtocolVersion),
		Logger:  r.LogManager.Logger("session"),
		Metrics: r.Metrics,
		Bus:     r.Bus,
		Config:  SessionConfig(cfg.Session),
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.Subscribe(session.NewBusListener(r.Bus))
	s.Start(r.Ctx)

	return s, nil
}

// PlayerState returns a copy of the player picture built from the session.
func (r *Runtime) PlayerState() domain.PlayerState {
	return r.PlayerStore.Snapshot()
}

// RecentPlayback returns up to n stored track changes, newest first.
func (r *Runtime) RecentPlayback(n int) []domain.PlaybackEntry {
	return r.HistoryStore.Recent(n)
}

// Session returns the live session, if any.
func (r *Runtime) Session() *session.Session {
	r.sessMu.Lock()
	defer r.sessMu.Unlock()

	return r.current
}

func (r *Runtime) Submit(req protocol.Request) error {
	s := r.Session()
	if s == nil {
		return ErrNoSession
	}

	return s.Submit(req)
}

// SubmitCommand parses a shell-style command line and submits it.
func (r *Runtime) SubmitCommand(line string) (protocol.Request, error) {
	req, err := protocol.ParseCommand(line)
	if err != nil {
		return protocol.Request{}, err
	}

	return req, r.Submit(req)
}

// Disconnect ends the live session and waits for it to finish.
func (r *Runtime) Disconnect(ctx context.Context) error {
	s := r.Session()
	if s == nil {
		return nil
	}
	if err := s.Disconnect(); err != nil && !errors.Is(err, session.ErrSessionClosed) {
		return err
	}

	select {
	case <-s.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ApplyConfig swaps in a reloaded config. Session settings take effect on
// the next connect; the log level changes immediately.
func (r *Runtime) ApplyConfig(cfg config.AppConfig) error {
	cfg.FillMissingDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	r.Config = cfg
	r.mu.Unlock()

	if err := r.LogManager.SetLevel(cfg.Logging.Level); err != nil {
		return err
	}
	r.logger.Info("config applied", "target", ConnectionTarget(cfg.Connection), "log_level", cfg.Logging.Level)

	return nil
}

func (r *Runtime) SaveAndApplyConfig(cfg config.AppConfig) error {
	cfg.FillMissingDefaults()
	if err := config.Save(r.Paths.ConfigFile, cfg); err != nil {
		return err
	}

	return r.ApplyConfig(cfg)
}

func (r *Runtime) ClearHistory(ctx context.Context) error {
	if err := persistence.ClearDatabase(ctx, r.DB); err != nil {
		return err
	}
	r.HistoryStore.Load(nil)
	r.logger.Info("history cleared")

	return nil
}

func (r *Runtime) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if r.LogManager != nil {
		if err := r.Disconnect(ctx); err != nil {
			r.logger.Warn("disconnect on shutdown", "error", err)
		}
	}
	if r.projection != nil {
		if err := r.projection.Sync(ctx); err != nil {
			r.logger.Warn("sync history projection", "error", err)
		}
	}
	if r.WriterQueue != nil {
		if err := r.WriterQueue.Flush(ctx); err != nil {
			r.logger.Warn("flush history writes", "error", err)
		}
	}
	if r.cancel != nil {
		r.cancel()
	}
	if r.Bus != nil {
		r.Bus.Close()
	}
	if r.DB != nil {
		_ = r.DB.Close()
	}
	if r.LogManager != nil {
		_ = r.LogManager.Close()
	}

	return nil
}
