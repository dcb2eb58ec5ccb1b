package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/skobkin/clemremote/internal/bus"
	"github.com/skobkin/clemremote/internal/connectors"
	"github.com/skobkin/clemremote/internal/domain"
	"github.com/skobkin/clemremote/internal/protocol"
	"github.com/skobkin/clemremote/internal/session"
)

const (
	defaultHistoryLimit = 50
	maxBodyBytes        = 16 << 10
	shutdownTimeout     = 5 * time.Second
)

// Controller drives the remote session on behalf of HTTP clients.
type Controller interface {
	CurrentConnStatus() (connectors.ConnectionStatus, bool)
	ConnectionParams() protocol.ConnectionParameters
	Connect(params protocol.ConnectionParameters) error
	Disconnect(ctx context.Context) error
	SubmitCommand(line string) (protocol.Request, error)
}

type Deps struct {
	Controller Controller
	Bus        bus.MessageBus
	Player     *domain.PlayerStore
	History    *domain.HistoryStore
	// Registry backs /metrics and the relay's own collectors. Nil disables both.
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

type Server struct {
	deps    Deps
	logger  *slog.Logger
	metrics *metrics
	router  chi.Router
}

func New(deps Deps) (*Server, error) {
	if deps.Controller == nil {
		return nil, errors.New("relay: controller is required")
	}
	if deps.Bus == nil {
		return nil, errors.New("relay: bus is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		deps:   deps,
		logger: logger.With("component", "relay"),
	}
	var reg prometheus.Registerer
	if deps.Registry != nil {
		reg = deps.Registry
	}
	s.metrics = newMetrics(reg)
	s.router = s.routes()

	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/status", s.handleStatus)
	r.Get("/history", s.handleHistory)
	r.Post("/connect", s.handleConnect)
	r.Post("/disconnect", s.handleDisconnect)
	r.Post("/commands", s.handleCommand)
	r.Get("/ws", s.handleStream)
	if s.deps.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.deps.Registry, promhttp.HandlerOpts{}))
	}

	return r
}

// ListenAndServe serves the relay on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("relay listen %s: %w", addr, err)
	}

	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("relay listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("relay shutdown: %w", err)
		}

		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.request(route, ww.Status())
		s.logger.Debug("http request",
			"method", r.Method,
			"route", route,
			"status", ww.Status(),
			"duration", time.Since(started),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type statusResponse struct {
	Status statusView  `json:"status"`
	Player *playerView `json:"player,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status, known := s.deps.Controller.CurrentConnStatus()
	resp := statusResponse{Status: newStatusView(status, known)}
	if s.deps.Player != nil {
		player := newPlayerView(s.deps.Player.Snapshot())
		resp.Player = &player
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")

			return
		}
		limit = n
	}

	entries := []playbackView{}
	if s.deps.History != nil {
		for _, e := range s.deps.History.Recent(limit) {
			entries = append(entries, newPlaybackView(e))
		}
	}

	writeJSON(w, http.StatusOK, entries)
}

// connectRequest overrides the configured connection parameters field by field.
type connectRequest struct {
	Host              *string `json:"host"`
	Port              *int    `json:"port"`
	AuthCode          *int32  `json:"auth_code"`
	SendPlaylistSongs *bool   `json:"send_playlist_songs"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	params := s.deps.Controller.ConnectionParams()
	if req.Host != nil {
		params.Host = strings.TrimSpace(*req.Host)
	}
	if req.Port != nil {
		params.Port = *req.Port
	}
	if req.AuthCode != nil {
		params.AuthCode = *req.AuthCode
	}
	if req.SendPlaylistSongs != nil {
		params.SendPlaylistSongs = *req.SendPlaylistSongs
	}
	if err := params.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	if err := s.deps.Controller.Connect(params); err != nil {
		s.logger.Warn("connect rejected", "target", params.Target(), "error", err)
		writeError(w, connectErrorStatus(err), err.Error())

		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"target": params.Target()})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), shutdownTimeout)
	defer cancel()

	if err := s.deps.Controller.Disconnect(ctx); err != nil {
		writeError(w, http.StatusGatewayTimeout, err.Error())

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type commandRequest struct {
	Command string `json:"command"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	submitted, err := s.deps.Controller.SubmitCommand(req.Command)
	if err != nil {
		writeError(w, commandErrorStatus(err), err.Error())

		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"request": submitted.String()})
}

func connectErrorStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionActive), errors.Is(err, session.ErrSessionClosed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func commandErrorStatus(err error) int {
	var cmdErr *protocol.CommandError
	switch {
	case errors.As(err, &cmdErr), errors.Is(err, session.ErrUseConnect):
		return http.StatusBadRequest
	default:
		return http.StatusConflict
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}

	return nil
}

// decodeOptionalBody treats an empty body as no overrides.
func decodeOptionalBody(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	if err := decodeBody(r, v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
