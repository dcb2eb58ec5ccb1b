package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/skobkin/clemremote/internal/bus"
	"github.com/skobkin/clemremote/internal/connectors"
	"github.com/skobkin/clemremote/internal/protocol"
	"github.com/skobkin/clemremote/internal/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrSessionClosed = errors.New("session is closed")
	ErrUseConnect    = errors.New("connect requests go through Connect")
	// ErrSessionActive is returned by TryConnect while the session is
	// connecting, connected or already has a connect queued.
	ErrSessionActive = errors.New("session is already connecting or connected")
)

type itemKind int

const (
	itemConnect itemKind = iota
	itemDisconnect
	itemCommand
	itemInbound
	itemKeepAliveExpired
)

// item is one unit of work for the dispatch loop. Inbound and keep-alive
// items carry the generation of the connection that produced them.
type item struct {
	kind   itemKind
	params protocol.ConnectionParameters
	req    protocol.Request
	msg    protocol.Message
	gen    uint64
}

// Options wires a session to its collaborators.
type Options struct {
	Dialer  transport.Dialer
	Codec   protocol.Codec
	Logger  *slog.Logger
	Metrics *Metrics
	// Bus receives raw frame diagnostics. Optional.
	Bus    bus.MessageBus
	Config Config
	Now    func() time.Time
}

// Stats is a point-in-time snapshot of the session counters.
type Stats struct {
	SessionID       string
	State           connectors.ConnectionState
	Target          string
	StartedAt       time.Time
	ConnectedAt     time.Time
	LastKeepAlive   time.Time
	ReconnectsLeft  int
	Reconnects      int
	MessagesIn      uint64
	CommandsOut     uint64
	ProtocolBlocked bool
	Transport       transport.Stats
}

// Session is one remote-control session. It is created idle, connects on
// request and becomes unusable once it reaches the disconnected state.
type Session struct {
	id      string
	cfg     Config
	logger  *slog.Logger
	dialer  transport.Dialer
	codec   protocol.Codec
	metrics *Metrics
	bus     bus.MessageBus
	now     func() time.Time

	listeners fanout
	mailbox   *mailbox[item]
	startOnce sync.Once
	done      chan struct{}
	// Connect items queued or being handled by the loop.
	pendingConnects atomic.Int32

	snapMu   sync.RWMutex
	snap     Stats
	snapConn transport.Conn

	// Owned by the dispatch loop.
	sm          *stateMachine
	keepAlive   *KeepAlive
	reconnect   *ReconnectPolicy
	conn        transport.Conn
	rd          *reader
	gen         uint64
	lastGood    *protocol.ConnectionParameters
	target      string
	blocked     bool
	finished    bool
	closedStats transport.Stats
	startedAt   time.Time
	connectedAt time.Time
	reconnects  int
	messagesIn  uint64
	commandsOut uint64
}

func New(opts Options) (*Session, error) {
	if opts.Dialer == nil {
		return nil, errors.New("session dialer is required")
	}
	if opts.Codec == nil {
		return nil, errors.New("session codec is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	base := opts.Logger
	if base == nil {
		base = slog.Default()
	}

	id := uuid.NewString()
	cfg := opts.Config.withDefaults()
	logger := base.With("component", "session", "session_id", id)
	s := &Session{
		id:        id,
		cfg:       cfg,
		logger:    logger,
		dialer:    opts.Dialer,
		codec:     opts.Codec,
		metrics:   opts.Metrics,
		bus:       opts.Bus,
		now:       opts.Now,
		listeners: fanout{logger: logger},
		mailbox:   newMailbox[item](),
		done:      make(chan struct{}),
		keepAlive: NewKeepAlive(cfg.KeepAliveTimeout),
		reconnect: NewReconnectPolicy(cfg.MaxReconnects, logger.With("part", "reconnect")),
	}
	s.sm = newStateMachine(s.fireStatus)
	s.snap = Stats{
		SessionID:      id,
		State:          connectors.ConnectionStateIdle,
		ReconnectsLeft: cfg.MaxReconnects,
	}

	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

// Subscribe registers a listener. Listeners added before Start see the idle notification.
func (s *Session) Subscribe(l Listener) {
	s.listeners.add(l)
}

// Start launches the dispatch loop. Canceling ctx acts as a user disconnect.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.run(ctx)
	})
}

// Done is closed after the dispatch loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Connect(params protocol.ConnectionParameters) error {
	if err := params.Validate(); err != nil {
		return fmt.Errorf("connection parameters: %w", err)
	}

	s.pendingConnects.Add(1)
	if err := s.enqueue(item{kind: itemConnect, params: params}); err != nil {
		s.pendingConnects.Add(-1)

		return err
	}

	return nil
}

// TryConnect is Connect for callers that need to know whether the request
// will be honoured. It fails with ErrSessionActive unless the session is
// idle or in no_connection with no other connect queued.
func (s *Session) TryConnect(params protocol.ConnectionParameters) error {
	if err := params.Validate(); err != nil {
		return fmt.Errorf("connection parameters: %w", err)
	}
	switch state := s.State(); state {
	case connectors.ConnectionStateIdle, connectors.ConnectionStateNoConnection:
	case connectors.ConnectionStateDisconnected:
		return ErrSessionClosed
	default:
		return fmt.Errorf("%w: %s", ErrSessionActive, state)
	}
	if !s.pendingConnects.CompareAndSwap(0, 1) {
		return ErrSessionActive
	}
	if err := s.enqueue(item{kind: itemConnect, params: params}); err != nil {
		s.pendingConnects.Add(-1)

		return err
	}

	return nil
}

func (s *Session) Disconnect() error {
	return s.enqueue(item{kind: itemDisconnect})
}

// Submit enqueues an outbound command. Results arrive through listeners.
func (s *Session) Submit(req protocol.Request) error {
	switch req.Type {
	case protocol.MsgTypeConnect:
		return ErrUseConnect
	case protocol.MsgTypeDisconnect:
		return s.Disconnect()
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}

	return s.enqueue(item{kind: itemCommand, req: req})
}

func (s *Session) enqueue(it item) error {
	if !s.mailbox.push(it) {
		return ErrSessionClosed
	}

	return nil
}

func (s *Session) State() connectors.ConnectionState {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()

	return s.snap.State
}

func (s *Session) Stats() Stats {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()

	out := s.snap
	if s.snapConn != nil {
		out.Transport = out.Transport.Add(s.snapConn.Stats())
	}

	return out
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	s.logger.Info("session started")
	s.fireStatus(connectors.ConnectionStateIdle, "")
	for !s.finished {
		if ctx.Err() != nil {
			s.logger.Info("session context canceled")
			s.handleDisconnect()

			break
		}
		it, ok := s.mailbox.pop(ctx)
		if !ok {
			continue
		}
		s.handle(ctx, it)
		s.refreshSnapshot()
	}
	s.finish()
	s.refreshSnapshot()
	s.logger.Info("session finished", "state", s.sm.current())
}

func (s *Session) handle(ctx context.Context, it item) {
	switch it.kind {
	case itemConnect:
		s.handleConnect(ctx, it.params)
	case itemDisconnect:
		s.handleDisconnect()
	case itemCommand:
		s.handleCommand(ctx, it.req)
	case itemInbound:
		if it.gen != s.gen {
			s.logger.Debug("dropping inbound value from a closed connection", "message", it.msg.String())

			return
		}
		s.handleInbound(it.msg)
	case itemKeepAliveExpired:
		if it.gen != s.gen {
			return
		}
		s.handleKeepAliveExpired(ctx)
	}
}

func (s *Session) handleConnect(ctx context.Context, params protocol.ConnectionParameters) {
	// Released only after the outcome is visible through State.
	defer s.pendingConnects.Add(-1)

	state := s.sm.current()
	if state != connectors.ConnectionStateIdle && state != connectors.ConnectionStateNoConnection {
		s.logger.Warn("connect request ignored", "state", state, "target", params.Target())

		return
	}

	s.target = params.Target()
	s.transition(connectors.ConnectionStateConnecting, "")
	conn, first, err := s.handshake(ctx, params, false)
	if err != nil {
		s.logger.Warn("connect failed", "target", params.Target(), "error", err)
		s.deliver(protocol.NewErrorMessage(protocol.ErrorNoConnection))
		s.transition(connectors.ConnectionStateNoConnection, err.Error())

		return
	}

	s.attach(conn, params)
	if s.startedAt.IsZero() {
		s.startedAt = s.connectedAt
	}
	s.transition(connectors.ConnectionStateConnected, "")
	s.afterHandshake(first)
}

func (s *Session) handleDisconnect() {
	if s.sm.current().Terminal() {
		s.finish()

		return
	}
	if s.conn != nil {
		payload, err := s.codec.Encode(protocol.NewDisconnectRequest())
		if err == nil {
			err = s.write(context.Background(), payload)
		}
		if err != nil {
			s.logger.Debug("disconnect frame not sent", "error", err)
		}
		s.dropConn()
	}
	s.transition(connectors.ConnectionStateDisconnected, "")
	s.finish()
}

func (s *Session) handleCommand(ctx context.Context, req protocol.Request) {
	if s.blocked {
		s.logger.Warn("command dropped: server protocol version is not supported", "command", req.String())
		s.metrics.commandDropped()

		return
	}
	if s.sm.current() != connectors.ConnectionStateConnected || s.conn == nil {
		s.logger.Warn("command dropped: not connected", "command", req.String(), "state", s.sm.current())
		s.metrics.commandDropped()

		return
	}

	payload, err := s.codec.Encode(req)
	if err != nil {
		s.logger.Warn("command dropped: encode failed", "command", req.String(), "error", err)
		s.metrics.commandDropped()

		return
	}
	err = s.write(ctx, payload)
	if err == nil {
		return
	}
	s.logger.Warn("send failed, reconnecting once", "command", req.String(), "error", err)

	if err = s.reconnect.Once(ctx, s.reconnectAttempt); err == nil && s.conn != nil {
		if err = s.write(ctx, payload); err == nil {
			return
		}
	}
	if s.sm.current().Terminal() {
		return
	}
	s.logger.Warn("send failed after reconnect, closing session", "command", req.String(), "error", err)
	s.handleInbound(protocol.NewDisconnectMessage(protocol.DisconnectReasonServerShutdown))
}

func (s *Session) handleInbound(msg protocol.Message) {
	s.messagesIn++
	if msg.IsError() {
		s.metrics.inboundError(msg.ErrorKind())
	}
	s.deliver(msg)

	switch {
	case msg.IsError():
		if msg.ErrorKind() == protocol.ErrorOldProtocolVersion {
			s.blocked = true
		}
		s.closeOut(msg)
	case msg.Type() == protocol.MsgTypeDisconnect:
		s.closeOut(msg)
	}
}

func (s *Session) handleKeepAliveExpired(ctx context.Context) {
	s.metrics.keepAliveExpired()
	s.logger.Warn("keep-alive timeout, reconnecting", "attempts", s.reconnect.Max())

	ctx, span := tracer.Start(ctx, "session.reconnect", trace.WithAttributes(
		attribute.String("session.id", s.id),
		attribute.String("target", s.target),
	))
	result := s.reconnect.Run(ctx, s.reconnectAttempt)
	span.SetAttributes(attribute.String("result", result.String()))
	if result == ReconnectExhausted {
		span.SetStatus(codes.Error, "reconnect attempts exhausted")
	}
	span.End()

	if result == ReconnectConnected || ctx.Err() != nil || s.sm.current().Terminal() {
		return
	}
	s.handleInbound(protocol.NewErrorMessage(protocol.ErrorKeepAliveTimeout))
}

// closeOut tears the connection down after an inbound error or a peer
// disconnect and ends the session.
func (s *Session) closeOut(reason protocol.Message) {
	if s.sm.current().Terminal() {
		return
	}
	s.dropConn()

	text := ""
	lost := false
	if reason.IsError() {
		kind := reason.ErrorKind()
		text = kind.String()
		lost = kind == protocol.ErrorIOException || kind == protocol.ErrorKeepAliveTimeout
	} else {
		text = "disconnect: " + reason.DisconnectReason().String()
	}

	if lost {
		s.transition(connectors.ConnectionStateLostConnection, text)
	}
	s.transition(connectors.ConnectionStateDisconnected, text)
	s.finish()
}

// finish stops the loop and closes the mailbox so later Submit calls fail
// with ErrSessionClosed. Items queued before that are dropped and logged.
func (s *Session) finish() {
	s.finished = true
	for _, it := range s.mailbox.close() {
		switch it.kind {
		case itemCommand:
			s.logger.Warn("command dropped: session finished", "command", it.req.String())
			s.metrics.commandDropped()
		case itemConnect:
			s.pendingConnects.Add(-1)
			s.logger.Warn("connect request dropped: session finished", "target", it.params.Target())
		}
	}
}

// handshake dials, sends CONNECT and waits for the first inbound frame.
func (s *Session) handshake(ctx context.Context, params protocol.ConnectionParameters, silent bool) (transport.Conn, protocol.Message, error) {
	ctx, span := tracer.Start(ctx, "session.handshake", trace.WithAttributes(
		attribute.String("session.id", s.id),
		attribute.String("target", params.Target()),
		attribute.Bool("reconnect", silent),
	))
	defer span.End()

	s.keepAlive.Reset()
	started := s.now()
	conn, first, err := s.dialAndGreet(ctx, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, protocol.Message{}, err
	}
	s.metrics.handshake(s.now().Sub(started))
	span.SetAttributes(attribute.String("first_message", first.String()))

	return conn, first, nil
}

func (s *Session) dialAndGreet(ctx context.Context, params protocol.ConnectionParameters) (transport.Conn, protocol.Message, error) {
	conn, err := s.dialer.Dial(ctx, params.Host, params.Port)
	if err != nil {
		return nil, protocol.Message{}, fmt.Errorf("dial %s: %w", params.Target(), err)
	}

	payload, err := s.codec.Encode(protocol.NewConnectRequest(params))
	if err != nil {
		_ = conn.Close()

		return nil, protocol.Message{}, fmt.Errorf("encode connect: %w", err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	err = conn.WriteFrame(writeCtx, payload)
	cancel()
	if err != nil {
		_ = conn.Close()

		return nil, protocol.Message{}, fmt.Errorf("send connect: %w", err)
	}
	s.frameOut(payload)

	readCtx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	first, err := conn.ReadFrame(readCtx)
	cancel()
	if err != nil {
		_ = conn.Close()

		return nil, protocol.Message{}, fmt.Errorf("await first frame: %w", err)
	}
	s.frameIn(first)

	return conn, s.codec.Decode(first), nil
}

// attach makes conn the live connection of the session.
func (s *Session) attach(conn transport.Conn, params protocol.ConnectionParameters) {
	s.conn = conn
	s.gen++
	lastGood := params.WithoutPlaylistRequest()
	s.lastGood = &lastGood
	s.target = params.Target()
	s.reconnect.Refill()
	s.connectedAt = s.now()
	s.keepAlive.Arm(s.connectedAt)

	s.snapMu.Lock()
	s.snapConn = conn
	s.snapMu.Unlock()
}

// afterHandshake processes the first frame and starts the reader if the
// connection survived it.
func (s *Session) afterHandshake(first protocol.Message) {
	if !first.IsError() {
		s.keepAlive.OnFrameReceived(s.now())
	}
	s.handleInbound(first)
	if s.conn == nil {
		return
	}

	r := &reader{
		conn:      s.conn,
		codec:     s.codec,
		keepAlive: s.keepAlive,
		poll:      s.cfg.PollInterval,
		gen:       s.gen,
		now:       s.now,
		push:      s.mailbox.push,
		onFrame:   s.frameIn,
		logger:    s.logger.With("part", "reader"),
		done:      make(chan struct{}),
	}
	s.rd = r
	go r.run()
}

// reconnectAttempt replaces the connection with a fresh one using the last
// known good parameters. No state transition is fired.
func (s *Session) reconnectAttempt(ctx context.Context) error {
	if s.lastGood == nil {
		return errors.New("no previous connection to restore")
	}
	s.dropConn()

	params := *s.lastGood
	conn, first, err := s.handshake(ctx, params, true)
	s.metrics.reconnect(err)
	if err != nil {
		return err
	}
	s.attach(conn, params)
	s.reconnects++
	s.afterHandshake(first)

	return nil
}

// dropConn closes the live connection and joins its reader. Values already
// queued by that reader become stale.
func (s *Session) dropConn() {
	if s.conn == nil {
		return
	}
	if s.rd != nil {
		s.rd.stop()
	}
	if err := s.conn.Close(); err != nil {
		s.logger.Debug("close connection", "error", err)
	}
	if s.rd != nil {
		s.rd.join()
		s.rd = nil
	}

	s.closedStats = s.closedStats.Add(s.conn.Stats())
	s.conn = nil
	s.gen++
	s.keepAlive.Reset()

	s.snapMu.Lock()
	s.snapConn = nil
	s.snap.Transport = s.closedStats
	s.snapMu.Unlock()
}

func (s *Session) write(ctx context.Context, payload []byte) error {
	if s.conn == nil {
		return transport.ErrNotConnected
	}
	writeCtx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()
	if err := s.conn.WriteFrame(writeCtx, payload); err != nil {
		return err
	}
	s.commandsOut++
	s.frameOut(payload)

	return nil
}

func (s *Session) transition(to connectors.ConnectionState, reason string) {
	if err := s.sm.transition(to, reason); err != nil {
		s.logger.Error("state transition rejected", "error", err)
	}
}

func (s *Session) fireStatus(state connectors.ConnectionState, reason string) {
	s.snapMu.Lock()
	s.snap.State = state
	s.snapMu.Unlock()

	status := connectors.ConnectionStatus{
		State:      state,
		Err:        reason,
		SessionID:  s.id,
		Target:     s.target,
		Timestamp:  s.now(),
		Reconnects: s.reconnects,
		Stats:      s.Stats().Transport,
	}
	s.metrics.transition(state)
	s.logger.Info("connection state changed", "state", state, "target", s.target, "reason", reason)
	s.listeners.status(status)
}

func (s *Session) deliver(msg protocol.Message) {
	s.listeners.message(msg)
}

func (s *Session) refreshSnapshot() {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	s.snap.Target = s.target
	s.snap.StartedAt = s.startedAt
	s.snap.ConnectedAt = s.connectedAt
	s.snap.LastKeepAlive = s.keepAlive.Last()
	s.snap.ReconnectsLeft = s.reconnect.Left()
	s.snap.Reconnects = s.reconnects
	s.snap.MessagesIn = s.messagesIn
	s.snap.CommandsOut = s.commandsOut
	s.snap.ProtocolBlocked = s.blocked
	s.snap.Transport = s.closedStats
}

func (s *Session) frameIn(payload []byte) {
	s.metrics.frameIn(len(payload))
	s.publishRaw(connectors.TopicRawFrameIn, payload)
}

func (s *Session) frameOut(payload []byte) {
	s.metrics.frameOut(len(payload))
	s.publishRaw(connectors.TopicRawFrameOut, payload)
}

func (s *Session) publishRaw(topic string, payload []byte) {
	if s.bus == nil {
		return
	}
	s.bus.TryPublish(topic, connectors.RawFrame{Hex: strings.ToUpper(hex.EncodeToString(payload)), Len: len(payload)})
}
