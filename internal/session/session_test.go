package session

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/skobkin/clemremote/internal/connectors"
	"github.com/skobkin/clemremote/internal/protocol"
	"github.com/skobkin/clemremote/internal/transport"
)

func TestSession_ConnectSequenceAndUserDisconnect(t *testing.T) {
	gotDisconnect := make(chan struct{}, 1)
	player := startFakePlayer(t, func(conn net.Conn) {
		defer func() { _ = conn.Close() }()
		codec := protocol.NewProtobufCodec(0)
		for {
			payload, err := readTestFrame(conn)
			if err != nil {
				return
			}
			msg := codec.Decode(payload)
			if msg.IsError() {
				continue
			}
			switch msg.Type() {
			case protocol.MsgTypeConnect:
				_ = writeTestFrame(conn, protocol.EncodeInfo("1.4.0", protocol.EngineStatePlaying))
			case protocol.MsgTypeDisconnect:
				gotDisconnect <- struct{}{}

				return
			}
		}
	})

	s, rec := newTestSession(t, transport.NewTCPDialer(time.Second, nil), testConfig())
	s.Start(context.Background())
	if err := s.Connect(testParams(player.port)); err != nil {
		t.Fatalf("connect: %v", err)
	}

	waitFor(t, "connected", func() bool { return rec.count(connectors.ConnectionStateConnected) == 1 })
	waitFor(t, "info message", func() bool { return len(rec.messageTypes()) == 1 })
	if !statesEqual(rec.states(), connectors.ConnectionStateIdle, connectors.ConnectionStateConnecting, connectors.ConnectionStateConnected) {
		t.Fatalf("unexpected state sequence: %v", rec.states())
	}
	if rec.messageTypes()[0] != protocol.MsgTypeInfo {
		t.Fatalf("expected INFO first, got %v", rec.messageTypes())
	}

	if err := s.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	waitDone(t, s)

	select {
	case <-gotDisconnect:
	case <-time.After(2 * time.Second):
		t.Fatalf("player did not receive DISCONNECT")
	}
	if rec.count(connectors.ConnectionStateLostConnection) != 0 {
		t.Fatalf("user disconnect must not report lost connection: %v", rec.states())
	}
	if got := rec.states(); got[len(got)-1] != connectors.ConnectionStateDisconnected {
		t.Fatalf("expected to end disconnected, got %v", got)
	}
	if err := s.Submit(protocol.NewSimpleRequest(protocol.MsgTypePlay)); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed after disconnect, got %v", err)
	}
}

func TestSession_AcceptThenCloseIsNoConnection(t *testing.T) {
	player := startFakePlayer(t, func(conn net.Conn) {
		_ = conn.Close()
	})

	s, rec := newTestSession(t, transport.NewTCPDialer(time.Second, nil), testConfig())
	s.Start(context.Background())
	if err := s.Connect(testParams(player.port)); err != nil {
		t.Fatalf("connect: %v", err)
	}

	waitFor(t, "no connection", func() bool { return rec.count(connectors.ConnectionStateNoConnection) == 1 })
	if !statesEqual(rec.states(), connectors.ConnectionStateIdle, connectors.ConnectionStateConnecting, connectors.ConnectionStateNoConnection) {
		t.Fatalf("unexpected state sequence: %v", rec.states())
	}
	if kinds := rec.errorKinds(); len(kinds) != 1 || kinds[0] != protocol.ErrorNoConnection {
		t.Fatalf("expected one NoConnection message, got %v", kinds)
	}

	_ = s.Disconnect()
	waitDone(t, s)
	if got := rec.states(); got[len(got)-1] != connectors.ConnectionStateDisconnected {
		t.Fatalf("expected disconnected after giving up, got %v", got)
	}
}

func TestSession_InvalidFrameDeliversInvalidDataThenDisconnects(t *testing.T) {
	player := startFakePlayer(t, func(conn net.Conn) {
		defer func() { _ = conn.Close() }()
		if _, err := readTestFrame(conn); err != nil {
			return
		}
		_ = writeTestFrame(conn, protocol.EncodeInfo("1.4.0", protocol.EngineStateIdle))
		// 0x00000005 followed by bytes the codec cannot parse.
		_, _ = conn.Write([]byte{0x00, 0x00, 0x00, 0x05, 0xff, 0xff, 0xff, 0xff, 0xff})
		_, _ = readTestFrame(conn)
	})

	s, rec := newTestSession(t, transport.NewTCPDialer(time.Second, nil), testConfig())
	s.Start(context.Background())
	if err := s.Connect(testParams(player.port)); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitDone(t, s)

	if kinds := rec.errorKinds(); len(kinds) != 1 || kinds[0] != protocol.ErrorInvalidData {
		t.Fatalf("expected one InvalidData message, got %v", kinds)
	}
	want := []connectors.ConnectionState{
		connectors.ConnectionStateIdle,
		connectors.ConnectionStateConnecting,
		connectors.ConnectionStateConnected,
		connectors.ConnectionStateDisconnected,
	}
	if !statesEqual(rec.states(), want...) {
		t.Fatalf("unexpected state sequence: %v", rec.states())
	}
}

func TestSession_KeepAliveExhaustionReportsSingleTimeout(t *testing.T) {
	dialer := &fakeDialer{next: func(n int) (transport.Conn, error) {
		if n == 1 {
			return newFakeConn(protocol.EncodeInfo("1.4.0", protocol.EngineStatePlaying)), nil
		}

		return nil, errors.New("dial timeout")
	}}
	cfg := testConfig()
	cfg.KeepAliveTimeout = 150 * time.Millisecond

	s, rec := newTestSession(t, dialer, cfg)
	s.Start(context.Background())
	if err := s.Connect(testParams(5500)); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitDone(t, s)

	if got := dialer.count() - 1; got != DefaultMaxReconnects {
		t.Fatalf("expected %d reconnect dials, got %d", DefaultMaxReconnects, got)
	}
	if kinds := rec.errorKinds(); len(kinds) != 1 || kinds[0] != protocol.ErrorKeepAliveTimeout {
		t.Fatalf("expected exactly one KeepAliveTimeout, got %v", kinds)
	}
	want := []connectors.ConnectionState{
		connectors.ConnectionStateIdle,
		connectors.ConnectionStateConnecting,
		connectors.ConnectionStateConnected,
		connectors.ConnectionStateLostConnection,
		connectors.ConnectionStateDisconnected,
	}
	if !statesEqual(rec.states(), want...) {
		t.Fatalf("unexpected state sequence: %v", rec.states())
	}
	if left := s.Stats().ReconnectsLeft; left != 0 {
		t.Fatalf("expected reconnect budget to be spent, got %d", left)
	}
}

func TestSession_KeepAliveReconnectIsSilent(t *testing.T) {
	var second atomic.Pointer[fakeConn]
	dialer := &fakeDialer{next: func(n int) (transport.Conn, error) {
		conn := newFakeConn(protocol.EncodeInfo("1.4.0", protocol.EngineStatePlaying))
		if n == 2 {
			second.Store(conn)
		}

		return conn, nil
	}}
	cfg := testConfig()
	cfg.KeepAliveTimeout = 100 * time.Millisecond

	s, rec := newTestSession(t, dialer, cfg)
	s.Start(context.Background())
	if err := s.Connect(testParams(5500)); err != nil {
		t.Fatalf("connect: %v", err)
	}

	waitFor(t, "silent reconnect", func() bool { return s.Stats().Reconnects >= 1 })
	_ = s.Disconnect()
	waitDone(t, s)

	if n := rec.count(connectors.ConnectionStateConnected); n != 1 {
		t.Fatalf("expected one connected notification, got %d: %v", n, rec.states())
	}
	if n := rec.count(connectors.ConnectionStateConnecting); n != 1 {
		t.Fatalf("reconnects must not report connecting: %v", rec.states())
	}
	conn := second.Load()
	if conn == nil {
		t.Fatalf("expected a second connection")
	}
	connect := conn.writtenMessages()[0]
	if connect.Type() != protocol.MsgTypeConnect || connect.Connect().SendPlaylistSongs {
		t.Fatalf("reconnect must reuse parameters without the playlist request: %+v", connect.Connect())
	}
	if connect.Connect().AuthCode != 1234 {
		t.Fatalf("expected auth code to be kept, got %d", connect.Connect().AuthCode)
	}
}

func TestSession_RacingConnectsProduceOneConnected(t *testing.T) {
	dialer := &fakeDialer{next: func(int) (transport.Conn, error) {
		return newFakeConn(protocol.EncodeInfo("1.4.0", protocol.EngineStatePlaying)), nil
	}}
	s, rec := newTestSession(t, dialer, testConfig())

	for range 3 {
		if err := s.Connect(testParams(5500)); err != nil {
			t.Fatalf("connect: %v", err)
		}
		if err := s.Submit(protocol.NewSimpleRequest(protocol.MsgTypePlay)); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	s.Start(context.Background())

	waitFor(t, "connected", func() bool { return rec.count(connectors.ConnectionStateConnected) == 1 })
	waitFor(t, "queue drained", func() bool { return s.Stats().CommandsOut >= 2 })
	_ = s.Disconnect()
	waitDone(t, s)

	if n := rec.count(connectors.ConnectionStateConnected); n != 1 {
		t.Fatalf("expected exactly one connected notification, got %d", n)
	}
	if dialer.count() != 1 {
		t.Fatalf("expected one dial, got %d", dialer.count())
	}
}

func TestSession_TryConnectRejectsWhileActive(t *testing.T) {
	dialer := &fakeDialer{next: func(int) (transport.Conn, error) {
		return newFakeConn(protocol.EncodeInfo("1.4.0", protocol.EngineStatePlaying)), nil
	}}
	s, rec := newTestSession(t, dialer, testConfig())
	s.Start(context.Background())

	if err := s.TryConnect(testParams(5500)); err != nil {
		t.Fatalf("first connect: %v", err)
	}
	other := testParams(5500)
	other.Host = "127.0.0.2"
	if err := s.TryConnect(other); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive while the first connect is queued, got %v", err)
	}

	waitFor(t, "connected", func() bool { return rec.count(connectors.ConnectionStateConnected) == 1 })
	if err := s.TryConnect(other); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive while connected, got %v", err)
	}

	_ = s.Disconnect()
	waitDone(t, s)
	if err := s.TryConnect(other); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed after disconnect, got %v", err)
	}
	if dialer.count() != 1 {
		t.Fatalf("rejected connects must not dial, got %d dials", dialer.count())
	}
}

func TestSession_TryConnectRetriesFromNoConnection(t *testing.T) {
	dialer := &fakeDialer{next: func(n int) (transport.Conn, error) {
		if n == 1 {
			return nil, errors.New("refused")
		}

		return newFakeConn(protocol.EncodeInfo("1.4.0", protocol.EngineStatePlaying)), nil
	}}
	s, rec := newTestSession(t, dialer, testConfig())
	s.Start(context.Background())

	if err := s.TryConnect(testParams(5500)); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitFor(t, "no connection", func() bool { return rec.count(connectors.ConnectionStateNoConnection) == 1 })
	waitFor(t, "retry accepted", func() bool { return s.TryConnect(testParams(5500)) == nil })
	waitFor(t, "connected", func() bool { return rec.count(connectors.ConnectionStateConnected) == 1 })

	_ = s.Disconnect()
	waitDone(t, s)
	if dialer.count() != 2 {
		t.Fatalf("expected two dials, got %d", dialer.count())
	}
}

func TestSession_ItemsQueuedBehindDisconnectAreDropped(t *testing.T) {
	dialer := &fakeDialer{next: func(int) (transport.Conn, error) { return nil, errors.New("unused") }}
	metrics := NewMetrics(prometheus.NewRegistry())
	s, err := New(Options{Dialer: dialer, Codec: protocol.NewProtobufCodec(0), Metrics: metrics, Config: testConfig()})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	if err := s.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if err := s.Submit(protocol.NewSimpleRequest(protocol.MsgTypePlay)); err != nil {
		t.Fatalf("submit before start: %v", err)
	}
	if err := s.Connect(testParams(5500)); err != nil {
		t.Fatalf("connect before start: %v", err)
	}
	s.Start(context.Background())
	waitDone(t, s)

	if got := testutil.ToFloat64(metrics.droppedCommands); got != 1 {
		t.Fatalf("expected the queued command to be counted as dropped, got %v", got)
	}
	if dialer.count() != 0 {
		t.Fatalf("connect queued behind disconnect must not dial")
	}
	if n := s.pendingConnects.Load(); n != 0 {
		t.Fatalf("expected no pending connects, got %d", n)
	}
	if err := s.Submit(protocol.NewSimpleRequest(protocol.MsgTypePlay)); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed after finish, got %v", err)
	}
}

func TestSession_SendFailureReconnectsOnceAndResends(t *testing.T) {
	var first, second atomic.Pointer[fakeConn]
	dialer := &fakeDialer{next: func(n int) (transport.Conn, error) {
		conn := newFakeConn(protocol.EncodeInfo("1.4.0", protocol.EngineStatePlaying))
		switch n {
		case 1:
			conn.failWritesAfter(1)
			first.Store(conn)
		case 2:
			second.Store(conn)
		}

		return conn, nil
	}}
	s, rec := newTestSession(t, dialer, testConfig())
	s.Start(context.Background())
	if err := s.Connect(testParams(5500)); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitFor(t, "connected", func() bool { return rec.count(connectors.ConnectionStateConnected) == 1 })

	if err := s.Submit(protocol.NewVolumeRequest(40)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitFor(t, "resend on new connection", func() bool {
		conn := second.Load()

		return conn != nil && len(conn.writtenMessages()) >= 2
	})

	msgs := second.Load().writtenMessages()
	if msgs[0].Type() != protocol.MsgTypeConnect || msgs[1].Type() != protocol.MsgTypeSetVolume || msgs[1].Volume() != 40 {
		t.Fatalf("unexpected frames on second connection: %v", msgs)
	}
	if !first.Load().writtenMessages()[0].Connect().SendPlaylistSongs {
		t.Fatalf("initial connect should ask for playlist songs")
	}
	if dialer.count() != 2 {
		t.Fatalf("expected exactly one reconnect dial, got %d", dialer.count()-1)
	}

	_ = s.Disconnect()
	waitDone(t, s)
	want := []connectors.ConnectionState{
		connectors.ConnectionStateIdle,
		connectors.ConnectionStateConnecting,
		connectors.ConnectionStateConnected,
		connectors.ConnectionStateDisconnected,
	}
	if !statesEqual(rec.states(), want...) {
		t.Fatalf("unexpected state sequence: %v", rec.states())
	}
}

func TestSession_SendFailureWithoutReconnectEndsWithServerShutdown(t *testing.T) {
	dialer := &fakeDialer{next: func(n int) (transport.Conn, error) {
		if n > 1 {
			return nil, errors.New("connection refused")
		}
		conn := newFakeConn(protocol.EncodeInfo("1.4.0", protocol.EngineStatePlaying))
		conn.failWritesAfter(1)

		return conn, nil
	}}
	s, rec := newTestSession(t, dialer, testConfig())
	s.Start(context.Background())
	if err := s.Connect(testParams(5500)); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitFor(t, "connected", func() bool { return rec.count(connectors.ConnectionStateConnected) == 1 })

	if err := s.Submit(protocol.NewSimpleRequest(protocol.MsgTypeNext)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitDone(t, s)

	if dialer.count() != 2 {
		t.Fatalf("expected exactly one reconnect attempt, got %d", dialer.count()-1)
	}
	types := rec.messageTypes()
	if len(types) != 2 || types[1] != protocol.MsgTypeDisconnect {
		t.Fatalf("expected synthesized DISCONNECT, got %v", types)
	}
	if rec.count(connectors.ConnectionStateLostConnection) != 0 {
		t.Fatalf("server shutdown must end without lost connection: %v", rec.states())
	}
	if got := rec.states(); got[len(got)-1] != connectors.ConnectionStateDisconnected {
		t.Fatalf("expected disconnected, got %v", got)
	}
}

func TestSession_PeerDisconnectClosesSession(t *testing.T) {
	conn := newFakeConn(protocol.EncodeInfo("1.4.0", protocol.EngineStatePlaying))
	dialer := &fakeDialer{next: func(int) (transport.Conn, error) { return conn, nil }}
	s, rec := newTestSession(t, dialer, testConfig())
	s.Start(context.Background())
	if err := s.Connect(testParams(5500)); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitFor(t, "connected", func() bool { return rec.count(connectors.ConnectionStateConnected) == 1 })

	conn.inbound <- protocol.EncodeDisconnect(protocol.DisconnectReasonWrongAuthCode)
	waitDone(t, s)

	if rec.count(connectors.ConnectionStateLostConnection) != 0 {
		t.Fatalf("peer disconnect must not report lost connection: %v", rec.states())
	}
	if got := rec.states(); got[len(got)-1] != connectors.ConnectionStateDisconnected {
		t.Fatalf("expected disconnected, got %v", got)
	}
}

func TestSession_IOErrorReportsLostConnection(t *testing.T) {
	conn := newFakeConn(protocol.EncodeInfo("1.4.0", protocol.EngineStatePlaying))
	dialer := &fakeDialer{next: func(int) (transport.Conn, error) { return conn, nil }}
	s, rec := newTestSession(t, dialer, testConfig())
	s.Start(context.Background())
	if err := s.Connect(testParams(5500)); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitFor(t, "connected", func() bool { return rec.count(connectors.ConnectionStateConnected) == 1 })

	_ = conn.Close()
	waitDone(t, s)

	if kinds := rec.errorKinds(); len(kinds) != 1 || kinds[0] != protocol.ErrorIOException {
		t.Fatalf("expected one IOException, got %v", kinds)
	}
	want := []connectors.ConnectionState{
		connectors.ConnectionStateIdle,
		connectors.ConnectionStateConnecting,
		connectors.ConnectionStateConnected,
		connectors.ConnectionStateLostConnection,
		connectors.ConnectionStateDisconnected,
	}
	if !statesEqual(rec.states(), want...) {
		t.Fatalf("unexpected state sequence: %v", rec.states())
	}
}

func TestSession_OldProtocolVersionEndsSession(t *testing.T) {
	dialer := &fakeDialer{next: func(int) (transport.Conn, error) {
		return newFakeConn(protocol.EncodePlayerMessageVersion(10, protocol.MsgTypeInfo)), nil
	}}
	s, rec := newTestSession(t, dialer, testConfig())
	s.Start(context.Background())
	if err := s.Connect(testParams(5500)); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitDone(t, s)

	if kinds := rec.errorKinds(); len(kinds) != 1 || kinds[0] != protocol.ErrorOldProtocolVersion {
		t.Fatalf("expected OldProtocolVersion, got %v", kinds)
	}
	if !s.Stats().ProtocolBlocked {
		t.Fatalf("expected session to block further commands")
	}
	if got := rec.states(); got[len(got)-1] != connectors.ConnectionStateDisconnected {
		t.Fatalf("expected disconnected, got %v", got)
	}
}

func TestSession_CommandsDroppedWhileNotConnected(t *testing.T) {
	dialer := &fakeDialer{next: func(int) (transport.Conn, error) {
		return nil, errors.New("unreachable")
	}}
	s, rec := newTestSession(t, dialer, testConfig())
	s.Start(context.Background())

	if err := s.Submit(protocol.NewSimpleRequest(protocol.MsgTypePlay)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_ = s.Disconnect()
	waitDone(t, s)

	if dialer.count() != 0 {
		t.Fatalf("commands must not dial, got %d dials", dialer.count())
	}
	if s.Stats().CommandsOut != 0 {
		t.Fatalf("expected no frames to be sent")
	}
	if !statesEqual(rec.states(), connectors.ConnectionStateIdle, connectors.ConnectionStateDisconnected) {
		t.Fatalf("unexpected state sequence: %v", rec.states())
	}
}

func TestSession_ContextCancelActsAsDisconnect(t *testing.T) {
	dialer := &fakeDialer{next: func(int) (transport.Conn, error) {
		return newFakeConn(protocol.EncodeInfo("1.4.0", protocol.EngineStatePlaying)), nil
	}}
	s, rec := newTestSession(t, dialer, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	if err := s.Connect(testParams(5500)); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitFor(t, "connected", func() bool { return rec.count(connectors.ConnectionStateConnected) == 1 })

	cancel()
	waitDone(t, s)

	if rec.count(connectors.ConnectionStateLostConnection) != 0 {
		t.Fatalf("cancel must not report lost connection: %v", rec.states())
	}
	if got := rec.states(); got[len(got)-1] != connectors.ConnectionStateDisconnected {
		t.Fatalf("expected disconnected, got %v", got)
	}
}

func TestSession_SubmitRejectsConnectAndInvalidRequests(t *testing.T) {
	dialer := &fakeDialer{next: func(int) (transport.Conn, error) { return nil, errors.New("unused") }}
	s, _ := newTestSession(t, dialer, testConfig())

	if err := s.Submit(protocol.NewConnectRequest(testParams(5500))); !errors.Is(err, ErrUseConnect) {
		t.Fatalf("expected ErrUseConnect, got %v", err)
	}
	if err := s.Submit(protocol.NewVolumeRequest(400)); err == nil {
		t.Fatalf("expected invalid volume to be rejected")
	}
	if err := s.Connect(protocol.ConnectionParameters{}); err == nil {
		t.Fatalf("expected invalid parameters to be rejected")
	}
}

func TestNew_RequiresDialerAndCodec(t *testing.T) {
	if _, err := New(Options{Codec: protocol.NewProtobufCodec(0)}); err == nil {
		t.Fatalf("expected missing dialer error")
	}
	if _, err := New(Options{Dialer: &fakeDialer{}}); err == nil {
		t.Fatalf("expected missing codec error")
	}
}
