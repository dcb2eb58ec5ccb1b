package session

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/skobkin/clemremote/internal/connectors"
	"github.com/skobkin/clemremote/internal/protocol"
	"github.com/skobkin/clemremote/internal/transport"
)

var errFakeWrite = errors.New("fake write failure")

// fakeConn is an in-memory transport.Conn. Frames pushed to inbound are
// returned by ReadFrame; a CONNECT write can trigger an automatic greeting.
type fakeConn struct {
	inbound   chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu          sync.Mutex
	written     [][]byte
	writesLeft  int
	greetOnWire []byte
}

func newFakeConn(greeting []byte) *fakeConn {
	return &fakeConn{
		inbound:     make(chan []byte, 16),
		closed:      make(chan struct{}),
		writesLeft:  -1,
		greetOnWire: greeting,
	}
}

// failWritesAfter makes every write after the first n fail.
func (c *fakeConn) failWritesAfter(n int) {
	c.mu.Lock()
	c.writesLeft = n
	c.mu.Unlock()
}

func (c *fakeConn) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case <-c.closed:
		return nil, fmt.Errorf("read: %w", net.ErrClosed)
	default:
	}
	select {
	case payload := <-c.inbound:
		return payload, nil
	case <-c.closed:
		return nil, fmt.Errorf("read: %w", net.ErrClosed)
	case <-ctx.Done():
		return nil, transport.ErrReadTimeout
	}
}

func (c *fakeConn) WriteFrame(_ context.Context, payload []byte) error {
	select {
	case <-c.closed:
		return transport.ErrNotConnected
	default:
	}

	c.mu.Lock()
	if c.writesLeft == 0 {
		c.mu.Unlock()

		return errFakeWrite
	}
	if c.writesLeft > 0 {
		c.writesLeft--
	}
	c.written = append(c.written, append([]byte(nil), payload...))
	greeting := c.greetOnWire
	c.mu.Unlock()

	msg := protocol.NewProtobufCodec(0).Decode(payload)
	if greeting != nil && !msg.IsError() && msg.Type() == protocol.MsgTypeConnect {
		c.inbound <- greeting
	}

	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })

	return nil
}

func (c *fakeConn) RemoteAddr() string {
	return "fake"
}

func (c *fakeConn) Stats() transport.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return transport.Stats{FramesWritten: uint64(len(c.written))}
}

func (c *fakeConn) writtenMessages() []protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	codec := protocol.NewProtobufCodec(0)
	out := make([]protocol.Message, 0, len(c.written))
	for _, payload := range c.written {
		out = append(out, codec.Decode(payload))
	}

	return out
}

// fakeDialer hands out connections from a script and counts dials.
type fakeDialer struct {
	mu    sync.Mutex
	dials int
	next  func(n int) (transport.Conn, error)
}

func (d *fakeDialer) Dial(_ context.Context, _ string, _ int) (transport.Conn, error) {
	d.mu.Lock()
	d.dials++
	n := d.dials
	d.mu.Unlock()

	return d.next(n)
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.dials
}

// recorder is a Listener that keeps everything it sees.
type recorder struct {
	mu       sync.Mutex
	statuses []connectors.ConnectionStatus
	messages []protocol.Message
}

func (r *recorder) OnConnectionStatusChanged(status connectors.ConnectionStatus) {
	r.mu.Lock()
	r.statuses = append(r.statuses, status)
	r.mu.Unlock()
}

func (r *recorder) OnMessageReceived(msg protocol.Message) {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
}

func (r *recorder) states() []connectors.ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]connectors.ConnectionState, 0, len(r.statuses))
	for _, status := range r.statuses {
		out = append(out, status.State)
	}

	return out
}

func (r *recorder) errorKinds() []protocol.ErrorKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []protocol.ErrorKind
	for _, msg := range r.messages {
		if msg.IsError() {
			out = append(out, msg.ErrorKind())
		}
	}

	return out
}

func (r *recorder) messageTypes() []protocol.MsgType {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []protocol.MsgType
	for _, msg := range r.messages {
		if !msg.IsError() {
			out = append(out, msg.Type())
		}
	}

	return out
}

func (r *recorder) count(state connectors.ConnectionState) int {
	n := 0
	for _, s := range r.states() {
		if s == state {
			n++
		}
	}

	return n
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()

	select {
	case <-s.Done():
	case <-time.After(3 * time.Second):
		t.Fatalf("session did not finish, state=%s", s.State())
	}
}

func statesEqual(got []connectors.ConnectionState, want ...connectors.ConnectionState) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}

	return true
}

func testConfig() Config {
	return Config{
		KeepAliveTimeout: time.Second,
		PollInterval:     20 * time.Millisecond,
		HandshakeTimeout: 500 * time.Millisecond,
		WriteTimeout:     500 * time.Millisecond,
		MaxReconnects:    DefaultMaxReconnects,
	}
}

func newTestSession(t *testing.T, dialer transport.Dialer, cfg Config) (*Session, *recorder) {
	t.Helper()

	s, err := New(Options{
		Dialer:  dialer,
		Codec:   protocol.NewProtobufCodec(0),
		Metrics: NewMetrics(nil),
		Config:  cfg,
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	rec := &recorder{}
	s.Subscribe(rec)

	return s, rec
}

func testParams(port int) protocol.ConnectionParameters {
	return protocol.ConnectionParameters{Host: "127.0.0.1", Port: port, AuthCode: 1234, SendPlaylistSongs: true}
}

// fakePlayer is a TCP server speaking the framed protocol.
type fakePlayer struct {
	ln   net.Listener
	port int
}

func startFakePlayer(t *testing.T, handle func(conn net.Conn)) *fakePlayer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	_, portRaw, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split listener addr: %v", err)
	}
	port, err := strconv.Atoi(portRaw)
	if err != nil {
		t.Fatalf("parse listener port: %v", err)
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handle(conn)
		}
	}()

	return &fakePlayer{ln: ln, port: port}
}

func writeTestFrame(w io.Writer, payload []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)

	return err
}

func readTestFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	payload := make([]byte, binary.BigEndian.Uint32(header[:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	return payload, nil
}
