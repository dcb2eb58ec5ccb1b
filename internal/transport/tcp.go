package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultDialTimeout bounds a single TCP connect attempt.
const DefaultDialTimeout = 3 * time.Second

// TCPDialer opens framed connections over TCP.
type TCPDialer struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewTCPDialer(timeout time.Duration, logger *slog.Logger) *TCPDialer {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	return &TCPDialer{Timeout: timeout, Logger: logger}
}

func (d *TCPDialer) Dial(ctx context.Context, host string, port int) (Conn, error) {
	target := net.JoinHostPort(host, strconv.Itoa(port))
	logger := transportLogger(d.Logger, "target", target)

	if host == "" {
		logger.Warn("connect failed: host is empty")

		return nil, errors.New("tcp host is empty")
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	dialer := net.Dialer{Timeout: timeout}
	logger.Info("connecting")
	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		logger.Warn("connect failed", "error", err)

		return nil, fmt.Errorf("dial tcp: %w", err)
	}
	logger.Info("connected", "remote", conn.RemoteAddr().String())

	return newTCPConn(conn, logger), nil
}

// TCPConn sends and receives length-prefixed frames over a TCP socket.
type TCPConn struct {
	conn   net.Conn
	logger *slog.Logger
	remote string

	readMu  sync.Mutex
	frames  *frameReader
	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool

	bytesRead     atomic.Uint64
	bytesWritten  atomic.Uint64
	framesRead    atomic.Uint64
	framesWritten atomic.Uint64
}

func newTCPConn(conn net.Conn, logger *slog.Logger) *TCPConn {
	c := &TCPConn{
		conn:   conn,
		logger: logger,
		remote: conn.RemoteAddr().String(),
	}
	c.frames = newFrameReader(countingReader{r: conn, n: &c.bytesRead})

	return c
}

func (c *TCPConn) RemoteAddr() string {
	return c.remote
}

func (c *TCPConn) Stats() Stats {
	return Stats{
		BytesRead:     c.bytesRead.Load(),
		BytesWritten:  c.bytesWritten.Load(),
		FramesRead:    c.framesRead.Load(),
		FramesWritten: c.framesWritten.Load(),
	}
}

func (c *TCPConn) ReadFrame(ctx context.Context) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrNotConnected
	}

	c.readMu.Lock()
	defer c.readMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
	} else {
		_ = c.conn.SetReadDeadline(time.Time{})
	}

	payload, err := c.frames.next()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w (partial=%t)", ErrReadTimeout, c.frames.pending())
		}
		c.logger.Debug("read frame failed", "error", err)

		return nil, err
	}
	c.framesRead.Add(1)
	c.logger.Debug("read frame", "len", len(payload))

	return payload, nil
}

func (c *TCPConn) WriteFrame(ctx context.Context, payload []byte) error {
	if c.closed.Load() {
		return ErrNotConnected
	}

	frame, err := encodeFrame(payload)
	if err != nil {
		c.logger.Warn("encode frame failed", "payload_len", len(payload), "error", err)

		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	} else {
		_ = c.conn.SetWriteDeadline(time.Time{})
	}
	n, err := c.conn.Write(frame)
	// #nosec G115 -- n is never negative.
	c.bytesWritten.Add(uint64(n))
	if err != nil {
		c.logger.Warn("write frame failed", "payload_len", len(payload), "frame_len", len(frame), "error", err)

		return fmt.Errorf("write frame: %w", err)
	}
	c.framesWritten.Add(1)
	c.logger.Debug("write frame", "payload_len", len(payload), "frame_len", len(frame))

	return nil
}

// Close shuts the socket down. It is idempotent and unblocks a pending ReadFrame.
func (c *TCPConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.conn.Close()
		if c.closeErr != nil {
			c.logger.Warn("close failed", "error", c.closeErr)

			return
		}
		c.logger.Info("closed")
	})

	return c.closeErr
}

type countingReader struct {
	r io.Reader
	n *atomic.Uint64
}

func (r countingReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		// #nosec G115 -- n is positive here.
		r.n.Add(uint64(n))
	}

	return n, err
}
