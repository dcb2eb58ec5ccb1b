package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skobkin/clemremote/internal/protocol"
	"github.com/skobkin/clemremote/internal/transport"
)

// reader performs the blocking frame reads of one connection and feeds the
// decoded results back to the dispatch loop. It never changes session state.
type reader struct {
	conn      transport.Conn
	codec     protocol.Codec
	keepAlive *KeepAlive
	poll      time.Duration
	gen       uint64
	now       func() time.Time
	push      func(item) bool
	onFrame   func(payload []byte)
	logger    *slog.Logger

	stopped  atomic.Bool
	stopOnce sync.Once
	done     chan struct{}
}

func (r *reader) run() {
	defer close(r.done)

	for !r.stopped.Load() {
		if r.keepAlive.Check(r.now()) == KeepAliveExpired {
			r.logger.Warn("keep-alive expired", "last_alive", r.keepAlive.Last(), "timeout", r.keepAlive.Timeout())
			r.push(item{kind: itemKeepAliveExpired, gen: r.gen})

			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), r.poll)
		payload, err := r.conn.ReadFrame(ctx)
		cancel()
		if err != nil {
			if errors.Is(err, transport.ErrReadTimeout) {
				continue
			}
			if r.stopped.Load() {
				return
			}
			r.logger.Warn("read failed", "error", err)
			r.push(item{kind: itemInbound, gen: r.gen, msg: protocol.NewErrorMessage(protocol.ErrorIOException)})

			return
		}
		if r.onFrame != nil {
			r.onFrame(payload)
		}

		msg := r.codec.Decode(payload)
		if !msg.IsError() {
			r.keepAlive.OnFrameReceived(r.now())
		}
		r.push(item{kind: itemInbound, gen: r.gen, msg: msg})
		if msg.IsError() {
			return
		}
	}
}

// stop marks the reader as stopping. The caller closes the connection to
// unblock a pending read and then calls join.
func (r *reader) stop() {
	r.stopOnce.Do(func() { r.stopped.Store(true) })
}

func (r *reader) join() {
	<-r.done
}
