package persistence

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultWriterCapacity = 256
	writerMaxAttempts     = 3
)

type writeCmd struct {
	name string
	fn   func(context.Context) error
}

// WriterQueue runs database writes one at a time in submission order.
type WriterQueue struct {
	logger  *slog.Logger
	queue   chan writeCmd
	pending sync.WaitGroup
	backoff time.Duration
}

func NewWriterQueue(logger *slog.Logger, capacity int) *WriterQueue {
	if capacity <= 0 {
		capacity = defaultWriterCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &WriterQueue{
		logger:  logger.With("component", "writer"),
		queue:   make(chan writeCmd, capacity),
		backoff: 300 * time.Millisecond,
	}
}

func (w *WriterQueue) Enqueue(name string, fn func(context.Context) error) {
	cmd := writeCmd{name: name, fn: fn}
	w.pending.Add(1)
	select {
	case w.queue <- cmd:
	default:
		w.logger.Warn("write queue is full, deferring", "cmd", name)
		go func() { w.queue <- cmd }()
	}
}

func (w *WriterQueue) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case cmd := <-w.queue:
				w.runWithRetry(ctx, cmd)
				w.pending.Done()
			}
		}
	}()
}

// Flush waits until every enqueued write has run or ctx is done.
func (w *WriterQueue) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *WriterQueue) runWithRetry(ctx context.Context, cmd writeCmd) {
	for attempt := 1; attempt <= writerMaxAttempts; attempt++ {
		err := cmd.fn(ctx)
		if err == nil {
			return
		}
		w.logger.Error("db write failed", "cmd", cmd.name, "attempt", attempt, "error", err)
		if attempt == writerMaxAttempts {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * w.backoff):
		}
	}
}
