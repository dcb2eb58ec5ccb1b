package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestWriterQueue_RunsInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWriterQueue(nil, 4)
	w.Start(ctx)

	var (
		mu  sync.Mutex
		got []int
	)
	for i := range 20 {
		w.Enqueue("append", func(context.Context) error {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()

			return nil
		})
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, 2*time.Second)
	defer flushCancel()
	if err := w.Flush(flushCtx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 20 {
		t.Fatalf("expected 20 writes, got %d", len(got))
	}
	for i := 0; i < 4; i++ {
		if got[i] != i {
			t.Fatalf("expected queued writes in order, got %v", got)
		}
	}
}

func TestWriterQueue_RetriesFailedWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWriterQueue(nil, 1)
	w.backoff = time.Millisecond
	w.Start(ctx)

	attempts := 0
	w.Enqueue("flaky", func(context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("database is locked")
		}

		return nil
	})

	flushCtx, flushCancel := context.WithTimeout(ctx, 2*time.Second)
	defer flushCancel()
	if err := w.Flush(flushCtx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}
