package session

import (
	"context"
	"errors"
	"testing"
)

func TestReconnectPolicy_RunSpendsBudget(t *testing.T) {
	p := NewReconnectPolicy(5, nil)
	calls := 0
	result := p.Run(context.Background(), func(context.Context) error {
		calls++

		return errors.New("refused")
	})

	if result != ReconnectExhausted {
		t.Fatalf("expected exhausted, got %s", result)
	}
	if calls != 5 {
		t.Fatalf("expected 5 attempts, got %d", calls)
	}
	if p.Left() != 0 {
		t.Fatalf("expected empty budget, got %d", p.Left())
	}
}

func TestReconnectPolicy_SuccessRefills(t *testing.T) {
	p := NewReconnectPolicy(3, nil)
	calls := 0
	result := p.Run(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("refused")
		}

		return nil
	})

	if result != ReconnectConnected {
		t.Fatalf("expected connected, got %s", result)
	}
	if p.Left() != p.Max() {
		t.Fatalf("expected refilled budget, got %d of %d", p.Left(), p.Max())
	}
}

func TestReconnectPolicy_CanceledContext(t *testing.T) {
	p := NewReconnectPolicy(3, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	attempt := func(context.Context) error {
		called = true

		return nil
	}
	if result := p.Run(ctx, attempt); result != ReconnectExhausted {
		t.Fatalf("expected exhausted on canceled context, got %s", result)
	}
	if err := p.Once(ctx, attempt); err == nil {
		t.Fatalf("expected error on canceled context")
	}
	if called {
		t.Fatalf("attempt must not run on a canceled context")
	}
}

func TestReconnectPolicy_OnceKeepsBudget(t *testing.T) {
	p := NewReconnectPolicy(2, nil)
	err := p.Once(context.Background(), func(context.Context) error { return errors.New("refused") })
	if err == nil {
		t.Fatalf("expected attempt error")
	}
	if p.Left() != 2 {
		t.Fatalf("expected budget to stay at 2, got %d", p.Left())
	}
}
