package session

import (
	"log/slog"
	"sync"

	"github.com/skobkin/clemremote/internal/bus"
	"github.com/skobkin/clemremote/internal/connectors"
	"github.com/skobkin/clemremote/internal/protocol"
)

// Listener receives session notifications. Calls come synchronously from the
// dispatch loop in registration order, so implementations must return quickly.
type Listener interface {
	OnConnectionStatusChanged(status connectors.ConnectionStatus)
	OnMessageReceived(msg protocol.Message)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Status  func(status connectors.ConnectionStatus)
	Message func(msg protocol.Message)
}

func (f ListenerFuncs) OnConnectionStatusChanged(status connectors.ConnectionStatus) {
	if f.Status != nil {
		f.Status(status)
	}
}

func (f ListenerFuncs) OnMessageReceived(msg protocol.Message) {
	if f.Message != nil {
		f.Message(msg)
	}
}

// BusListener republishes session notifications on the message bus.
type BusListener struct {
	bus bus.MessageBus
}

func NewBusListener(b bus.MessageBus) *BusListener {
	return &BusListener{bus: b}
}

func (l *BusListener) OnConnectionStatusChanged(status connectors.ConnectionStatus) {
	l.bus.Publish(connectors.TopicConnStatus, status)
}

func (l *BusListener) OnMessageReceived(msg protocol.Message) {
	l.bus.Publish(connectors.TopicMessage, msg)
}

type fanout struct {
	mu        sync.RWMutex
	listeners []Listener
	logger    *slog.Logger
}

func (f *fanout) add(l Listener) {
	if l == nil {
		return
	}
	f.mu.Lock()
	f.listeners = append(f.listeners, l)
	f.mu.Unlock()
}

func (f *fanout) snapshot() []Listener {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]Listener, len(f.listeners))
	copy(out, f.listeners)

	return out
}

func (f *fanout) status(status connectors.ConnectionStatus) {
	for _, l := range f.snapshot() {
		f.call("status", func() { l.OnConnectionStatusChanged(status) })
	}
}

func (f *fanout) message(msg protocol.Message) {
	for _, l := range f.snapshot() {
		f.call("message", func() { l.OnMessageReceived(msg) })
	}
}

// call keeps a panicking listener from taking the dispatch loop down.
func (f *fanout) call(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("listener panicked", "notification", kind, "panic", r)
		}
	}()
	fn()
}
