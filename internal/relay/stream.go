package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/skobkin/clemremote/internal/connectors"
	"github.com/skobkin/clemremote/internal/domain"
	"github.com/skobkin/clemremote/internal/protocol"
)

const (
	streamBuffer   = 64
	pingInterval   = 30 * time.Second
	readDeadline   = 60 * time.Second
	writeDeadline  = 10 * time.Second
	maxClientFrame = 4 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Dashboards served from other local ports connect cross-origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

type streamClient struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

// handleStream upgrades to a websocket and relays bus events as JSON until
// either side goes away. Clients may send {"command": "..."} frames.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)

		return
	}

	s.metrics.streamClients.Inc()
	defer s.metrics.streamClients.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &streamClient{
		conn:   conn,
		send:   make(chan []byte, streamBuffer),
		server: s,
	}

	sub := s.deps.Bus.Subscribe(connectors.TopicConnStatus, connectors.TopicMessage, connectors.TopicPlayback)
	defer s.deps.Bus.Unsubscribe(sub)

	status, known := s.deps.Controller.CurrentConnStatus()
	c.push(event{Kind: "status", Data: newStatusView(status, known)})
	if s.deps.Player != nil {
		c.push(event{Kind: "player", Data: newPlayerView(s.deps.Player.Snapshot())})
	}

	go c.writePump(ctx)
	go func() {
		c.readPump()
		cancel()
	}()

	s.logger.Debug("stream client connected", "remote", conn.RemoteAddr().String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("stream client gone", "remote", conn.RemoteAddr().String())

			return
		case raw, ok := <-sub:
			if !ok {
				return
			}
			if ev, ok := eventFor(raw); ok {
				c.push(ev)
			}
		}
	}
}

func eventFor(raw any) (event, bool) {
	switch v := raw.(type) {
	case connectors.ConnectionStatus:
		return event{Kind: "status", Data: newStatusView(v, true)}, true
	case protocol.Message:
		return event{Kind: "message", Data: newMessageView(v)}, true
	case domain.PlaybackEntry:
		return event{Kind: "playback", Data: newPlaybackView(v)}, true
	default:
		return event{}, false
	}
}

// push never blocks; a slow client loses events rather than stalling the bus.
func (c *streamClient) push(ev event) {
	data, err := json.Marshal(ev)
	if err != nil {
		c.server.logger.Warn("encode stream event", "kind", ev.Kind, "error", err)

		return
	}

	select {
	case c.send <- data:
	default:
		c.server.metrics.droppedEvents.Inc()
	}
}

type commandResult struct {
	Command string `json:"command"`
	Request string `json:"request,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (c *streamClient) readPump() {
	c.conn.SetReadLimit(maxClientFrame)
	_ = c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Debug("stream read failed", "error", err)
			}

			return
		}

		var req commandRequest
		if err := json.Unmarshal(data, &req); err != nil {
			c.push(event{Kind: "error", Data: map[string]string{"error": "invalid frame: " + err.Error()}})

			continue
		}
		res := commandResult{Command: req.Command}
		submitted, err := c.server.deps.Controller.SubmitCommand(req.Command)
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Request = submitted.String()
		}
		c.push(event{Kind: "command", Data: res})
	}
}

func (c *streamClient) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
