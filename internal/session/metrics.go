package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/skobkin/clemremote/internal/connectors"
	"github.com/skobkin/clemremote/internal/protocol"
)

const metricsNamespace = "clemremote"

// Metrics holds the session collectors. One instance is shared by every
// session of a process so collectors are registered once.
type Metrics struct {
	framesTotal       *prometheus.CounterVec
	bytesTotal        *prometheus.CounterVec
	transitionsTotal  *prometheus.CounterVec
	reconnectsTotal   *prometheus.CounterVec
	inboundErrors     *prometheus.CounterVec
	keepAliveTimeouts prometheus.Counter
	droppedCommands   prometheus.Counter
	handshakeDuration prometheus.Histogram
	connected         prometheus.Gauge
}

// NewMetrics registers the collectors on reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		framesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_total",
			Help:      "Frames exchanged with the player by direction",
		}, []string{"direction"}),
		bytesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "bytes_total",
			Help:      "Wire bytes exchanged with the player by direction",
		}, []string{"direction"}),
		transitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "state_transitions_total",
			Help:      "Connection state notifications by target state",
		}, []string{"state"}),
		reconnectsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reconnect_attempts_total",
			Help:      "Silent reconnect attempts by result",
		}, []string{"result"}),
		inboundErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "inbound_errors_total",
			Help:      "Inbound error values by kind",
		}, []string{"kind"}),
		keepAliveTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "keepalive_expirations_total",
			Help:      "Keep-alive windows that expired without a frame",
		}),
		droppedCommands: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dropped_commands_total",
			Help:      "Commands dropped because no connection was usable",
		}),
		handshakeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "handshake_duration_seconds",
			Help:      "Time from dial to the first inbound frame",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		}),
		connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connected",
			Help:      "1 while a session is in the connected state",
		}),
	}
}

func (m *Metrics) frameIn(payloadLen int) {
	if m == nil {
		return
	}
	m.framesTotal.WithLabelValues("in").Inc()
	m.bytesTotal.WithLabelValues("in").Add(float64(payloadLen + 4))
}

func (m *Metrics) frameOut(payloadLen int) {
	if m == nil {
		return
	}
	m.framesTotal.WithLabelValues("out").Inc()
	m.bytesTotal.WithLabelValues("out").Add(float64(payloadLen + 4))
}

func (m *Metrics) transition(state connectors.ConnectionState) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(string(state)).Inc()
	if state == connectors.ConnectionStateConnected {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

func (m *Metrics) reconnect(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.reconnectsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) inboundError(kind protocol.ErrorKind) {
	if m == nil {
		return
	}
	m.inboundErrors.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) keepAliveExpired() {
	if m == nil {
		return
	}
	m.keepAliveTimeouts.Inc()
}

func (m *Metrics) commandDropped() {
	if m == nil {
		return
	}
	m.droppedCommands.Inc()
}

func (m *Metrics) handshake(d time.Duration) {
	if m == nil {
		return
	}
	m.handshakeDuration.Observe(d.Seconds())
}
