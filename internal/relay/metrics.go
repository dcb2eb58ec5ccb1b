package relay

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	requestsTotal *prometheus.CounterVec
	streamClients prometheus.Gauge
	droppedEvents prometheus.Counter
}

// newMetrics registers the relay collectors on reg. A nil reg leaves them unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clemremote",
			Subsystem: "relay",
			Name:      "http_requests_total",
			Help:      "Relay HTTP requests by route and status code",
		}, []string{"route", "code"}),
		streamClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "clemremote",
			Subsystem: "relay",
			Name:      "stream_clients",
			Help:      "Connected websocket event stream clients",
		}),
		droppedEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "clemremote",
			Subsystem: "relay",
			Name:      "stream_dropped_events_total",
			Help:      "Events dropped for slow websocket clients",
		}),
	}
}

func (m *metrics) request(route string, code int) {
	m.requestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
