package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/lcuwatch/internal/connection"
)

const namespace = "lcuwatch"

// Metrics records Supervisor notifications. It implements connection.Observer.
type Metrics struct {
	registry *prometheus.Registry

	connected        prometheus.Gauge
	messagesReceived prometheus.Counter
	reconnects       prometheus.Counter
	backoffSeconds   prometheus.Gauge
	probes           *prometheus.CounterVec
	cycleFailures    *prometheus.CounterVec
	loopState        *prometheus.GaugeVec
}

var _ connection.Observer = (*Metrics)(nil)

// New creates metrics on a private registry that also carries the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "Whether the session has received the first event on its current connection",
		}),
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound frames received while streaming",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Reconnect attempts scheduled after a failed cycle",
		}),
		backoffSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backoff_seconds",
			Help:      "Most recent reconnect delay",
		}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Liveness probes by result",
		}, []string{"result"}),
		cycleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_failures_total",
			Help:      "Connection cycles that ended, by reason",
		}, []string{"reason"}),
		loopState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loop_state",
			Help:      "Current session loop state (1 for the active state)",
		}, []string{"state"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connected,
		m.messagesReceived,
		m.reconnects,
		m.backoffSeconds,
		m.probes,
		m.cycleFailures,
		m.loopState,
	)

	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) OnConnected() {
	m.connected.Set(1)
}

// OnDisconnected clears the connected gauge. A requested stop also drops the
// loop_state series and is not counted as a cycle failure.
func (m *Metrics) OnDisconnected(err error) {
	m.connected.Set(0)
	if errors.Is(err, connection.ErrStopped) {
		m.loopState.Reset()
		return
	}
	m.cycleFailures.WithLabelValues(FailureReason(err)).Inc()
}

func (m *Metrics) OnMessage() {
	m.messagesReceived.Inc()
}

func (m *Metrics) OnProbe(observed bool) {
	result := "silent"
	if observed {
		result = "observed"
	}
	m.probes.WithLabelValues(result).Inc()
}

func (m *Metrics) OnBackoff(d time.Duration) {
	m.reconnects.Inc()
	m.backoffSeconds.Set(d.Seconds())
}

func (m *Metrics) OnLoopState(c connection.LoopStateChange) {
	m.loopState.Reset()
	m.loopState.WithLabelValues(c.To).Set(1)
}

// FailureReason maps a cycle error to a low-cardinality label.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, connection.ErrStopped):
		return "stopped"
	case errors.Is(err, connection.ErrFirstEventTimeout):
		return "first_event_timeout"
	case errors.Is(err, connection.ErrSilence):
		return "silence"
	case errors.Is(err, connection.ErrConnectionEnded):
		return "connection_ended"
	default:
		return "connect"
	}
}
