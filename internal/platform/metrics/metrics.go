package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the relay.
type Metrics struct {
	registry            *prometheus.Registry
	requestsTotal       prometheus.Counter
	errorsTotal         prometheus.Counter
	streamsStarted      prometheus.Counter
	streamStartFailures prometheus.Counter
	streamsStopped      prometheus.Counter
	statusChecks        *prometheus.CounterVec
	proxyBytes          *prometheus.CounterVec
	proxyUpstreamErrors *prometheus.CounterVec
	activeSessions      prometheus.Gauge
	engineUp            prometheus.Gauge
}

// New creates and registers Prometheus metrics for the relay.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hls_relay_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hls_relay_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		streamsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hls_relay_streams_started_total",
			Help: "Total number of stream sessions started",
		}),
		streamStartFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hls_relay_stream_start_failures_total",
			Help: "Total number of start requests the engine rejected or never answered",
		}),
		streamsStopped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hls_relay_streams_stopped_total",
			Help: "Total number of stream sessions stopped",
		}),
		statusChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hls_relay_status_checks_total",
			Help: "Deferred session status checks by outcome",
		}, []string{"result"}),
		proxyBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hls_relay_proxy_bytes_total",
			Help: "Bytes relayed from the engine by kind (manifest, segment)",
		}, []string{"kind"}),
		proxyUpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hls_relay_proxy_upstream_errors_total",
			Help: "Proxy requests that failed upstream by kind",
		}, []string{"kind"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hls_relay_active_sessions",
			Help: "Number of registered stream sessions",
		}),
		engineUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hls_relay_engine_up",
			Help: "1 if the last engine health probe succeeded, 0 otherwise",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.streamsStarted,
		m.streamStartFailures,
		m.streamsStopped,
		m.statusChecks,
		m.proxyBytes,
		m.proxyUpstreamErrors,
		m.activeSessions,
		m.engineUp,
	)

	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

func (m *Metrics) IncStreamsStarted() {
	m.streamsStarted.Inc()
}

func (m *Metrics) IncStreamStartFailures() {
	m.streamStartFailures.Inc()
}

func (m *Metrics) IncStreamsStopped() {
	m.streamsStopped.Inc()
}

// IncStatusChecks counts one deferred status check with the given outcome.
func (m *Metrics) IncStatusChecks(result string) {
	m.statusChecks.WithLabelValues(result).Inc()
}

// AddProxyBytes adds n relayed bytes for kind.
func (m *Metrics) AddProxyBytes(kind string, n int64) {
	if n > 0 {
		m.proxyBytes.WithLabelValues(kind).Add(float64(n))
	}
}

func (m *Metrics) IncProxyUpstreamErrors(kind string) {
	m.proxyUpstreamErrors.WithLabelValues(kind).Inc()
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// SetEngineUp records the outcome of the last engine probe.
func (m *Metrics) SetEngineUp(up bool) {
	if up {
		m.engineUp.Set(1)
		return
	}
	m.engineUp.Set(0)
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
