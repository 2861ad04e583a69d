package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters for the append sink.
type Metrics struct {
	registry         *prometheus.Registry
	requestsTotal    prometheus.Counter
	errorsTotal      prometheus.Counter
	chunksAppended   prometheus.Counter
	bytesAppended    prometheus.Counter
	uploadsRejected  *prometheus.CounterVec
	streamsConnected prometheus.Gauge
}

// New creates and registers the sink metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camclinic_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camclinic_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	chunksAppended := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camclinic_chunks_appended_total",
		Help: "Total number of chunks appended to stored artifacts",
	})
	bytesAppended := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camclinic_bytes_appended_total",
		Help: "Total number of bytes appended to stored artifacts",
	})
	uploadsRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "camclinic_uploads_rejected_total",
		Help: "Uploads rejected before any bytes were written, by reason",
	}, []string{"reason"})
	streamsConnected := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "camclinic_stream_connections",
		Help: "Number of open websocket upload streams",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		chunksAppended,
		bytesAppended,
		uploadsRejected,
		streamsConnected,
	)

	return &Metrics{
		registry:         registry,
		requestsTotal:    requestsTotal,
		errorsTotal:      errorsTotal,
		chunksAppended:   chunksAppended,
		bytesAppended:    bytesAppended,
		uploadsRejected:  uploadsRejected,
		streamsConnected: streamsConnected,
	}
}

func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// ObserveAppend records one appended chunk of n bytes.
func (m *Metrics) ObserveAppend(n int) {
	m.chunksAppended.Inc()
	m.bytesAppended.Add(float64(n))
}

// IncRejected counts a rejected upload with the given reason label.
func (m *Metrics) IncRejected(reason string) {
	m.uploadsRejected.WithLabelValues(reason).Inc()
}

// StreamOpened and StreamClosed track websocket upload connections.
func (m *Metrics) StreamOpened() {
	m.streamsConnected.Inc()
}

func (m *Metrics) StreamClosed() {
	m.streamsConnected.Dec()
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
