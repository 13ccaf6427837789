package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec

	// Pipeline Metrics
	pipelineExecutionsTotal *prometheus.CounterVec
	pipelineStageDuration   *prometheus.HistogramVec

	// Backend Metrics
	backendRequestsTotal   *prometheus.CounterVec
	backendRequestDuration *prometheus.HistogramVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// SSE Metrics
	sseActiveConnections *prometheus.GaugeVec
	sseEventsSent        *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// Price Ticker Metrics
	priceFetchesTotal *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"method", "endpoint"},
		),
		pipelineExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_executions_total",
				Help: "Total number of pipeline executions by intent kind, outcome, and error kind",
			},
			[]string{"intent", "outcome", "error_kind"},
		),
		pipelineStageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_stage_duration_seconds",
				Help:    "Duration of individual pipeline stages in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 15.0, 45.0},
			},
			[]string{"stage"},
		),
		backendRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_requests_total",
				Help: "Total number of backend prepare requests by route and status",
			},
			[]string{"route", "status"},
		),
		backendRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backend_request_duration_seconds",
				Help:    "Duration of backend prepare requests in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"route"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"handler", "method"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by handler, method, and status code",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
			[]string{"stream"},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent by stream and event type",
			},
			[]string{"stream", "event_type"},
		),
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published by subject and status",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"subject"},
		),
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		priceFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "price_fetches_total",
				Help: "Total number of price ticker fetches by status",
			},
			[]string{"status"},
		),
	}
}

// RecordRPCCall records a Solana RPC call with its duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordPipelineExecution records a terminal pipeline outcome.
// errorKind is empty for successful executions.
func (m *Metrics) RecordPipelineExecution(intent, outcome, errorKind string) {
	m.pipelineExecutionsTotal.WithLabelValues(intent, outcome, errorKind).Inc()
}

// RecordPipelineStage records the duration of a single pipeline stage.
func (m *Metrics) RecordPipelineStage(stage string, duration float64) {
	m.pipelineStageDuration.WithLabelValues(stage).Observe(duration)
}

// RecordBackendRequest records a backend prepare request with its duration.
func (m *Metrics) RecordBackendRequest(route, status string, duration float64) {
	m.backendRequestsTotal.WithLabelValues(route, status).Inc()
	m.backendRequestDuration.WithLabelValues(route).Observe(duration)
}

// RecordHTTPRequest records an HTTP request with its duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeClass(statusCode)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
	m.httpRequestDuration.WithLabelValues(handler, method).Observe(duration)
}

// RecordSSEConnectionChange adjusts the active SSE connection gauge.
func (m *Metrics) RecordSSEConnectionChange(stream string, delta float64) {
	m.sseActiveConnections.WithLabelValues(stream).Add(delta)
}

// RecordSSEEventSent records an SSE event sent to a client.
func (m *Metrics) RecordSSEEventSent(stream, eventType string) {
	m.sseEventsSent.WithLabelValues(stream, eventType).Inc()
}

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// RecordDBQuery records a database query with its duration.
func (m *Metrics) RecordDBQuery(operation string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
	m.dbQueryDuration.WithLabelValues(operation).Observe(duration)
}

// RecordPriceFetch records a price ticker fetch attempt.
func (m *Metrics) RecordPriceFetch(status string) {
	m.priceFetchesTotal.WithLabelValues(status).Inc()
}

// statusCodeClass buckets a status code into its class ("2xx", "4xx", ...).
func statusCodeClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
