package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the TrueMatch client.
// All Record* helpers are safe to call on a nil *Metrics.
type Metrics struct {
	// Request pipeline metrics
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	TransportErrors *prometheus.CounterVec

	// Refresh protocol metrics
	RetryDecisions   *prometheus.CounterVec
	Refreshes        *prometheus.CounterVec
	RefreshesSkipped prometheus.Counter
	Invalidations    *prometheus.CounterVec

	// Session metrics
	SessionTransitions *prometheus.CounterVec
	Bootstraps         *prometheus.CounterVec

	// Credential storage metrics
	StoreOps *prometheus.CounterVec

	// Command execution metrics
	CommandExecutions *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "truematch_requests_total",
				Help: "Total number of HTTP attempts sent through the request pipeline",
			},
			[]string{"method", "path", "status", "attempt"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "truematch_request_duration_seconds",
				Help:    "Duration of a single HTTP attempt in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"method", "path"},
		),
		TransportErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "truematch_transport_errors_total",
				Help: "Total number of HTTP attempts that failed before a response arrived",
			},
			[]string{"method", "path"},
		),

		RetryDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "truematch_retry_decisions_total",
				Help: "Outcome of the post-response decision for each attempt",
			},
			[]string{"outcome"},
		),
		Refreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "truematch_refresh_calls_total",
				Help: "Total number of calls to the refresh endpoint",
			},
			[]string{"result"},
		),
		RefreshesSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "truematch_refresh_skipped_total",
				Help: "Refreshes avoided because the rejected credential had already been replaced",
			},
		),
		Invalidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "truematch_session_invalidations_total",
				Help: "Total number of session-invalidated signals published",
			},
			[]string{"reason"},
		),

		SessionTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "truematch_session_transitions_total",
				Help: "Total number of session state transitions",
			},
			[]string{"from", "to"},
		),
		Bootstraps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "truematch_bootstrap_total",
				Help: "Session bootstrap outcomes",
			},
			[]string{"outcome"},
		),

		StoreOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "truematch_token_store_ops_total",
				Help: "Token store operations by backend and result",
			},
			[]string{"backend", "op", "result"},
		),

		CommandExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "truematch_command_executions_total",
				Help: "Total number of command executions",
			},
			[]string{"command", "success"},
		),
	}
}

// RecordRequest records one HTTP attempt that produced a response
func (m *Metrics) RecordRequest(method, path string, status, attempt int, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, path, strconv.Itoa(status), strconv.Itoa(attempt)).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// RecordTransportError records an HTTP attempt that never got a response
func (m *Metrics) RecordTransportError(method, path string) {
	if m == nil {
		return
	}
	m.TransportErrors.WithLabelValues(method, path).Inc()
}

// RecordDecision records a pipeline decision outcome
func (m *Metrics) RecordDecision(outcome string) {
	if m == nil {
		return
	}
	m.RetryDecisions.WithLabelValues(outcome).Inc()
}

// RecordRefresh records a refresh endpoint call
func (m *Metrics) RecordRefresh(success bool) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(result(success)).Inc()
}

// RecordRefreshSkipped records a refresh made unnecessary by a concurrent one
func (m *Metrics) RecordRefreshSkipped() {
	if m == nil {
		return
	}
	m.RefreshesSkipped.Inc()
}

// RecordInvalidation records a session-invalidated signal
func (m *Metrics) RecordInvalidation(reason string) {
	if m == nil {
		return
	}
	m.Invalidations.WithLabelValues(reason).Inc()
}

// RecordTransition records a session state transition
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.SessionTransitions.WithLabelValues(from, to).Inc()
}

// RecordBootstrap records how the initial session was established
func (m *Metrics) RecordBootstrap(outcome string) {
	if m == nil {
		return
	}
	m.Bootstraps.WithLabelValues(outcome).Inc()
}

// RecordStoreOp records a token store operation
func (m *Metrics) RecordStoreOp(backend, op string, success bool) {
	if m == nil {
		return
	}
	m.StoreOps.WithLabelValues(backend, op, result(success)).Inc()
}

// RecordCommand records a CLI command execution
func (m *Metrics) RecordCommand(command string, success bool) {
	if m == nil {
		return
	}
	m.CommandExecutions.WithLabelValues(command, strconv.FormatBool(success)).Inc()
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
