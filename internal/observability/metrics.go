package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the chat daemon.
type Metrics struct {
	registry       *prometheus.Registry
	ChatRequests   *prometheus.CounterVec
	ChatDuration   *prometheus.HistogramVec
	FramesEmitted  *prometheus.CounterVec
	ToolExecutions *prometheus.CounterVec
	UpstreamRetry  *prometheus.CounterVec
	BreakerState   *prometheus.GaugeVec
	CacheLookups   *prometheus.CounterVec
	ActiveSession  *prometheus.GaugeVec
	TransportErrs  *prometheus.CounterVec
}

// NewMetrics constructs a metrics registry with chat collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	reqs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_chat_requests_total",
		Help: "Total chat requests by finish reason",
	}, []string{"finish_reason"})

	durs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkwell_chat_duration_seconds",
		Help:    "Chat request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"finish_reason"})

	framesEmitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_frames_emitted_total",
		Help: "Stream frames emitted by frame type",
	}, []string{"type"})

	toolExecs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_tool_executions_total",
		Help: "Tool executions by tool name and outcome",
	}, []string{"tool", "outcome"})

	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_upstream_retries_total",
		Help: "Upstream retry attempts by error kind",
	}, []string{"kind"})

	breakerState := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "inkwell_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"dependency"})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_cache_lookups_total",
		Help: "Response cache lookups by result",
	}, []string{"result"})

	active := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "inkwell_transport_active_sessions",
		Help: "Active streaming sessions by transport",
	}, []string{"transport"})

	trErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_transport_errors_total",
		Help: "Transport-level errors (handler/streaming) by transport and reason",
	}, []string{"transport", "reason"})

	reg.MustRegister(reqs, durs, framesEmitted, toolExecs, retries, breakerState, cacheLookups, active, trErrors)

	return &Metrics{
		registry:       reg,
		ChatRequests:   reqs,
		ChatDuration:   durs,
		FramesEmitted:  framesEmitted,
		ToolExecutions: toolExecs,
		UpstreamRetry:  retries,
		BreakerState:   breakerState,
		CacheLookups:   cacheLookups,
		ActiveSession:  active,
		TransportErrs:  trErrors,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordChatRequest records counts and duration.
func (m *Metrics) RecordChatRequest(finishReason string, duration time.Duration) {
	if m == nil {
		return
	}
	if finishReason == "" {
		finishReason = "unknown"
	}
	m.ChatRequests.WithLabelValues(finishReason).Inc()
	m.ChatDuration.WithLabelValues(finishReason).Observe(duration.Seconds())
}

// RecordFrame counts one emitted frame.
func (m *Metrics) RecordFrame(frameType string) {
	if m == nil {
		return
	}
	m.FramesEmitted.WithLabelValues(frameType).Inc()
}

// RecordToolExecution records a tool run outcome (completed, failed, rejected).
func (m *Metrics) RecordToolExecution(tool, outcome string) {
	if m == nil {
		return
	}
	if tool == "" {
		tool = "unknown"
	}
	m.ToolExecutions.WithLabelValues(tool, outcome).Inc()
}

// RecordRetry counts an upstream retry attempt.
func (m *Metrics) RecordRetry(kind string) {
	if m == nil {
		return
	}
	m.UpstreamRetry.WithLabelValues(kind).Inc()
}

// SetBreakerState publishes the breaker state for a dependency.
func (m *Metrics) SetBreakerState(dependency string, state float64) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(dependency).Set(state)
}

// RecordCacheLookup counts a cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// IncActiveSessions increments the active session gauge.
func (m *Metrics) IncActiveSessions(transport string) {
	if m == nil {
		return
	}
	m.ActiveSession.WithLabelValues(transport).Inc()
}

// DecActiveSessions decrements the active session gauge.
func (m *Metrics) DecActiveSessions(transport string) {
	if m == nil {
		return
	}
	m.ActiveSession.WithLabelValues(transport).Dec()
}

// RecordTransportError records a transport-level error.
func (m *Metrics) RecordTransportError(transport, reason string) {
	if m == nil {
		return
	}
	if transport == "" {
		transport = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	m.TransportErrs.WithLabelValues(transport, reason).Inc()
}
