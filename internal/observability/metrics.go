package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for event capture. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	EventsCaptured   *prometheus.CounterVec
	EventsSuppressed *prometheus.CounterVec
	Degraded         *prometheus.CounterVec
	OutboxFailures   prometheus.Counter
	HookFailures     prometheus.Counter
	CaptureLoads     *prometheus.CounterVec
	QueryDuration    *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsCaptured: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "case_events_captured_total",
			Help: "Events persisted, by category and storage mode",
		}, []string{"category", "mode"}),
		EventsSuppressed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "case_events_suppressed_total",
			Help: "Events dropped because capture is disabled for their category or type",
		}, []string{"category"}),
		Degraded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "case_events_degraded_total",
			Help: "Operations served from the in-memory buffer because event tables are missing",
		}, []string{"operation"}),
		OutboxFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "case_events_outbox_failures_total",
			Help: "Outbox inserts that failed after the entry was written",
		}),
		HookFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "case_events_hook_failures_total",
			Help: "Notification hook invocations that returned an error or panicked",
		}),
		CaptureLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "case_events_capture_policy_loads_total",
			Help: "Capture policy loads issued by the policy cache, by result",
		}, []string{"result"}),
		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "case_events_query_duration_seconds",
			Help:    "Latency of timeline and feed queries",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

// Captured counts a persisted event
func (m *Metrics) Captured(category string, degraded bool) {
	if m == nil {
		return
	}
	mode := "persistent"
	if degraded {
		mode = "memory"
	}
	m.EventsCaptured.WithLabelValues(category, mode).Inc()
}

// Suppressed counts an event dropped by capture policy
func (m *Metrics) Suppressed(category string) {
	if m == nil {
		return
	}
	m.EventsSuppressed.WithLabelValues(category).Inc()
}

// DegradedOp counts an operation that fell back to memory
func (m *Metrics) DegradedOp(operation string) {
	if m == nil {
		return
	}
	m.Degraded.WithLabelValues(operation).Inc()
}

// OutboxFailed counts a failed outbox insert
func (m *Metrics) OutboxFailed() {
	if m == nil {
		return
	}
	m.OutboxFailures.Inc()
}

// HookFailed counts a failed notification hook
func (m *Metrics) HookFailed() {
	if m == nil {
		return
	}
	m.HookFailures.Inc()
}

// PolicyLoad counts a capture policy load
func (m *Metrics) PolicyLoad(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.CaptureLoads.WithLabelValues(result).Inc()
}

// ObserveQuery records query latency in seconds
func (m *Metrics) ObserveQuery(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.QueryDuration.WithLabelValues(operation).Observe(seconds)
}
