package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on a private registry.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	errors        *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
	assignments   *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_http_requests_total",
			Help: "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crm_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_http_errors_total",
			Help: "HTTP errors by route, method and error code",
		}, []string{"route", "method", "code"}),
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_push_deliveries_total",
			Help: "Push delivery attempts by event kind and outcome",
		}, []string{"event", "outcome"}),
		assignments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_assignments_total",
			Help: "Assignment decisions by resource kind and outcome",
		}, []string{"kind", "outcome"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_lead_transitions_total",
			Help: "Lead status change requests by target status and outcome",
		}, []string{"target", "outcome"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_notifications_persisted_total",
			Help: "Notification records persisted by event kind",
		}, []string{"event"}),
	}
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordDelivery counts one push attempt.
func (m *Metrics) RecordDelivery(event string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.deliveries.WithLabelValues(event, outcome).Inc()
}

// RecordAssignment counts an assignment decision.
func (m *Metrics) RecordAssignment(kind, outcome string) {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues(kind, outcome).Inc()
}

// RecordTransition counts a lead status change request.
func (m *Metrics) RecordTransition(target, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(target, outcome).Inc()
}

// RecordNotifications counts persisted notification records.
func (m *Metrics) RecordNotifications(event string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.notifications.WithLabelValues(event).Add(float64(n))
}
