package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lifeline"

// Metrics holds the service collectors. A nil *Metrics is a no-op so
// usecases can be built without it in tests.
type Metrics struct {
	registry prometheus.Gatherer

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	AlertOutcomes       *prometheus.CounterVec
	LocationSources     *prometheus.CounterVec
	AlertTransitions    *prometheus.CounterVec
	RateLimitDenied     *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. Pass prometheus.NewRegistry()
// in tests to avoid clashing with the default registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		AlertOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alert_submissions_total",
				Help:      "Emergency alert submissions by outcome (success, partial, failure)",
			},
			[]string{"outcome"},
		),

		LocationSources: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alert_location_source_total",
				Help:      "Where submitted alert coordinates came from",
			},
			[]string{"source"},
		),

		AlertTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alert_transitions_total",
				Help:      "Alert status changes made by doctors",
			},
			[]string{"to"},
		),

		RateLimitDenied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_denied_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"route"},
		),
	}
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) AlertOutcome(outcome string) {
	if m == nil {
		return
	}
	m.AlertOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LocationSource(source string) {
	if m == nil {
		return
	}
	m.LocationSources.WithLabelValues(source).Inc()
}

func (m *Metrics) AlertTransition(to string) {
	if m == nil {
		return
	}
	m.AlertTransitions.WithLabelValues(to).Inc()
}

func (m *Metrics) RateLimited(route string) {
	if m == nil {
		return
	}
	m.RateLimitDenied.WithLabelValues(route).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
