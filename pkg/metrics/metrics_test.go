package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.AlertOutcome("partial")
	m.AlertOutcome("partial")
	m.LocationSource("none")
	m.ObserveRequest(http.MethodPost, "/api/v1/emergency/alerts", http.StatusCreated, 30*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AlertOutcomes.WithLabelValues("partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LocationSources.WithLabelValues("none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/api/v1/emergency/alerts", "201")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AlertOutcome("success")
		m.LocationSource("device")
		m.AlertTransition("assigned")
		m.RateLimited("/login")
		m.ObserveRequest(http.MethodGet, "/health", http.StatusOK, time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AlertOutcome("success")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `lifeline_alert_submissions_total{outcome="success"} 1`)
}
