package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatchMetrics(t *testing.T) *DispatchMetrics {
	t.Helper()
	m, err := NewDispatchMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestDispatchMetrics_Counters(t *testing.T) {
	t.Parallel()
	m := newDispatchMetrics(t)

	m.RecordDispatch("contact", "optimistic", StatusSuccess)
	m.RecordAttempt("contact", "network")
	m.RecordAttempt("contact", StatusSuccess)
	m.RecordRetry("contact")
	m.RecordExhausted("support", ReasonRetries)
	m.RecordExhausted("support", ReasonRetries)

	assert.InDelta(t, 1, testutil.ToFloat64(m.DispatchTotal.WithLabelValues("contact", "optimistic", StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AttemptsTotal.WithLabelValues("contact", "network")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RetriesTotal.WithLabelValues("contact")), 0)
	assert.InDelta(t, 2, m.ExhaustedCount("support", ReasonRetries), 0)
	assert.InDelta(t, 0, m.ExhaustedCount("support", ReasonCapacity), 0)
	assert.InDelta(t, 1, m.Delivered(), 0, "only successful attempts count as delivered")
}

func TestDispatchMetrics_InFlightGauge(t *testing.T) {
	t.Parallel()
	m := newDispatchMetrics(t)

	m.SetInFlight(7)
	assert.InDelta(t, 7, testutil.ToFloat64(m.InFlight), 0)
	m.SetInFlight(0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.InFlight), 0)
}

func TestDispatchMetrics_RemoteRequestStatusClass(t *testing.T) {
	t.Parallel()
	m := newDispatchMetrics(t)

	m.RecordRemoteRequest("communications", 200, 120*time.Millisecond)
	m.RecordRemoteRequest("communications", 503, time.Second)
	m.RecordRemoteRequest("communications", 0, 30*time.Second)

	assert.InDelta(t, 1, testutil.ToFloat64(m.RemoteRequests.WithLabelValues("communications", "2xx")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RemoteRequests.WithLabelValues("communications", "5xx")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RemoteRequests.WithLabelValues("communications", "error")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.RemoteLatency))
}

func TestDispatchMetrics_DoubleRegistrationFails(t *testing.T) {
	t.Parallel()
	registry := prometheus.NewRegistry()

	_, err := NewDispatchMetrics(registry)
	require.NoError(t, err)
	_, err = NewDispatchMetrics(registry)
	require.Error(t, err)
}

func TestHTTPMetrics_Exposition(t *testing.T) {
	t.Parallel()
	registry := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(registry)
	require.NoError(t, err)

	m.RecordRequest("POST", "/api/v1/forms/:category", 200, 15*time.Millisecond)
	m.RecordRateLimited("/api/v1/forms/:category")

	expected := `
# HELP leadgate_http_rate_limited_total Requests refused by the per-client rate limiter
# TYPE leadgate_http_rate_limited_total counter
leadgate_http_rate_limited_total{route="/api/v1/forms/:category"} 1
# HELP leadgate_http_requests_total Total number of HTTP requests
# TYPE leadgate_http_requests_total counter
leadgate_http_requests_total{method="POST",route="/api/v1/forms/:category",status_code="200"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"leadgate_http_requests_total", "leadgate_http_rate_limited_total"))
}
