// Package metrics provides custom Prometheus metrics for the lead-capture gateway.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Dispatch status label values.
const (
	StatusSuccess  = "success"
	StatusFailure  = "failure"
	StatusRejected = "rejected" // refused locally before any network call
)

// Exhaustion reasons reported when an optimistic dispatch gives up.
const (
	ReasonRetries   = "retries"
	ReasonCapacity  = "capacity"
	ReasonAbandoned = "abandoned"
)

// DispatchMetrics covers notification dispatch and remote function calls.
type DispatchMetrics struct {
	DispatchTotal     *prometheus.CounterVec   // dispatches by category, mode, status
	AttemptsTotal     *prometheus.CounterVec   // transport attempts by category, outcome
	RetriesTotal      *prometheus.CounterVec   // scheduled retries by category
	ExhaustedTotal    *prometheus.CounterVec   // abandoned optimistic dispatches by category, reason
	InFlight          prometheus.Gauge         // optimistic tasks waiting or running
	RemoteRequests    *prometheus.CounterVec   // outbound requests by service, status class
	RemoteLatency     *prometheus.HistogramVec // outbound latency by service
	SuccessfulSinceUp prometheus.Counter       // advisory success counter
}

// NewDispatchMetrics creates and registers dispatch metrics on registry.
func NewDispatchMetrics(registry prometheus.Registerer) (*DispatchMetrics, error) {
	m := &DispatchMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register dispatch metrics: %w", err)
	}
	return m, nil
}

func (m *DispatchMetrics) initMetrics() {
	m.DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgate_notification_dispatch_total",
			Help: "Notification dispatches by category, mode and status",
		},
		[]string{"category", "mode", "status"}, // mode: sync, optimistic
	)

	m.AttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgate_notification_attempts_total",
			Help: "Transport attempts by category and outcome",
		},
		[]string{"category", "outcome"}, // outcome: success, network, remote-rejection, ...
	)

	m.RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgate_notification_retries_total",
			Help: "Retries scheduled by the optimistic dispatcher",
		},
		[]string{"category"},
	)

	m.ExhaustedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgate_notification_exhausted_total",
			Help: "Optimistic dispatches that were never delivered, by reason",
		},
		[]string{"category", "reason"},
	)

	m.InFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadgate_notification_in_flight",
			Help: "Optimistic dispatch tasks currently pending or running",
		},
	)

	m.RemoteRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgate_remote_requests_total",
			Help: "Outbound requests to remote functions by service and status class",
		},
		[]string{"service", "status_class"}, // status_class: 2xx, 4xx, 5xx, error
	)

	m.RemoteLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadgate_remote_request_duration_seconds",
			Help:    "Outbound request latency by service",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"service"},
	)

	m.SuccessfulSinceUp = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "leadgate_notification_delivered_total",
			Help: "Notifications confirmed delivered since process start",
		},
	)
}

// RecordDispatch records the caller-visible outcome of a dispatch.
func (m *DispatchMetrics) RecordDispatch(category, mode, status string) {
	m.DispatchTotal.WithLabelValues(category, mode, status).Inc()
}

// RecordAttempt records one transport attempt.
func (m *DispatchMetrics) RecordAttempt(category, outcome string) {
	m.AttemptsTotal.WithLabelValues(category, outcome).Inc()
	if outcome == StatusSuccess {
		m.SuccessfulSinceUp.Inc()
	}
}

// RecordRetry records a scheduled retry.
func (m *DispatchMetrics) RecordRetry(category string) {
	m.RetriesTotal.WithLabelValues(category).Inc()
}

// RecordExhausted records an optimistic dispatch that will not be delivered.
func (m *DispatchMetrics) RecordExhausted(category, reason string) {
	m.ExhaustedTotal.WithLabelValues(category, reason).Inc()
}

// SetInFlight sets the in-flight task gauge.
func (m *DispatchMetrics) SetInFlight(n int) {
	m.InFlight.Set(float64(n))
}

// RecordRemoteRequest records one outbound request. statusCode 0 means a transport error.
func (m *DispatchMetrics) RecordRemoteRequest(service string, statusCode int, elapsed time.Duration) {
	m.RemoteRequests.WithLabelValues(service, statusClass(statusCode)).Inc()
	m.RemoteLatency.WithLabelValues(service).Observe(elapsed.Seconds())
}

// ExhaustedCount reads the current exhaustion counter value.
func (m *DispatchMetrics) ExhaustedCount(category, reason string) float64 {
	return counterValue(m.ExhaustedTotal.WithLabelValues(category, reason))
}

// Delivered reads the advisory success counter.
func (m *DispatchMetrics) Delivered() float64 {
	return counterValue(m.SuccessfulSinceUp)
}

func statusClass(code int) string {
	switch {
	case code <= 0:
		return "error"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// counterValue extracts the value of a single counter.
func counterValue(c prometheus.Counter) float64 {
	metric := &dto.Metric{}
	if err := c.Write(metric); err != nil {
		return 0
	}
	return metric.GetCounter().GetValue()
}

// Describe implements the prometheus.Collector interface.
func (m *DispatchMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.DispatchTotal.Describe(ch)
	m.AttemptsTotal.Describe(ch)
	m.RetriesTotal.Describe(ch)
	m.ExhaustedTotal.Describe(ch)
	m.InFlight.Describe(ch)
	m.RemoteRequests.Describe(ch)
	m.RemoteLatency.Describe(ch)
	m.SuccessfulSinceUp.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *DispatchMetrics) Collect(ch chan<- prometheus.Metric) {
	m.DispatchTotal.Collect(ch)
	m.AttemptsTotal.Collect(ch)
	m.RetriesTotal.Collect(ch)
	m.ExhaustedTotal.Collect(ch)
	m.InFlight.Collect(ch)
	m.RemoteRequests.Collect(ch)
	m.RemoteLatency.Collect(ch)
	m.SuccessfulSinceUp.Collect(ch)
}
