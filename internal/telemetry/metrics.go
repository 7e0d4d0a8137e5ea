// Package telemetry exposes the crop advisor's Prometheus metrics.
//
// Metrics emitted:
//   - cropadvisor_requests_total{kind,outcome}: every resolved API call
//   - cropadvisor_request_duration_seconds{kind}: latency of resolved calls
//   - cropadvisor_debounce_fired_total: quiescence windows that scheduled a fetch
//   - cropadvisor_stale_results_total{kind}: completions dropped as superseded
//   - cropadvisor_validation_failures_total{field}: form submissions blocked locally
//   - cropadvisor_stub_http_requests_total{method,route,status}: stub backend traffic
//   - cropadvisor_stub_http_request_duration_seconds{route}: stub handler latency
//   - cropadvisor_stub_rate_limited_total: stub requests rejected with 429
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"cropadvisor/internal/types"
)

const namespace = "cropadvisor"

// Outcome labels a resolved request.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Metrics holds the registered collectors. A nil *Metrics records nothing.
type Metrics struct {
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	debounce   prometheus.Counter
	stale      *prometheus.CounterVec
	validation *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Resolved advisor API calls by request kind and outcome.",
		}, []string{"kind", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Latency of resolved advisor API calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		debounce: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debounce_fired_total",
			Help:      "City inputs that stayed quiescent for the debounce window.",
		}),
		stale: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_total",
			Help:      "API completions dropped because a newer call of the same kind was initiated.",
		}, []string{"kind"}),
		validation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Form fields that blocked a submission before any network call.",
		}, []string{"field"}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.duration, m.debounce, m.stale, m.validation} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordRequest counts a resolved call and observes its latency.
func (m *Metrics) RecordRequest(kind types.RequestKind, outcome Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(string(kind), string(outcome)).Inc()
	m.duration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// RecordDebounceFired counts a debounce window that elapsed.
func (m *Metrics) RecordDebounceFired() {
	if m == nil {
		return
	}
	m.debounce.Inc()
}

// RecordStaleResult counts a completion that was superseded.
func (m *Metrics) RecordStaleResult(kind types.RequestKind) {
	if m == nil {
		return
	}
	m.stale.WithLabelValues(string(kind)).Inc()
}

// RecordValidationFailure counts a field that failed local validation.
func (m *Metrics) RecordValidationFailure(field string) {
	if m == nil {
		return
	}
	m.validation.WithLabelValues(field).Inc()
}
