package metrics

import (
	"strconv"
	"time"

	"relayhq/relay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks gateway executions.
//
// Metrics:
//   - relay_requests_total{target,method,status,cache}
//   - relay_request_duration_seconds{target,cache}
//   - relay_failures_total{target,status}
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	failuresTotal   *prometheus.CounterVec
}

// NewRequestMetrics creates and registers request metrics.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "requests_total",
				Help:      "Total number of proxied requests",
			},
			[]string{"target", "method", "status", "cache"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of proxied requests in seconds, as reported by the gateway",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"target", "cache"},
		),

		failuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "failures_total",
				Help:      "Total number of failed requests, including non-2xx upstream replies",
			},
			[]string{"target", "status"},
		),
	}

	registry.MustRegister(rm.requestsTotal, rm.requestDuration, rm.failuresTotal)
	return rm
}

// RecordRequest records a finished request.
func (rm *RequestMetrics) RecordRequest(target, method, status string, d time.Duration, cacheHit bool) {
	cache := cacheLabel(cacheHit)
	rm.requestsTotal.WithLabelValues(target, method, status, cache).Inc()
	rm.requestDuration.WithLabelValues(target, cache).Observe(d.Seconds())
}

// RecordFailure records a failed request.
func (rm *RequestMetrics) RecordFailure(target, status string) {
	rm.failuresTotal.WithLabelValues(target, status).Inc()
}

func cacheLabel(hit bool) string {
	return strconv.FormatBool(hit)
}
