package metrics

import (
	"relayhq/relay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RelayMetrics tracks the envelope server, the routing table and the
// journal.
type RelayMetrics struct {
	handshakesTotal     *prometheus.CounterVec
	routeReloadsTotal   *prometheus.CounterVec
	routeRules          prometheus.Gauge
	journalDroppedTotal prometheus.Counter
	rateLimitedTotal    *prometheus.CounterVec
}

// NewRelayMetrics creates and registers relay metrics.
func NewRelayMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RelayMetrics {
	rm := &RelayMetrics{
		handshakesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "handshakes_total",
				Help:      "Envelope handshakes by result",
			},
			[]string{"result"},
		),
		routeReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "route_reloads_total",
				Help:      "Routing table reloads by result",
			},
			[]string{"result"},
		),
		routeRules: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "route_rules",
			Help:      "Number of rules in the active routing table",
		}),
		journalDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "journal_dropped_total",
			Help:      "Access records dropped because the recorder buffer was full",
		}),
		rateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the listener rate limiter by reason",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(rm.handshakesTotal, rm.routeReloadsTotal, rm.routeRules, rm.journalDroppedTotal, rm.rateLimitedTotal)
	return rm
}

// RecordHandshake counts one handshake decision.
func (rm *RelayMetrics) RecordHandshake(result string) {
	rm.handshakesTotal.WithLabelValues(result).Inc()
}

// RecordRouteReload counts a reload and, on success, updates the rule gauge.
func (rm *RelayMetrics) RecordRouteReload(ok bool, rules int) {
	if !ok {
		rm.routeReloadsTotal.WithLabelValues("error").Inc()
		return
	}
	rm.routeReloadsTotal.WithLabelValues("success").Inc()
	rm.routeRules.Set(float64(rules))
}

func (rm *RelayMetrics) RecordJournalDrop() {
	rm.journalDroppedTotal.Inc()
}

// RecordRateLimited counts a rejected request: "rate" or "concurrency".
func (rm *RelayMetrics) RecordRateLimited(reason string) {
	rm.rateLimitedTotal.WithLabelValues(reason).Inc()
}
