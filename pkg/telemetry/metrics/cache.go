package metrics

import (
	"relayhq/relay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics tracks the response cache.
//
// Hit rate in PromQL:
//
//	rate(relay_cache_hits_total[5m]) /
//	(rate(relay_cache_hits_total[5m]) + rate(relay_cache_misses_total[5m]))
type CacheMetrics struct {
	hitsTotal   prometheus.Counter
	missesTotal prometheus.Counter
	entries     prometheus.Gauge
}

// NewCacheMetrics creates and registers cache metrics.
func NewCacheMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CacheMetrics {
	cm := &CacheMetrics{
		hitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of response cache hits, including cached failures",
		}),
		missesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of response cache misses",
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "cache_entries",
			Help:      "Current number of entries in the response cache",
		}),
	}

	registry.MustRegister(cm.hitsTotal, cm.missesTotal, cm.entries)
	return cm
}

func (cm *CacheMetrics) RecordHit()  { cm.hitsTotal.Inc() }
func (cm *CacheMetrics) RecordMiss() { cm.missesTotal.Inc() }

// UpdateSize sets the current number of entries.
func (cm *CacheMetrics) UpdateSize(size int) {
	cm.entries.Set(float64(size))
}
