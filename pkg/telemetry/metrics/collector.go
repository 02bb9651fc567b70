package metrics

import (
	"strconv"
	"sync"
	"time"

	"relayhq/relay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// OverflowLabel replaces target labels once the cardinality limit is reached.
const OverflowLabel = "other"

// DefaultMaxTargets bounds distinct target label values. Dynamic targets
// come from clients, so the label set is not under operator control.
const DefaultMaxTargets = 1000

// Collector owns the relay's Prometheus metrics. It satisfies
// gateway.Metrics, so one Collector can be shared by every gateway core.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	requestMetrics *RequestMetrics
	cacheMetrics   *CacheMetrics
	relayMetrics   *RelayMetrics

	targets *CardinalityLimiter
}

// NewCollector creates a collector and registers its metrics with registry.
// A nil registry gets a fresh one.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := *cfg
	if c.Namespace == "" {
		c.Namespace = config.DefaultMetricsNamespace
	}
	if len(c.RequestDurationBuckets) == 0 {
		c.RequestDurationBuckets = config.DefaultRequestDurationBuckets
	}

	return &Collector{
		config:         &c,
		registry:       registry,
		requestMetrics: NewRequestMetrics(&c, registry),
		cacheMetrics:   NewCacheMetrics(&c, registry),
		relayMetrics:   NewRelayMetrics(&c, registry),
		targets:        NewCardinalityLimiter(DefaultMaxTargets),
	}
}

func (c *Collector) target(target string) string {
	if target == "" {
		return "none"
	}
	if !c.targets.Allow(target) {
		return OverflowLabel
	}
	return target
}

// RecordRequest records one finished gateway execution.
func (c *Collector) RecordRequest(target, method string, status int, d time.Duration, cacheHit bool) {
	if !c.config.IsEnabled() {
		return
	}
	c.requestMetrics.RecordRequest(c.target(target), method, strconv.Itoa(status), d, cacheHit)
}

// RecordFailure records a response counted as a failure by the gateway.
func (c *Collector) RecordFailure(target string, status int) {
	if !c.config.IsEnabled() {
		return
	}
	c.requestMetrics.RecordFailure(c.target(target), strconv.Itoa(status))
}

// RecordCacheLookup records a response cache hit or miss.
func (c *Collector) RecordCacheLookup(hit bool) {
	if !c.config.IsEnabled() {
		return
	}
	if hit {
		c.cacheMetrics.RecordHit()
	} else {
		c.cacheMetrics.RecordMiss()
	}
}

// SetCacheEntries reports the current response cache size.
func (c *Collector) SetCacheEntries(n int) {
	if !c.config.IsEnabled() {
		return
	}
	c.cacheMetrics.UpdateSize(n)
}

// RecordHandshake records a handshake decision: "accepted" or a rejection
// reason.
func (c *Collector) RecordHandshake(result string) {
	if !c.config.IsEnabled() {
		return
	}
	c.relayMetrics.RecordHandshake(result)
}

// RecordRouteReload records a routing table reload and the resulting rule
// count.
func (c *Collector) RecordRouteReload(ok bool, rules int) {
	if !c.config.IsEnabled() {
		return
	}
	c.relayMetrics.RecordRouteReload(ok, rules)
}

// RecordJournalDrop records an access record dropped by a full recorder.
func (c *Collector) RecordJournalDrop() {
	if !c.config.IsEnabled() {
		return
	}
	c.relayMetrics.RecordJournalDrop()
}

// RecordRateLimited records a request rejected by the listener limiter.
func (c *Collector) RecordRateLimited(reason string) {
	if !c.config.IsEnabled() {
		return
	}
	c.relayMetrics.RecordRateLimited(reason)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter bounds the number of distinct label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter that admits maxCardinality values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is known or there is still room for it.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
