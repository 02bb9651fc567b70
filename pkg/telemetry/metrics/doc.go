// Package metrics exposes relay metrics in Prometheus format.
//
// A Collector implements gateway.Metrics and is shared by every gateway core
// in the process. It also counts handshake decisions, routing table reloads,
// dropped journal records and requests shed by the listener.
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	core, err := gateway.New(gwCfg, gateway.Options{Metrics: collector})
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// Exposed series (namespace "relay" by default):
//
//	relay_requests_total{target,method,status,cache}
//	relay_request_duration_seconds{target,cache}
//	relay_failures_total{target,status}
//	relay_cache_hits_total, relay_cache_misses_total, relay_cache_entries
//	relay_handshakes_total{result}
//	relay_route_reloads_total{result}, relay_route_rules
//	relay_journal_dropped_total
//
// Target labels are capped by a CardinalityLimiter; values beyond the cap are
// reported as "other".
package metrics
