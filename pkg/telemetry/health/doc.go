// Package health serves the relay's liveness, readiness and version probes.
//
// Readiness aggregates registered checks. Critical checks decide whether the
// relay can serve at all; in router mode the routing table is critical. The
// journal is registered as non-critical, so a broken journal database only
// reports "degraded" and the relay keeps proxying.
//
//	checker := health.New(cfg.Mode, cfg.Telemetry.Health.CheckTimeout)
//	checker.Register("routes", health.CountCheck("routes", router.Len), true)
//	checker.Register("journal", health.PingCheck(store), false)
//	checker.Mount(mux, "/health", "/ready", version, commit, buildTime)
package health
