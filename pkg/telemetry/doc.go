// Package telemetry groups the broker's observability packages.
//
// # Components
//
//   - logging: slog construction with redaction of tokens and auth headers
//   - metrics: Prometheus collector for requests, cache lookups and handshakes
//   - tracing: OpenTelemetry spans around upstream calls
//   - health: liveness, readiness and version endpoints
//
// # Usage
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
//	if err != nil {
//		return err
//	}
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
//	collector.RecordRequest("https://api.internal", "GET", 200, elapsed, false)
//
//	checker := health.New(cfg.Mode, cfg.Telemetry.Health.CheckTimeout)
//	checker.Register("journal", health.PingCheck(store), true)
//
// The server package wires all four together; the pieces can also be used
// on their own.
package telemetry
