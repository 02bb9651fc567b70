// Package tracing sets up OpenTelemetry tracing for the relay.
//
// New builds a tracer provider exporting over OTLP gRPC, or a noop tracer
// when telemetry.tracing.enabled is false. The gateway opens one
// "gateway.upstream" span per upstream call; client mode injects the trace
// context into the broker call and server mode extracts it, so both halves
// of a relayed request share a trace.
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//	core, err := gateway.New(gwCfg, gateway.Options{Tracer: tracer.Tracer()})
//
// Sampling is parent based on top of "always", "never" or "ratio".
package tracing
