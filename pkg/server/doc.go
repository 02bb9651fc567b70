// Package server runs the relay behind an HTTP listener.
//
// New builds the components the configured mode needs:
//
//   - client mode: a relay.Client whose core targets client.registry,
//     mounted under client.client_endpoint
//   - server mode: a relay.Server gated by the app registry of
//     server.handshake, optionally behind a transport token check
//   - router mode: a routing.Router over the configured table, optionally
//     hot-reloaded when the table file changes
//
// Every mode shares the Prometheus collector, the tracer, the access
// journal and the health checker. Liveness, readiness, version and metrics
// endpoints are served next to the relayed traffic.
//
// # Basic Usage
//
//	cfg, err := config.LoadConfigWithEnvOverrides("relay.yaml")
//	if err != nil {
//	    return err
//	}
//	srv, err := server.New(cfg, server.Options{Logger: logger})
//	if err != nil {
//	    return err
//	}
//	return srv.Start(ctx)
//
// Start blocks until the context is cancelled or SIGINT/SIGTERM arrives,
// then drains in-flight requests within listen.shutdown_timeout, flushes
// the journal and stops the tracer.
package server
