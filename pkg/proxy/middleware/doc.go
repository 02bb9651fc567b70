// Package middleware provides HTTP middleware for cross-cutting concerns.
//
// The server assembles them with Chain, outermost first:
//
//	handler = middleware.Chain(mux,
//	    middleware.RecoveryMiddleware(logger),
//	    middleware.RequestIDMiddleware,
//	    tracing.HTTPMiddleware,
//	    middleware.LoggingMiddleware(logger),
//	    middleware.CORSMiddleware(cors),
//	    middleware.RateLimitMiddleware(limiter, exempt, logger, collector),
//	)
//
// # Request ID
//
// RequestIDMiddleware keeps a caller's X-Request-ID or generates a UUID v4.
// The id is stored with logging.WithRequestID, so every log record written
// through the relay's slog handler carries it, and the gateway core uses
// it as the access-entry id.
//
// # Logging
//
// LoggingMiddleware writes one structured record per request:
//
//	{
//	  "level": "INFO",
//	  "msg": "request completed",
//	  "component": "http",
//	  "method": "GET",
//	  "path": "/api/github/octocat",
//	  "status": 200,
//	  "bytes": 1432,
//	  "latency_ms": 87,
//	  "request_id": "550e8400-e29b-41d4-a716-446655440000"
//	}
//
// # Recovery
//
// RecoveryMiddleware catches panics, logs the stack and answers with the
// relay's JSON error body and status 500.
//
// # CORS
//
// CORSMiddleware lets browser callers reach a client-mode relay. Preflight
// requests are answered directly; everything else is passed on with the
// allow headers set.
//
// # Load shedding
//
// RateLimitMiddleware answers 429 with Retry-After while the listener is over
// its rate or in-flight limit. Probe and metrics paths are passed as exempt.
package middleware
