package tracing

import (
	"context"
	"net/http"
	"regexp"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Extract returns ctx carrying the trace context found in headers. The
// server side of the relay calls it on the inbound request so spans of a
// client and server pair join one trace.
func Extract(ctx context.Context, headers http.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(headers))
}

// Inject writes the trace context of ctx into headers (traceparent and
// tracestate).
func Inject(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}

// InjectToMap writes the trace context of ctx into a lower-case header map,
// such as the headers of an envelope.
func InjectToMap(ctx context.Context, carrier map[string]string) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(carrier))
}

// HTTPMiddleware extracts the caller's trace context and echoes the trace id
// in X-Trace-ID when one is present.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := Extract(r.Context(), r.Header)
		if id := TraceID(ctx); id != "" {
			w.Header().Set("X-Trace-ID", id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

var traceParentPattern = regexp.MustCompile(`^[0-9a-f]{2}-([0-9a-f]{32})-([0-9a-f]{16})-[0-9a-f]{2}$`)

// ValidateTraceParent reports whether v is a well-formed W3C traceparent
// header with non-zero trace and parent ids.
func ValidateTraceParent(v string) bool {
	m := traceParentPattern.FindStringSubmatch(v)
	if m == nil {
		return false
	}
	return m[1] != "00000000000000000000000000000000" && m[2] != "0000000000000000"
}
