package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys. HTTP attributes follow the OpenTelemetry semantic
// conventions; relay-specific ones live under "relay.".
const (
	AttrHTTPMethod     = "http.request.method"
	AttrHTTPStatusCode = "http.response.status_code"
	AttrURLFull        = "url.full"
	AttrErrorMessage   = "error.message"

	AttrRequestID = "relay.request_id"
	AttrTarget    = "relay.target"
	AttrAppID     = "relay.app_id"
	AttrCacheHit  = "relay.cache.hit"
	AttrRoute     = "relay.route"
	AttrMode      = "relay.mode"
)

// SetRequestAttributes sets the request id and, when known, the caller's
// app id.
func SetRequestAttributes(span trace.Span, requestID, appID string) {
	attrs := []attribute.KeyValue{attribute.String(AttrRequestID, requestID)}
	if appID != "" {
		attrs = append(attrs, attribute.String(AttrAppID, appID))
	}
	span.SetAttributes(attrs...)
}

// UpstreamAttributes describes an upstream call.
func UpstreamAttributes(method, url, target, requestID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrURLFull, url),
		attribute.String(AttrTarget, target),
		attribute.String(AttrRequestID, requestID),
	}
}

// SetCacheAttributes marks whether a reply came from the response cache.
func SetCacheAttributes(span trace.Span, hit bool) {
	span.SetAttributes(attribute.Bool(AttrCacheHit, hit))
}

// SetRouteAttributes records the routing rule that matched.
func SetRouteAttributes(span trace.Span, rule, target string) {
	span.SetAttributes(
		attribute.String(AttrRoute, rule),
		attribute.String(AttrTarget, target),
	)
}
