package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"relayhq/relay/pkg/telemetry/logging"
)

// RequestIDHeader is the HTTP header for request ID.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength bounds caller-supplied request ids.
const maxRequestIDLength = 128

// RequestIDMiddleware assigns every request an id. A caller-supplied
// X-Request-ID is kept when it is short enough; otherwise a UUID v4 is
// generated. The id is stored with logging.WithRequestID, so log records
// and the gateway's access entries carry it, and echoed in the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), requestID)))
	})
}

// GetRequestID extracts the request ID from the context.
// Returns empty string if not found.
func GetRequestID(ctx context.Context) string {
	return logging.GetRequestID(ctx)
}
