package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"relayhq/relay/pkg/proxy"
)

// RecoveryMiddleware turns a handler panic into a 500 error body. The stack
// is logged; the caller only sees a generic message. http.ErrAbortHandler
// is re-panicked so net/http can abort the connection quietly.
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.ErrorContext(r.Context(), "panic in handler",
					"error", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				proxy.WriteJSON(w, http.StatusInternalServerError, proxy.ErrorBody{
					Status:  http.StatusInternalServerError,
					Message: "Internal Server Error",
					Method:  r.Method,
					Path:    r.URL.RequestURI(),
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
