package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"relayhq/relay/pkg/proxy"
	"relayhq/relay/pkg/security/ratelimit"
)

// RateLimitRecorder counts rejected requests by reason.
type RateLimitRecorder interface {
	RecordRateLimited(reason string)
}

// RateLimitMiddleware rejects requests with 429 and a Retry-After header
// while the listener is over its limits. Paths in exempt, e.g. health
// probes, are never limited. A nil limiter disables the middleware.
func RateLimitMiddleware(limiter *ratelimit.Limiter, exempt []string, logger *slog.Logger, recorder RateLimitRecorder) func(http.Handler) http.Handler {
	if limiter == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http.ratelimit")

	skip := make(map[string]bool, len(exempt))
	for _, p := range exempt {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			res := limiter.Allow()
			defer res.Release()

			if res.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
				w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			}
			if res.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			if recorder != nil {
				recorder.RecordRateLimited(res.Reason)
			}
			logger.WarnContext(r.Context(), "rate limit exceeded",
				"remote_addr", r.RemoteAddr,
				"reason", res.Reason,
				"method", r.Method,
				"path", r.URL.Path,
			)

			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			proxy.WriteJSON(w, http.StatusTooManyRequests, proxy.ErrorBody{
				Status:  http.StatusTooManyRequests,
				Message: "Too Many Requests",
				Method:  r.Method,
				Path:    r.URL.RequestURI(),
			})
		})
	}
}
