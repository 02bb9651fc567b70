package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig contains configuration for CORS middleware.
type CORSConfig struct {
	Enabled bool

	// AllowedOrigins lists allowed origins. Use ["*"] to allow all.
	AllowedOrigins []string

	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string

	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int

	AllowCredentials bool
}

// CORSMiddleware adds cross-origin headers for allowed origins and answers
// preflight requests with 204. Other OPTIONS requests reach next, so they
// can still be relayed.
func CORSMiddleware(config *CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if config == nil || !config.Enabled {
			return next
		}
		wildcard := slices.Contains(config.AllowedOrigins, "*")

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")
			if !wildcard && !slices.Contains(config.AllowedOrigins, origin) {
				next.ServeHTTP(w, r)
				return
			}

			// Credentials can never be combined with a literal "*".
			if wildcard && !config.AllowCredentials {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
			}
			if config.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if len(config.ExposedHeaders) > 0 {
				h.Set("Access-Control-Expose-Headers", strings.Join(config.ExposedHeaders, ", "))
			}

			if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
				next.ServeHTTP(w, r)
				return
			}

			if len(config.AllowedMethods) > 0 {
				h.Set("Access-Control-Allow-Methods", strings.Join(config.AllowedMethods, ", "))
			}
			if len(config.AllowedHeaders) > 0 {
				h.Set("Access-Control-Allow-Headers", strings.Join(config.AllowedHeaders, ", "))
			} else if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
				h.Set("Access-Control-Allow-Headers", requested)
			}
			if config.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
