package auth

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// TokenSource defines where to read a transport token from.
type TokenSource struct {
	Type   string // header, query
	Name   string // header name or query parameter
	Scheme string // "Bearer", etc. (optional)
}

// TokenMiddleware rejects requests that carry no valid transport token.
type TokenMiddleware struct {
	tokens  [][]byte
	sources []TokenSource
	logger  *slog.Logger
}

// NewTokenMiddleware creates a middleware accepting any of tokens.
func NewTokenMiddleware(tokens []string, sources []TokenSource, logger *slog.Logger) *TokenMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	m := &TokenMiddleware{
		sources: sources,
		logger:  logger.With("component", "auth.token"),
	}
	for _, t := range tokens {
		m.tokens = append(m.tokens, []byte(t))
	}
	return m
}

// Handle wraps next with the token check.
func (m *TokenMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := m.extractToken(r)
		if err != nil {
			m.logger.WarnContext(r.Context(), "missing transport token",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			writeUnauthorized(w, "Missing or invalid token")
			return
		}

		if !m.valid(token) {
			m.logger.WarnContext(r.Context(), "invalid transport token",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			writeUnauthorized(w, "Invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *TokenMiddleware) valid(token string) bool {
	ok := 0
	for _, t := range m.tokens {
		ok |= subtle.ConstantTimeCompare([]byte(token), t)
	}
	return ok == 1
}

func (m *TokenMiddleware) extractToken(r *http.Request) (string, error) {
	for _, source := range m.sources {
		switch source.Type {
		case "header":
			value := r.Header.Get(source.Name)
			if value == "" {
				continue
			}
			if source.Scheme == "" {
				return value, nil
			}
			if rest, ok := strings.CutPrefix(value, source.Scheme+" "); ok {
				return rest, nil
			}

		case "query":
			if value := r.URL.Query().Get(source.Name); value != "" {
				return value, nil
			}
		}
	}

	return "", errors.New("no token found")
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  http.StatusUnauthorized,
		"message": message,
	})
}
