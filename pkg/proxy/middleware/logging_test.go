package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"success", http.StatusOK, "INFO"},
		{"client error", http.StatusNotFound, "WARN"},
		{"server error", http.StatusBadGateway, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if GetStartTime(r.Context()).IsZero() {
					t.Error("start time missing from context")
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("hello"))
			})

			w := httptest.NewRecorder()
			LoggingMiddleware(logger)(handler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/x", nil))

			var rec map[string]any
			if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
				t.Fatalf("decode log record %q: %v", buf.String(), err)
			}
			if rec["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", rec["level"], tt.wantLevel)
			}
			if rec["status"] != float64(tt.status) {
				t.Errorf("status = %v, want %d", rec["status"], tt.status)
			}
			if rec["bytes"] != float64(5) {
				t.Errorf("bytes = %v, want 5", rec["bytes"])
			}
			if rec["path"] != "/api/x" || rec["component"] != "http" {
				t.Errorf("record = %v", rec)
			}
		})
	}
}

func TestChain(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(okHandler, mark("a"), nil, mark("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("order = %v, want [a b]", order)
	}
}
