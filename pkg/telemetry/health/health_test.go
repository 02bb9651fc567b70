package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name            string
		timeout         time.Duration
		expectedTimeout time.Duration
	}{
		{"default timeout", 0, 5 * time.Second},
		{"custom timeout", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New("router", tt.timeout)
			if checker.checkTimeout != tt.expectedTimeout {
				t.Errorf("timeout = %v, want %v", checker.checkTimeout, tt.expectedTimeout)
			}
		})
	}
}

func TestChecker_Register(t *testing.T) {
	checker := New("server", 0)
	checker.Register("journal", func(context.Context) error { return nil }, false)
	checker.Register("routes", func(context.Context) error { return nil }, true)
	checker.Register("journal", func(context.Context) error { return nil }, false)

	names := checker.Names()
	if len(names) != 2 || names[0] != "journal" || names[1] != "routes" {
		t.Errorf("Names() = %v", names)
	}

	checker.Unregister("journal")
	if names := checker.Names(); len(names) != 1 {
		t.Errorf("Names() after Unregister = %v", names)
	}
}

func TestChecker_Readiness(t *testing.T) {
	fail := func(context.Context) error { return errors.New("boom") }
	pass := func(context.Context) error { return nil }

	tests := []struct {
		name   string
		checks map[string]check
		want   string
	}{
		{"no checks", nil, StatusReady},
		{"all pass", map[string]check{"a": {pass, true}, "b": {pass, false}}, StatusReady},
		{"non-critical fails", map[string]check{"a": {pass, true}, "journal": {fail, false}}, StatusDegraded},
		{"critical fails", map[string]check{"routes": {fail, true}, "journal": {fail, false}}, StatusNotReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New("router", time.Second)
			for name, ch := range tt.checks {
				checker.Register(name, ch.fn, ch.critical)
			}

			status := checker.Readiness(context.Background())
			if status.Status != tt.want {
				t.Errorf("status = %q, want %q", status.Status, tt.want)
			}
			if len(status.Checks) != len(tt.checks) {
				t.Errorf("got %d results, want %d", len(status.Checks), len(tt.checks))
			}
		})
	}
}

func TestChecker_Timeout(t *testing.T) {
	checker := New("server", 20*time.Millisecond)
	checker.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	}, true)

	status := checker.Readiness(context.Background())
	res := status.Checks["slow"]
	if res.Status != StatusFailed || res.Message != ErrCheckTimeout.Error() {
		t.Errorf("slow check result = %+v", res)
	}
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func TestChecks(t *testing.T) {
	if err := PingCheck(fakePinger{})(context.Background()); err != nil {
		t.Errorf("PingCheck() = %v", err)
	}
	if err := PingCheck(fakePinger{err: errors.New("locked")})(context.Background()); err == nil {
		t.Error("expected ping error")
	}

	n := 0
	check := CountCheck("routes", func() int { return n })
	if err := check(context.Background()); err == nil || err.Error() != "no routes loaded" {
		t.Errorf("CountCheck() with zero = %v", err)
	}
	n = 3
	if err := check(context.Background()); err != nil {
		t.Errorf("CountCheck() = %v", err)
	}
}

func TestHandlers(t *testing.T) {
	checker := New("router", time.Second)
	checker.Register("routes", func(context.Context) error { return errors.New("empty") }, true)

	mux := http.NewServeMux()
	checker.Mount(mux, "/health", "/ready", "1.2.3", "abc", "now")

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
		wantKey  string
		wantVal  string
	}{
		{"liveness", http.MethodGet, "/health", http.StatusOK, "status", StatusOK},
		{"readiness", http.MethodGet, "/ready", http.StatusServiceUnavailable, "status", StatusNotReady},
		{"version", http.MethodGet, "/version", http.StatusOK, "version", "1.2.3"},
		{"method not allowed", http.MethodPost, "/health", http.StatusMethodNotAllowed, "", ""},
		{"head", http.MethodHead, "/health", http.StatusOK, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.method == http.MethodHead && rec.Body.Len() != 0 {
				t.Error("HEAD response has a body")
			}
			if tt.wantKey == "" {
				return
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if body[tt.wantKey] != tt.wantVal {
				t.Errorf("%s = %v, want %q", tt.wantKey, body[tt.wantKey], tt.wantVal)
			}
		})
	}
}
