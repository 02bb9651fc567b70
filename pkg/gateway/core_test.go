package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"relayhq/relay/pkg/telemetry/logging"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type doerFunc func(req *http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// countingDoer answers every call with respond and counts the calls.
type countingDoer struct {
	calls   atomic.Int64
	respond func(req *http.Request) (*http.Response, error)
}

func (d *countingDoer) Do(req *http.Request) (*http.Response, error) {
	d.calls.Add(1)
	return d.respond(req)
}

func textResponse(status int, contentType, body string) *http.Response {
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCore(t *testing.T, cfg Config, opts Options) *Core {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	c, err := New(cfg, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func cacheAll(ttl time.Duration) *CacheConfig {
	return &CacheConfig{OK: ttl, Error: ttl, Fatal: ttl}
}

type recordingJournal struct {
	mu      sync.Mutex
	entries []AccessEntry
}

func (j *recordingJournal) RecordAccess(e AccessEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
}

func (j *recordingJournal) all() []AccessEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]AccessEntry(nil), j.entries...)
}

type recordingMetrics struct {
	mu       sync.Mutex
	requests int
	failures []int
	hits     int
	misses   int
	entries  int
}

func (m *recordingMetrics) RecordRequest(string, string, int, time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
}

func (m *recordingMetrics) RecordFailure(_ string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, status)
}

func (m *recordingMetrics) RecordCacheLookup(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func (m *recordingMetrics) SetCacheEntries(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = n
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
		is      error
	}{
		{name: "valid https target", cfg: Config{Target: "https://api.example.com"}},
		{name: "valid http target with path", cfg: Config{Target: "http://localhost:8080/v1"}},
		{name: "empty target", cfg: Config{}, wantErr: true, is: ErrNoTarget},
		{name: "empty target with dynamic targets", cfg: Config{EnableDynamicTarget: true}},
		{name: "unsupported scheme", cfg: Config{Target: "ftp://files.example.com"}, wantErr: true},
		{name: "missing host", cfg: Config{Target: "http://"}, wantErr: true},
		{
			name:    "negative ttl",
			cfg:     Config{Target: "https://api.example.com", Cache: &CacheConfig{OK: -time.Second}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("Validate() error = %v, want %v", err, tt.is)
			}
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	if _, err := New(Config{}, Options{}); !errors.Is(err, ErrNoTarget) {
		t.Fatalf("New() error = %v, want ErrNoTarget", err)
	}
}

func TestStagesOrder(t *testing.T) {
	c := newTestCore(t, Config{Target: "https://api.example.com"}, Options{})

	want := []string{
		"copy-state-to-output",
		"request-timer",
		"target-resolution",
		"access-log",
		"request-counter",
		"response-cache",
		"fatal-error-catcher",
		"status-error-normalizer",
		"request-header-sanitizer",
		"response-header-fixup",
		"body-recode-urlencoded",
		"body-recode-formdata",
	}

	got := c.Stages()
	if len(got) != len(want) {
		t.Fatalf("Stages() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Stages()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRequestCacheHit(t *testing.T) {
	clock := newFakeClock()
	doer := &countingDoer{respond: func(*http.Request) (*http.Response, error) {
		clock.Advance(50 * time.Millisecond)
		return textResponse(http.StatusOK, "application/json", `{"ok":true}`), nil
	}}
	metrics := &recordingMetrics{}
	c := newTestCore(t,
		Config{Target: "https://api.example.com", Cache: cacheAll(5 * time.Second)},
		Options{Transport: doer, Now: clock.Now, Metrics: metrics})

	req := &Request{Method: "GET", Path: "/users", Headers: map[string]string{"x-trace": "1"}}

	first, err := c.Request(context.Background(), req)
	if err != nil {
		t.Fatalf("first Request() error = %v", err)
	}
	if first.RequestTime != 50*time.Millisecond {
		t.Errorf("first RequestTime = %v, want 50ms", first.RequestTime)
	}
	if got := first.Headers.Get("X-Runtime"); got != "50" {
		t.Errorf("first X-Runtime = %q, want 50", got)
	}

	second, err := c.Request(context.Background(), req)
	if err != nil {
		t.Fatalf("second Request() error = %v", err)
	}
	if got := doer.calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}
	if second.RequestTime > first.RequestTime {
		t.Errorf("cached RequestTime = %v, want <= %v", second.RequestTime, first.RequestTime)
	}
	if string(second.Body) != `{"ok":true}` {
		t.Errorf("cached body = %q", second.Body)
	}
	if second.Status != http.StatusOK {
		t.Errorf("cached status = %d, want 200", second.Status)
	}

	if c.Counters().All() != 2 {
		t.Errorf("Counters().All() = %d, want 2", c.Counters().All())
	}
	if c.Counters().Fail() != 0 {
		t.Errorf("Counters().Fail() = %d, want 0", c.Counters().Fail())
	}
	if metrics.hits != 1 || metrics.misses != 1 {
		t.Errorf("cache lookups hits=%d misses=%d, want 1/1", metrics.hits, metrics.misses)
	}
	if metrics.entries != 1 {
		t.Errorf("cache entries gauge = %d, want 1", metrics.entries)
	}
}

func TestRequestCachedResponseIsolated(t *testing.T) {
	doer := &countingDoer{respond: func(*http.Request) (*http.Response, error) {
		return textResponse(http.StatusOK, "application/json", `{"v":1}`), nil
	}}
	c := newTestCore(t,
		Config{Target: "https://api.example.com", Cache: cacheAll(time.Minute)},
		Options{Transport: doer})

	req := &Request{Method: "GET", Path: "/v"}
	first, err := c.Request(context.Background(), req)
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	first.Body[0] = 'X'
	first.Headers.Set("X-Mutated", "yes")

	second, err := c.Request(context.Background(), req)
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if string(second.Body) != `{"v":1}` {
		t.Errorf("cached body = %q, caller mutation leaked into cache", second.Body)
	}
	if second.Headers.Get("X-Mutated") != "" {
		t.Error("caller header mutation leaked into cache")
	}
}

func TestRequestCacheExpiry(t *testing.T) {
	clock := newFakeClock()
	doer := &countingDoer{respond: func(*http.Request) (*http.Response, error) {
		return textResponse(http.StatusOK, "application/json", `{}`), nil
	}}
	c := newTestCore(t,
		Config{Target: "https://api.example.com", Cache: &CacheConfig{OK: 5 * time.Second}},
		Options{Transport: doer, Now: clock.Now})

	req := &Request{Method: "GET", Path: "/a"}
	for i := 0; i < 2; i++ {
		if _, err := c.Request(context.Background(), req); err != nil {
			t.Fatalf("Request() error = %v", err)
		}
	}
	if got := doer.calls.Load(); got != 1 {
		t.Fatalf("upstream calls before expiry = %d, want 1", got)
	}

	clock.Advance(6 * time.Second)
	if _, err := c.Request(context.Background(), req); err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if got := doer.calls.Load(); got != 2 {
		t.Errorf("upstream calls after expiry = %d, want 2", got)
	}
}

func TestRequestCacheTTLByStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		cache     *CacheConfig
		wantCalls int64
	}{
		{name: "2xx cached under ok ttl", status: 200, cache: &CacheConfig{OK: time.Minute}, wantCalls: 1},
		{name: "2xx not cached when ok ttl is zero", status: 200, cache: &CacheConfig{Error: time.Minute}, wantCalls: 2},
		{name: "4xx cached under error ttl", status: 404, cache: &CacheConfig{Error: time.Minute}, wantCalls: 1},
		{name: "5xx not cached when error ttl is zero", status: 503, cache: &CacheConfig{OK: time.Minute}, wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doer := &countingDoer{respond: func(*http.Request) (*http.Response, error) {
				return textResponse(tt.status, "application/json", `{"status":"x"}`), nil
			}}
			c := newTestCore(t, Config{Target: "https://api.example.com", Cache: tt.cache},
				Options{Transport: doer})

			req := &Request{Method: "GET", Path: "/s"}
			for i := 0; i < 2; i++ {
				resp, err := c.Request(context.Background(), req)
				if err != nil {
					t.Fatalf("Request() error = %v", err)
				}
				if resp.Status != tt.status {
					t.Fatalf("Status = %d, want %d", resp.Status, tt.status)
				}
			}
			if got := doer.calls.Load(); got != tt.wantCalls {
				t.Errorf("upstream calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestRequestOnlyCachesSafeMethods(t *testing.T) {
	for _, method := range []string{"POST", "PUT", "PATCH", "DELETE"} {
		t.Run(method, func(t *testing.T) {
			doer := &countingDoer{respond: func(*http.Request) (*http.Response, error) {
				return textResponse(http.StatusOK, "application/json", `{}`), nil
			}}
			c := newTestCore(t,
				Config{Target: "https://api.example.com", Cache: cacheAll(time.Minute)},
				Options{Transport: doer})

			req := &Request{Method: method, Path: "/items", Body: []byte(`{"a":1}`)}
			for i := 0; i < 2; i++ {
				if _, err := c.Request(context.Background(), req); err != nil {
					t.Fatalf("Request() error = %v", err)
				}
			}
			if got := doer.calls.Load(); got != 2 {
				t.Errorf("upstream calls = %d, want 2", got)
			}
		})
	}
}

func TestRequestFatalErrorCached(t *testing.T) {
	clock := newFakeClock()
	doer := &countingDoer{respond: func(*http.Request) (*http.Response, error) {
		clock.Advance(12 * time.Millisecond)
		return nil, errors.New("dial tcp: connection refused")
	}}
	c := newTestCore(t,
		Config{Target: "https://api.example.com", Cache: &CacheConfig{Fatal: 5 * time.Second}},
		Options{Transport: doer, Now: clock.Now})

	req := &Request{Method: "GET", Path: "/down"}

	_, err := c.Request(context.Background(), req)
	if err == nil {
		t.Fatal("Request() expected error")
	}
	if StatusOf(err) != http.StatusInternalServerError {
		t.Errorf("StatusOf() = %d, want 500", StatusOf(err))
	}
	firstMsg := MessageOf(err)
	if !strings.HasPrefix(firstMsg, "Gateway Error: ") {
		t.Errorf("message = %q, want Gateway Error prefix", firstMsg)
	}
	if !strings.Contains(firstMsg, "connection refused") || !strings.HasSuffix(firstMsg, "+12ms") {
		t.Errorf("message = %q, want cause and +12ms", firstMsg)
	}

	_, err = c.Request(context.Background(), req)
	if err == nil {
		t.Fatal("second Request() expected error")
	}
	if got := MessageOf(err); got != firstMsg {
		t.Errorf("cached message = %q, want %q", got, firstMsg)
	}
	var ge *Error
	if !errors.As(err, &ge) || !ge.Cached {
		t.Errorf("second error = %#v, want cached *Error", err)
	}
	if got := doer.calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}
	if got := c.Counters().Fail(); got != 1 {
		t.Errorf("Counters().Fail() = %d, want 1", got)
	}

	clock.Advance(6 * time.Second)
	if _, err := c.Request(context.Background(), req); err == nil {
		t.Fatal("Request() after expiry expected error")
	}
	if got := doer.calls.Load(); got != 2 {
		t.Errorf("upstream calls after expiry = %d, want 2", got)
	}
}

func TestRequestUnreachableUpstream(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	c := newTestCore(t,
		Config{Target: target, Cache: cacheAll(time.Minute)},
		Options{Transport: &http.Client{Timeout: 2 * time.Second}})

	req := &Request{Method: "GET", Path: "/x"}
	_, err1 := c.Request(context.Background(), req)
	_, err2 := c.Request(context.Background(), req)
	if err1 == nil || err2 == nil {
		t.Fatalf("Request() errors = %v, %v; want both non-nil", err1, err2)
	}
	if StatusOf(err1) != 500 || StatusOf(err2) != 500 {
		t.Errorf("statuses = %d, %d; want 500", StatusOf(err1), StatusOf(err2))
	}
	if MessageOf(err1) != MessageOf(err2) {
		t.Errorf("messages differ: %q vs %q", MessageOf(err1), MessageOf(err2))
	}
}

func TestRequestPanicRecovered(t *testing.T) {
	doer := doerFunc(func(*http.Request) (*http.Response, error) {
		panic("boom")
	})
	c := newTestCore(t, Config{Target: "https://api.example.com"}, Options{Transport: doer})

	_, err := c.Request(context.Background(), &Request{Method: "GET", Path: "/p"})
	if err == nil {
		t.Fatal("Request() expected error")
	}
	if StatusOf(err) != http.StatusInternalServerError {
		t.Errorf("StatusOf() = %d, want 500", StatusOf(err))
	}
	if !strings.Contains(MessageOf(err), "panic: boom") {
		t.Errorf("message = %q, want panic cause", MessageOf(err))
	}
	if c.Counters().Fail() != 1 {
		t.Errorf("Counters().Fail() = %d, want 1", c.Counters().Fail())
	}
}

func TestRequestStatusErrorNormalized(t *testing.T) {
	clock := newFakeClock()

	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantJSON    bool
		wantMessage string
	}{
		{name: "plain text error", status: 502, contentType: "text/plain", body: "bad upstream", wantJSON: true, wantMessage: "bad upstream"},
		{name: "html error", status: 404, contentType: "text/html", body: "<h1>nope</h1>", wantJSON: true, wantMessage: "<h1>nope</h1>"},
		{name: "empty body uses status text", status: 503, body: "", wantJSON: true, wantMessage: "Service Unavailable"},
		{name: "json error kept", status: 400, contentType: "application/json; charset=utf-8", body: `{"error":"bad"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doer := doerFunc(func(*http.Request) (*http.Response, error) {
				return textResponse(tt.status, tt.contentType, tt.body), nil
			})
			c := newTestCore(t, Config{Target: "https://api.example.com"},
				Options{Transport: doer, Now: clock.Now})

			resp, err := c.Request(context.Background(), &Request{Method: "get", Path: "/thing"})
			if err != nil {
				t.Fatalf("Request() error = %v", err)
			}
			if resp.Status != tt.status {
				t.Errorf("Status = %d, want %d", resp.Status, tt.status)
			}
			if c.Counters().Fail() != 1 {
				t.Errorf("Counters().Fail() = %d, want 1", c.Counters().Fail())
			}

			if !tt.wantJSON {
				if string(resp.Body) != tt.body {
					t.Errorf("Body = %q, want %q", resp.Body, tt.body)
				}
				return
			}

			if ct := resp.Headers.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
			var got statusErrorBody
			if err := json.Unmarshal(resp.Body, &got); err != nil {
				t.Fatalf("body %q is not JSON: %v", resp.Body, err)
			}
			want := statusErrorBody{
				Method:     "GET",
				Path:       "/thing",
				Status:     tt.status,
				Message:    tt.wantMessage,
				Timestamps: clock.Now().UnixMilli(),
			}
			if got != want {
				t.Errorf("body = %+v, want %+v", got, want)
			}
		})
	}
}

func TestRequestHeaderSanitizing(t *testing.T) {
	var got http.Header
	doer := doerFunc(func(req *http.Request) (*http.Response, error) {
		got = req.Header.Clone()
		return textResponse(http.StatusOK, "application/json", `{}`), nil
	})
	c := newTestCore(t, Config{Target: "https://api.example.com"}, Options{Transport: doer})

	headers := map[string]string{
		"host":            "client.example.com",
		"Origin":          "https://client.example.com",
		"referer":         "https://client.example.com/page",
		"accept-encoding": "gzip, br",
		"authorization":   "Bearer abc",
		"x-custom":        "kept",
	}
	_, err := c.Request(context.Background(), &Request{Method: "GET", Path: "/h", Headers: headers})
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}

	for _, name := range []string{"Host", "Origin", "Referer", "Accept-Encoding"} {
		if v := got.Get(name); v != "" {
			t.Errorf("header %s forwarded as %q", name, v)
		}
	}
	if got.Get("Authorization") != "Bearer abc" {
		t.Errorf("Authorization = %q, want forwarded", got.Get("Authorization"))
	}
	if got.Get("X-Custom") != "kept" {
		t.Errorf("X-Custom = %q, want kept", got.Get("X-Custom"))
	}
	if headers["host"] != "client.example.com" {
		t.Error("caller header map was mutated")
	}
}

func TestRequestGetDropsBody(t *testing.T) {
	var body []byte
	doer := doerFunc(func(req *http.Request) (*http.Response, error) {
		if req.Body != nil {
			body, _ = io.ReadAll(req.Body)
		}
		return textResponse(http.StatusOK, "application/json", `{}`), nil
	})
	c := newTestCore(t, Config{Target: "https://api.example.com"}, Options{Transport: doer})

	_, err := c.Request(context.Background(), &Request{
		Method:  "GET",
		Path:    "/g",
		Headers: map[string]string{"content-type": "application/json"},
		Body:    []byte(`{"ignored":true}`),
	})
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if len(body) != 0 {
		t.Errorf("GET forwarded body %q", body)
	}
}

func TestRequestForwardsRawBody(t *testing.T) {
	var body []byte
	var contentType string
	doer := doerFunc(func(req *http.Request) (*http.Response, error) {
		body, _ = io.ReadAll(req.Body)
		contentType = req.Header.Get("Content-Type")
		return textResponse(http.StatusCreated, "application/json", `{"id":1}`), nil
	})
	c := newTestCore(t, Config{Target: "https://api.example.com/"}, Options{Transport: doer})

	resp, err := c.Request(context.Background(), &Request{
		Method:  "POST",
		Path:    "/items",
		Headers: map[string]string{"content-type": "application/json"},
		Body:    []byte(`{"name":"relay"}`),
	})
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if resp.Status != http.StatusCreated {
		t.Errorf("Status = %d, want 201", resp.Status)
	}
	if string(body) != `{"name":"relay"}` {
		t.Errorf("upstream body = %q", body)
	}
	if contentType != "application/json" {
		t.Errorf("upstream Content-Type = %q", contentType)
	}
}

func TestRequestDynamicTarget(t *testing.T) {
	var gotURL string
	doer := doerFunc(func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		return textResponse(http.StatusOK, "application/json", `{}`), nil
	})

	t.Run("requested target honored", func(t *testing.T) {
		c := newTestCore(t, Config{EnableDynamicTarget: true}, Options{Transport: doer})
		_, err := c.Request(context.Background(), &Request{Method: "GET", Path: "/repos", Target: "https://api.github.com/"})
		if err != nil {
			t.Fatalf("Request() error = %v", err)
		}
		if gotURL != "https://api.github.com/repos" {
			t.Errorf("upstream URL = %q", gotURL)
		}
	})

	t.Run("requested target ignored when disabled", func(t *testing.T) {
		c := newTestCore(t, Config{Target: "https://api.example.com"}, Options{Transport: doer})
		_, err := c.Request(context.Background(), &Request{Method: "GET", Path: "/repos", Target: "https://evil.example.com"})
		if err != nil {
			t.Fatalf("Request() error = %v", err)
		}
		if gotURL != "https://api.example.com/repos" {
			t.Errorf("upstream URL = %q", gotURL)
		}
	})

	t.Run("no target resolved", func(t *testing.T) {
		c := newTestCore(t, Config{EnableDynamicTarget: true}, Options{Transport: doer})
		_, err := c.Request(context.Background(), &Request{Method: "GET", Path: "/repos"})
		if !errors.Is(err, ErrNoTarget) {
			t.Fatalf("Request() error = %v, want ErrNoTarget", err)
		}
		if StatusOf(err) != http.StatusInternalServerError {
			t.Errorf("StatusOf() = %d, want 500", StatusOf(err))
		}
	})
}

func TestRequestCoalescing(t *testing.T) {
	const n = 8

	tests := []struct {
		name      string
		coalesce  bool
		wantCalls int64
	}{
		{name: "coalesced", coalesce: true, wantCalls: 1},
		{name: "independent", coalesce: false, wantCalls: n},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int64
			started := make(chan struct{}, n)
			release := make(chan struct{})
			doer := doerFunc(func(*http.Request) (*http.Response, error) {
				calls.Add(1)
				started <- struct{}{}
				<-release
				return textResponse(http.StatusOK, "application/json", `{"n":1}`), nil
			})
			cc := cacheAll(time.Minute)
			cc.Coalesce = tt.coalesce
			c := newTestCore(t, Config{Target: "https://api.example.com", Cache: cc}, Options{Transport: doer})

			var wg sync.WaitGroup
			errs := make(chan error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					resp, err := c.Request(context.Background(), &Request{Method: "GET", Path: "/same"})
					if err == nil && string(resp.Body) != `{"n":1}` {
						err = fmt.Errorf("body = %q", resp.Body)
					}
					errs <- err
				}()
			}

			if tt.coalesce {
				<-started
				time.Sleep(50 * time.Millisecond)
			} else {
				for i := 0; i < n; i++ {
					<-started
				}
			}
			close(release)
			wg.Wait()
			close(errs)

			for err := range errs {
				if err != nil {
					t.Errorf("Request() error = %v", err)
				}
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("upstream calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestRequestNormalizeHeadersKey(t *testing.T) {
	tests := []struct {
		name      string
		normalize bool
		wantCalls int64
	}{
		{name: "normalized names share an entry", normalize: true, wantCalls: 1},
		{name: "verbatim names differ", normalize: false, wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doer := &countingDoer{respond: func(*http.Request) (*http.Response, error) {
				return textResponse(http.StatusOK, "application/json", `{}`), nil
			}}
			cc := cacheAll(time.Minute)
			cc.NormalizeHeaders = tt.normalize
			c := newTestCore(t, Config{Target: "https://api.example.com", Cache: cc}, Options{Transport: doer})

			for _, name := range []string{"X-Tenant", "x-tenant"} {
				req := &Request{Method: "GET", Path: "/t", Headers: map[string]string{name: "acme"}}
				if _, err := c.Request(context.Background(), req); err != nil {
					t.Fatalf("Request() error = %v", err)
				}
			}
			if got := doer.calls.Load(); got != tt.wantCalls {
				t.Errorf("upstream calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestRequestJournalAndRequestID(t *testing.T) {
	doer := doerFunc(func(*http.Request) (*http.Response, error) {
		return textResponse(http.StatusOK, "application/json", `{}`), nil
	})
	journal := &recordingJournal{}
	c := newTestCore(t,
		Config{Target: "https://api.example.com", Cache: cacheAll(time.Minute)},
		Options{Transport: doer, Journal: journal})

	ctx := logging.WithRequestID(context.Background(), "req-123")
	for i := 0; i < 2; i++ {
		if _, err := c.Request(ctx, &Request{Method: "GET", Path: "/j"}); err != nil {
			t.Fatalf("Request() error = %v", err)
		}
	}

	entries := journal.all()
	if len(entries) != 2 {
		t.Fatalf("journal entries = %d, want 2", len(entries))
	}
	for i, e := range entries {
		if e.ID != "req-123" {
			t.Errorf("entry %d ID = %q, want req-123", i, e.ID)
		}
		if e.Target != "https://api.example.com" || e.Status != 200 || e.Path != "/j" {
			t.Errorf("entry %d = %+v", i, e)
		}
	}
	if entries[0].CacheHit || !entries[1].CacheHit {
		t.Errorf("cache hit flags = %v, %v; want false, true", entries[0].CacheHit, entries[1].CacheHit)
	}
}

func TestRequestGeneratesID(t *testing.T) {
	doer := doerFunc(func(*http.Request) (*http.Response, error) {
		return textResponse(http.StatusOK, "application/json", `{}`), nil
	})
	journal := &recordingJournal{}
	c := newTestCore(t, Config{Target: "https://api.example.com"}, Options{Transport: doer, Journal: journal})

	if _, err := c.Request(context.Background(), &Request{Method: "GET", Path: "/"}); err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	entries := journal.all()
	if len(entries) != 1 || len(entries[0].ID) != 36 {
		t.Errorf("entries = %+v, want one entry with a uuid", entries)
	}
}

func TestRequestWithHTTPUpstream(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"path":%q}`, r.URL.Path)
	}))
	defer srv.Close()

	c := newTestCore(t, Config{Target: srv.URL, Cache: cacheAll(5 * time.Second)},
		Options{Transport: srv.Client()})

	req := &Request{Method: "GET", Path: "//nested//path"}
	first, err := c.Request(context.Background(), req)
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if string(first.Body) != `{"path":"/nested/path"}` {
		t.Errorf("Body = %q", first.Body)
	}
	if first.RequestTime <= 0 {
		t.Errorf("RequestTime = %v, want > 0", first.RequestTime)
	}

	second, err := c.Request(context.Background(), req)
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1", calls.Load())
	}
	if second.RequestTime > first.RequestTime {
		t.Errorf("cached RequestTime = %v, want <= %v", second.RequestTime, first.RequestTime)
	}
}

func TestRequestNil(t *testing.T) {
	c := newTestCore(t, Config{Target: "https://api.example.com"}, Options{})
	if _, err := c.Request(context.Background(), nil); err == nil {
		t.Error("Request(nil) expected error")
	}
}

func TestCacheAccessor(t *testing.T) {
	c := newTestCore(t, Config{Target: "https://api.example.com"}, Options{})
	if c.Cache() != nil {
		t.Error("Cache() should be nil when caching is disabled")
	}
	c = newTestCore(t, Config{Target: "https://api.example.com", Cache: cacheAll(time.Second)}, Options{})
	if c.Cache() == nil {
		t.Error("Cache() should be non-nil when caching is enabled")
	}
}
