package gateway

import (
	"net/http"
	"strings"
	"time"

	"relayhq/relay/pkg/codec"
)

// Request is a logical request handed to the pipeline.
type Request struct {
	Method string
	Path   string

	// Headers are forwarded upstream after sanitizing. Adapters lower-case
	// the names; the core looks names up without regard to case.
	Headers map[string]string

	// Body is the logical body: JSON for JSON, urlencoded and multipart
	// requests, raw bytes otherwise.
	Body []byte

	// Files are streamed as multipart parts when the request is multipart.
	Files map[string]codec.FileRef

	// Target is advisory and only honored when dynamic targets are enabled.
	Target string
}

// Header returns the value of the named request header, ignoring case.
func (r *Request) Header(name string) string {
	return headerValue(r.Headers, name)
}

func (r *Request) clone() *Request {
	out := *r
	out.Method = strings.ToUpper(r.Method)
	out.Headers = make(map[string]string, len(r.Headers))
	for k, v := range r.Headers {
		out.Headers[k] = v
	}
	return &out
}

// Response is a logical response produced by one pipeline execution or
// replayed from the cache.
type Response struct {
	Status     int
	StatusText string
	Headers    http.Header
	Body       []byte

	// RequestTime is the latency measured by the gateway.
	RequestTime time.Duration
}

// RequestTimeMs returns RequestTime in whole milliseconds.
func (r *Response) RequestTimeMs() int64 {
	return r.RequestTime.Milliseconds()
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status <= 299
}

// Clone returns a deep copy. Cached responses are cloned on the way in and
// on the way out so replays never share buffers with callers.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	out := *r
	out.Headers = r.Headers.Clone()
	if out.Headers == nil {
		out.Headers = http.Header{}
	}
	if r.Body != nil {
		out.Body = append([]byte(nil), r.Body...)
	}
	return &out
}

func headerValue(h map[string]string, name string) string {
	if v, ok := h[name]; ok {
		return v
	}
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func deleteHeaders(h map[string]string, names ...string) {
	for k := range h {
		for _, name := range names {
			if strings.EqualFold(k, name) {
				delete(h, k)
				break
			}
		}
	}
}
