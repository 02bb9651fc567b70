package proxy

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"relayhq/relay/pkg/codec"
	"relayhq/relay/pkg/gateway"
)

const (
	// RequestIDHeader is the HTTP header for request ID propagation.
	RequestIDHeader = "X-Request-ID"

	// ContentTypeHeader is the HTTP header naming the body encoding.
	ContentTypeHeader = "Content-Type"
)

// FromHTTPRequest converts r into a logical request. Header names are
// lower-cased and repeated values joined with ", ". The body is only read
// for methods that carry one.
//
// Multipart uploads are spooled under opts.SpoolDir; callers must pass the
// result to Release once the response has been written.
func FromHTTPRequest(r *http.Request, opts codec.DecodeOptions) (*gateway.Request, error) {
	req := &gateway.Request{
		Method:  strings.ToUpper(r.Method),
		Path:    r.URL.RequestURI(),
		Headers: HeaderMap(r.Header),
	}

	if !codec.HasBody(req.Method) || r.Body == nil || r.Body == http.NoBody {
		return req, nil
	}

	decoded, err := codec.Decode(r.Header.Get(ContentTypeHeader), r.Body, opts)
	if err != nil {
		return nil, requestError(req, err)
	}
	req.Body = decoded.Body
	req.Files = decoded.Files
	return req, nil
}

// Release removes the files spooled for req.
func Release(req *gateway.Request) error {
	if req == nil || len(req.Files) == 0 {
		return nil
	}
	return codec.RemoveFiles(req.Files)
}

// HeaderMap flattens h into lower-cased names.
func HeaderMap(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) == 0 {
			continue
		}
		out[strings.ToLower(name)] = strings.Join(values, ", ")
	}
	return out
}

// requestError maps a body decoding failure to a caller-facing error.
func requestError(req *gateway.Request, err error) *gateway.Error {
	status := http.StatusBadRequest
	if errors.Is(err, codec.ErrBodyTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	return &gateway.Error{
		Status:  status,
		Message: fmt.Sprintf("invalid request body: %v", err),
		Method:  req.Method,
		Path:    req.Path,
		Err:     err,
	}
}
