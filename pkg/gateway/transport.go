package gateway

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"relayhq/relay/pkg/codec"
	"relayhq/relay/pkg/telemetry/tracing"
)

// DefaultMaxResponseBytes bounds upstream bodies read into memory.
const DefaultMaxResponseBytes = 32 << 20

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// zstdDecoder is safe for concurrent use and reused across responses.
var zstdDecoder *zstd.Decoder

func init() {
	var err error
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("gateway: zstd decoder initialization failed: " + err.Error())
	}
}

// roundTrip is the terminal handler: it performs the single upstream call
// and stores the decoded reply in ec.Output.
func (c *Core) roundTrip(ec *ExecutionContext) error {
	in := ec.Input
	url := JoinURL(ec.State.Target, in.Path)

	payload := ec.State.Payload
	switch {
	case !codec.HasBody(in.Method):
		_ = payload.Close()
		payload = nil
	case payload == nil && !codec.IsEmpty(in.Body):
		payload = codec.Raw(in.Body)
	}

	ctx, span := c.tracer.Start(ec.Context(), "gateway.upstream",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(tracing.UpstreamAttributes(in.Method, url, ec.State.Target, ec.ID)...),
	)
	defer span.End()

	var body io.Reader
	if payload != nil {
		body = payload.Body
	}

	req, err := http.NewRequestWithContext(ctx, in.Method, url, body)
	if err != nil {
		_ = payload.Close()
		tracing.SetError(span, err)
		return fmt.Errorf("build upstream request: %w", err)
	}
	if payload != nil && payload.Length >= 0 {
		req.ContentLength = payload.Length
	}

	for name, value := range in.Headers {
		req.Header.Set(name, value)
	}
	if payload != nil && payload.ContentType != "" {
		req.Header.Set("Content-Type", payload.ContentType)
	}
	tracing.Inject(ctx, req.Header)

	resp, err := c.transport.Do(req)
	if err != nil {
		tracing.SetError(span, err)
		return fmt.Errorf("upstream %s %s: %w", in.Method, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	if err != nil {
		tracing.SetError(span, err)
		return fmt.Errorf("read upstream response: %w", err)
	}
	if int64(len(raw)) > c.maxResponseBytes {
		return fmt.Errorf("upstream response exceeds %d bytes", c.maxResponseBytes)
	}

	headers := resp.Header.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	encoding := headers.Get("Content-Encoding")
	decoded, ok, err := decodeContent(encoding, raw)
	if err != nil {
		tracing.SetError(span, err)
		return fmt.Errorf("decode %s upstream response: %w", encoding, err)
	}
	if ok {
		headers.Del("Content-Encoding")
		headers.Del("Content-Length")
	} else if encoding != "" {
		c.logger.Warn("upstream content encoding not supported, forwarding raw body",
			"encoding", encoding,
			"path", in.Path,
			"target", ec.State.Target,
		)
	}

	span.SetAttributes(attribute.Int(tracing.AttrHTTPStatusCode, resp.StatusCode))
	if resp.StatusCode >= 500 {
		span.SetStatus(codes.Error, resp.Status)
	}

	ec.Output = &Response{
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		Headers:    headers,
		Body:       decoded,
	}
	return nil
}

// decodeContent reverses a Content-Encoding. ok is false when the encoding
// is absent or unsupported, in which case raw is returned unchanged.
func decodeContent(encoding string, raw []byte) (out []byte, ok bool, err error) {
	enc := strings.ToLower(strings.TrimSpace(encoding))
	if enc == "" || enc == "identity" {
		return raw, false, nil
	}
	if len(raw) == 0 {
		return raw, true, nil
	}

	switch enc {
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, false, err
		}
		defer zr.Close()
		out, err = io.ReadAll(zr)
		return out, err == nil, err

	case "deflate":
		// Servers disagree on whether deflate means zlib or raw DEFLATE.
		if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
			defer zr.Close()
			out, err = io.ReadAll(zr)
			return out, err == nil, err
		}
		fr := flate.NewReader(bytes.NewReader(raw))
		defer fr.Close()
		out, err = io.ReadAll(fr)
		return out, err == nil, err

	case "zstd":
		out, err = zstdDecoder.DecodeAll(raw, nil)
		return out, err == nil, err

	default:
		return raw, false, nil
	}
}

func statusText(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	if text := strings.TrimSpace(strings.TrimPrefix(resp.Status, code)); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
