package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"relayhq/relay/pkg/codec"
	"relayhq/relay/pkg/envelope"
	"relayhq/relay/pkg/gateway"
)

// DefaultEndpoint is the broker path that accepts envelopes.
const DefaultEndpoint = "/api/relay"

// ClientConfig configures a Client.
type ClientConfig struct {
	// Registry is the broker base URL.
	Registry string

	// Endpoint is the broker path that accepts envelopes.
	Endpoint string

	// Headers are sent to the broker on every call.
	Headers map[string]string

	// ServerHeaders are sent to the broker only, e.g. transport auth.
	ServerHeaders map[string]string

	// DataHeaders are merged into the wrapped request and reach the real
	// upstream.
	DataHeaders map[string]string

	// Handshake is the default identity placed in every envelope.
	Handshake envelope.HandShake

	// Target is the default dynamic target.
	Target string

	// EnableDynamicTarget puts a target into the envelope attributes.
	EnableDynamicTarget bool

	// Version is reported in the User-Agent header.
	Version string
}

// RequestOptions are per-call additions to a ClientConfig.
type RequestOptions struct {
	// Handshake replaces the configured handshake. Its timestamps field is
	// always overwritten.
	Handshake *envelope.HandShake

	// Target is the requested upstream. It is only sent when dynamic
	// targets are enabled.
	Target string

	ServerHeaders map[string]string
	DataHeaders   map[string]string
}

// Client is the envelope author. It is safe for concurrent use.
type Client struct {
	config ClientConfig
	core   *gateway.Core
	logger *slog.Logger
	now    func() time.Time
}

// NewClient creates a client whose core always targets the registry.
func NewClient(cfg ClientConfig, opts gateway.Options) (*Client, error) {
	if cfg.Registry == "" {
		return nil, ErrNoRegistry
	}
	if cfg.Endpoint == "" {
		return nil, ErrNoEndpoint
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	core, err := gateway.New(gateway.Config{Target: cfg.Registry}, opts)
	if err != nil {
		return nil, fmt.Errorf("relay client: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		config: cfg,
		core:   core,
		logger: logger.With("component", "relay.client"),
		now:    now,
	}, nil
}

// Core returns the core that talks to the registry.
func (c *Client) Core() *gateway.Core {
	return c.core
}

// Request wraps req in an envelope and posts it to the registry. A 4xx or
// 5xx reply from the registry is returned as a response whose JSON body
// names the original method and path. Transport failures are returned as
// errors.
func (c *Client) Request(ctx context.Context, req *gateway.Request, opts RequestOptions) (*gateway.Response, error) {
	if req == nil {
		return nil, errors.New("relay client: nil request")
	}

	env := c.Wrap(req, opts)
	body, err := envelope.Marshal(env)
	if err != nil {
		return nil, err
	}

	outer := &gateway.Request{
		Method:  http.MethodPost,
		Path:    c.config.Endpoint,
		Headers: c.registryHeaders(opts),
		Body:    body,
	}
	if env.Values.IsMultipart() {
		setHeader(outer.Headers, "content-type", codec.ContentTypeMultipart)
		outer.Files = req.Files
	}

	c.logger.DebugContext(ctx, fmt.Sprintf("=> %s %s", env.Values.Method, env.Values.Path),
		"registry", c.config.Registry,
		"target", env.Attributes.Target,
	)

	resp, err := c.core.Request(ctx, outer)
	if err != nil {
		return nil, err
	}

	if resp.Status >= http.StatusBadRequest {
		resp.Body = reattach(resp.Body, env.Values.Method, env.Values.Path)
		resp.Headers.Del("Content-Length")
	}
	return resp, nil
}

// Wrap builds the envelope for req. The handshake is stamped with the
// current time and the target is only set when dynamic targets are enabled.
func (c *Client) Wrap(req *gateway.Request, opts RequestOptions) *envelope.Envelope {
	method := strings.ToUpper(req.Method)

	headers := make(map[string]string, len(req.Headers)+len(c.config.DataHeaders)+len(opts.DataHeaders))
	for k, v := range req.Headers {
		headers[k] = v
	}
	for k, v := range c.config.DataHeaders {
		setHeader(headers, k, v)
	}
	for k, v := range opts.DataHeaders {
		setHeader(headers, k, v)
	}

	hs := c.config.Handshake
	if opts.Handshake != nil {
		hs = *opts.Handshake
	}
	now := c.now().UnixMilli()
	hs.Timestamps = now

	env := &envelope.Envelope{
		Attributes: envelope.Attributes{HandShake: &hs},
		Values: envelope.Values{
			Method:  method,
			Path:    req.Path,
			Headers: headers,
		},
		Timestamps: now,
	}

	if c.config.EnableDynamicTarget {
		env.Attributes.Target = firstNonEmpty(opts.Target, req.Target, c.config.Target)
	}
	if codec.HasBody(method) {
		env.Values.Body = codec.WrapBody(req.Body)
	}
	return env
}

func (c *Client) registryHeaders(opts RequestOptions) map[string]string {
	h := make(map[string]string, len(c.config.Headers)+len(c.config.ServerHeaders)+len(opts.ServerHeaders)+2)
	for _, set := range []map[string]string{c.config.Headers, c.config.ServerHeaders, opts.ServerHeaders} {
		for k, v := range set {
			setHeader(h, k, v)
		}
	}
	setHeader(h, "user-agent", "relay-client/"+c.config.Version)
	setHeader(h, "content-type", codec.ContentTypeJSON)
	return h
}

// reattach rewrites the method and path of a structured error body so the
// caller sees its own request rather than the envelope post.
func reattach(body []byte, method, path string) []byte {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		return body
	}
	m, _ := json.Marshal(method)
	p, _ := json.Marshal(path)
	obj["method"] = m
	obj["path"] = p

	out, err := json.Marshal(obj)
	if err != nil {
		return body
	}
	return out
}

// setHeader sets name in h, replacing any entry that differs only in case.
func setHeader(h map[string]string, name, value string) {
	for k := range h {
		if strings.EqualFold(k, name) {
			delete(h, k)
		}
	}
	h[strings.ToLower(name)] = value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
