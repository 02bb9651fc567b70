package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"relayhq/relay/pkg/codec"
	"relayhq/relay/pkg/envelope"
	"relayhq/relay/pkg/gateway"
	"relayhq/relay/pkg/pipeline"
	"relayhq/relay/pkg/telemetry/logging"
)

// maxDiagnosticBytes bounds the upstream error body logged by the server.
const maxDiagnosticBytes = 4 << 10

// Server stage names, in execution order.
const (
	StageDiagnostics   = "diagnostics"
	StageOutcomeLog    = "outcome-log"
	StageUnwrap        = "unwrap-envelope"
	StageHandshake     = "handshake"
	StageResolveTarget = "resolve-target"
	StageDecodeBody    = "decode-body"
)

// ServerConfig configures a Server.
type ServerConfig struct {
	// Target is the real upstream.
	Target string

	// EnableDynamicTarget honors attributes.target from envelopes.
	EnableDynamicTarget bool

	// Cache enables response caching in the server's core.
	Cache *gateway.CacheConfig

	// Headers are added to every upstream call after the envelope headers.
	Headers map[string]string

	// Version is reported in the User-Agent header.
	Version string

	// Validator gates every envelope. Required.
	Validator HandshakeValidator
}

// Server is the envelope consumer. It is safe for concurrent use.
type Server struct {
	config     ServerConfig
	core       *gateway.Core
	engine     *pipeline.Engine[*exchange]
	logger     *slog.Logger
	handshakes HandshakeRecorder
	now        func() time.Time
}

// exchange is the state of one envelope execution. The handshake lives here
// and never on the Server.
type exchange struct {
	ctx       context.Context
	in        *gateway.Request
	env       *envelope.Envelope
	handshake *envelope.HandShake
	target    string
	out       *gateway.Request
	resp      *gateway.Response
	start     time.Time
}

// NewServer creates a server. It fails without a handshake validator.
func NewServer(cfg ServerConfig, opts gateway.Options) (*Server, error) {
	if cfg.Validator == nil {
		return nil, ErrNoValidator
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	core, err := gateway.New(gateway.Config{
		Target:              cfg.Target,
		Cache:               cfg.Cache,
		EnableDynamicTarget: cfg.EnableDynamicTarget,
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("relay server: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		config: cfg,
		core:   core,
		logger: logger.With("component", "relay.server"),
		now:    now,
	}
	s.handshakes, _ = opts.Metrics.(HandshakeRecorder)

	s.engine = pipeline.New(s.forward,
		pipeline.Stage[*exchange]{Name: StageDiagnostics, Run: s.diagnostics},
		pipeline.Stage[*exchange]{Name: StageOutcomeLog, Run: s.logOutcome},
		pipeline.Stage[*exchange]{Name: StageUnwrap, Run: s.unwrap},
		pipeline.Stage[*exchange]{Name: StageHandshake, Run: s.checkHandshake},
		pipeline.Stage[*exchange]{Name: StageResolveTarget, Run: s.resolveTarget},
		pipeline.Stage[*exchange]{Name: StageDecodeBody, Run: s.decodeBody},
	)
	return s, nil
}

// Core returns the core that talks to the real upstream.
func (s *Server) Core() *gateway.Core {
	return s.core
}

// Stages returns the server stage names in execution order.
func (s *Server) Stages() []string {
	return s.engine.Names()
}

// Request handles one inbound envelope post. in.Body is the envelope and
// in.Files carries the uploads of a multipart envelope.
func (s *Server) Request(ctx context.Context, in *gateway.Request) (*gateway.Response, error) {
	if in == nil {
		return nil, errors.New("relay server: nil request")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	x := &exchange{ctx: ctx, in: in, start: s.now()}
	if err := s.engine.Execute(x); err != nil {
		return nil, err
	}
	return x.resp, nil
}

func (s *Server) diagnostics(x *exchange, next pipeline.Next) error {
	err := next()
	if err != nil || x.resp == nil || x.resp.OK() {
		return err
	}

	body := x.resp.Body
	truncated := len(body) > maxDiagnosticBytes
	if truncated {
		body = body[:maxDiagnosticBytes]
	}
	s.logger.WarnContext(x.ctx, "upstream error response",
		"status", x.resp.Status,
		"method", x.out.Method,
		"path", x.out.Path,
		"target", x.target,
		"body", string(body),
		"truncated", truncated,
	)
	return nil
}

func (s *Server) logOutcome(x *exchange, next pipeline.Next) error {
	err := next()

	method, path := x.in.Method, x.in.Path
	if x.env != nil {
		method, path = x.env.Values.Method, x.env.Values.Path
	}
	status := gateway.StatusOf(err)
	if err == nil && x.resp != nil {
		status = x.resp.Status
	}
	elapsed := s.now().Sub(x.start)

	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}
	attrs := []any{
		"status", status,
		"target", x.target,
		"duration_ms", elapsed.Milliseconds(),
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	s.logger.Log(x.ctx, level, fmt.Sprintf("<= %s %s %d +%dms", method, path, status, elapsed.Milliseconds()), attrs...)
	return err
}

func (s *Server) unwrap(x *exchange, next pipeline.Next) error {
	env, err := envelope.Parse(x.in.Body)
	if err != nil {
		return &gateway.Error{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
			Method:  x.in.Method,
			Path:    x.in.Path,
			Err:     err,
		}
	}

	if !s.config.EnableDynamicTarget && env.Attributes.Target != "" {
		s.logger.DebugContext(x.ctx, "dynamic target ignored", "target", env.Attributes.Target)
		env.Attributes.Target = ""
	}

	x.env = env
	x.handshake = env.Attributes.HandShake
	return next()
}

func (s *Server) checkHandshake(x *exchange, next pipeline.Next) error {
	if err := s.config.Validator.ValidateHandshake(x.ctx, x.env.Attributes); err != nil {
		s.recordHandshake(HandshakeRejected)

		rejected := rejection(err)
		rejected.Method = x.env.Values.Method
		rejected.Path = x.env.Values.Path
		s.logger.WarnContext(x.ctx, "handshake rejected",
			"app_id", appID(x.handshake),
			"status", rejected.Status,
			"error", err,
		)
		return rejected
	}
	s.recordHandshake(HandshakeAccepted)

	if id := appID(x.handshake); id != "" {
		x.ctx = logging.WithAppID(x.ctx, id)
	}
	return next()
}

func (s *Server) resolveTarget(x *exchange, next pipeline.Next) error {
	x.target = gateway.Resolve(s.config.Target, x.env.Attributes.Target, s.config.EnableDynamicTarget)
	if x.target == "" {
		return &gateway.Error{
			Status: http.StatusInternalServerError,
			Method: x.env.Values.Method,
			Path:   x.env.Values.Path,
			Err:    gateway.ErrNoTarget,
		}
	}
	return next()
}

func (s *Server) decodeBody(x *exchange, next pipeline.Next) error {
	v := x.env.Values

	headers := make(map[string]string, len(v.Headers)+len(s.config.Headers)+1)
	for k, val := range v.Headers {
		headers[k] = val
	}
	for k, val := range s.config.Headers {
		setHeader(headers, k, val)
	}
	setHeader(headers, "user-agent", "relay-server/"+s.config.Version)

	out := &gateway.Request{
		Method:  v.Method,
		Path:    v.Path,
		Headers: headers,
		Target:  x.target,
	}
	if codec.HasBody(v.Method) {
		out.Body = v.RawBody()
		if v.IsMultipart() {
			out.Files = x.in.Files
		}
	}
	x.out = out
	return next()
}

// forward is the terminal step: the real request goes through the core.
func (s *Server) forward(x *exchange) error {
	resp, err := s.core.Request(x.ctx, x.out)
	if err != nil {
		return err
	}
	x.resp = resp
	return nil
}

func (s *Server) recordHandshake(result string) {
	if s.handshakes != nil {
		s.handshakes.RecordHandshake(result)
	}
}

// rejection maps a validator error to the failure returned to the caller:
// typed 4xx errors keep their status, anything else becomes 403.
func rejection(err error) *gateway.Error {
	var ge *gateway.Error
	if errors.As(err, &ge) && ge.Status >= 400 && ge.Status < 500 {
		out := *ge
		return &out
	}
	return gateway.Forbidden(err.Error(), fmt.Errorf("%w: %w", gateway.ErrHandshakeRejected, err))
}

func appID(hs *envelope.HandShake) string {
	if hs == nil {
		return ""
	}
	return hs.AppID
}
