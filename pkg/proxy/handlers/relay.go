package handlers

import (
	"context"
	"log/slog"
	"maps"
	"net/http"
	"strings"

	"relayhq/relay/pkg/codec"
	"relayhq/relay/pkg/gateway"
	"relayhq/relay/pkg/proxy"
	"relayhq/relay/pkg/relay"
	"relayhq/relay/pkg/telemetry/tracing"
)

// strippedResponseHeaders are removed from routed responses so an upstream
// page policy never applies to the relay's own origin.
var strippedResponseHeaders = []string{"Content-Security-Policy"}

// ClientConfig configures the client-mode handler.
type ClientConfig struct {
	// Prefix is the local path prefix that is relayed. It is removed from
	// the path before wrapping. An empty prefix relays everything.
	Prefix string

	// ServerHeaders are added to every broker call.
	ServerHeaders map[string]string

	// DataHeaders are added to every wrapped request.
	DataHeaders map[string]string

	// Decode bounds inbound bodies and names the upload spool directory.
	Decode codec.DecodeOptions

	Logger *slog.Logger
}

// NewClientHandler relays requests under cfg.Prefix through client. Other
// requests go to next, or get a 404 when next is nil.
func NewClientHandler(cfg ClientConfig, client ClientRequester, next http.Handler) http.Handler {
	logger := componentLogger(cfg.Logger, "handlers.client")
	prefix := strings.TrimSuffix(cfg.Prefix, "/")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !hasPathPrefix(r.URL.Path, prefix) {
			fallThrough(w, r, next)
			return
		}

		serve(w, r, cfg.Decode, logger, func(ctx context.Context, req *gateway.Request) (*gateway.Response, error) {
			req.Path = stripPrefix(req.Path, prefix)

			serverHeaders := maps.Clone(cfg.ServerHeaders)
			if serverHeaders == nil {
				serverHeaders = make(map[string]string, 2)
			}
			tracing.InjectToMap(ctx, serverHeaders)

			return client.Request(ctx, req, relay.RequestOptions{
				ServerHeaders: serverHeaders,
				DataHeaders:   cfg.DataHeaders,
			})
		})
	})
}

// ServerConfig configures the server-mode handler.
type ServerConfig struct {
	// Method and Endpoint identify envelope posts.
	Method   string
	Endpoint string

	Decode codec.DecodeOptions
	Logger *slog.Logger
}

// NewServerHandler hands envelope posts to server. Any other request goes
// to next, or gets a 404 when next is nil.
func NewServerHandler(cfg ServerConfig, server Requester, next http.Handler) http.Handler {
	logger := componentLogger(cfg.Logger, "handlers.server")
	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodPost
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method || r.URL.Path != cfg.Endpoint {
			fallThrough(w, r, next)
			return
		}
		serve(w, r, cfg.Decode, logger, server.Request)
	})
}

// RouterConfig configures the router-mode handler.
type RouterConfig struct {
	Decode codec.DecodeOptions
	Logger *slog.Logger
}

// NewRouterHandler forwards every request through router. When no rule
// matches, the request goes to next; with a nil next the 404 is written.
func NewRouterHandler(cfg RouterConfig, router Requester, next http.Handler) http.Handler {
	logger := componentLogger(cfg.Logger, "handlers.router")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := proxy.FromHTTPRequest(r, cfg.Decode)
		if err != nil {
			proxy.WriteError(w, err)
			return
		}
		defer release(logger, req)

		resp, err := router.Request(r.Context(), req)
		if err != nil {
			if gateway.IsNotFound(err) && next != nil {
				next.ServeHTTP(w, r)
				return
			}
			proxy.WriteError(w, err)
			return
		}

		for _, name := range strippedResponseHeaders {
			resp.Headers.Del(name)
		}
		proxy.WriteResponse(w, resp)
	})
}

// serve converts r, runs do and writes the outcome.
func serve(w http.ResponseWriter, r *http.Request, decode codec.DecodeOptions, logger *slog.Logger,
	do func(ctx context.Context, req *gateway.Request) (*gateway.Response, error)) {
	req, err := proxy.FromHTTPRequest(r, decode)
	if err != nil {
		logger.DebugContext(r.Context(), "rejected request body", "path", r.URL.Path, "error", err)
		proxy.WriteError(w, err)
		return
	}
	defer release(logger, req)

	resp, err := do(r.Context(), req)
	if err != nil {
		proxy.WriteError(w, err)
		return
	}
	proxy.WriteResponse(w, resp)
}

func release(logger *slog.Logger, req *gateway.Request) {
	if err := proxy.Release(req); err != nil {
		logger.Warn("failed to remove spooled uploads", "error", err)
	}
}

func fallThrough(w http.ResponseWriter, r *http.Request, next http.Handler) {
	if next != nil {
		next.ServeHTTP(w, r)
		return
	}
	proxy.WriteError(w, gateway.NotFound(r.Method, r.URL.RequestURI()))
}

// hasPathPrefix reports whether path is prefix or lies below it.
func hasPathPrefix(path, prefix string) bool {
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// stripPrefix removes prefix from a request URI, keeping the query.
func stripPrefix(uri, prefix string) string {
	rest := strings.TrimPrefix(uri, prefix)
	if rest == "" || rest[0] == '?' {
		return "/" + rest
	}
	return rest
}

func componentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", component)
}
