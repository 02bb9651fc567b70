package handlers

import (
	"context"

	"relayhq/relay/pkg/gateway"
	"relayhq/relay/pkg/relay"
)

// Requester executes a logical request. *relay.Server and *routing.Router
// implement it.
type Requester interface {
	Request(ctx context.Context, req *gateway.Request) (*gateway.Response, error)
}

// ClientRequester wraps a logical request in an envelope. *relay.Client
// implements it.
type ClientRequester interface {
	Request(ctx context.Context, req *gateway.Request, opts relay.RequestOptions) (*gateway.Response, error)
}

// RequesterFunc adapts a function to Requester.
type RequesterFunc func(ctx context.Context, req *gateway.Request) (*gateway.Response, error)

// Request calls f.
func (f RequesterFunc) Request(ctx context.Context, req *gateway.Request) (*gateway.Response, error) {
	return f(ctx, req)
}
