/*
Package auth provides the broker's built-in access checks.

Two checks are offered. AppRegistry validates the handshake carried inside
every envelope: the app id must be registered and enabled, the app token
must match, the handshake timestamp must be fresh, and a requested dynamic
target must be one the app is allowed to use. TokenMiddleware guards the
envelope endpoint itself with a transport token read from a header or query
parameter, before the envelope is read.

# Handshake validation

	registry := auth.NewAppRegistry([]*auth.App{
		{ID: "billing", Token: "s3cret", Targets: []string{"https://billing.internal"}},
	}, auth.RegistryConfig{MaxSkew: 5 * time.Minute})

	srv, err := relay.NewServer(relay.ServerConfig{
		Target:    "https://api.internal",
		Validator: registry,
	}, gateway.Options{})

Rejections are returned as *gateway.Error values with status 403 that wrap
gateway.ErrHandshakeRejected and one of the sentinel errors of this package,
so callers can tell a stale handshake from a bad token with errors.Is.

Validators compose with Chain; the first rejection wins.

# Transport tokens

	mw := auth.NewTokenMiddleware([]string{"broker-token"}, []auth.TokenSource{
		{Type: "header", Name: "Authorization", Scheme: "Bearer"},
	}, logger)
	mux.Handle("/api/relay", mw.Handle(relayHandler))

Token values and app tokens are never logged.
*/
package auth
