// Package logging builds the relay's slog.Logger.
//
// New returns a *slog.Logger whose handler writes JSON or text, adds the
// request id and app id carried by the context, and masks credentials:
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
//	ctx = logging.WithRequestID(ctx, id)
//	logger.InfoContext(ctx, "forwarded", "authorization", "Bearer abc")
//	// {"level":"INFO","msg":"forwarded","request_id":"...","authorization":"Bear***"}
//
// Attributes whose key names a credential (token, secret, authorization,
// cookie and similar) are masked outright. Other string values pass through
// regular expressions for bearer and basic credentials, handshake app tokens
// and token query parameters, plus any telemetry.logging.redact_patterns.
package logging
