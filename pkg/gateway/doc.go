// Package gateway implements the proxy core: a fixed pipeline of stages
// wrapped around a single upstream call.
//
// # Pipeline
//
// Every call to Core.Request runs the stages below in order. Code before a
// stage's next() runs on the way in, code after it runs on the way out:
//
//	copy-state-to-output     request time and X-Runtime onto the response
//	request-timer            requestStartTime / requestTime
//	target-resolution        configured or dynamic upstream
//	access-log               => and <= lines, journal record
//	request-counter          process-wide all/fail counters
//	response-cache           success and failure caching for GET/HEAD
//	fatal-error-catcher      status/message defaults, fail count, fatal TTL
//	status-error-normalizer  structured body for non-2xx upstream replies
//	request-header-sanitizer drop host, origin, referer, accept-encoding
//	response-header-fixup    X-Runtime, drop transfer/content-encoding
//	body-recode-urlencoded   JSON body to a query string
//	body-recode-formdata     JSON body and files to multipart
//	(terminal)               the upstream HTTP call
//
// The cache stage wraps the fatal-error-catcher so failures are memoized as
// well as successes, which keeps a broken upstream from being hammered by
// identical requests.
//
// # Usage
//
//	core, err := gateway.New(gateway.Config{
//	    Target: "https://api.example.com",
//	    Cache:  &gateway.CacheConfig{OK: 5 * time.Second, Error: 5 * time.Second, Fatal: 5 * time.Second},
//	}, gateway.Options{})
//	if err != nil {
//	    return err
//	}
//	resp, err := core.Request(ctx, &gateway.Request{Method: "GET", Path: "/users"})
//
// Upstream non-2xx replies are returned as responses. Only gateway failures
// (network, encoding, configuration) are returned as errors, typed as *Error.
package gateway
