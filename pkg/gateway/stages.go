package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"relayhq/relay/pkg/cache"
	"relayhq/relay/pkg/codec"
	"relayhq/relay/pkg/pipeline"
)

type stage = pipeline.Stage[*ExecutionContext]

// Stage names, in execution order.
const (
	StageCopyStateToOutput      = "copy-state-to-output"
	StageRequestTimer           = "request-timer"
	StageTargetResolution       = "target-resolution"
	StageAccessLog              = "access-log"
	StageRequestCounter         = "request-counter"
	StageResponseCache          = "response-cache"
	StageFatalErrorCatcher      = "fatal-error-catcher"
	StageStatusErrorNormalizer  = "status-error-normalizer"
	StageRequestHeaderSanitizer = "request-header-sanitizer"
	StageResponseHeaderFixup    = "response-header-fixup"
	StageBodyRecodeURLEncoded   = "body-recode-urlencoded"
	StageBodyRecodeFormData     = "body-recode-formdata"
)

// stages returns the fixed stage list. The order is part of the contract.
func (c *Core) stages() []stage {
	return []stage{
		{Name: StageCopyStateToOutput, Run: c.copyStateToOutput},
		{Name: StageRequestTimer, Run: c.requestTimer},
		{Name: StageTargetResolution, Run: c.resolveTarget},
		{Name: StageAccessLog, Run: c.accessLog},
		{Name: StageRequestCounter, Run: c.countRequest},
		{Name: StageResponseCache, Run: c.cacheResponse},
		{Name: StageFatalErrorCatcher, Run: c.catchFatal},
		{Name: StageStatusErrorNormalizer, Run: c.normalizeStatusError},
		{Name: StageRequestHeaderSanitizer, Run: c.sanitizeRequestHeaders},
		{Name: StageResponseHeaderFixup, Run: c.fixupResponseHeaders},
		{Name: StageBodyRecodeURLEncoded, Run: c.recodeURLEncoded},
		{Name: StageBodyRecodeFormData, Run: c.recodeFormData},
	}
}

func (c *Core) copyStateToOutput(ec *ExecutionContext, next pipeline.Next) error {
	err := next()

	if ec.Output != nil {
		ec.Output.RequestTime = ec.State.RequestTime
		if ec.Output.Headers == nil {
			ec.Output.Headers = http.Header{}
		}
		ec.Output.Headers.Set("X-Runtime", strconv.FormatInt(ec.State.RequestTime.Milliseconds(), 10))
	}
	return err
}

func (c *Core) requestTimer(ec *ExecutionContext, next pipeline.Next) error {
	ec.State.RequestStartTime = c.now()

	err := next()

	ec.State.RequestTime = c.since(ec.State.RequestStartTime)
	return err
}

func (c *Core) resolveTarget(ec *ExecutionContext, next pipeline.Next) error {
	target := Resolve(c.config.Target, ec.Input.Target, c.config.EnableDynamicTarget)
	if target == "" {
		return &Error{
			Status: http.StatusInternalServerError,
			Method: ec.Input.Method,
			Path:   ec.Input.Path,
			Err:    ErrNoTarget,
		}
	}
	ec.State.Target = target

	return next()
}

func (c *Core) accessLog(ec *ExecutionContext, next pipeline.Next) error {
	in := ec.Input
	c.logger.Debug(fmt.Sprintf("=> %s %s", in.Method, in.Path),
		"request_id", ec.ID,
		"target", ec.State.Target,
	)

	err := next()

	elapsed := c.since(ec.State.RequestStartTime)
	status := StatusOf(err)
	if err == nil && ec.Output != nil {
		status = ec.Output.Status
	}

	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}
	attrs := []any{
		"request_id", ec.ID,
		"target", ec.State.Target,
		"status", status,
		"duration_ms", elapsed.Milliseconds(),
	}
	if ec.State.CacheHit {
		attrs = append(attrs, "cache", "hit")
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	c.logger.Log(ec.Context(), level,
		fmt.Sprintf("<= %s %s %d +%dms", in.Method, in.Path, status, elapsed.Milliseconds()), attrs...)

	c.metrics.RecordRequest(ec.State.Target, in.Method, status, elapsed, ec.State.CacheHit)

	if c.journal != nil {
		c.journal.RecordAccess(AccessEntry{
			ID:       ec.ID,
			Time:     ec.State.RequestStartTime,
			Method:   in.Method,
			Path:     in.Path,
			Target:   ec.State.Target,
			Status:   status,
			Duration: elapsed,
			CacheHit: ec.State.CacheHit,
			Err:      err,
		})
	}

	return err
}

func (c *Core) countRequest(ec *ExecutionContext, next pipeline.Next) error {
	ec.State.Counters = c.counters
	all := c.counters.CountAll()

	now := c.now().UnixNano()
	last := c.lastStats.Load()
	if now-last >= int64(c.statsInterval) && c.lastStats.CompareAndSwap(last, now) {
		c.logger.Info("gateway stats",
			"target", ec.State.Target,
			"all", all,
			"fail", c.counters.Fail(),
		)
	}

	return next()
}

// cacheResponse serves GET and HEAD from the cache. Misses run the rest of
// the chain and store the outcome: 2xx under the ok TTL, other statuses under
// the error TTL. Failures are stored by catchFatal, which this stage wraps.
func (c *Core) cacheResponse(ec *ExecutionContext, next pipeline.Next) error {
	if c.cache == nil {
		return next()
	}
	ec.State.Cache = c.cache

	in := ec.Input
	if in.Method != http.MethodGet && in.Method != http.MethodHead {
		return next()
	}

	key := cache.RequestKey(in.Method, in.Path, ec.State.Target, in.Headers, in.Body,
		cache.KeyOptions{NormalizeHeaders: c.config.Cache.NormalizeHeaders})
	ec.State.CacheKey = key

	if result, ok := c.cache.Get(key); ok {
		c.metrics.RecordCacheLookup(true)
		ec.State.CacheHit = true
		ec.State.RequestTime = c.since(ec.State.RequestStartTime)

		// A replayed failure is not counted again; the fail counter saw the original.
		if result.IsFailure() {
			c.logger.Debug(fmt.Sprintf("%s %s %d +%dms (hit cache)",
				in.Method, in.Path, result.Failure.Status, ec.State.RequestTime.Milliseconds()),
				"request_id", ec.ID)
			return &Error{
				Status:  result.Failure.Status,
				Message: result.Failure.Message,
				Method:  in.Method,
				Path:    in.Path,
				Cached:  true,
			}
		}

		c.logger.Debug(fmt.Sprintf("%s %s %d +%dms (hit cache)",
			in.Method, in.Path, result.Value.Status, ec.State.RequestTime.Milliseconds()),
			"request_id", ec.ID)
		ec.Output = result.Value.Clone()
		return nil
	}
	c.metrics.RecordCacheLookup(false)

	if c.config.Cache.Coalesce {
		return c.coalesce(ec, key, next)
	}

	if err := next(); err != nil {
		return err
	}
	c.store(key, ec.Output)
	return nil
}

// coalesce lets one execution per key reach the upstream while concurrent
// identical misses wait for its outcome.
func (c *Core) coalesce(ec *ExecutionContext, key cache.Key, next pipeline.Next) error {
	resp, err, leader := c.cache.Do(key, func() (*Response, error) {
		if err := next(); err != nil {
			return nil, err
		}
		c.store(key, ec.Output)
		return ec.Output.Clone(), nil
	})
	if err != nil {
		return err
	}
	if !leader {
		ec.Output = resp.Clone()
	}
	return nil
}

func (c *Core) store(key cache.Key, resp *Response) {
	if resp == nil {
		return
	}
	ttl := c.config.Cache.OK
	if !resp.OK() {
		ttl = c.config.Cache.Error
	}
	c.cache.Set(key, resp.Clone(), ttl)
	c.metrics.SetCacheEntries(c.cache.Len())
}

// catchFatal turns any failure of the inner chain, including a panic, into
// an *Error, counts it and memoizes it under the fatal TTL before returning
// it to the caller.
func (c *Core) catchFatal(ec *ExecutionContext, next pipeline.Next) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = c.fatal(ec, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := next(); err != nil {
		return c.fatal(ec, err)
	}
	return nil
}

func (c *Core) fatal(ec *ExecutionContext, cause error) error {
	in := ec.Input
	elapsed := c.since(ec.State.RequestStartTime)
	ec.State.RequestTime = elapsed

	ge := &Error{Method: in.Method, Path: in.Path, Err: cause}
	var typed *Error
	if errors.As(cause, &typed) {
		ge.Status = typed.Status
		ge.Message = typed.Message
	}
	if ge.Status == 0 {
		ge.Status = http.StatusInternalServerError
	}
	if ge.Message == "" {
		ge.Message = fmt.Sprintf("Gateway Error: %v +%dms", cause, elapsed.Milliseconds())
	}

	c.logger.Error(fmt.Sprintf("%s %s %d (Gateway Status Error)", in.Method, in.Path, ge.Status),
		"request_id", ec.ID,
		"target", ec.State.Target,
		"error", cause,
	)

	c.counters.CountFail()
	c.metrics.RecordFailure(ec.State.Target, ge.Status)

	if c.cache != nil && !ec.State.CacheKey.IsZero() {
		c.cache.SetFailure(ec.State.CacheKey, cache.Failure{Status: ge.Status, Message: ge.Message},
			c.config.Cache.Fatal)
		c.metrics.SetCacheEntries(c.cache.Len())
	}

	return ge
}

// statusErrorBody is the structured body of a normalized upstream error.
type statusErrorBody struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	Status     int    `json:"status"`
	Message    string `json:"message"`
	Timestamps int64  `json:"timestamps"`
}

// normalizeStatusError wraps non-JSON non-2xx replies in a structured JSON
// body. The reply is still returned as a response.
func (c *Core) normalizeStatusError(ec *ExecutionContext, next pipeline.Next) error {
	if err := next(); err != nil {
		return err
	}

	resp := ec.Output
	if resp == nil || resp.OK() {
		return nil
	}

	c.counters.CountFail()
	c.metrics.RecordFailure(ec.State.Target, resp.Status)

	if codec.IsJSON(resp.Headers.Get("Content-Type")) {
		return nil
	}

	message := string(resp.Body)
	if message == "" {
		message = resp.StatusText
	}
	body, err := json.Marshal(statusErrorBody{
		Method:     ec.Input.Method,
		Path:       ec.Input.Path,
		Status:     resp.Status,
		Message:    message,
		Timestamps: c.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("encode status error body: %w", err)
	}

	resp.Body = body
	resp.Headers.Set("Content-Type", codec.ContentTypeJSON)
	resp.Headers.Del("Content-Length")
	return nil
}

// sanitizedRequestHeaders are never forwarded upstream.
var sanitizedRequestHeaders = []string{"host", "origin", "referer", "accept-encoding"}

func (c *Core) sanitizeRequestHeaders(ec *ExecutionContext, next pipeline.Next) error {
	deleteHeaders(ec.Input.Headers, sanitizedRequestHeaders...)
	return next()
}

func (c *Core) fixupResponseHeaders(ec *ExecutionContext, next pipeline.Next) error {
	if err := next(); err != nil {
		return err
	}

	if ec.Output != nil {
		ec.Output.Headers.Set("X-Runtime", strconv.FormatInt(c.since(ec.State.RequestStartTime).Milliseconds(), 10))
		ec.Output.Headers.Del("Transfer-Encoding")
		ec.Output.Headers.Del("Content-Encoding")
	}
	return nil
}

func (c *Core) recodeURLEncoded(ec *ExecutionContext, next pipeline.Next) error {
	in := ec.Input
	if ec.State.Payload == nil && codec.HasBody(in.Method) && !codec.IsEmpty(in.Body) &&
		codec.IsURLEncoded(in.Header("Content-Type")) {
		if p, ok := codec.EncodeURLEncoded(in.Body); ok {
			ec.State.Payload = p
		}
	}
	return next()
}

func (c *Core) recodeFormData(ec *ExecutionContext, next pipeline.Next) error {
	in := ec.Input
	if ec.State.Payload == nil && codec.HasBody(in.Method) && !codec.IsEmpty(in.Body) &&
		codec.IsMultipart(in.Header("Content-Type")) {
		p, ok, err := codec.EncodeMultipart(in.Body, in.Files)
		if err != nil {
			return fmt.Errorf("encode multipart body: %w", err)
		}
		if ok {
			// The boundary belongs to the new payload.
			deleteHeaders(in.Headers, "Content-Type")
			ec.State.Payload = p
		}
	}
	return next()
}

func (c *Core) since(t time.Time) time.Duration {
	return c.now().Sub(t)
}
