package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/stockyard/pkg/gateway/cache"
	"github.com/platinummonkey/stockyard/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Options are per-request settings
type Options struct {
	// Params are merged into the query string
	Params url.Values
	// Cache defaults to true for GET and is ignored for other methods
	Cache   *bool
	Headers http.Header

	// Fetch flags. Credentials and Mode only affect the js/wasm transport;
	// Redirect "error" and "manual" are enforced on every platform.
	Credentials string
	Mode        string
	Redirect    string
}

// NoCache returns options that bypass the response cache and deduplication
func NoCache() *Options {
	enabled := false
	return &Options{Cache: &enabled}
}

func (o *Options) cacheEnabled() bool {
	return o.Cache == nil || *o.Cache
}

// Get issues a GET, served from cache or a shared in-flight call when possible
func (c *Client) Get(ctx context.Context, endpoint string, opts *Options) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodGet, endpoint, nil, opts)
}

// Post sends data as JSON, or as multipart when data is *FormData
func (c *Client) Post(ctx context.Context, endpoint string, data any, opts *Options) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodPost, endpoint, data, opts)
}

// Put sends data as JSON, or as multipart when data is *FormData
func (c *Client) Put(ctx context.Context, endpoint string, data any, opts *Options) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodPut, endpoint, data, opts)
}

// Delete issues a DELETE
func (c *Client) Delete(ctx context.Context, endpoint string, opts *Options) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodDelete, endpoint, nil, opts)
}

// Request issues a request. Every failure is returned as *Error.
func (c *Client) Request(ctx context.Context, method, endpoint string, data any, opts *Options) (json.RawMessage, error) {
	if opts == nil {
		opts = &Options{}
	}
	method = strings.ToUpper(method)

	target, err := c.ResolveURL(endpoint, opts.Params)
	if err != nil {
		return nil, &Error{Kind: KindClient, Method: method, URL: endpoint, Message: err.Error(), Err: err}
	}
	key := method + ":" + target

	if method == http.MethodGet {
		return c.get(ctx, key, target, opts)
	}

	if !c.cfg.BackoffAllVerbs {
		return c.send(ctx, method, target, data, opts)
	}
	return c.guarded(ctx, key, method, target, func(ctx context.Context) (json.RawMessage, error) {
		return c.send(ctx, method, target, data, opts)
	})
}

func (c *Client) get(ctx context.Context, key, target string, opts *Options) (json.RawMessage, error) {
	fetch := func(ctx context.Context) (json.RawMessage, error) {
		return c.send(ctx, http.MethodGet, target, nil, opts)
	}

	if !opts.cacheEnabled() {
		return c.guarded(ctx, key, http.MethodGet, target, fetch)
	}

	if entry, ok := c.lookup(ctx, key); ok {
		return clone(entry.Payload), nil
	}

	// The shared call must not die with whichever caller started it
	ch := c.flights.DoChan(key, func() (interface{}, error) {
		payload, err := c.guarded(context.WithoutCancel(ctx), key, http.MethodGet, target, fetch)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(context.WithoutCancel(ctx), cache.Entry{Key: key, Payload: payload, StoredAt: c.now()}); err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("failed to cache response")
		}
		return payload, nil
	})

	select {
	case res := <-ch:
		if res.Shared && c.metrics != nil {
			c.metrics.GatewayDedupedTotal.WithLabelValues(http.MethodGet).Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return clone(res.Val.(json.RawMessage)), nil
	case <-ctx.Done():
		return nil, networkError(http.MethodGet, target, ctx.Err())
	}
}

// lookup returns a fresh cache entry. Stale entries are treated as absent.
func (c *Client) lookup(ctx context.Context, key string) (cache.Entry, bool) {
	entry, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("cache read failed")
	}
	if ok && entry.Fresh(c.now(), c.cfg.CacheTTL) {
		if c.metrics != nil {
			c.metrics.CacheHitsTotal.WithLabelValues(c.store.Name()).Inc()
		}
		return entry, true
	}
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(c.store.Name()).Inc()
	}
	return cache.Entry{}, false
}

// guarded applies the failure back-off around fn
func (c *Client) guarded(ctx context.Context, key, method, target string, fn func(context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	if c.failures.blocked(key, c.now()) {
		if c.metrics != nil {
			c.metrics.GatewayBlockedTotal.WithLabelValues(method).Inc()
		}
		return nil, &Error{Kind: KindBlocked, Method: method, URL: target, Message: MsgBlocked}
	}

	payload, err := fn(ctx)
	if err != nil {
		attempts := c.failures.recordFailure(key, c.now())
		c.logger.WithFields(map[string]interface{}{
			"key":      key,
			"attempts": attempts,
		}).WithError(err).Debug("request failed")
		return nil, err
	}

	c.failures.recordSuccess(key)
	return payload, nil
}

// send performs one network round trip
func (c *Client) send(ctx context.Context, method, target string, data any, opts *Options) (json.RawMessage, error) {
	ctx, span := observability.Tracer().Start(ctx, "gateway "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", target),
		),
	)
	defer span.End()

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	payload, status, err := c.roundTrip(ctx, method, target, data, opts)
	c.observe(method, status, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	return payload, nil
}

func (c *Client) roundTrip(ctx context.Context, method, target string, data any, opts *Options) (json.RawMessage, int, error) {
	req, err := c.newRequest(ctx, method, target, data, opts)
	if err != nil {
		return nil, 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, networkError(method, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 0 {
		return nil, 0, classifyResponse(method, target, 0, nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, networkError(method, target, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		gerr := classifyResponse(method, target, resp.StatusCode, body)
		if gerr.Kind == KindAuth {
			c.clearTokens()
		}
		return nil, resp.StatusCode, gerr
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return json.RawMessage("null"), resp.StatusCode, nil
	}
	if !json.Valid(body) {
		return nil, resp.StatusCode, &Error{
			Kind: KindDecode, Status: resp.StatusCode, Method: method, URL: target,
			Message: "invalid JSON response",
		}
	}
	return json.RawMessage(body), resp.StatusCode, nil
}

func (c *Client) newRequest(ctx context.Context, method, target string, data any, opts *Options) (*http.Request, error) {
	var (
		body        io.Reader
		contentType = "application/json"
	)

	switch d := data.(type) {
	case nil:
	case *FormData:
		buf, ct, err := d.encode()
		if err != nil {
			return nil, &Error{Kind: KindClient, Method: method, URL: target, Message: err.Error(), Err: err}
		}
		body, contentType = buf, ct
	default:
		encoded, err := json.Marshal(d)
		if err != nil {
			return nil, &Error{Kind: KindClient, Method: method, URL: target, Message: "failed to encode request body", Err: err}
		}
		body = bytes.NewReader(encoded)
	}

	ctx = withRedirectPolicy(ctx, opts.Redirect)
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &Error{Kind: KindClient, Method: method, URL: target, Message: err.Error(), Err: err}
	}

	h := req.Header
	h.Set("Content-Type", contentType)
	h.Set("Accept", "application/json")
	h.Set("X-Requested-With", "XMLHttpRequest")

	requestID := observability.GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	h.Set("X-Request-ID", requestID)

	if c.cfg.Origin != "" {
		h.Set("Origin", c.cfg.Origin)
		h.Set("Access-Control-Request-Method", method)
		h.Set("Access-Control-Request-Headers", "Content-Type, Authorization, X-Requested-With")
	}

	setFetchOptions(h, opts)

	for name, values := range opts.Headers {
		h.Del(name)
		for _, v := range values {
			h.Add(name, v)
		}
	}

	if tok, err := c.tokenSource.Token(); err == nil && tok.AccessToken != "" {
		tok.SetAuthHeader(req)
	} else if err != nil && !errors.Is(err, ErrNoToken) {
		c.logger.WithError(err).Warn("failed to read auth token")
	}

	return req, nil
}

// ResolveURL joins relative endpoints onto the base URL and merges params
// into the query string. http(s) endpoints pass through unchanged.
func (c *Client) ResolveURL(endpoint string, params url.Values) (string, error) {
	var u *url.URL
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
		}
		u = parsed
	} else {
		if c.base == nil {
			return "", fmt.Errorf("relative endpoint %q without a base URL", endpoint)
		}
		rel, err := url.Parse(strings.TrimPrefix(endpoint, "/"))
		if err != nil {
			return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
		}
		base := *c.base
		if !strings.HasSuffix(base.Path, "/") {
			base.Path += "/"
		}
		u = base.ResolveReference(rel)
	}

	if len(params) > 0 {
		query := u.Query()
		for k, vs := range params {
			query.Del(k)
			for _, v := range vs {
				query.Add(k, v)
			}
		}
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

func (c *Client) clearTokens() {
	if c.tokens == nil {
		return
	}
	if err := c.tokens.Delete(AllTokenKeys...); err != nil {
		c.logger.WithError(err).Warn("failed to clear auth tokens")
		return
	}
	c.logger.Info("session expired, auth tokens cleared")
}

func (c *Client) observe(method string, status int, elapsed time.Duration, err error) {
	if c.metrics == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	c.metrics.GatewayRequestsTotal.WithLabelValues(method, label).Inc()
	c.metrics.GatewayRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	if err != nil {
		c.metrics.GatewayErrorsTotal.WithLabelValues(method, string(KindOf(err))).Inc()
	}
}

func clone(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}
