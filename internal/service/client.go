// Package service holds the HTTP clients the stores use to reach the backend.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/uwscope/scope-web-sub000/internal/platform/metrics"
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration

	// FixtureFallback answers the endpoints that have no backend yet with
	// generated data after FixtureDelay. Development only.
	FixtureFallback bool
	FixtureDelay    time.Duration

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
	Logger     zerolog.Logger
	Metrics    *metrics.Collector
}

// Client is the shared HTTP layer under every service. It attaches the
// current bearer token to each request, retries idempotent reads on server
// errors, and trips a circuit breaker when the backend keeps failing.
type Client struct {
	rc      *resty.Client
	breaker *gobreaker.CircuitBreaker[*resty.Response]
	logger  zerolog.Logger
	metrics *metrics.Collector

	token atomic.Value // string

	mu             sync.RWMutex
	onUnauthorized func(err error)

	fixtures     bool
	fixtureDelay time.Duration
}

func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.RetryWait == 0 {
		opts.RetryWait = 200 * time.Millisecond
	}

	rc := resty.New()
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	}
	rc.SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(4*opts.RetryWait).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		AddRetryCondition(retryIdempotent)

	c := &Client{
		rc:           rc,
		logger:       opts.Logger.With().Str("component", "service").Logger(),
		metrics:      opts.Metrics,
		fixtures:     opts.FixtureFallback,
		fixtureDelay: opts.FixtureDelay,
	}
	c.token.Store("")

	rc.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if t, _ := c.token.Load().(string); t != "" {
			r.SetAuthToken(t)
		}
		return nil
	})

	c.breaker = gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        "scope-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})

	return c
}

// retryIdempotent retries GETs that failed in transport or with a 5xx.
func retryIdempotent(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
		return false
	}
	return err != nil || r.StatusCode() >= http.StatusInternalServerError
}

// ApplyAuth swaps the bearer token attached to every subsequent request. An
// empty token sends requests unauthenticated.
func (c *Client) ApplyAuth(token string) {
	c.token.Store(token)
}

// OnUnauthorized registers the callback run when the backend answers 401 or
// 403. The client never signs the user out itself.
func (c *Client) OnUnauthorized(cb func(err error)) {
	c.mu.Lock()
	c.onUnauthorized = cb
	c.mu.Unlock()
}

// Do sends body (when non-nil) and decodes a successful response into out
// (when non-nil). Errors are *HTTPError, *ConflictError, or wrap ErrUnavailable.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.breaker.Execute(func() (*resty.Response, error) {
		req := c.rc.R().SetContext(ctx)
		if body != nil {
			req.SetBody(body)
		}
		resp, err := req.Execute(method, path)
		if err != nil {
			return resp, err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return resp, newHTTPError(method, path, resp.StatusCode(), resp.Body())
		}
		return resp, nil
	})
	if err != nil {
		var he *HTTPError
		if errors.As(err, &he) {
			return he
		}
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return fmt.Errorf("%s %s: %w: %v", method, path, ErrUnavailable, err)
	}

	status := resp.StatusCode()
	switch {
	case status >= 200 && status < 300:
		if out == nil || len(resp.Body()) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
		return nil

	case status == http.StatusConflict:
		if current, ok := parseConflict(resp.Body()); ok {
			return &ConflictError{Method: method, Path: path, Current: current}
		}
	}

	he := newHTTPError(method, path, status, resp.Body())
	if he.Unauthorized() {
		c.mu.RLock()
		cb := c.onUnauthorized
		c.mu.RUnlock()
		if cb != nil {
			cb(he)
		}
	}
	return he
}

// GetJSON fetches an untyped payload and hydrates its dates.
func (c *Client) GetJSON(ctx context.Context, path string) (any, error) {
	var raw any
	if err := c.Do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return HydrateDates(raw), nil
}

func send[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var out T
	err := c.Do(ctx, method, path, body, &out)
	return out, err
}
