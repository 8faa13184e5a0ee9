// Package api provides the authenticated HTTP pipeline for the RecruitMate API.
//
// Every request carries the stored bearer token. A 401 triggers at most one
// token refresh shared by all concurrent callers, and a rate-limited response
// is retried once after a jittered backoff.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/recruitmate/recruitmate-cli/internal/ratelimit"
	"github.com/recruitmate/recruitmate-cli/internal/version"
)

const (
	// DefaultTimeout bounds a single transport call.
	DefaultTimeout = 10 * time.Second

	// DefaultRefreshTimeout bounds the token refresh call.
	DefaultRefreshTimeout = 10 * time.Second

	// RefreshPath is the token refresh endpoint.
	RefreshPath = "/auth/token/refresh/"

	// HeaderRequestID correlates replays of one logical request.
	HeaderRequestID = "X-Request-ID"

	// maxRateLimitRetries is the 429 retry budget per logical request.
	maxRateLimitRetries = 1
)

// TokenStore is the credential storage the pipeline reads and rotates.
// Implementations never fail; a missing value is "".
type TokenStore interface {
	AccessToken() string
	RefreshToken() string
	SetTokens(access, refresh string)
	ClearAuth()
}

// Client is the RecruitMate API pipeline.
type Client struct {
	baseURL        string
	store          TokenStore
	transport      Transport
	tracker        *ratelimit.Tracker
	hooks          Hooks
	logger         *slog.Logger
	timeout        time.Duration
	refreshTimeout time.Duration
	backoffBase    time.Duration
	userAgent      string

	mu     sync.Mutex
	flight *refreshFlight
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-call deadline. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRefreshTimeout sets the deadline of the refresh call.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.refreshTimeout = d
		}
	}
}

// WithBackoffBase sets the base delay before a rate-limit retry.
func WithBackoffBase(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.backoffBase = d
		}
	}
}

// WithTransport replaces the HTTP transport.
func WithTransport(t Transport) Option {
	return func(c *Client) {
		if t != nil {
			c.transport = t
		}
	}
}

// WithTracker sets the rate-limit tracker results are published to.
func WithTracker(t *ratelimit.Tracker) Option {
	return func(c *Client) {
		if t != nil {
			c.tracker = t
		}
	}
}

// WithHooks installs observability hooks.
func WithHooks(h Hooks) Option {
	return func(c *Client) {
		if h != nil {
			c.hooks = h
		}
	}
}

// WithLogger sets the debug logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient creates a pipeline for baseURL backed by store.
func NewClient(baseURL string, store TokenStore, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		store:          store,
		transport:      NewHTTPTransport(),
		tracker:        ratelimit.NewTracker(),
		hooks:          NopHooks{},
		logger:         slog.New(slog.DiscardHandler),
		timeout:        DefaultTimeout,
		refreshTimeout: DefaultRefreshTimeout,
		backoffBase:    ratelimit.DefaultBaseDelay,
		userAgent:      version.UserAgent(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Tracker returns the rate-limit tracker.
func (c *Client) Tracker() *ratelimit.Tracker {
	return c.tracker
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body)
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, path, body)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil)
}

// call is one logical request and the recovery steps it has used.
type call struct {
	method    string
	url       string
	body      []byte
	requestID string

	authRetried      bool
	rateLimitRetries int

	// token overrides the store for replays after a refresh.
	token string
	// sent is the access token attached to the latest attempt.
	sent string
	// dispatched releases the next queued replay once this one was sent.
	dispatched func()
}

// Do sends a request through the pipeline. Non-2xx responses it cannot
// recover from come back as *StatusError.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	cl := &call{
		method:    method,
		url:       c.buildURL(path),
		requestID: uuid.NewString(),
	}
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		cl.body = b
	}
	return c.run(ctx, cl)
}

func (c *Client) run(ctx context.Context, cl *call) (*Response, error) {
	for attempt := 1; ; attempt++ {
		resp, err := c.send(ctx, cl, attempt)
		if err != nil {
			return nil, err
		}

		info := RequestInfo{Method: cl.method, URL: cl.url, RequestID: cl.requestID, Attempt: attempt}

		switch {
		case resp.OK():
			if rl := ratelimit.Extract(resp.Header); rl != nil && rl.Remaining > 0 {
				c.tracker.Publish(nil)
			}
			return resp, nil

		case resp.StatusCode == http.StatusUnauthorized && !cl.authRetried:
			cl.authRetried = true
			token, dispatched, err := c.acquireToken(ctx, cl.sent)
			if errors.Is(err, errNoRefreshToken) {
				return nil, &StatusError{Response: resp}
			}
			if err != nil {
				return nil, err
			}
			cl.token = token
			cl.dispatched = dispatched
			c.hooks.OnRetry(ctx, info, "unauthorized", 0)
			continue

		case resp.StatusCode == http.StatusTooManyRequests && cl.rateLimitRetries == 0:
			rl := ratelimit.Extract(resp.Header)
			if rl == nil {
				return nil, &StatusError{Response: resp}
			}
			c.tracker.Publish(rl)

			delay := ratelimit.BackoffDelay(cl.rateLimitRetries, c.backoffBase)
			if !ratelimit.ShouldRetry(cl.rateLimitRetries, maxRateLimitRetries) {
				return nil, &StatusError{Response: resp}
			}
			cl.rateLimitRetries++
			c.logger.Debug("rate limited, backing off",
				"url", cl.url, "delay", delay, "retry_after", rl.RetryAfter, "request_id", cl.requestID)
			c.hooks.OnRetry(ctx, info, "rate_limited", delay)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		return nil, &StatusError{Response: resp}
	}
}

// send performs one attempt of cl under the per-call deadline.
func (c *Client) send(ctx context.Context, cl *call, attempt int) (*Response, error) {
	token := cl.token
	if token == "" {
		token = c.store.AccessToken()
	}
	cl.sent = token

	header := http.Header{}
	header.Set("Accept", "application/json")
	header.Set("User-Agent", c.userAgent)
	header.Set(HeaderRequestID, cl.requestID)
	if cl.body != nil {
		header.Set("Content-Type", "application/json")
	}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	info := RequestInfo{Method: cl.method, URL: cl.url, RequestID: cl.requestID, Attempt: attempt}
	hookCtx := c.hooks.OnRequestStart(ctx, info)
	start := time.Now()

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.transport.RoundTrip(callCtx, &Request{
		Method: cl.method,
		URL:    cl.url,
		Header: header,
		Body:   cl.body,
	})
	if cl.dispatched != nil {
		cl.dispatched()
		cl.dispatched = nil
	}
	if err != nil {
		switch {
		case ctx.Err() != nil:
			err = ctx.Err()
		case errors.Is(callCtx.Err(), context.DeadlineExceeded):
			err = &TimeoutError{Timeout: c.timeout, Err: err}
		}
	}

	result := RequestResult{Duration: time.Since(start), Err: err}
	if resp != nil {
		resp.RequestID = cl.requestID
		result.StatusCode = resp.StatusCode
	}
	c.hooks.OnRequestEnd(hookCtx, info, result)

	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) buildURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
