package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"
)

// TokenPair is the body of a successful refresh. Refresh is set only when
// the server rotates refresh tokens.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// refreshFlight is one in-progress token refresh. token and err are written
// once, before done is closed.
type refreshFlight struct {
	done    chan struct{}
	token   string
	err     error
	waiters []*waiter // guarded by Client.mu
}

// waiter is a request queued behind a running flight. finish hands it the
// new token on release and waits for ack before releasing the next one.
type waiter struct {
	release chan string
	ack     chan struct{}
	gone    <-chan struct{}
}

func (f *refreshFlight) enqueue(ctx context.Context) *waiter {
	w := &waiter{
		release: make(chan string, 1),
		ack:     make(chan struct{}),
		gone:    ctx.Done(),
	}
	f.waiters = append(f.waiters, w)
	return w
}

// acquireToken returns the access token a 401'd request should replay with.
// sent is the token that request carried. The caller must invoke dispatched
// once its replay has been sent; queued requests are released one at a time
// in arrival order, and the request that started the flight goes last.
//
// Under c.mu a caller either joins the running flight, picks up a token a
// finished flight already stored, or starts a new flight. A request can
// therefore never trigger a second refresh for the token it was rejected with.
func (c *Client) acquireToken(ctx context.Context, sent string) (token string, dispatched func(), err error) {
	c.mu.Lock()
	if f := c.flight; f != nil {
		w := f.enqueue(ctx)
		c.mu.Unlock()
		c.logger.Debug("waiting on token refresh")
		token, err = w.wait(ctx, f)
		if err != nil {
			return "", nil, err
		}
		return token, sync.OnceFunc(func() { close(w.ack) }), nil
	}
	if current := c.store.AccessToken(); current != "" && current != sent {
		c.mu.Unlock()
		c.logger.Debug("access token already rotated, replaying")
		return current, func() {}, nil
	}
	f := &refreshFlight{done: make(chan struct{})}
	c.flight = f
	c.mu.Unlock()

	// The refresh outlives the caller that started it; others may be waiting.
	go c.runRefresh(context.WithoutCancel(ctx), f)
	token, err = f.wait(ctx)
	if err != nil {
		return "", nil, err
	}
	return token, func() {}, nil
}

// Refresh forces a token refresh, joining one already in flight, and
// returns the new access token.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	token, dispatched, err := c.acquireToken(ctx, c.store.AccessToken())
	if errors.Is(err, errNoRefreshToken) {
		return "", &RefreshError{Err: err}
	}
	if err != nil {
		return "", err
	}
	dispatched()
	return token, nil
}

func (f *refreshFlight) wait(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		if f.err != nil {
			return "", f.err
		}
		return f.token, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// wait blocks until w is released, the flight fails, or ctx ends. On
// success done closes only after every live waiter was released, so done
// is read for the error alone.
func (w *waiter) wait(ctx context.Context, f *refreshFlight) (string, error) {
	select {
	case token := <-w.release:
		return token, nil
	case <-f.done:
		if f.err != nil {
			return "", f.err
		}
		return "", ctx.Err()
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Client) runRefresh(ctx context.Context, f *refreshFlight) {
	start := time.Now()
	token, err := c.refresh(ctx)
	waiters := c.finish(f, token, err)

	c.hooks.OnRefresh(ctx, RefreshInfo{
		Waiters:  waiters,
		Duration: time.Since(start),
		Skipped:  errors.Is(err, errNoRefreshToken),
		Err:      err,
	})
}

// finish publishes the flight outcome. On success each waiter is released
// in queue order and sends its replay before the next one is released;
// waiters whose context ended are skipped. On failure the queue is
// discarded and every participant reads the error after done closes.
func (c *Client) finish(f *refreshFlight, token string, err error) int {
	f.token, f.err = token, err

	c.mu.Lock()
	if c.flight == f {
		c.flight = nil
	}
	waiters := f.waiters
	f.waiters = nil
	c.mu.Unlock()

	if err == nil {
		for _, w := range waiters {
			w.release <- token
			select {
			case <-w.ack:
			case <-w.gone:
			}
		}
	}
	close(f.done)
	return len(waiters)
}

// refresh exchanges the stored refresh token for a new access token. It
// talks to the transport directly so the exchange never re-enters the
// pipeline. Any failure clears stored credentials.
func (c *Client) refresh(ctx context.Context) (string, error) {
	refreshToken := c.store.RefreshToken()
	if refreshToken == "" {
		c.logger.Debug("no refresh token, clearing credentials")
		c.store.ClearAuth()
		return "", errNoRefreshToken
	}

	ctx, cancel := context.WithTimeout(ctx, c.refreshTimeout)
	defer cancel()

	body, err := json.Marshal(refreshRequest{Refresh: refreshToken})
	if err != nil {
		c.store.ClearAuth()
		return "", &RefreshError{Err: err}
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	header.Set("Content-Type", "application/json")
	header.Set("User-Agent", c.userAgent)

	resp, err := c.transport.RoundTrip(ctx, &Request{
		Method: http.MethodPost,
		URL:    c.buildURL(RefreshPath),
		Header: header,
		Body:   body,
	})
	if err != nil {
		c.store.ClearAuth()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = &TimeoutError{Timeout: c.refreshTimeout, Err: err}
		}
		return "", &RefreshError{Err: err}
	}
	if !resp.OK() {
		c.store.ClearAuth()
		return "", &RefreshError{Err: &StatusError{Response: resp}}
	}

	var pair TokenPair
	if err := resp.UnmarshalData(&pair); err != nil {
		c.store.ClearAuth()
		return "", &RefreshError{Err: err}
	}
	if pair.Access == "" {
		c.store.ClearAuth()
		return "", &RefreshError{Err: errors.New("refresh response has no access token")}
	}

	c.store.SetTokens(pair.Access, pair.Refresh)
	c.logger.Debug("access token refreshed", "rotated_refresh", pair.Refresh != "")
	return pair.Access, nil
}
