package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request is a single outbound HTTP exchange as handed to a Transport.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response wraps an API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Data       json.RawMessage
	RequestID  string
}

// UnmarshalData unmarshals the response data into the given value.
func (r *Response) UnmarshalData(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("empty response body (HTTP %d)", r.StatusCode)
	}
	return json.Unmarshal(r.Data, v)
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport performs one HTTP exchange. Implementations must honour ctx
// and return the full response regardless of status code.
type Transport interface {
	RoundTrip(ctx context.Context, req *Request) (*Response, error)
}

// MaxResponseSize caps how much of a response body is read.
const MaxResponseSize = 8 << 20

// ErrResponseTooLarge is returned for bodies over the transport's cap.
var ErrResponseTooLarge = errors.New("response body too large")

// HTTPTransport is the net/http Transport.
type HTTPTransport struct {
	client  *http.Client
	maxBody int64
}

// NewHTTPTransport creates a Transport backed by a pooled http.Client.
// Deadlines come from the request context, so the client has no timeout.
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		maxBody: MaxResponseSize,
	}
}

// RoundTrip sends req and reads the whole body, up to the size cap.
func (t *HTTPTransport) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	if req.Header != nil {
		httpReq.Header = req.Header.Clone()
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(data)) > t.maxBody {
		return nil, fmt.Errorf("%w: more than %d bytes from %s", ErrResponseTooLarge, t.maxBody, req.URL)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Data:       data,
	}, nil
}
