package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// StatusError is a non-2xx response the pipeline did not recover from.
// The response is passed through untouched.
type StatusError struct {
	Response *Response
}

func (e *StatusError) Error() string {
	code := e.StatusCode()
	if text := http.StatusText(code); text != "" {
		return fmt.Sprintf("request failed: %d %s", code, text)
	}
	return fmt.Sprintf("request failed: HTTP %d", code)
}

// StatusCode returns the HTTP status, or 0 without a response.
func (e *StatusError) StatusCode() int {
	if e.Response == nil {
		return 0
	}
	return e.Response.StatusCode
}

// TimeoutError reports that a single call exceeded the per-call deadline.
type TimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timed out after %s", e.Timeout)
}

func (e *TimeoutError) Unwrap() []error {
	return []error{context.DeadlineExceeded, e.Err}
}

// RefreshError reports a failed token refresh. Every request waiting on the
// refresh receives the same RefreshError.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return "token refresh failed: " + e.Err.Error()
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// errNoRefreshToken ends a refresh flight without a network call.
var errNoRefreshToken = errors.New("no refresh token stored")

// IsStatus reports whether err carries a response with the given status.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode() == code
}
