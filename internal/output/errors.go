package output

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"

	"github.com/recruitmate/recruitmate-cli/internal/api"
	"github.com/recruitmate/recruitmate-cli/internal/ratelimit"
)

// Error is a structured error with code, message, and optional hint.
type Error struct {
	Code       string
	Message    string
	Hint       string
	HTTPStatus int
	Retryable  bool
	Fields     map[string][]string
	Cause      error
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Hint)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error.
func (e *Error) ExitCode() int {
	return ExitCodeFor(e.Code)
}

// Error constructors for common cases.

func ErrUsage(msg string) *Error {
	return &Error{Code: CodeUsage, Message: msg}
}

func ErrUsageHint(msg, hint string) *Error {
	return &Error{Code: CodeUsage, Message: msg, Hint: hint}
}

// ErrValidation reports input rejected before any request was made.
func ErrValidation(field, msg string) *Error {
	e := &Error{Code: CodeValidation, Message: msg}
	if field != "" {
		e.Fields = map[string][]string{field: {msg}}
	}
	return e
}

// ErrValidationFields reports several rejected fields at once. The message
// lists the first problem of each field, ordered by field name.
func ErrValidationFields(fields map[string][]string) *Error {
	keys := make([]string, 0, len(fields))
	for k, msgs := range fields {
		if len(msgs) > 0 {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fields[k][0])
	}
	return &Error{
		Code:    CodeValidation,
		Message: strings.Join(lines, "\n"),
		Fields:  fields,
	}
}

func ErrNotFound(resource string) *Error {
	return &Error{
		Code:       CodeNotFound,
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

func ErrAuth(msg string) *Error {
	return &Error{
		Code:    CodeAuth,
		Message: msg,
		Hint:    "Run: recruitmate auth login",
	}
}

func ErrForbidden(msg string) *Error {
	return &Error{
		Code:       CodeForbidden,
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

func ErrPremium(feature string) *Error {
	return &Error{
		Code:    CodeForbidden,
		Message: feature + " is a premium feature",
		Hint:    "Upgrade your plan to unlock premium features",
	}
}

// ErrRateLimit builds a rate-limit error, hinting with the server's wait time.
func ErrRateLimit(info *ratelimit.Info) *Error {
	hint := "Try again later"
	if info != nil && info.RetryAfter > 0 {
		hint = ratelimit.WaitMessage(info)
	}
	return &Error{
		Code:       CodeRateLimit,
		Message:    "Rate limited",
		Hint:       hint,
		HTTPStatus: http.StatusTooManyRequests,
		Retryable:  true,
	}
}

func ErrNetwork(cause error) *Error {
	return &Error{
		Code:      CodeNetwork,
		Message:   "Network error. Please check your connection.",
		Hint:      cause.Error(),
		Retryable: true,
		Cause:     cause,
	}
}

func ErrTimeout(cause error) *Error {
	return &Error{
		Code:       CodeNetwork,
		Message:    "Request timed out. Please try again.",
		HTTPStatus: http.StatusRequestTimeout,
		Retryable:  true,
		Cause:      cause,
	}
}

func ErrAPI(status int, msg string) *Error {
	return &Error{
		Code:       CodeAPI,
		Message:    msg,
		HTTPStatus: status,
	}
}

// AsError attempts to convert an error to an *Error.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return FromAPIError(err)
}

// FromAPIError maps a pipeline error onto a structured error. Errors the
// pipeline did not produce fall back to a generic API error.
func FromAPIError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var refreshErr *api.RefreshError
	if errors.As(err, &refreshErr) {
		out := ErrAuth("Session expired. Please log in again.")
		out.Cause = err
		return out
	}

	var statusErr *api.StatusError
	if errors.As(err, &statusErr) {
		return fromStatus(statusErr)
	}

	var timeoutErr *api.TimeoutError
	if errors.As(err, &timeoutErr) || errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout(err)
	}

	if errors.Is(err, context.Canceled) {
		return &Error{Code: CodeUsage, Message: "Canceled", Cause: err}
	}

	if isNetworkError(err) {
		return ErrNetwork(err)
	}

	return &Error{Code: CodeAPI, Message: err.Error(), Cause: err}
}

func fromStatus(se *api.StatusError) *Error {
	status := se.StatusCode()
	msg, fields := ParseErrorBody(se.Response)

	var e *Error
	switch {
	case status == http.StatusUnauthorized:
		e = ErrAuth(orDefault(msg, "Authentication required"))
		e.HTTPStatus = status
	case status == http.StatusForbidden:
		e = ErrForbidden(orDefault(msg, "Access denied"))
	case status == http.StatusNotFound:
		e = &Error{Code: CodeNotFound, Message: orDefault(msg, "Not found"), HTTPStatus: status}
	case status == http.StatusTooManyRequests:
		e = ErrRateLimit(ratelimit.Extract(se.Response.Header))
		if msg != "" {
			e.Message = msg
		}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e = &Error{Code: CodeValidation, Message: orDefault(msg, "Invalid request"), HTTPStatus: status}
	case status >= 500:
		e = ErrAPI(status, orDefault(msg, "Server error. Please try again later."))
		e.Retryable = true
	default:
		e = ErrAPI(status, orDefault(msg, se.Error()))
	}
	e.Fields = fields
	e.Cause = se
	return e
}

// ParseErrorBody extracts a human message from an error response body.
// The first of detail, message, error and non_field_errors wins; otherwise
// per-field messages are joined as "field name: msg", ordered by field.
func ParseErrorBody(resp *api.Response) (string, map[string][]string) {
	if resp == nil || len(resp.Data) == 0 {
		return "", nil
	}

	var body any
	if err := json.Unmarshal(resp.Data, &body); err != nil {
		return strings.TrimSpace(string(resp.Data)), nil
	}

	switch b := body.(type) {
	case string:
		return b, nil
	case map[string]any:
		for _, k := range []string{"detail", "message", "error"} {
			if msg := messageOf(b[k]); msg != "" {
				return msg, nil
			}
		}

		fields := make(map[string][]string)
		for k, v := range b {
			if list := stringsOf(v); len(list) > 0 {
				fields[k] = list
			}
		}
		if len(fields) == 0 {
			return "", nil
		}
		if nfe := fields["non_field_errors"]; len(nfe) > 0 {
			return strings.Join(nfe, "\n"), fields
		}

		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		lines := make([]string, 0, len(keys))
		for _, k := range keys {
			lines = append(lines, strings.ReplaceAll(k, "_", " ")+": "+strings.Join(fields[k], ", "))
		}
		return strings.Join(lines, "\n"), fields
	}
	return "", nil
}

// messageOf reads a message field that may be a string or a list of
// {msg} objects.
func messageOf(v any) string {
	switch m := v.(type) {
	case string:
		return m
	case []any:
		var parts []string
		for _, item := range m {
			switch it := item.(type) {
			case string:
				parts = append(parts, it)
			case map[string]any:
				if s, ok := it["msg"].(string); ok {
					parts = append(parts, s)
				}
			}
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

func stringsOf(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []any:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func isNetworkError(err error) bool {
	var ne net.Error
	return errors.As(err, &ne)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
