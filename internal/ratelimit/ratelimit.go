// Package ratelimit tracks server-advertised rate-limit state.
//
// It parses rate-limit headers into an Info record, computes wait and
// backoff values, and broadcasts changes to subscribers through a Tracker.
package ratelimit

import (
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Header names carrying rate-limit signal. Lookups are case-insensitive.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

const (
	// DefaultRetryAfter is used when Retry-After is absent or unparseable.
	DefaultRetryAfter = 60

	// DefaultMaxRetries is the generic retry budget for ShouldRetry.
	DefaultMaxRetries = 3

	// DefaultBaseDelay is the base for exponential backoff.
	DefaultBaseDelay = time.Second

	// MaxBackoff caps every backoff delay.
	MaxBackoff = 30 * time.Second
)

// Info is the rate-limit state advertised by the server.
// A nil *Info means no rate-limit information is available.
type Info struct {
	Remaining  int   `json:"remaining"`
	Limit      int   `json:"limit"`
	ResetTime  int64 `json:"reset_time"`  // unix seconds
	RetryAfter int   `json:"retry_after"` // seconds
}

// Extract reads rate-limit headers. It returns nil unless the limit header
// holds a positive integer.
func Extract(h http.Header) *Info {
	limit, ok := headerInt(h, HeaderLimit)
	if !ok || limit <= 0 {
		return nil
	}

	remaining, ok := headerInt(h, HeaderRemaining)
	if !ok || remaining < 0 {
		remaining = 0
	}
	reset, ok := headerInt(h, HeaderReset)
	if !ok || reset < 0 {
		reset = 0
	}
	retryAfter, ok := headerInt(h, HeaderRetryAfter)
	if !ok {
		retryAfter = DefaultRetryAfter
	}

	return &Info{
		Remaining:  int(remaining),
		Limit:      int(limit),
		ResetTime:  reset,
		RetryAfter: int(retryAfter),
	}
}

// headerInt parses the leading integer of a header value, mirroring how
// lenient clients read "100" or "100, 100;w=60".
func headerInt(h http.Header, name string) (int64, bool) {
	if h == nil {
		return 0, false
	}
	raw := strings.TrimSpace(h.Get(name))
	if raw == "" {
		// Headers built by hand may skip canonicalisation.
		for k, v := range h {
			if strings.EqualFold(k, name) && len(v) > 0 {
				raw = strings.TrimSpace(v[0])
				break
			}
		}
	}
	if raw == "" {
		return 0, false
	}
	end := 0
	for end < len(raw) && (raw[end] >= '0' && raw[end] <= '9' || end == 0 && raw[end] == '-') {
		end++
	}
	n, err := strconv.ParseInt(raw[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// WaitMessage returns a human-readable wait hint for info.
func WaitMessage(info *Info) string {
	if info == nil {
		return ""
	}
	seconds := info.RetryAfter
	if seconds < 60 {
		return fmt.Sprintf("Rate limited. Please wait %d seconds.", seconds)
	}
	minutes := (seconds + 59) / 60
	return fmt.Sprintf("Rate limited. Please wait %d minutes.", minutes)
}

// TimeUntilReset returns the whole seconds until resetTime, never negative.
func TimeUntilReset(resetTime int64) int {
	return timeUntilReset(resetTime, time.Now())
}

func timeUntilReset(resetTime int64, now time.Time) int {
	nowSeconds := float64(now.UnixNano()) / float64(time.Second)
	left := math.Ceil(float64(resetTime) - nowSeconds)
	if left <= 0 {
		return 0
	}
	return int(left)
}

// ShouldRetry reports whether another attempt fits in the retry budget.
func ShouldRetry(attempt, maxRetries int) bool {
	return attempt < maxRetries
}

// BackoffDelay returns base·2^attempt plus up to 10% jitter, capped at MaxBackoff.
func BackoffDelay(attempt int, base time.Duration) time.Duration {
	return backoffDelay(attempt, base, rand.Float64)
}

func backoffDelay(attempt int, base time.Duration, random func() float64) time.Duration {
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if attempt < 0 {
		attempt = 0
	}
	// Past 2^15 the cap always wins; stop before the shift overflows.
	if attempt > 15 {
		return MaxBackoff
	}
	exponential := float64(base) * float64(int64(1)<<attempt)
	jitter := random() * 0.1 * exponential
	delay := exponential + jitter
	if delay > float64(MaxBackoff) {
		return MaxBackoff
	}
	return time.Duration(delay)
}
