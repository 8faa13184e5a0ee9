// Package observability provides metrics collection and tracing for the
// request pipeline.
package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/recruitmate/recruitmate-cli/internal/api"
)

// RequestMetrics holds timing and status information for a single HTTP attempt.
type RequestMetrics struct {
	Method     string
	URL        string
	Attempt    int
	StatusCode int
	Duration   time.Duration
	Error      error
}

// RetryMetrics records a replay of a logical request.
type RetryMetrics struct {
	Method string
	URL    string
	Reason string // "unauthorized" or "rate_limited"
	Delay  time.Duration
}

// RefreshMetrics records one completed token refresh.
type RefreshMetrics struct {
	Waiters  int
	Duration time.Duration
	Skipped  bool
	Error    error
}

// SessionMetrics aggregates metrics for an entire CLI session.
type SessionMetrics struct {
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time"`
	TotalRequests    int           `json:"total_requests"`
	FailedRequests   int           `json:"failed_requests"`
	TotalRetries     int           `json:"total_retries"`
	RateLimitRetries int           `json:"rate_limit_retries"`
	Refreshes        int           `json:"refreshes"`
	FailedRefreshes  int           `json:"failed_refreshes"`
	RefreshWaiters   int           `json:"refresh_waiters"`
	TotalLatency     time.Duration `json:"total_latency"`
}

// FormatParts returns the non-zero counters as short display fragments.
func (m SessionMetrics) FormatParts() []string {
	var parts []string
	if m.TotalRequests > 0 {
		parts = append(parts, fmt.Sprintf("%d requests", m.TotalRequests))
	}
	if m.FailedRequests > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", m.FailedRequests))
	}
	if m.TotalRetries > 0 {
		parts = append(parts, fmt.Sprintf("%d retries", m.TotalRetries))
	}
	if m.Refreshes > 0 {
		parts = append(parts, fmt.Sprintf("%d refreshes", m.Refreshes))
	}
	if m.TotalLatency > 0 {
		parts = append(parts, m.TotalLatency.Round(time.Millisecond).String())
	}
	return parts
}

// SessionCollector accumulates metrics across a CLI session.
// It is safe for concurrent use and uses counters instead of unbounded slices.
type SessionCollector struct {
	mu sync.Mutex

	startTime        time.Time
	totalRequests    int
	failedRequests   int
	totalRetries     int
	rateLimitRetries int
	refreshes        int
	failedRefreshes  int
	refreshWaiters   int
	totalLatency     time.Duration
}

// NewSessionCollector creates a new SessionCollector.
func NewSessionCollector() *SessionCollector {
	return &SessionCollector{
		startTime: time.Now(),
	}
}

// RecordRequest records metrics for an HTTP attempt. Transport errors and
// 5xx responses count as failures.
func (c *SessionCollector) RecordRequest(m RequestMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
	c.totalLatency += m.Duration
	if m.Error != nil || m.StatusCode >= 500 {
		c.failedRequests++
	}
}

// RecordRetry records a replay.
func (c *SessionCollector) RecordRetry(m RetryMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRetries++
	if m.Reason == "rate_limited" {
		c.rateLimitRetries++
	}
}

// RecordRefresh records a finished refresh flight. Skipped flights made
// no network call and are not counted as refreshes.
func (c *SessionCollector) RecordRefresh(m RefreshMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshWaiters += m.Waiters
	if m.Skipped {
		return
	}
	c.refreshes++
	if m.Error != nil {
		c.failedRefreshes++
	}
}

func requestMetrics(info api.RequestInfo, result api.RequestResult) RequestMetrics {
	return RequestMetrics{
		Method:     info.Method,
		URL:        info.URL,
		Attempt:    info.Attempt,
		StatusCode: result.StatusCode,
		Duration:   result.Duration,
		Error:      result.Err,
	}
}

// Summary returns aggregated metrics for the session.
func (c *SessionCollector) Summary() SessionMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	return SessionMetrics{
		StartTime:        c.startTime,
		EndTime:          time.Now(),
		TotalRequests:    c.totalRequests,
		FailedRequests:   c.failedRequests,
		TotalRetries:     c.totalRetries,
		RateLimitRetries: c.rateLimitRetries,
		Refreshes:        c.refreshes,
		FailedRefreshes:  c.failedRefreshes,
		RefreshWaiters:   c.refreshWaiters,
		TotalLatency:     c.totalLatency,
	}
}

// Reset clears all collected metrics and resets the start time.
func (c *SessionCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startTime = time.Now()
	c.totalRequests = 0
	c.failedRequests = 0
	c.totalRetries = 0
	c.rateLimitRetries = 0
	c.refreshes = 0
	c.failedRefreshes = 0
	c.refreshWaiters = 0
	c.totalLatency = 0
}
