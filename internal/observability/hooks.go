package observability

import (
	"context"
	"sync"
	"time"

	"github.com/recruitmate/recruitmate-cli/internal/api"
)

// Verify CLIHooks implements api.Hooks at compile time.
var _ api.Hooks = (*CLIHooks)(nil)

// CLIHooks implements api.Hooks for CLI observability.
// It supports configurable verbosity levels:
//   - 0: Silent (collect stats only, no output)
//   - 1: Recovery events (retries and token refreshes)
//   - 2: Recovery events + every HTTP attempt
type CLIHooks struct {
	mu        sync.Mutex
	level     int
	collector *SessionCollector
	writer    *TraceWriter
}

// NewCLIHooks creates a new CLIHooks with the given verbosity level.
// If collector is nil, metrics are not collected.
// If writer is nil, no trace output is produced.
func NewCLIHooks(level int, collector *SessionCollector, writer *TraceWriter) *CLIHooks {
	return &CLIHooks{
		level:     level,
		collector: collector,
		writer:    writer,
	}
}

// SetLevel changes the verbosity level at runtime.
func (h *CLIHooks) SetLevel(level int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.level = level
}

// Level returns the current verbosity level.
func (h *CLIHooks) Level() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level
}

func (h *CLIHooks) snapshot() (int, *SessionCollector, *TraceWriter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level, h.collector, h.writer
}

// OnRequestStart is called before an HTTP attempt is sent.
func (h *CLIHooks) OnRequestStart(ctx context.Context, info api.RequestInfo) context.Context {
	level, _, writer := h.snapshot()
	if level >= 2 && writer != nil {
		writer.WriteRequestStart(info)
	}
	return ctx
}

// OnRequestEnd is called after an HTTP attempt completes.
func (h *CLIHooks) OnRequestEnd(_ context.Context, info api.RequestInfo, result api.RequestResult) {
	level, collector, writer := h.snapshot()
	if collector != nil {
		collector.RecordRequest(requestMetrics(info, result))
	}
	if level >= 2 && writer != nil {
		writer.WriteRequestEnd(info, result)
	}
}

// OnRetry is called before a logical request is replayed.
func (h *CLIHooks) OnRetry(_ context.Context, info api.RequestInfo, reason string, delay time.Duration) {
	level, collector, writer := h.snapshot()
	if collector != nil {
		collector.RecordRetry(RetryMetrics{Method: info.Method, URL: info.URL, Reason: reason, Delay: delay})
	}
	if level >= 1 && writer != nil {
		writer.WriteRetry(info, reason, delay)
	}
}

// OnRefresh is called once per refresh flight.
func (h *CLIHooks) OnRefresh(_ context.Context, info api.RefreshInfo) {
	level, collector, writer := h.snapshot()
	if collector != nil {
		collector.RecordRefresh(RefreshMetrics{
			Waiters:  info.Waiters,
			Duration: info.Duration,
			Skipped:  info.Skipped,
			Error:    info.Err,
		})
	}
	if level >= 1 && writer != nil {
		writer.WriteRefresh(info)
	}
}
