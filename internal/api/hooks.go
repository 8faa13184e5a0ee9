package api

import (
	"context"
	"time"
)

// RequestInfo describes one outbound attempt.
type RequestInfo struct {
	Method    string
	URL       string
	RequestID string
	Attempt   int
}

// RequestResult describes how an attempt ended.
type RequestResult struct {
	StatusCode int
	Duration   time.Duration
	Err        error
}

// RefreshInfo describes a completed refresh flight.
type RefreshInfo struct {
	Waiters  int // participants besides the one that started it
	Duration time.Duration
	Skipped  bool // no refresh token, no call made
	Err      error
}

// Hooks observes the pipeline. Implementations must be safe for concurrent use.
type Hooks interface {
	OnRequestStart(ctx context.Context, info RequestInfo) context.Context
	OnRequestEnd(ctx context.Context, info RequestInfo, result RequestResult)
	OnRetry(ctx context.Context, info RequestInfo, reason string, delay time.Duration)
	OnRefresh(ctx context.Context, info RefreshInfo)
}

// NopHooks ignores every event.
type NopHooks struct{}

var _ Hooks = NopHooks{}

func (NopHooks) OnRequestStart(ctx context.Context, _ RequestInfo) context.Context { return ctx }
func (NopHooks) OnRequestEnd(context.Context, RequestInfo, RequestResult) {}
func (NopHooks) OnRetry(context.Context, RequestInfo, string, time.Duration) {}
func (NopHooks) OnRefresh(context.Context, RefreshInfo) {}
