package resilience

import (
	"time"

	"github.com/recruitmate/recruitmate-cli/internal/ratelimit"
)

const (
	// StateVersion is the current state schema version. Files written with
	// another version are discarded on load.
	StateVersion = 2
)

// State is the resilience state shared across CLI processes.
type State struct {
	// Version is the schema version for future migrations.
	Version int `json:"version"`

	// RateLimit is the last rate-limit signal any invocation observed.
	// Nil means the server reported no active limit.
	RateLimit *RateLimitState `json:"rate_limit,omitempty"`

	// UpdatedAt is when the state was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// RateLimitState is a persisted rate-limit observation.
type RateLimitState struct {
	Limit      int   `json:"limit"`
	Remaining  int   `json:"remaining"`
	ResetTime  int64 `json:"reset_time"`
	RetryAfter int   `json:"retry_after"`

	// ObservedAt is when the response carrying the headers arrived.
	ObservedAt time.Time `json:"observed_at"`

	// RetryAfterUntil is ObservedAt plus RetryAfter.
	RetryAfterUntil time.Time `json:"retry_after_until"`
}

// NewRateLimitState records info as observed at now.
func NewRateLimitState(info *ratelimit.Info, now time.Time) *RateLimitState {
	if info == nil {
		return nil
	}
	return &RateLimitState{
		Limit:           info.Limit,
		Remaining:       info.Remaining,
		ResetTime:       info.ResetTime,
		RetryAfter:      info.RetryAfter,
		ObservedAt:      now,
		RetryAfterUntil: now.Add(time.Duration(info.RetryAfter) * time.Second),
	}
}

// Info converts the snapshot back into tracker form. RetryAfter is reduced
// by the time elapsed since the observation.
func (r *RateLimitState) Info(now time.Time) *ratelimit.Info {
	if r == nil {
		return nil
	}
	retryAfter := 0
	if left := r.RetryAfterUntil.Sub(now); left > 0 {
		retryAfter = int((left + time.Second - 1) / time.Second)
	}
	return &ratelimit.Info{
		Remaining:  r.Remaining,
		Limit:      r.Limit,
		ResetTime:  r.ResetTime,
		RetryAfter: retryAfter,
	}
}

// IsBlocked returns true if we're within the Retry-After window.
func (r *RateLimitState) IsBlocked(now time.Time) bool {
	if r == nil || r.RetryAfterUntil.IsZero() {
		return false
	}
	return now.Before(r.RetryAfterUntil)
}

// BlockedFor returns how long until the Retry-After window expires.
// Returns zero if not blocked.
func (r *RateLimitState) BlockedFor(now time.Time) time.Duration {
	if !r.IsBlocked(now) {
		return 0
	}
	return r.RetryAfterUntil.Sub(now)
}

// Stale reports whether the observation no longer applies: the retry
// window has passed and so has the advertised reset.
func (r *RateLimitState) Stale(now time.Time) bool {
	if r == nil {
		return true
	}
	if r.IsBlocked(now) {
		return false
	}
	return r.ResetTime <= now.Unix()
}

// NewState returns a new State with default values.
func NewState() *State {
	return &State{
		Version:   StateVersion,
		UpdatedAt: time.Now(),
	}
}
