package resilience

import (
	"log/slog"
	"time"

	"github.com/recruitmate/recruitmate-cli/internal/ratelimit"
)

// Recorder mirrors rate-limit publications into the shared state file so
// later invocations can report a limit observed by an earlier one.
type Recorder struct {
	store  *Store
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder creates a Recorder writing to store. Errors are logged to
// logger at debug level and otherwise ignored.
func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{store: store, logger: logger, now: time.Now}
}

// Record persists info. Nil clears the stored observation; the file is
// not rewritten when there is nothing to clear.
func (r *Recorder) Record(info *ratelimit.Info) {
	now := r.now()
	err := r.store.Update(func(s *State) error {
		if info == nil && s.RateLimit == nil {
			return ErrUnchanged
		}
		s.RateLimit = NewRateLimitState(info, now)
		s.UpdatedAt = now
		return nil
	})
	if err != nil {
		r.logger.Debug("rate-limit state write failed", "error", err)
	}
}

// Snapshot returns the stored observation, or nil.
func (r *Recorder) Snapshot() *RateLimitState {
	state, err := r.store.Load()
	if err != nil {
		r.logger.Debug("rate-limit state read failed", "error", err)
		return nil
	}
	return state.RateLimit
}

// Restore publishes a still-relevant stored observation into t.
// Call it before Attach so the restored value is not written back.
func (r *Recorder) Restore(t *ratelimit.Tracker) bool {
	snap := r.Snapshot()
	now := r.now()
	if snap == nil || snap.Stale(now) {
		return false
	}
	t.Publish(snap.Info(now))
	return true
}

// Attach subscribes the Recorder to t and returns the unsubscribe function.
func (r *Recorder) Attach(t *ratelimit.Tracker) func() {
	return t.Subscribe(r.Record)
}

// Clear removes the stored observation.
func (r *Recorder) Clear() error {
	return r.store.Clear()
}
