package ratelimit

import (
	"sync"
)

// Listener receives the current rate-limit state whenever it changes.
type Listener func(*Info)

type subscription struct {
	id       uint64
	listener Listener
}

// Tracker holds the current rate-limit state and the listeners watching it.
// Listeners are invoked synchronously, in subscription order.
type Tracker struct {
	mu      sync.Mutex
	current *Info
	subs    []subscription
	nextID  uint64
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Current returns a copy of the current state, or nil.
func (t *Tracker) Current() *Info {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return nil
	}
	info := *t.current
	return &info
}

// Publish replaces the current state and notifies every listener.
// Publishing nil clears the state.
func (t *Tracker) Publish(info *Info) {
	var stored *Info
	if info != nil {
		c := *info
		stored = &c
	}

	t.mu.Lock()
	t.current = stored
	subs := make([]subscription, len(t.subs))
	copy(subs, t.subs)
	t.mu.Unlock()

	for _, s := range subs {
		if stored == nil {
			s.listener(nil)
			continue
		}
		c := *stored
		s.listener(&c)
	}
}

// Subscribe registers a listener and returns a function that removes it.
// The returned function is safe to call more than once.
func (t *Tracker) Subscribe(l Listener) (unsubscribe func()) {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.subs = append(t.subs, subscription{id: id, listener: l})
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, s := range t.subs {
			if s.id == id {
				t.subs = append(t.subs[:i:i], t.subs[i+1:]...)
				return
			}
		}
	}
}

// Subscribers returns the number of registered listeners.
func (t *Tracker) Subscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Reset clears the current state and drops every listener.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = nil
	t.subs = nil
}
