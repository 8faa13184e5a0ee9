// Package history keeps a short local log of recent match analyses.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultMaxEntries is how many analyses are kept per user.
const DefaultMaxEntries = 20

// Entry is one completed analysis.
type Entry struct {
	ID       string    `json:"id"`
	Job      string    `json:"job"`
	Status   string    `json:"status"`
	Score    *int      `json:"score,omitempty"`
	Deep     bool      `json:"deep,omitempty"`
	Username string    `json:"username,omitempty"`
	At       time.Time `json:"at"`
}

// Store manages the history file at <cacheDir>/history.json. Entries are
// grouped by username; guests share the "" group.
type Store struct {
	mu         sync.RWMutex
	entries    map[string][]Entry
	maxEntries int
	path       string
	lastError  error
	now        func() time.Time
}

// NewStore opens the history under cacheDir.
func NewStore(cacheDir string) *Store {
	s := &Store{
		entries:    make(map[string][]Entry),
		maxEntries: DefaultMaxEntries,
		path:       filepath.Join(cacheDir, "history.json"),
		now:        time.Now,
	}
	s.load()
	return s
}

// Path returns the history file location.
func (s *Store) Path() string {
	return s.path
}

// Add records e at the front of its user's list, replacing any entry with
// the same ID.
func (s *Store) Add(e Entry) {
	if e.At.IsZero() {
		e.At = s.now()
	}

	var snapshot map[string][]Entry
	func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		list := s.entries[e.Username]
		filtered := make([]Entry, 0, len(list)+1)
		filtered = append(filtered, e)
		for _, existing := range list {
			if existing.ID != e.ID {
				filtered = append(filtered, existing)
			}
		}
		if len(filtered) > s.maxEntries {
			filtered = filtered[:s.maxEntries]
		}
		s.entries[e.Username] = filtered
		snapshot = s.copyEntries()
	}()

	s.saveSnapshot(snapshot)
}

// List returns a copy of username's entries, newest first. limit <= 0
// returns all of them.
func (s *Store) List(username string, limit int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.entries[username]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]Entry, len(list))
	copy(out, list)
	return out
}

// Clear removes username's entries.
func (s *Store) Clear(username string) {
	var snapshot map[string][]Entry
	func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.entries, username)
		snapshot = s.copyEntries()
	}()
	s.saveSnapshot(snapshot)
}

// must be called with the lock held
func (s *Store) copyEntries() map[string][]Entry {
	out := make(map[string][]Entry, len(s.entries))
	for k, v := range s.entries {
		copied := make([]Entry, len(v))
		copy(copied, v)
		out[k] = copied
	}
	return out
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path) //nolint:gosec // G304: path is from trusted config
	if err != nil {
		return
	}
	var entries map[string][]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return
	}
	s.entries = entries
}

// saveSnapshot writes entries to disk. Failures are kept in lastError;
// history is non-critical.
func (s *Store) saveSnapshot(entries map[string][]Entry) {
	err := func() error {
		if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
			return err
		}
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(s.path, data, 0600)
	}()

	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()
}

// LastError returns the last save error, if any.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}
