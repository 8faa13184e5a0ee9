// Package resilience persists pipeline signals across CLI invocations.
// State lives in a small JSON file guarded by an advisory file lock, so
// concurrent recruitmate processes see each other's rate-limit observations.
package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gofrs/flock"
)

const (
	stateFile = "state.json"
	lockFile  = ".lock"
	dirName   = "resilience"

	// LockTimeout bounds the wait for the state lock. Past it the store
	// works unlocked rather than stall the command.
	LockTimeout = 100 * time.Millisecond
)

// ErrUnchanged, returned from an Update callback, skips the write.
var ErrUnchanged = errors.New("state unchanged")

// Store reads and writes the shared state file.
type Store struct {
	dir string
}

// NewStore creates a store for the state file in dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// DirIn returns the state directory inside a cache root.
func DirIn(cacheDir string) string {
	return filepath.Join(cacheDir, dirName)
}

func (s *Store) path() string {
	return filepath.Join(s.dir, stateFile)
}

// locked runs fn holding the directory lock. A lock that stays busy for
// LockTimeout is skipped and fn runs anyway.
func (s *Store) locked(fn func() error) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}

	fl := flock.New(filepath.Join(s.dir, lockFile))
	ctx, cancel := context.WithTimeout(context.Background(), LockTimeout)
	defer cancel()

	ok, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	switch {
	case err != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("lock state: %w", err)
	case ok:
		defer func() { _ = fl.Unlock() }()
	}
	return fn()
}

// Load returns the stored state. A missing, corrupt or older-schema file
// yields an empty state.
func (s *Store) Load() (*State, error) {
	var state *State
	err := s.locked(func() error {
		var err error
		state, err = s.read()
		return err
	})
	return state, err
}

// Update applies fn to the stored state and writes the result, all under
// one lock. An error from fn, ErrUnchanged included, leaves the file alone.
func (s *Store) Update(fn func(*State) error) error {
	err := s.locked(func() error {
		state, err := s.read()
		if err != nil {
			return err
		}
		if err := fn(state); err != nil {
			return err
		}
		return s.write(state)
	})
	if errors.Is(err, ErrUnchanged) {
		return nil
	}
	return err
}

// Clear removes the state file.
func (s *Store) Clear() error {
	return s.locked(func() error {
		err := os.Remove(s.path())
		if os.IsNotExist(err) {
			return nil
		}
		return err
	})
}

func (s *Store) read() (*State, error) {
	data, err := os.ReadFile(s.path())
	if os.IsNotExist(err) {
		return NewState(), nil
	}
	if err != nil {
		return nil, err
	}

	var state State
	if json.Unmarshal(data, &state) != nil || state.Version != StateVersion {
		return NewState(), nil
	}
	return &state, nil
}

// write replaces the state file via a temp file and rename.
func (s *Store) write(state *State) error {
	state.Version = StateVersion
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	// Per-writer temp name; unlocked writers may overlap.
	tmp := fmt.Sprintf("%s.%d.%d.tmp", s.path(), os.Getpid(), time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	if runtime.GOOS == "windows" {
		_ = os.Remove(s.path())
	}
	if err := os.Rename(tmp, s.path()); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
