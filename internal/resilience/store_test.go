package resilience

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setLimit(limit int) func(*State) error {
	return func(s *State) error {
		s.RateLimit = &RateLimitState{Limit: limit}
		return nil
	}
}

func TestStoreLoadMissingReturnsEmptyState(t *testing.T) {
	store := NewStore(t.TempDir())

	state, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, StateVersion, state.Version)
	assert.Nil(t, state.RateLimit)
	assert.NoFileExists(t, store.path())
}

func TestStoreUpdateAndLoad(t *testing.T) {
	store := NewStore(t.TempDir())
	now := time.Unix(1_700_000_000, 0).UTC()

	require.NoError(t, store.Update(func(s *State) error {
		s.RateLimit = &RateLimitState{Limit: 100, RetryAfter: 15, ObservedAt: now}
		return nil
	}))

	info, err := os.Stat(store.path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded.RateLimit)
	assert.Equal(t, 100, loaded.RateLimit.Limit)
	assert.True(t, now.Equal(loaded.RateLimit.ObservedAt))
}

func TestStoreCorruptFileYieldsEmptyState(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, os.WriteFile(store.path(), []byte("not json"), 0600))

	state, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, state.RateLimit)
}

func TestStoreDiscardsOtherSchemaVersions(t *testing.T) {
	store := NewStore(t.TempDir())
	old := `{"version":1,"circuit_breaker":{"state":"open"},"rate_limit":{"limit":5}}`
	require.NoError(t, os.WriteFile(store.path(), []byte(old), 0600))

	state, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, StateVersion, state.Version)
	assert.Nil(t, state.RateLimit)
}

func TestStoreUpdateErrorSkipsWrite(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Update(setLimit(10)))

	boom := errors.New("boom")
	err := store.Update(func(s *State) error {
		s.RateLimit = nil
		return boom
	})
	assert.ErrorIs(t, err, boom)

	state, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, state.RateLimit)
	assert.Equal(t, 10, state.RateLimit.Limit)
}

func TestStoreUpdateUnchanged(t *testing.T) {
	store := NewStore(t.TempDir())

	err := store.Update(func(s *State) error {
		s.RateLimit = &RateLimitState{Limit: 1}
		return ErrUnchanged
	})
	require.NoError(t, err)
	assert.NoFileExists(t, store.path())
}

func TestStoreConcurrentUpdates(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Update(setLimit(0)))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Update(func(s *State) error {
				if s.RateLimit == nil {
					s.RateLimit = &RateLimitState{}
				}
				s.RateLimit.Remaining++
				return nil
			})
		}()
	}
	wg.Wait()

	state, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, state.RateLimit)
	assert.Positive(t, state.RateLimit.Remaining)
}

func TestStoreFailsOpenWhenLockHeld(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	held := flock.New(filepath.Join(dir, lockFile))
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer func() { _ = held.Unlock() }()

	start := time.Now()
	require.NoError(t, store.Update(setLimit(3)))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.FileExists(t, store.path())
}

func TestStoreClear(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Clear(), "clearing a missing file is fine")

	require.NoError(t, store.Update(setLimit(1)))
	require.NoError(t, store.Clear())
	assert.NoFileExists(t, store.path())
}

func TestDirIn(t *testing.T) {
	assert.Equal(t, filepath.Join("/tmp/cache", "resilience"), DirIn("/tmp/cache"))
}
