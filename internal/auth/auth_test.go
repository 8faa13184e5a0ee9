package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/recruitmate/recruitmate-cli/internal/models"
)

const testOrigin = "http://localhost:8000"

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return NewFileStore(dir, testOrigin), dir
}

func readFile(t *testing.T, dir string) map[string]*Record {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, credentialsFile))
	require.NoError(t, err)
	var all map[string]*Record
	require.NoError(t, json.Unmarshal(data, &all))
	return all
}

func TestNewStoreHonoursNoKeyring(t *testing.T) {
	t.Setenv(NoKeyringEnv, "1")
	store := NewStore(t.TempDir(), testOrigin)
	require.NotNil(t, store)
	assert.False(t, store.UsingKeyring())
	assert.Equal(t, testOrigin, store.Origin())
}

func TestStoreTokens(t *testing.T) {
	store, dir := newTestStore(t)

	assert.Empty(t, store.AccessToken())
	assert.False(t, store.Authenticated())

	store.SetTokens("access-1", "refresh-1")
	assert.Equal(t, "access-1", store.AccessToken())
	assert.Equal(t, "refresh-1", store.RefreshToken())
	assert.True(t, store.Authenticated())

	info, err := os.Stat(filepath.Join(dir, credentialsFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// An empty refresh keeps the stored one.
	store.SetTokens("access-2", "")
	assert.Equal(t, "access-2", store.AccessToken())
	assert.Equal(t, "refresh-1", store.RefreshToken())
}

func TestStoreGetSet(t *testing.T) {
	store, _ := newTestStore(t)

	assert.Empty(t, store.Get("scan.cv_text"))

	store.Set(KeyToken, "t")
	store.Set(KeyRefreshToken, "r")
	store.Set("scan.cv_text", "Senior Go engineer")

	assert.Equal(t, "t", store.Get(KeyToken))
	assert.Equal(t, "r", store.Get(KeyRefreshToken))
	assert.Equal(t, "Senior Go engineer", store.Get("scan.cv_text"))

	store.Remove("scan.cv_text")
	assert.Empty(t, store.Get("scan.cv_text"))
	assert.Empty(t, store.SessionKeys())
}

func TestStoreCachedUser(t *testing.T) {
	store, _ := newTestStore(t)
	assert.Nil(t, store.CachedUser())
	assert.Empty(t, store.Get(KeyUser))

	store.SetCachedUser(&models.User{ID: 7, Username: "ada", IsPremium: true})
	u := store.CachedUser()
	require.NotNil(t, u)
	assert.Equal(t, "ada", u.Username)
	assert.True(t, u.IsPremium)
	assert.JSONEq(t, `{"id":7,"username":"ada","email":"","is_premium":true}`, store.Get(KeyUser))

	store.Set(KeyUser, `{"id":8,"username":"grace","email":"g@example.com","is_premium":false}`)
	assert.Equal(t, "grace", store.CachedUser().Username)

	// Malformed values are ignored.
	store.Set(KeyUser, `{not json`)
	assert.Equal(t, "grace", store.CachedUser().Username)

	store.SetCachedUser(nil)
	assert.Nil(t, store.CachedUser())
}

func TestStoreSaveLogin(t *testing.T) {
	store, _ := newTestStore(t)

	store.SaveLogin(&models.AuthResponse{
		AccessToken:  "a",
		RefreshToken: "r",
		TokenType:    "Bearer",
		User:         &models.User{ID: 1, Username: "ada"},
	})

	assert.Equal(t, "a", store.AccessToken())
	assert.Equal(t, "r", store.RefreshToken())
	assert.Equal(t, "ada", store.CachedUser().Username)

	store.SaveLogin(nil)
	assert.Equal(t, "a", store.AccessToken())
}

func TestStoreClearAuth(t *testing.T) {
	store, _ := newTestStore(t)
	store.SetTokens("a", "r")
	store.SetCachedUser(&models.User{ID: 1})
	store.Set("scan.job_description", "jd")

	store.ClearAuth()

	assert.Empty(t, store.AccessToken())
	assert.Empty(t, store.RefreshToken())
	assert.Nil(t, store.CachedUser())
	assert.Equal(t, "jd", store.Get("scan.job_description"), "session survives ClearAuth")
}

func TestStoreClearAll(t *testing.T) {
	store, dir := newTestStore(t)
	store.SetTokens("a", "r")
	store.SetCachedUser(&models.User{ID: 1})
	store.Set("scan.cv_text", "cv")
	store.Set("scan.result", "{}")
	store.Set("scan.input_mode", "file")
	store.Set("theme", "dark")

	store.ClearAll()

	assert.Empty(t, store.AccessToken())
	assert.Nil(t, store.CachedUser())
	assert.Empty(t, store.Get("scan.cv_text"))
	assert.Empty(t, store.Get("scan.result"))
	assert.Empty(t, store.Get("scan.input_mode"))
	assert.Equal(t, "dark", store.Get("theme"))

	store.Remove("theme")
	assert.NotContains(t, readFile(t, dir), testOrigin, "empty record is deleted")
}

func TestStoreOriginsAreIsolated(t *testing.T) {
	dir := t.TempDir()
	a := NewFileStore(dir, "http://a.test")
	b := NewFileStore(dir, "http://b.test")

	a.SetTokens("token-a", "")
	b.SetTokens("token-b", "")
	a.ClearAuth()

	assert.Empty(t, a.AccessToken())
	assert.Equal(t, "token-b", b.AccessToken())
}

func TestStoreFailsSoftOnCorruptFile(t *testing.T) {
	store, dir := newTestStore(t)
	path := filepath.Join(dir, credentialsFile)
	require.NoError(t, os.WriteFile(path, []byte("{corrupt"), 0600))

	assert.Empty(t, store.AccessToken())
	assert.Nil(t, store.CachedUser())

	assert.NotPanics(t, func() {
		store.SetTokens("a", "r")
		store.ClearAll()
	})
	assert.Empty(t, store.AccessToken())
}

func TestStoreFailsSoftOnUnwritableDir(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0600))

	// A regular file where the directory should be.
	store := NewFileStore(filepath.Join(blocker, "creds"), testOrigin)
	store.SetTokens("a", "r")
	assert.Empty(t, store.AccessToken())
}

func TestStoreConcurrentWrites(t *testing.T) {
	store, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Set(fmt.Sprintf("scan.k%d", i), "v")
		}()
	}
	wg.Wait()

	assert.Len(t, store.SessionKeys(), 20)
}

func TestKeyFunction(t *testing.T) {
	assert.Equal(t, "recruitmate::http://localhost:8000", key(testOrigin))
}

func TestRecordJSON(t *testing.T) {
	rec := Record{AccessToken: "a", Session: map[string]string{"scan.cv_text": "cv"}}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"access_token":"a","session":{"scan.cv_text":"cv"}}`, string(data))
}

// flakyKeyring is an in-memory keyring whose reads can be made to fail.
type flakyKeyring struct {
	mu      sync.Mutex
	items   map[string]string
	getErr  error
	setHits int
}

func (k *flakyKeyring) Get(service, user string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.getErr != nil {
		return "", k.getErr
	}
	v, ok := k.items[service+"/"+user]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return v, nil
}

func (k *flakyKeyring) Set(service, user, password string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.setHits++
	k.items[service+"/"+user] = password
	return nil
}

func (k *flakyKeyring) Delete(service, user string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.items, service+"/"+user)
	return nil
}

func TestStoreKeepsCredentialsWhenKeyringReadFails(t *testing.T) {
	kr := &flakyKeyring{items: make(map[string]string)}
	store := newStore(&vault{useKeyring: true, fallbackDir: t.TempDir(), kr: kr}, testOrigin)
	store.SaveLogin(&models.AuthResponse{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		User:         &models.User{ID: 7, Username: "ada"},
	})
	require.Equal(t, 1, kr.setHits)

	kr.getErr = errors.New("keychain locked")
	store.SetTokens("access-2", "")
	store.ClearAuth()
	assert.Empty(t, store.AccessToken())
	assert.Equal(t, 1, kr.setHits)

	kr.getErr = nil
	assert.Equal(t, "access-1", store.AccessToken())
	assert.Equal(t, "refresh-1", store.RefreshToken())
	assert.Equal(t, "ada", store.CachedUser().Username)
}

func TestStoreLeavesCorruptFileUntouched(t *testing.T) {
	store, dir := newTestStore(t)
	path := filepath.Join(dir, credentialsFile)
	require.NoError(t, os.WriteFile(path, []byte("{corrupt"), 0600))

	store.SetTokens("a", "r")
	store.Set("scan.cv_text", "cv")
	store.ClearAuth()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{corrupt", string(data))
}
