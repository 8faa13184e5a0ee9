// Package auth provides persisted credential storage for RecruitMate.
//
// The Store keeps the access token, refresh token, cached user profile and
// feature session values for one backend origin. Storage failures never
// surface to callers: reads degrade to empty values and writes to no-ops.
package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"maps"
	"strings"
	"sync"

	"github.com/recruitmate/recruitmate-cli/internal/models"
)

// Well-known keys.
const (
	KeyToken        = "token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"

	// SessionPrefix marks feature-scoped keys removed by ClearAll.
	SessionPrefix = "scan."
)

// Record is the persisted credential document for one origin. All auth
// fields are written together so clearing them is a single operation.
type Record struct {
	AccessToken  string            `json:"access_token,omitempty"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	User         *models.User      `json:"user,omitempty"`
	Session      map[string]string `json:"session,omitempty"`
}

func (r *Record) empty() bool {
	return r.AccessToken == "" && r.RefreshToken == "" && r.User == nil && len(r.Session) == 0
}

// Store is the fail-soft credential store for a single origin.
type Store struct {
	mu     sync.Mutex
	origin string
	vault  *vault
	logger *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for swallowed storage errors.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore creates a store for origin, using the system keyring when
// available and dir/credentials.json otherwise.
func NewStore(dir, origin string, opts ...StoreOption) *Store {
	return newStore(newVault(dir), origin, opts...)
}

// NewFileStore creates a store that always uses dir/credentials.json.
func NewFileStore(dir, origin string, opts ...StoreOption) *Store {
	return newStore(&vault{fallbackDir: dir, kr: systemKeyring{}}, origin, opts...)
}

func newStore(v *vault, origin string, opts ...StoreOption) *Store {
	s := &Store{
		origin: origin,
		vault:  v,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := v.migrateToKeyring(); err != nil {
		s.logger.Debug("credential migration failed", "error", err)
	}
	return s
}

// Origin returns the backend origin the store is scoped to.
func (s *Store) Origin() string {
	return s.origin
}

// UsingKeyring reports whether the system keyring backs the store.
func (s *Store) UsingKeyring() bool {
	return s.vault.useKeyring
}

// load returns the stored record. A missing record is empty, not an error.
func (s *Store) load() (*Record, error) {
	rec, err := s.vault.load(s.origin)
	if errors.Is(err, errNotFound) {
		return &Record{}, nil
	}
	if err != nil {
		s.logger.Debug("credential read failed", "origin", s.origin, "error", err)
		return nil, err
	}
	return rec, nil
}

func (s *Store) save(rec *Record) {
	var err error
	if rec.empty() {
		err = s.vault.delete(s.origin)
	} else {
		err = s.vault.save(s.origin, rec)
	}
	if err != nil {
		s.logger.Debug("credential write failed", "origin", s.origin, "error", err)
	}
}

// update applies fn to the stored record. Nothing is written when the
// record could not be read, so an unreadable store keeps its contents.
func (s *Store) update(fn func(*Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.load()
	if err != nil {
		return
	}
	fn(rec)
	s.save(rec)
}

// Snapshot returns a copy of the stored record.
func (s *Store) Snapshot() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	loaded, err := s.load()
	if err != nil {
		return Record{}
	}
	rec := *loaded
	rec.Session = maps.Clone(rec.Session)
	return rec
}

// Get returns the value stored under key, or "".
// The user key yields the cached user as JSON.
func (s *Store) Get(key string) string {
	rec := s.Snapshot()
	switch key {
	case KeyToken:
		return rec.AccessToken
	case KeyRefreshToken:
		return rec.RefreshToken
	case KeyUser:
		if rec.User == nil {
			return ""
		}
		data, err := json.Marshal(rec.User)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return rec.Session[key]
	}
}

// Set stores value under key. An empty value removes the key.
func (s *Store) Set(key, value string) {
	if key == KeyUser {
		var u *models.User
		if value != "" {
			u = &models.User{}
			if err := json.Unmarshal([]byte(value), u); err != nil {
				s.logger.Debug("ignoring malformed user value", "error", err)
				return
			}
		}
		s.SetCachedUser(u)
		return
	}

	s.update(func(r *Record) {
		switch key {
		case KeyToken:
			r.AccessToken = value
		case KeyRefreshToken:
			r.RefreshToken = value
		default:
			if value == "" {
				delete(r.Session, key)
				return
			}
			if r.Session == nil {
				r.Session = make(map[string]string)
			}
			r.Session[key] = value
		}
	})
}

// Remove deletes key.
func (s *Store) Remove(key string) {
	s.Set(key, "")
}

// AccessToken returns the stored access token.
func (s *Store) AccessToken() string {
	return s.Get(KeyToken)
}

// RefreshToken returns the stored refresh token.
func (s *Store) RefreshToken() string {
	return s.Get(KeyRefreshToken)
}

// Authenticated reports whether an access token is stored.
func (s *Store) Authenticated() bool {
	return s.AccessToken() != ""
}

// SetTokens stores a token pair. An empty refresh keeps the stored one.
func (s *Store) SetTokens(access, refresh string) {
	s.update(func(r *Record) {
		r.AccessToken = access
		if refresh != "" {
			r.RefreshToken = refresh
		}
	})
}

// SaveLogin stores the full result of a login or registration.
func (s *Store) SaveLogin(resp *models.AuthResponse) {
	if resp == nil {
		return
	}
	s.update(func(r *Record) {
		r.AccessToken = resp.AccessToken
		if resp.RefreshToken != "" {
			r.RefreshToken = resp.RefreshToken
		}
		r.User = resp.User
	})
}

// CachedUser returns the cached profile, or nil.
func (s *Store) CachedUser() *models.User {
	return s.Snapshot().User
}

// SetCachedUser replaces the cached profile. Nil removes it.
func (s *Store) SetCachedUser(u *models.User) {
	s.update(func(r *Record) {
		r.User = u
	})
}

// ClearAuth removes the tokens and cached user in one write.
func (s *Store) ClearAuth() {
	s.update(func(r *Record) {
		r.AccessToken = ""
		r.RefreshToken = ""
		r.User = nil
	})
}

// ClearAll removes the auth fields and every feature session key.
func (s *Store) ClearAll() {
	s.update(func(r *Record) {
		r.AccessToken = ""
		r.RefreshToken = ""
		r.User = nil
		maps.DeleteFunc(r.Session, func(k, _ string) bool {
			return strings.HasPrefix(k, SessionPrefix)
		})
	})
}

// SessionKeys returns the stored feature session keys.
func (s *Store) SessionKeys() []string {
	rec := s.Snapshot()
	keys := make([]string, 0, len(rec.Session))
	for k := range rec.Session {
		keys = append(keys, k)
	}
	return keys
}
