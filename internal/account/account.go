// Package account implements the RecruitMate account operations: sign-in,
// registration, logout, and the authenticated profile.
package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/recruitmate/recruitmate-cli/internal/api"
	"github.com/recruitmate/recruitmate-cli/internal/auth"
	"github.com/recruitmate/recruitmate-cli/internal/models"
)

// Endpoint paths.
const (
	LoginPath     = "/auth/login/"
	RegisterPath  = "/auth/register/"
	LogoutPath    = "/auth/logout/"
	DashboardPath = "/auth/dashboard/"
)

// Service performs account operations against the pipeline and keeps the
// credential store in step with the results.
type Service struct {
	client *api.Client
	store  *auth.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates an account service.
func NewService(client *api.Client, store *auth.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{client: client, store: store, logger: logger, now: time.Now}
}

// Login signs in with a username or email and stores the session.
func (s *Service) Login(ctx context.Context, usernameOrEmail, password string) (*models.AuthResponse, error) {
	if err := validateLogin(usernameOrEmail, password); err != nil {
		return nil, err
	}
	return s.authenticate(ctx, LoginPath, models.LoginRequest{
		UsernameEmail: usernameOrEmail,
		Password:      password,
	})
}

// Register creates an account and stores the resulting session.
func (s *Service) Register(ctx context.Context, username, email, password string) (*models.AuthResponse, error) {
	if err := validateRegistration(username, email, password); err != nil {
		return nil, err
	}
	return s.authenticate(ctx, RegisterPath, models.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
}

func (s *Service) authenticate(ctx context.Context, path string, body any) (*models.AuthResponse, error) {
	resp, err := s.client.Post(ctx, path, body)
	if err != nil {
		return nil, err
	}
	var out models.AuthResponse
	if err := resp.UnmarshalData(&out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("%s: response has no access token", path)
	}
	s.store.SaveLogin(&out)
	return &out, nil
}

// Logout asks the server to revoke the refresh token, then clears every
// local credential and session value. Server failures do not stop the
// local logout.
func (s *Service) Logout(ctx context.Context) (revoked bool) {
	if refresh := s.store.RefreshToken(); refresh != "" {
		if _, err := s.client.Post(ctx, LogoutPath, map[string]string{"refresh": refresh}); err != nil {
			s.logger.Debug("server logout failed, clearing locally", "error", err)
		} else {
			revoked = true
		}
	}
	s.store.ClearAll()
	return revoked
}

// Profile fetches the current user and refreshes the cached copy.
func (s *Service) Profile(ctx context.Context) (*models.User, error) {
	resp, err := s.client.Get(ctx, DashboardPath)
	if err != nil {
		return nil, err
	}
	return s.cacheUser(resp)
}

// UpdateProfile applies a partial profile update and caches the result.
func (s *Service) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.User, error) {
	if err := validateProfileUpdate(update); err != nil {
		return nil, err
	}
	resp, err := s.client.Patch(ctx, DashboardPath, update)
	if err != nil {
		return nil, err
	}
	return s.cacheUser(resp)
}

// DeleteAccount deletes the current account and clears stored credentials.
func (s *Service) DeleteAccount(ctx context.Context) error {
	if _, err := s.client.Delete(ctx, DashboardPath); err != nil {
		return err
	}
	s.store.ClearAuth()
	return nil
}

func (s *Service) cacheUser(resp *api.Response) (*models.User, error) {
	var u models.User
	if err := resp.UnmarshalData(&u); err != nil {
		return nil, err
	}
	s.store.SetCachedUser(&u)
	return &u, nil
}

// Refresh exchanges the refresh token for a new access token now.
func (s *Service) Refresh(ctx context.Context) error {
	_, err := s.client.Refresh(ctx)
	return err
}

// Status is the local view of the stored session.
type Status struct {
	Authenticated   bool         `json:"authenticated"`
	Origin          string       `json:"origin"`
	Storage         string       `json:"storage"`
	User            *models.User `json:"user,omitempty"`
	Plan            string       `json:"plan"`
	HasRefreshToken bool         `json:"has_refresh_token"`
	ExpiresAt       *time.Time   `json:"expires_at,omitempty"`
	Expired         bool         `json:"expired"`
}

// Status reports the stored session without contacting the server. The
// access token's expiry is read from its claims without verification.
func (s *Service) Status() Status {
	rec := s.store.Snapshot()
	st := Status{
		Authenticated:   rec.AccessToken != "",
		Origin:          s.store.Origin(),
		Storage:         "file",
		User:            rec.User,
		Plan:            rec.User.Plan(),
		HasRefreshToken: rec.RefreshToken != "",
	}
	if s.store.UsingKeyring() {
		st.Storage = "keyring"
	}
	if exp, ok := TokenExpiry(rec.AccessToken); ok {
		st.ExpiresAt = &exp
		st.Expired = !s.now().Before(exp)
	}
	return st
}

// TokenExpiry decodes the exp claim of a JWT without verifying it.
func TokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
