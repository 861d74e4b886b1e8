// Package session is the sign-in facade: it pairs the remote auth endpoints
// with the local credential store and holds the signed-in user fact.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"storefront/pkg/api"
	"storefront/pkg/domain"
	"storefront/pkg/tokens"
)

// Session tracks who is signed in. The user fact lives only in memory; the
// credential pair is what survives restarts, and Restore rebuilds the fact
// from it.
type Session struct {
	api    *api.Client
	tokens *tokens.Store
	log    *slog.Logger

	mu   sync.RWMutex
	user *domain.User
}

func New(client *api.Client, store *tokens.Store, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{api: client, tokens: store, log: logger}
}

// Login exchanges credentials for a pair and installs both the pair and the
// user fact. Nothing changes on failure.
func (s *Session) Login(ctx context.Context, email, password string) (domain.User, error) {
	out, err := s.api.Login(ctx, email, password)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.tokens.Set(ctx, out.Access, out.Refresh); err != nil {
		return domain.User{}, fmt.Errorf("store credentials: %w", err)
	}
	s.setUser(out.User)
	s.log.Info("signed in", "user_id", out.User.ID)
	return out.User, nil
}

// Register submits the registration form. It never signs the user in; a
// successful registration is followed by an explicit Login.
func (s *Session) Register(ctx context.Context, reg api.Registration) error {
	return s.api.Register(ctx, reg)
}

// Logout drops the credential pair and the user fact. It is purely local and
// idempotent; the server is never told.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.tokens.Clear(ctx); err != nil {
		return err
	}
	s.clearUser()
	s.log.Info("signed out")
	return nil
}

// CurrentUser returns the signed-in user fact, if any.
func (s *Session) CurrentUser() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return domain.User{}, false
	}
	return *s.user, true
}

// Profile fetches the authoritative profile and refreshes the user fact.
func (s *Session) Profile(ctx context.Context) (domain.User, error) {
	user, err := s.api.Profile(ctx)
	if err != nil {
		return domain.User{}, err
	}
	s.setUser(user)
	return user, nil
}

// UpdateProfile pushes edited fields and caches the server's echo.
func (s *Session) UpdateProfile(ctx context.Context, update api.ProfileUpdate) (domain.User, error) {
	user, err := s.api.UpdateProfile(ctx, update)
	if err != nil {
		return domain.User{}, err
	}
	s.setUser(user)
	return user, nil
}

// Restore re-establishes the session from a persisted pair at startup. With no
// pair, or a pair the server no longer accepts, it reports signed-out without
// error; transport failures are surfaced so the caller can retry.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	_, found, err := s.tokens.Get(ctx)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	user, err := s.api.Profile(ctx)
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.Unauthenticated() {
			s.log.Info("persisted credentials rejected, starting signed out")
			return false, nil
		}
		return false, err
	}
	s.setUser(user)
	s.log.Info("session restored", "user_id", user.ID)
	return true, nil
}

// HandleAuthExpired is the forced-logout target for the dispatcher: the
// credentials are already gone, so only the user fact needs dropping.
func (s *Session) HandleAuthExpired() {
	s.clearUser()
	s.log.Warn("session expired, signed out")
}

func (s *Session) setUser(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &user
}

func (s *Session) clearUser() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
}
