package service

import (
	"context"
	"errors"
	"time"

	"github.com/layer-3/walletsso/core"
)

// Restore reinstates a persisted session once the backend confirms its token.
// It returns a nil user when there is nothing to restore. A token the backend
// rejects, as invalid or with an error answer, is cleared silently.
func (s *AuthService) Restore(ctx context.Context) (*core.User, error) {
	if user := s.authenticatedUser(); user != nil {
		return user, nil
	}

	stored, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, nil
	}

	validation, err := s.backend.ValidateToken(ctx, stored.Token)
	if errors.Is(err, core.ErrBackend) {
		validation, err = &core.TokenValidation{Error: core.UserMessage(err)}, nil
	}
	if err != nil {
		// Unreachable backend: keep the stored session for the next attempt
		return nil, err
	}
	if !validation.Valid {
		s.logger.Info("stored session rejected by backend", map[string]any{"reason": validation.Error})
		if err := s.store.Clear(ctx); err != nil {
			s.logger.Warn("failed to clear rejected session", map[string]any{"error": err})
		}
		return nil, nil
	}

	sess := *stored
	if validation.User != nil {
		sess.User = *validation.User
		if sess.User.Address == "" {
			sess.User.Address = stored.User.Address
		}
		if sess.User.ChainType == "" {
			sess.User.ChainType = stored.User.ChainType
		}
	}
	if !validation.ExpiresAt.IsZero() {
		sess.ExpiresAt = validation.ExpiresAt
	}

	s.mu.Lock()
	if s.state.InFlight() {
		s.mu.Unlock()
		return nil, nil
	}
	s.session = &sess
	prev := s.state
	s.state = core.StateAuthenticated
	s.mu.Unlock()

	s.changed(prev, core.StateAuthenticated)
	user := sess.User
	s.emit(core.Event{Type: core.EventAuthenticated, User: &user})
	s.logger.Info("session restored", map[string]any{"address": user.Address})

	s.startRefresh()
	return &user, nil
}

// Logout ends the session on the backend and clears it locally. The backend call is
// best effort: local state is cleared even when it fails.
func (s *AuthService) Logout(ctx context.Context) error {
	return s.logout(ctx, "logout", s.backend.Logout)
}

// LogoutAll ends every session of the user on the backend and clears the local one
func (s *AuthService) LogoutAll(ctx context.Context) error {
	return s.logout(ctx, "logout_all", s.backend.LogoutAll)
}

func (s *AuthService) logout(ctx context.Context, op string, remote func(context.Context, string) error) error {
	s.stopRefresh()
	s.CancelLogin()

	sess := s.Session()
	if sess == nil {
		// Still drop whatever a previous process left behind
		if stored, err := s.store.Get(ctx); err == nil && stored != nil {
			sess = stored
		}
	}

	if sess != nil {
		if err := remote(ctx, sess.Token); err != nil {
			s.logger.Warn("backend logout failed", map[string]any{"op": op, "error": err})
		}
	}

	s.persistMu.Lock()
	err := s.store.Clear(ctx)
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
	s.persistMu.Unlock()

	s.setState(core.StateIdle)
	if sess != nil {
		s.emit(core.Event{Type: core.EventLogout, User: &sess.User})
		s.metrics.IncCounter(op, chainLabel(sess.User.ChainType))
	}
	return err
}

// RefreshToken exchanges the current token for a fresh one and persists it in place.
// State is left untouched on failure.
func (s *AuthService) RefreshToken(ctx context.Context) (*core.Session, error) {
	current, err := s.live(ctx)
	if err != nil {
		return nil, err
	}

	start := s.now()
	res, err := s.backend.Refresh(ctx, current.Token)
	if err != nil {
		s.metrics.IncCounter("refresh_failed", chainLabel(current.User.ChainType))
		return nil, err
	}

	next := core.Session{Token: res.Token, User: current.User, ExpiresAt: s.expiry(res)}
	if res.User != nil && res.User.Address != "" {
		next.User = *res.User
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	// A logout or a new login may have happened while the request was out
	s.mu.RLock()
	stale := s.session == nil || s.session.Token != current.Token
	s.mu.RUnlock()
	if stale {
		return nil, core.ErrNotAuthenticated
	}

	if err := s.store.Save(ctx, next); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.session = &next
	s.mu.Unlock()

	s.emit(core.Event{Type: core.EventTokenRefreshed, User: &next.User, Data: next.ExpiresAt})
	s.metrics.IncCounter("refresh", chainLabel(next.User.ChainType))
	s.metrics.ObserveLatency("refresh", s.now().Sub(start), chainLabel(next.User.ChainType))
	return &next, nil
}

// ValidateToken checks token with the backend, defaulting to the current session's.
// A current session the backend reports invalid, or answers with an error for, is dropped.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*core.TokenValidation, error) {
	current := s.Session()
	if token == "" {
		if current == nil {
			return nil, core.ErrNotAuthenticated
		}
		token = current.Token
	}

	validation, err := s.backend.ValidateToken(ctx, token)
	if errors.Is(err, core.ErrBackend) && current != nil && current.Token == token {
		s.invalidate(ctx, current.Token)
	}
	if err != nil {
		return nil, err
	}

	if !validation.Valid && current != nil && current.Token == token {
		s.invalidate(ctx, current.Token)
	}
	return validation, nil
}

// Status asks the backend about the current session
func (s *AuthService) Status(ctx context.Context) (*core.TokenValidation, error) {
	current, err := s.live(ctx)
	if err != nil {
		return nil, err
	}
	return s.backend.Status(ctx, current.Token)
}

// Health checks that the backend is reachable
func (s *AuthService) Health(ctx context.Context) error {
	return s.backend.Health(ctx)
}

// live returns the current session, dropping it once past its expiry
func (s *AuthService) live(ctx context.Context) (*core.Session, error) {
	current := s.Session()
	if current == nil {
		return nil, core.ErrNotAuthenticated
	}
	if current.Expired(s.now()) {
		s.invalidate(ctx, current.Token)
		return nil, core.ErrSessionExpired
	}
	return current, nil
}

// invalidate drops the session holding token without calling the backend
func (s *AuthService) invalidate(ctx context.Context, token string) {
	s.persistMu.Lock()
	s.mu.Lock()
	if s.session == nil || s.session.Token != token {
		s.mu.Unlock()
		s.persistMu.Unlock()
		return
	}
	s.session = nil
	s.mu.Unlock()
	err := s.store.Clear(ctx)
	s.persistMu.Unlock()

	if err != nil {
		s.logger.Warn("failed to clear invalid session", map[string]any{"error": err})
	}
	s.stopRefresh()
	s.setState(core.StateIdle)
	s.logger.Info("session invalidated", nil)
}

func (s *AuthService) startRefresh() {
	if s.refreshInterval <= 0 || s.closed.Load() {
		return
	}

	s.mu.Lock()
	if s.refreshCancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.refreshCancel = cancel
	s.mu.Unlock()

	go s.refreshLoop(ctx)
}

func (s *AuthService) stopRefresh() {
	s.mu.Lock()
	cancel := s.refreshCancel
	s.refreshCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// refreshLoop refreshes the token every interval. Failures are logged and swallowed.
func (s *AuthService) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RefreshToken(ctx); err != nil {
				if !errors.Is(err, core.ErrNotAuthenticated) && !errors.Is(err, core.ErrSessionExpired) {
					s.logger.Warn("token refresh failed", map[string]any{"error": err})
				}
				continue
			}
			s.logger.Debug("token refreshed", nil)
		}
	}
}
