package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/layer-3/walletsso/core"
)

var errOAuthDisabled = errors.New("OAuth redirect flow is not configured")

// AuthorizeURL starts the redirect variant: it stores a single-use anti-forgery
// state and returns the backend authorization URL carrying it
func (s *AuthService) AuthorizeURL(ctx context.Context) (string, error) {
	if s.oauth == nil {
		return "", errOAuthDisabled
	}

	stateBytes := make([]byte, 32)
	if _, err := rand.Read(stateBytes); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	state := hex.EncodeToString(stateBytes)

	if err := s.store.SaveState(ctx, state, s.stateTTL); err != nil {
		return "", err
	}
	return s.oauth.AuthCodeURL(state), nil
}

// CompleteOAuth finishes the redirect variant. The stored state is consumed whether
// or not it matches.
func (s *AuthService) CompleteOAuth(ctx context.Context, code, state string) (*core.User, error) {
	if s.oauth == nil {
		return nil, errOAuthDisabled
	}

	return s.coalesce(ctx, func(ctx context.Context, a *attempt) (*core.User, error) {
		expected, err := s.store.TakeState(ctx)
		if err != nil {
			return nil, s.fail(a, "", err)
		}
		if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(state)) != 1 {
			return nil, s.fail(a, "", core.ErrStateMismatch)
		}

		s.transition(a, core.StateVerifying)
		res, err := s.oauth.Exchange(ctx, code)
		if !a.open.Load() {
			return nil, core.ErrLoginCancelled
		}
		if err != nil {
			return nil, s.fail(a, "", err)
		}

		var address string
		var chain core.ChainType
		if res.User != nil {
			address, chain = res.User.Address, res.User.ChainType
		}
		return s.authenticate(ctx, a, res, address, chain)
	})
}
