package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/layer-3/walletsso/core"
	"github.com/layer-3/walletsso/registry"
)

const loginFlight = "login"

var errClosed = errors.New("auth service is closed")

// attempt is one login flow. It stays open until it is cancelled or commits a session.
type attempt struct {
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	open    atomic.Bool
	started time.Time
}

// Wallets runs a detection pass over the configured chains
func (s *AuthService) Wallets(ctx context.Context) []core.DiscoveredWallet {
	owned := s.detecting(nil)
	wallets := s.detect(ctx)
	if owned {
		s.settle()
	}
	return wallets
}

// Login detects wallets and connects the only installed one, or the one picked by
// the chooser. Without a chooser and with zero or several installed wallets it leaves
// the engine ready and returns core.ErrSelectionRequired.
// A call made while another login is in flight joins that login.
func (s *AuthService) Login(ctx context.Context) (*core.User, error) {
	if user := s.authenticatedUser(); user != nil {
		return user, nil
	}
	return s.coalesce(ctx, func(ctx context.Context, a *attempt) (*core.User, error) {
		return s.login(ctx, a, true)
	})
}

// LoginWith authenticates with the wallet of the given registry id
func (s *AuthService) LoginWith(ctx context.Context, walletID string) (*core.User, error) {
	if user := s.authenticatedUser(); user != nil {
		return user, nil
	}
	return s.coalesce(ctx, func(ctx context.Context, a *attempt) (*core.User, error) {
		wallet, err := s.lookup(ctx, a, walletID)
		if err != nil {
			return nil, s.fail(a, "", err)
		}
		return s.handshake(ctx, a, wallet)
	})
}

// CancelLogin abandons the login in flight. Provider calls already issued may still
// complete; their results are discarded.
func (s *AuthService) CancelLogin() {
	s.mu.Lock()
	a := s.current
	s.current = nil
	if a == nil || !a.open.CompareAndSwap(true, false) {
		s.mu.Unlock()
		return
	}
	prev := s.state
	if prev != core.StateAuthenticated && prev != core.StateIdle {
		s.state = core.StateReady
	}
	st := s.state
	s.mu.Unlock()

	a.cancel()
	s.logger.Info("login cancelled", map[string]any{"attempt": a.id})
	s.changed(prev, st)
}

// coalesce runs flow as the single login in flight, or waits for the one already running
func (s *AuthService) coalesce(ctx context.Context, flow func(context.Context, *attempt) (*core.User, error)) (*core.User, error) {
	if s.closed.Load() {
		return nil, errClosed
	}

	ch := s.flights.DoChan(loginFlight, func() (any, error) {
		a := s.begin(ctx)
		defer s.end(a)
		return flow(a.ctx, a)
	})

	select {
	case res := <-ch:
		user, _ := res.Val.(*core.User)
		return user, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *AuthService) begin(ctx context.Context) *attempt {
	a := &attempt{id: uuid.NewString(), started: s.now()}
	a.open.Store(true)
	// The attempt outlives callers that stop waiting. CancelLogin ends it.
	a.ctx, a.cancel = context.WithCancel(context.WithoutCancel(ctx))

	s.mu.Lock()
	s.current = a
	s.mu.Unlock()

	s.logger.Debug("login started", map[string]any{"attempt": a.id})
	return a
}

func (s *AuthService) end(a *attempt) {
	a.cancel()

	s.mu.Lock()
	if s.current == a {
		s.current = nil
	}
	s.mu.Unlock()
}

func (s *AuthService) login(ctx context.Context, a *attempt, interactive bool) (*core.User, error) {
	s.detecting(a)
	wallets := s.detect(ctx)
	if !a.open.Load() {
		return nil, core.ErrLoginCancelled
	}

	installed := core.InstalledOnly(wallets)
	if len(installed) == 1 {
		s.transition(a, core.StateAutoConnecting)
		return s.handshake(ctx, a, installed[0])
	}

	s.transition(a, core.StateReady)
	if !interactive || s.chooser == nil {
		return nil, core.ErrSelectionRequired
	}

	id, err := s.chooser(ctx, wallets)
	if !a.open.Load() {
		return nil, core.ErrLoginCancelled
	}
	if err != nil {
		return nil, s.fail(a, "", err)
	}

	wallet, ok := find(wallets, id)
	if !ok {
		return nil, s.fail(a, "", fmt.Errorf("%w: %s", core.ErrUnknownWallet, id))
	}
	return s.handshake(ctx, a, wallet)
}

// handshake runs connect, challenge, sign and verify strictly in sequence
func (s *AuthService) handshake(ctx context.Context, a *attempt, wallet core.DiscoveredWallet) (*core.User, error) {
	if !s.transition(a, core.StateConnecting) {
		return nil, core.ErrLoginCancelled
	}
	s.emit(core.Event{Type: core.EventWalletConnecting, Wallet: wallet.ID})

	address, err := s.connector.Connect(ctx, wallet)
	if !a.open.Load() {
		return nil, core.ErrLoginCancelled
	}
	if err != nil {
		return nil, s.fail(a, wallet.Chain, err)
	}
	s.emit(core.Event{Type: core.EventWalletConnected, Wallet: wallet.ID, Address: address})

	challenge, err := s.backend.Challenge(ctx, address, wallet.Chain)
	if !a.open.Load() {
		return nil, core.ErrLoginCancelled
	}
	if err != nil {
		return nil, s.fail(a, wallet.Chain, err)
	}

	s.transition(a, core.StateSigning)
	signature, err := s.connector.SignMessage(ctx, wallet, challenge.Message)
	if !a.open.Load() {
		return nil, core.ErrLoginCancelled
	}
	if err != nil {
		return nil, s.fail(a, wallet.Chain, err)
	}
	if signature == "" {
		return nil, s.fail(a, wallet.Chain, &core.WalletError{Wallet: wallet.Name, Err: core.ErrSignatureFailed})
	}

	s.transition(a, core.StateVerifying)
	res, err := s.backend.Verify(ctx, core.VerifyRequest{
		Address:   address,
		Signature: signature,
		Nonce:     challenge.Nonce,
		ChainType: wallet.Chain,
	})
	if !a.open.Load() {
		return nil, core.ErrLoginCancelled
	}
	if err != nil {
		return nil, s.fail(a, wallet.Chain, err)
	}

	return s.authenticate(ctx, a, res, address, wallet.Chain)
}

// authenticate commits a successful backend answer: persist, publish, start refreshing
func (s *AuthService) authenticate(ctx context.Context, a *attempt, res *core.AuthResult, address string, chain core.ChainType) (*core.User, error) {
	if !res.Authenticated || res.Token == "" {
		msg := res.Error
		if msg == "" {
			msg = "Authentication failed"
		}
		return nil, s.fail(a, chain, &core.BackendError{Status: http.StatusUnauthorized, Message: msg})
	}

	user := core.User{Address: address, ChainType: chain}
	if res.User != nil {
		user = *res.User
		if user.Address == "" {
			user.Address = address
		}
		if user.ChainType == "" {
			user.ChainType = chain
		}
	}
	if user.ChainType == "" {
		user.ChainType = res.ChainType
	}
	sess := core.Session{Token: res.Token, User: user, ExpiresAt: s.expiry(res)}

	// Past this point the attempt can no longer be cancelled
	if !a.open.CompareAndSwap(true, false) {
		return nil, core.ErrLoginCancelled
	}

	s.persistMu.Lock()
	err := s.store.Save(ctx, sess)
	if err == nil {
		s.mu.Lock()
		s.session = &sess
		s.mu.Unlock()
	}
	s.persistMu.Unlock()

	if err != nil {
		return nil, s.raise(user.ChainType, err)
	}

	s.setState(core.StateAuthenticated)
	s.emit(core.Event{Type: core.EventAuthenticated, User: &user})
	s.metrics.IncCounter("login", chainLabel(user.ChainType))
	s.metrics.ObserveLatency("login", s.now().Sub(a.started), chainLabel(user.ChainType))
	s.logger.Info("authenticated", map[string]any{
		"attempt": a.id,
		"address": user.Address,
		"chain":   string(user.ChainType),
	})

	s.startRefresh()
	return &user, nil
}

// fail reports err for attempt a: error state, one error event, then back to ready
func (s *AuthService) fail(a *attempt, chain core.ChainType, err error) error {
	if a != nil && !a.open.Load() {
		return core.ErrLoginCancelled
	}
	return s.raise(chain, err)
}

func (s *AuthService) raise(chain core.ChainType, err error) error {
	s.logger.Warn("login failed", map[string]any{"chain": string(chain), "error": err})
	s.metrics.IncCounter("login_failed", chainLabel(chain))

	s.setState(core.StateError)
	s.emit(core.Event{Type: core.EventError, Err: err})
	s.setState(core.StateReady)
	return err
}

// detecting enters the detecting state on behalf of a, or of a bare detection pass
// when no login owns the machine, and reports whether it did. A session that is
// active or a handshake under way keeps its state.
func (s *AuthService) detecting(a *attempt) bool {
	s.mu.Lock()
	st := s.state
	if st == core.StateAuthenticated || st.InFlight() ||
		(a == nil && s.current != nil) || (a != nil && !a.open.Load()) {
		s.mu.Unlock()
		return false
	}
	s.state = core.StateDetecting
	s.mu.Unlock()

	s.changed(st, core.StateDetecting)
	return true
}

// settle ends a bare detection pass, unless a login took the machine over meanwhile
func (s *AuthService) settle() {
	s.mu.Lock()
	if s.state != core.StateDetecting || s.current != nil {
		s.mu.Unlock()
		return
	}
	s.state = core.StateReady
	s.mu.Unlock()

	s.changed(core.StateDetecting, core.StateReady)
}

func (s *AuthService) detect(ctx context.Context) []core.DiscoveredWallet {
	wallets := s.detector.DetectAll(ctx, s.chains...)

	s.mu.Lock()
	s.wallets = wallets
	s.mu.Unlock()

	s.logger.Debug("wallets detected", map[string]any{
		"total":     len(wallets),
		"installed": len(core.InstalledOnly(wallets)),
	})
	return wallets
}

// lookup finds walletID in the last detection pass, detecting again when it is missing.
// Only a login attempt moves the engine through the detecting state.
func (s *AuthService) lookup(ctx context.Context, a *attempt, walletID string) (core.DiscoveredWallet, error) {
	if _, ok := registry.FindByID(walletID); !ok {
		return core.DiscoveredWallet{}, fmt.Errorf("%w: %s", core.ErrUnknownWallet, walletID)
	}

	s.mu.RLock()
	wallets := s.wallets
	s.mu.RUnlock()

	if wallet, ok := find(wallets, walletID); ok && wallet.Installed {
		return wallet, nil
	}

	if a != nil {
		s.detecting(a)
	}
	if wallet, ok := find(s.detect(ctx), walletID); ok {
		return wallet, nil
	}
	return core.DiscoveredWallet{}, fmt.Errorf("%w: %s is not enabled", core.ErrUnsupportedChain, walletID)
}

func (s *AuthService) authenticatedUser() *core.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != core.StateAuthenticated || s.session == nil {
		return nil
	}
	user := s.session.User
	return &user
}

func find(wallets []core.DiscoveredWallet, id string) (core.DiscoveredWallet, bool) {
	for _, w := range wallets {
		if w.ID == id {
			return w, true
		}
	}
	return core.DiscoveredWallet{}, false
}
