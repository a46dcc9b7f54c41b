package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"

	"github.com/layer-3/walletsso/core"
	"github.com/layer-3/walletsso/events"
	"github.com/layer-3/walletsso/logger"
	"github.com/layer-3/walletsso/metrics"
	"github.com/layer-3/walletsso/ports"
	"github.com/layer-3/walletsso/session"
)

// Chooser asks the user to pick one of the detected wallets and returns its id
type Chooser func(ctx context.Context, wallets []core.DiscoveredWallet) (string, error)

// QRConfig controls the mobile handoff flow
type QRConfig struct {
	Enabled      bool
	Size         int           // PNG edge in pixels
	Timeout      time.Duration // Upper bound on waiting for the mobile side
	PollInterval time.Duration
}

// AuthService drives the wallet authentication state machine
type AuthService struct {
	backend   ports.Backend
	detector  ports.WalletDetector
	connector ports.WalletConnector
	store     *session.Store
	emitter   *events.Emitter

	publisher ports.EventPublisher
	tokenizer ports.Tokenizer
	oauth     ports.OAuthProvider
	chooser   Chooser

	autoConnect     bool
	refreshInterval time.Duration
	chains          []core.ChainType
	qr              QRConfig
	defaultTTL      time.Duration
	stateTTL        time.Duration

	logger  logger.Logger
	metrics metrics.Recorder
	now     func() time.Time

	mu      sync.RWMutex
	state   core.State
	session *core.Session
	wallets []core.DiscoveredWallet
	current *attempt

	// Serializes session writes between login, refresh and logout
	persistMu sync.Mutex

	flights       singleflight.Group
	refreshCancel context.CancelFunc
	closed        atomic.Bool
}

// NewAuthService creates an engine in the idle state
func NewAuthService(
	backend ports.Backend,
	detector ports.WalletDetector,
	connector ports.WalletConnector,
	store *session.Store,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		backend:         backend,
		detector:        detector,
		connector:       connector,
		store:           store,
		autoConnect:     true,
		refreshInterval: time.Hour,
		chains:          append([]core.ChainType(nil), core.AllChains...),
		qr: QRConfig{
			Enabled:      true,
			Size:         256,
			Timeout:      300 * time.Second,
			PollInterval: 2 * time.Second,
		},
		defaultTTL: 24 * time.Hour,
		stateTTL:   10 * time.Minute,
		logger:     logger.NoopLogger{},
		metrics:    metrics.NoopRecorder{},
		now:        time.Now,
		state:      core.StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.emitter = events.NewEmitter(s.logger)
	return s
}

// Start does nothing unless auto-connect is enabled. It then restores a persisted
// session and, when there was none to restore, logs in with the only installed
// wallet if there is exactly one.
func (s *AuthService) Start(ctx context.Context) error {
	if !s.autoConnect {
		return nil
	}
	user, err := s.Restore(ctx)
	if err != nil {
		// The stored session is kept for the next attempt
		s.logger.Warn("session restore failed", map[string]any{"error": err})
		return nil
	}
	if user != nil {
		return nil
	}

	_, err = s.coalesce(ctx, func(ctx context.Context, a *attempt) (*core.User, error) {
		return s.login(ctx, a, false)
	})
	if errors.Is(err, core.ErrSelectionRequired) {
		return nil
	}
	return err
}

// State returns the current state
func (s *AuthService) State() core.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Session returns a copy of the active session, or nil
func (s *AuthService) Session() *core.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	sess := *s.session
	return &sess
}

// User returns the authenticated user, or nil
func (s *AuthService) User() *core.User {
	if sess := s.Session(); sess != nil {
		return &sess.User
	}
	return nil
}

// IsAuthenticated reports whether a session is active
func (s *AuthService) IsAuthenticated() bool {
	return s.State() == core.StateAuthenticated
}

// Subscribe registers h for events of type t and returns its unsubscribe function
func (s *AuthService) Subscribe(t core.EventType, h events.Handler) (off func()) {
	return s.emitter.On(t, h)
}

// SubscribeAll registers h for every event
func (s *AuthService) SubscribeAll(h events.Handler) (off func()) {
	return s.emitter.OnAny(h)
}

// Close stops background work and abandons any login in flight
func (s *AuthService) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.CancelLogin()
	s.stopRefresh()
}

// setState moves the machine to st and announces the change
func (s *AuthService) setState(st core.State) {
	s.transition(nil, st)
}

// transition moves the machine to st on behalf of attempt a. It is a no-op
// once a has been cancelled or committed.
func (s *AuthService) transition(a *attempt, st core.State) bool {
	s.mu.Lock()
	if a != nil && !a.open.Load() {
		s.mu.Unlock()
		return false
	}
	prev := s.state
	s.state = st
	s.mu.Unlock()

	s.changed(prev, st)
	return true
}

func (s *AuthService) changed(prev, st core.State) {
	if prev == st {
		return
	}
	s.logger.Debug("state changed", map[string]any{"from": prev.String(), "to": st.String()})
	s.emit(core.Event{Type: core.EventStateChanged, State: st})
}

// emit delivers event to local subscribers, then forwards it to the publisher
func (s *AuthService) emit(event core.Event) {
	if event.At.IsZero() {
		event.At = s.now()
	}
	s.emitter.Emit(event)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(context.Background(), event); err != nil {
		s.logger.Warn("failed to publish event", map[string]any{"event": string(event.Type), "error": err})
	}
}

// expiry derives the absolute expiry of a new session
func (s *AuthService) expiry(res *core.AuthResult) time.Time {
	switch {
	case !res.ExpiresAt.IsZero():
		return res.ExpiresAt
	case res.ExpiresIn > 0:
		return s.now().Add(time.Duration(res.ExpiresIn) * time.Second)
	}
	if exp := ports.ExpiryFromToken(s.tokenizer, res.Token); !exp.IsZero() {
		return exp
	}
	return s.now().Add(s.defaultTTL)
}

func chainLabel(chain core.ChainType) map[string]string {
	return map[string]string{"chain": string(chain)}
}
