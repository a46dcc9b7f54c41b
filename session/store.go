package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/layer-3/walletsso/core"
	"github.com/layer-3/walletsso/logger"
	"github.com/layer-3/walletsso/ports"
)

const (
	// Key holds the serialized session
	Key = "walletsso_session"
	// StateKey holds the single-use anti-forgery token of the OAuth redirect flow
	StateKey = "walletsso_oauth_state"
)

// Store persists the current session in the configured backing. It keeps no copy of its own.
type Store struct {
	mu       sync.RWMutex
	backings map[core.StorageKind]ports.KVStore
	active   core.StorageKind

	now    func() time.Time
	logger logger.Logger
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for expiry checks
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the store logger
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		s.logger = logger.OrNoop(l)
	}
}

// NewStore creates a store over the given backings with active selected
func NewStore(backings map[core.StorageKind]ports.KVStore, active core.StorageKind, opts ...Option) (*Store, error) {
	s := &Store{
		backings: make(map[core.StorageKind]ports.KVStore, len(backings)),
		now:      time.Now,
		logger:   logger.NoopLogger{},
	}
	for kind, b := range backings {
		s.backings[kind] = b
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.Configure(active); err != nil {
		return nil, err
	}
	return s, nil
}

// Configure switches the active backing. Data is not migrated.
func (s *Store) Configure(kind core.StorageKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.backings[kind]; !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownStorage, kind)
	}
	s.active = kind
	return nil
}

// Kind returns the active backing kind
func (s *Store) Kind() core.StorageKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Store) backing() ports.KVStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backings[s.active]
}

// Save writes session under Key, replacing any previous one
func (s *Store) Save(ctx context.Context, session core.Session) error {
	if session.Token == "" {
		return errors.New("refusing to persist a session without token")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	var ttl time.Duration
	if !session.ExpiresAt.IsZero() {
		ttl = session.ExpiresAt.Sub(s.now())
	}
	if ttl < 0 {
		ttl = 0
	}

	if err := s.backing().Set(ctx, Key, data, ttl); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Get returns the stored session, or nil when there is none. An expired or
// unreadable session is cleared and reported as absent.
func (s *Store) Get(ctx context.Context) (*core.Session, error) {
	b := s.backing()

	data, err := b.Get(ctx, Key)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var session core.Session
	if err := json.Unmarshal(data, &session); err != nil || session.Token == "" {
		s.logger.Warn("discarding malformed session", map[string]any{"error": err})
		s.drop(ctx, b)
		return nil, nil
	}

	if session.Expired(s.now()) {
		s.logger.Debug("session expired", map[string]any{"expiresAt": session.ExpiresAt})
		s.drop(ctx, b)
		return nil, nil
	}

	return &session, nil
}

func (s *Store) drop(ctx context.Context, b ports.KVStore) {
	if err := b.Delete(ctx, Key); err != nil {
		s.logger.Warn("failed to delete session", map[string]any{"error": err})
	}
}

// Clear removes every session key from every backing
func (s *Store) Clear(ctx context.Context) error {
	s.mu.RLock()
	backings := make([]ports.KVStore, 0, len(s.backings))
	for _, b := range s.backings {
		backings = append(backings, b)
	}
	s.mu.RUnlock()

	var errs []error
	for _, b := range backings {
		if err := b.Delete(ctx, Key, StateKey); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// IsValid reports whether a live session is stored
func (s *Store) IsValid(ctx context.Context) bool {
	session, err := s.Get(ctx)
	return err == nil && session != nil
}

// SaveState stores the anti-forgery token of a pending OAuth redirect
func (s *Store) SaveState(ctx context.Context, state string, ttl time.Duration) error {
	if err := s.backing().Set(ctx, StateKey, []byte(state), ttl); err != nil {
		return fmt.Errorf("failed to save oauth state: %w", err)
	}
	return nil
}

// TakeState returns the pending anti-forgery token and deletes it
func (s *Store) TakeState(ctx context.Context) (string, error) {
	b := s.backing()

	data, err := b.Get(ctx, StateKey)
	if errors.Is(err, core.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read oauth state: %w", err)
	}

	if err := b.Delete(ctx, StateKey); err != nil {
		return "", fmt.Errorf("failed to delete oauth state: %w", err)
	}
	return string(data), nil
}
