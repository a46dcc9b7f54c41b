package ports

import (
	"context"
	"time"
)

// KVStore is a key-value backing for client-side session state
type KVStore interface {
	// Set writes value under key. A zero ttl means the value does not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns core.ErrNotFound when key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, keys ...string) error
}
