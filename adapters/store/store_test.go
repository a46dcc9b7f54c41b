package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/layer-3/walletsso/core"
	"github.com/layer-3/walletsso/ports"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backings(t *testing.T) map[string]ports.KVStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	jar, err := NewCookieJar()
	require.NoError(t, err)
	cookies, err := NewCookieStore(jar, "https://auth.example.com")
	require.NoError(t, err)

	return map[string]ports.KVStore{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(client),
		"cookie": cookies,
		"file":   NewFileStore(filepath.Join(t.TempDir(), "session.json")),
	}
}

func TestKVStoreContract(t *testing.T) {
	for name, s := range backings(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Get(ctx, "missing")
			assert.ErrorIs(t, err, core.ErrNotFound)

			value := []byte(`{"token":"tok1","user":{"address":"0xabc"}}`)
			require.NoError(t, s.Set(ctx, "walletsso_session", value, time.Hour))
			require.NoError(t, s.Set(ctx, "walletsso_oauth_state", []byte("st"), 0))

			got, err := s.Get(ctx, "walletsso_session")
			require.NoError(t, err)
			assert.Equal(t, value, got)

			require.NoError(t, s.Set(ctx, "walletsso_session", []byte("v2"), time.Hour))
			got, err = s.Get(ctx, "walletsso_session")
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), got)

			require.NoError(t, s.Delete(ctx, "walletsso_session", "walletsso_oauth_state", "never-set"))
			_, err = s.Get(ctx, "walletsso_session")
			assert.ErrorIs(t, err, core.ErrNotFound)
			_, err = s.Get(ctx, "walletsso_oauth_state")
			assert.ErrorIs(t, err, core.ErrNotFound)
		})
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 20*time.Millisecond))
	_, err := s.Get(ctx, "k")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := s.Get(ctx, "k")
		return err == core.ErrNotFound
	}, time.Second, 5*time.Millisecond)
}

func TestRedisStorePrefixAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStore(client)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "walletsso_session", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("walletsso:walletsso_session"))
	assert.Equal(t, time.Minute, mr.TTL("walletsso:walletsso_session"))

	mr.FastForward(2 * time.Minute)
	_, err := s.Get(ctx, "walletsso_session")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	ctx := context.Background()

	require.NoError(t, NewFileStore(path).Set(ctx, "k", []byte("durable"), 0))

	got, err := NewFileStore(path).Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("durable"), got)
}

func TestCookieStoreInvalidOrigin(t *testing.T) {
	jar, err := NewCookieJar()
	require.NoError(t, err)

	_, err = NewCookieStore(jar, "not a url")
	assert.Error(t, err)
}
