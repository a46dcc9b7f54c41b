package session

import (
	"context"
	"testing"
	"time"

	"github.com/layer-3/walletsso/adapters/store"
	"github.com/layer-3/walletsso/core"
	"github.com/layer-3/walletsso/ports"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, ports.KVStore, ports.KVStore) {
	t.Helper()
	local := store.NewMemoryStore()
	volatile := store.NewMemoryStore()

	s, err := NewStore(map[core.StorageKind]ports.KVStore{
		core.StorageLocal:   local,
		core.StorageSession: volatile,
	}, core.StorageLocal)
	require.NoError(t, err)
	return s, local, volatile
}

func sampleSession(expiresAt time.Time) core.Session {
	return core.Session{
		Token: "tok1",
		User: core.User{
			Address:   "0x52908400098527886E0F7030069857D2E4169EE7",
			ChainType: core.ChainEthereum,
			Points:    decimal.NewFromInt(120),
			Tier:      "Gold",
			JoinedAt:  "2024-01-02T00:00:00Z",
		},
		ExpiresAt: expiresAt,
	}
}

func TestRoundTrip(t *testing.T) {
	s, _, _ := newStore(t)
	ctx := context.Background()
	original := sampleSession(time.Now().Add(time.Hour).UTC().Truncate(time.Second))

	require.NoError(t, s.Save(ctx, original))

	got, err := s.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, original.Token, got.Token)
	assert.True(t, original.ExpiresAt.Equal(got.ExpiresAt))
	assert.Equal(t, original.User.Address, got.User.Address)
	assert.Equal(t, original.User.ChainType, got.User.ChainType)
	assert.True(t, original.User.Points.Equal(got.User.Points))
	assert.Equal(t, original.User.Tier, got.User.Tier)
	assert.Equal(t, original.User.JoinedAt, got.User.JoinedAt)
	assert.True(t, s.IsValid(ctx))
}

func TestExpiredSessionIsClearedOnRead(t *testing.T) {
	s, local, _ := newStore(t)
	ctx := context.Background()

	// Written directly so no backing ttl is involved
	raw := []byte(`{"token":"tok1","user":{"address":"0xabc","chainType":"ethereum","points":0},"expiresAt":"2020-01-01T00:00:00Z"}`)
	require.NoError(t, local.Set(ctx, Key, raw, 0))

	first, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, first)

	_, err = local.Get(ctx, Key)
	assert.ErrorIs(t, err, core.ErrNotFound, "expired session must be deleted by the first read")

	second, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, second)
	assert.False(t, s.IsValid(ctx))
}

func TestExpiryUsesClock(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	local := store.NewMemoryStore()
	s, err := NewStore(map[core.StorageKind]ports.KVStore{core.StorageMemory: local}, core.StorageMemory,
		WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleSession(now.Add(time.Minute))))
	assert.True(t, s.IsValid(ctx))

	now = now.Add(2 * time.Minute)
	assert.False(t, s.IsValid(ctx))
}

func TestMalformedSessionIsAbsent(t *testing.T) {
	s, local, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, local.Set(ctx, Key, []byte("{not json"), 0))

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = local.Get(ctx, Key)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSaveRejectsMissingToken(t *testing.T) {
	s, _, _ := newStore(t)
	err := s.Save(context.Background(), core.Session{ExpiresAt: time.Now().Add(time.Hour)})
	assert.Error(t, err)
}

func TestConfigureSwitchesWithoutMigrating(t *testing.T) {
	s, _, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleSession(time.Now().Add(time.Hour))))

	require.NoError(t, s.Configure(core.StorageSession))
	require.NoError(t, s.Configure(core.StorageSession))
	assert.Equal(t, core.StorageSession, s.Kind())
	assert.False(t, s.IsValid(ctx))

	require.NoError(t, s.Configure(core.StorageLocal))
	assert.True(t, s.IsValid(ctx))

	assert.ErrorIs(t, s.Configure(core.StorageRedis), core.ErrUnknownStorage)
	assert.Equal(t, core.StorageLocal, s.Kind())
}

func TestClearRemovesFromAllBackings(t *testing.T) {
	s, local, volatile := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleSession(time.Now().Add(time.Hour))))
	require.NoError(t, s.SaveState(ctx, "state-1", time.Minute))
	require.NoError(t, s.Configure(core.StorageSession))
	require.NoError(t, s.Save(ctx, sampleSession(time.Now().Add(time.Hour))))

	require.NoError(t, s.Clear(ctx))

	for _, b := range []ports.KVStore{local, volatile} {
		_, err := b.Get(ctx, Key)
		assert.ErrorIs(t, err, core.ErrNotFound)
		_, err = b.Get(ctx, StateKey)
		assert.ErrorIs(t, err, core.ErrNotFound)
	}
}

func TestTakeStateIsSingleUse(t *testing.T) {
	s, _, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveState(ctx, "abc", time.Minute))

	state, err := s.TakeState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", state)

	state, err = s.TakeState(ctx)
	require.NoError(t, err)
	assert.Empty(t, state)
}
