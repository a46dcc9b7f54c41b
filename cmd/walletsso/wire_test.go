package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/walletsso/config"
	"github.com/layer-3/walletsso/core"
)

func TestWire(t *testing.T) {
	cfg := config.Default()
	cfg.StatePath = filepath.Join(t.TempDir(), "state.json")
	cfg.ClientID = "app-1"
	cfg.RedirectURI = "https://app.example.com/callback"

	a, err := wire(cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, core.StateIdle, a.svc.State())
	assert.NotNil(t, a.metrics)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	u, err := a.svc.AuthorizeURL(ctx)
	require.NoError(t, err)
	assert.Contains(t, u, "client_id=app-1")
}

func TestWireRejectsBadRedisURL(t *testing.T) {
	cfg := config.Default()
	cfg.StatePath = filepath.Join(t.TempDir(), "state.json")
	cfg.RedisURL = "not a url"

	_, err := wire(cfg)
	assert.ErrorContains(t, err, "failed to parse Redis URL")
}

func TestLoadVerifyKey(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		key, err := loadVerifyKey("")
		require.NoError(t, err)
		assert.Nil(t, key)
	})

	t.Run("pem file", func(t *testing.T) {
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)
		der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "key.pem")
		require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

		key, err := loadVerifyKey(path)
		require.NoError(t, err)
		assert.True(t, key.Equal(&priv.PublicKey))
	})

	t.Run("garbage", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "key.pem")
		require.NoError(t, os.WriteFile(path, []byte("nope"), 0o600))

		_, err := loadVerifyKey(path)
		assert.ErrorContains(t, err, "failed to parse token verify key")
	})
}

func TestChainFilter(t *testing.T) {
	cfg := config.Default()
	cfg.Chains = []core.ChainType{core.ChainEthereum, core.ChainSolana}

	chains, err := chainFilter(cfg, []string{"Ethereum", " solana "})
	require.NoError(t, err)
	assert.Equal(t, []core.ChainType{core.ChainEthereum, core.ChainSolana}, chains)

	chains, err = chainFilter(cfg, nil)
	require.NoError(t, err)
	assert.Empty(t, chains)

	_, err = chainFilter(cfg, []string{"dogecoin"})
	assert.ErrorIs(t, err, core.ErrUnsupportedChain)

	_, err = chainFilter(cfg, []string{"cardano"})
	assert.ErrorContains(t, err, "not enabled")
}
