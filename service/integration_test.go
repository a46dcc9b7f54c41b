package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/walletsso/adapters/backend"
	"github.com/layer-3/walletsso/adapters/env"
	"github.com/layer-3/walletsso/adapters/store"
	"github.com/layer-3/walletsso/connector"
	"github.com/layer-3/walletsso/core"
	"github.com/layer-3/walletsso/detector"
	"github.com/layer-3/walletsso/ports"
	"github.com/layer-3/walletsso/session"
)

const injectedAddress = "0x52908400098527886E0F7030069857D2E4169EE7"

func authServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	verifies := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/challenge", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"sign-me","nonce":"n1"}`))
	})
	mux.HandleFunc("/auth/verify", func(w http.ResponseWriter, r *http.Request) {
		verifies++
		var req core.VerifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Signature != "0xdeadbeef" || req.Nonce != "n1" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Invalid signature"}`))
			return
		}
		w.Write([]byte(`{"authenticated":true,"token":"tok1","user":{"address":"` + req.Address + `","chainType":"ethereum","points":42},"expiresIn":3600}`))
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &verifies
}

func TestLoginWithInjectedProvider(t *testing.T) {
	srv, verifies := authServer(t)

	var signParams []any
	host := env.NewStatic(map[string]any{
		"ethereum": map[string]any{
			"isMetaMask": true,
			"request": env.Func(func(ctx context.Context, args ...any) (any, error) {
				req := args[0].(map[string]any)
				switch req["method"] {
				case "eth_requestAccounts":
					return []any{injectedAddress}, nil
				case "personal_sign":
					signParams = req["params"].([]any)
					return "0xdeadbeef", nil
				}
				return nil, errors.New("unsupported method")
			}),
		},
	})

	st, err := session.NewStore(map[core.StorageKind]ports.KVStore{
		core.StorageMemory: store.NewMemoryStore(),
	}, core.StorageMemory)
	require.NoError(t, err)

	svc := NewAuthService(
		backend.NewClient(srv.URL),
		detector.New(host, detector.WithAnnounceWindow(5*time.Millisecond)),
		connector.New(),
		st,
		WithRefreshInterval(0),
	)
	defer svc.Close()

	user, err := svc.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, injectedAddress, user.Address)
	assert.Equal(t, "42", user.Points.String())
	assert.Equal(t, []any{"sign-me", injectedAddress}, signParams)
	assert.Equal(t, 1, *verifies)

	stored, err := st.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok1", stored.Token)

	// Backend logout fails with 503, local state is still cleared
	require.NoError(t, svc.Logout(context.Background()))
	assert.False(t, st.IsValid(context.Background()))
	assert.Equal(t, core.StateIdle, svc.State())
}
