package env

import (
	"context"
	"errors"
	"testing"

	"github.com/layer-3/walletsso/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticGlobalsAndFlags(t *testing.T) {
	e := NewStatic(map[string]any{
		"ethereum": map[string]any{"isMetaMask": true, "isRabby": false},
		"empty":    "",
	})

	eth, ok := e.Global("ethereum")
	require.True(t, ok)

	_, ok = eth.Get("isMetaMask")
	assert.True(t, ok)
	_, ok = eth.Get("isRabby")
	assert.False(t, ok, "false flags read as absent")
	_, ok = eth.Get("missing")
	assert.False(t, ok)

	_, ok = e.Global("empty")
	assert.False(t, ok)
	_, ok = e.Global("solana")
	assert.False(t, ok)
}

func TestStaticCall(t *testing.T) {
	provider := map[string]any{
		"signMessage": Func(func(ctx context.Context, args ...any) (any, error) {
			return map[string]any{"signature": []byte{0x01, 0xab}}, nil
		}),
		"fail": Func(func(ctx context.Context, args ...any) (any, error) {
			return nil, &core.ProviderError{Code: 4001, Message: "User rejected the request."}
		}),
	}
	obj := Wrap(provider)

	res, err := obj.Call(context.Background(), "signMessage", []byte("hi"))
	require.NoError(t, err)
	raw, err := res.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"signature":[1,171]}`, string(raw))

	_, err = obj.Call(context.Background(), "fail")
	var perr *core.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 4001, perr.Code)

	_, err = obj.Call(context.Background(), "nope")
	assert.Error(t, err)

	raw, err = obj.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw), "methods are not serialized")
}

func TestStaticAnnouncements(t *testing.T) {
	e := NewStatic(nil)
	e.Announce(core.ProviderInfo{UUID: "u1", Name: "MetaMask"}, map[string]any{})

	var got []core.Announcement
	remove := e.OnAnnounce(func(a core.Announcement) { got = append(got, a) })
	assert.Equal(t, 1, e.ListenerCount())

	e.RequestProviders()
	remove()
	e.RequestProviders()

	require.Len(t, got, 1)
	assert.Equal(t, "MetaMask", got[0].Info.Name)
	assert.Equal(t, 0, e.ListenerCount())
}
