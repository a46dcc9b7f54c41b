package detector

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/layer-3/walletsso/adapters/env"
	"github.com/layer-3/walletsso/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func byID(wallets []core.DiscoveredWallet) map[string]core.DiscoveredWallet {
	out := make(map[string]core.DiscoveredWallet, len(wallets))
	for _, w := range wallets {
		out[w.ID] = w
	}
	return out
}

func installedIDs(wallets []core.DiscoveredWallet) []string {
	var out []string
	for _, w := range core.InstalledOnly(wallets) {
		out = append(out, w.ID)
	}
	return out
}

func fastDetector(e core.Environment) *Detector {
	return New(e, WithAnnounceWindow(5*time.Millisecond))
}

func TestDetectAllCompleteness(t *testing.T) {
	e := env.NewStatic(map[string]any{
		"ethereum":     map[string]any{"isMetaMask": true},
		"phantom":      map[string]any{"solana": map[string]any{"isPhantom": true}},
		"unisat":       map[string]any{},
		"cardano":      map[string]any{"eternl": map[string]any{"name": "eternl"}},
		"injectedWeb3": map[string]any{"polkadot-js": map[string]any{}},
	})

	first := fastDetector(e).DetectAll(context.Background())
	second := fastDetector(e).DetectAll(context.Background())

	require.Len(t, first, 10)
	assert.Equal(t, []string{"metamask", "phantom-solana", "unisat", "eternl"}, installedIDs(first))
	assert.Equal(t, installedIDs(first), installedIDs(second))

	for _, w := range first {
		if w.Installed {
			assert.NotNil(t, w.Provider, w.ID)
		} else {
			assert.Nil(t, w.Provider, w.ID)
		}
	}
}

func TestDetectAllProviderHandles(t *testing.T) {
	ethereum := map[string]any{"isCoinbaseWallet": true, "chainId": "0x1"}
	eternl := map[string]any{"apiVersion": "0.1.0"}
	e := env.NewStatic(map[string]any{
		"ethereum": ethereum,
		"cardano":  map[string]any{"eternl": eternl},
	})

	wallets := byID(fastDetector(e).DetectAll(context.Background()))

	// Flag lookups hand out the object carrying the flag
	raw, err := wallets["coinbase"].Provider.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"isCoinbaseWallet":true,"chainId":"0x1"}`, string(raw))

	// Namespaced lookups hand out the nested provider
	raw, err = wallets["eternl"].Provider.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"apiVersion":"0.1.0"}`, string(raw))
}

func TestDetectAllLegacyPhantom(t *testing.T) {
	e := env.NewStatic(map[string]any{
		"solana": map[string]any{"isPhantom": true, "legacy": true},
	})

	wallets := byID(fastDetector(e).DetectAll(context.Background(), core.ChainSolana))
	require.Len(t, wallets, 2)
	require.True(t, wallets["phantom-solana"].Installed)

	raw, err := wallets["phantom-solana"].Provider.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"isPhantom":true,"legacy":true}`, string(raw))
}

func TestDetectAllPrefersNamespacedPhantom(t *testing.T) {
	e := env.NewStatic(map[string]any{
		"phantom": map[string]any{"solana": map[string]any{"v": "new"}},
		"solana":  map[string]any{"isPhantom": true, "v": "old"},
	})

	wallets := byID(fastDetector(e).DetectAll(context.Background(), core.ChainSolana))
	raw, err := wallets["phantom-solana"].Provider.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":"new"}`, string(raw))
}

func TestDetectAllHeadless(t *testing.T) {
	var wallets []core.DiscoveredWallet
	require.NotPanics(t, func() {
		wallets = New(nil).DetectAll(context.Background())
	})

	require.Len(t, wallets, 10)
	for _, w := range wallets {
		assert.False(t, w.Installed)
		assert.Nil(t, w.Provider)
	}
}

func TestDetectAllChainFilterOmitsEntries(t *testing.T) {
	e := env.NewStatic(map[string]any{"unisat": map[string]any{}})

	wallets := fastDetector(e).DetectAll(context.Background(), core.ChainBitcoin, core.ChainPolkadot)
	require.Len(t, wallets, 2)
	assert.Equal(t, "unisat", wallets[0].ID)
	assert.True(t, wallets[0].Installed)
	assert.Equal(t, "subwallet", wallets[1].ID)
	assert.False(t, wallets[1].Installed)
}

func TestAnnouncementPrecedence(t *testing.T) {
	legacy := map[string]any{"isMetaMask": true, "source": "legacy"}
	announced := map[string]any{"source": "eip6963"}

	e := env.NewStatic(map[string]any{"ethereum": legacy})
	e.Announce(core.ProviderInfo{UUID: "a", Name: "MetaMask", RDNS: "io.metamask"}, announced)
	// A duplicate announcement of the same provider is ignored
	e.Announce(core.ProviderInfo{UUID: "a", Name: "MetaMask", RDNS: "io.metamask"}, announced)

	wallets := fastDetector(e).DetectAll(context.Background(), core.ChainEthereum)
	require.Len(t, wallets, 5)

	var metamask []core.DiscoveredWallet
	for _, w := range wallets {
		if w.Installed {
			metamask = append(metamask, w)
		}
	}
	require.Len(t, metamask, 1)
	assert.Equal(t, "metamask", metamask[0].ID)
	assert.True(t, metamask[0].Announced)

	raw, err := metamask[0].Provider.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"source":"eip6963"}`, string(raw))

	assert.Equal(t, 0, e.ListenerCount(), "probe listener must be removed")
}

func TestAnnouncementsAreClaimedOnce(t *testing.T) {
	e := env.NewStatic(nil)
	e.Announce(core.ProviderInfo{UUID: "r", Name: "Rabby Wallet"}, map[string]any{"id": "rabby"})
	e.Announce(core.ProviderInfo{UUID: "t", Name: "Trust Wallet"}, map[string]any{"id": "trust"})

	wallets := byID(fastDetector(e).DetectAll(context.Background(), core.ChainEthereum))

	assert.True(t, wallets["rabby"].Installed)
	assert.True(t, wallets["trust"].Installed)
	assert.False(t, wallets["metamask"].Installed)
	assert.False(t, wallets["coinbase"].Installed)
	assert.False(t, wallets["rainbow"].Installed)
}

type panickingEnv struct{}

func (panickingEnv) Global(name string) (core.Object, bool) {
	panic("host exploded looking up " + name)
}

func TestDetectAllSurvivesBrokenHost(t *testing.T) {
	var wallets []core.DiscoveredWallet
	require.NotPanics(t, func() {
		wallets = fastDetector(panickingEnv{}).DetectAll(context.Background())
	})
	require.Len(t, wallets, 10)
	assert.Empty(t, core.InstalledOnly(wallets))
}

func TestNamesMatch(t *testing.T) {
	assert.True(t, namesMatch("MetaMask", "metamask"))
	assert.True(t, namesMatch("Rabby Wallet", "Rabby"))
	assert.True(t, namesMatch("Coinbase", "Coinbase Wallet"))
	assert.False(t, namesMatch("Phantom", "MetaMask"))
	assert.False(t, namesMatch("", "MetaMask"))
}

// streamingEnv keeps announcing new providers until stopped
type streamingEnv struct {
	mu       sync.Mutex
	listener func(core.Announcement)
	stop     chan struct{}
	done     chan struct{}
}

func (*streamingEnv) Global(string) (core.Object, bool) { return nil, false }

func (e *streamingEnv) OnAnnounce(fn func(core.Announcement)) func() {
	e.mu.Lock()
	e.listener = fn
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		e.listener = nil
		e.mu.Unlock()
	}
}

func (e *streamingEnv) RequestProviders() {
	go func() {
		defer close(e.done)
		for i := 0; ; i++ {
			select {
			case <-e.stop:
				return
			default:
			}
			e.mu.Lock()
			fn := e.listener
			e.mu.Unlock()
			if fn != nil {
				fn(core.Announcement{
					Info:     core.ProviderInfo{UUID: fmt.Sprint(i), Name: "Wallet"},
					Provider: env.Wrap(map[string]any{}),
				})
			}
			time.Sleep(100 * time.Microsecond)
		}
	}()
}

func TestProbeResultIsDetachedFromLateAnnouncements(t *testing.T) {
	e := &streamingEnv{stop: make(chan struct{}), done: make(chan struct{})}

	found := fastDetector(e).probe(context.Background())
	snapshot := append([]core.Announcement(nil), found...)

	time.Sleep(5 * time.Millisecond)
	close(e.stop)
	<-e.done

	require.NotEmpty(t, found)
	assert.Equal(t, snapshot, found)
}
