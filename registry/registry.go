package registry

import "github.com/layer-3/walletsso/core"

// Entry is a registered wallet and the resolver locating its provider
type Entry struct {
	core.WalletDescriptor
	Resolve Resolver
}

var entries = []Entry{
	{
		WalletDescriptor: core.WalletDescriptor{
			ID:           "metamask",
			Name:         "MetaMask",
			Chain:        core.ChainEthereum,
			ProviderPath: "ethereum.isMetaMask",
			RDNS:         "io.metamask",
			DownloadURL:  "https://metamask.io/download/",
			DeepLink:     "https://metamask.app.link/dapp/",
			Platforms:    core.PlatformBoth,
		},
		Resolve: Flag("ethereum", "isMetaMask"),
	},
	{
		WalletDescriptor: core.WalletDescriptor{
			ID:           "coinbase",
			Name:         "Coinbase Wallet",
			Chain:        core.ChainEthereum,
			ProviderPath: "ethereum.isCoinbaseWallet",
			RDNS:         "com.coinbase.wallet",
			DownloadURL:  "https://www.coinbase.com/wallet/downloads",
			DeepLink:     "https://go.cb-w.com/dapp?cb_url=",
			Platforms:    core.PlatformBoth,
		},
		Resolve: Flag("ethereum", "isCoinbaseWallet"),
	},
	{
		WalletDescriptor: core.WalletDescriptor{
			ID:           "rainbow",
			Name:         "Rainbow",
			Chain:        core.ChainEthereum,
			ProviderPath: "ethereum.isRainbow",
			RDNS:         "me.rainbow",
			DownloadURL:  "https://rainbow.me/",
			DeepLink:     "https://rnbwapp.com/dapp?url=",
			Platforms:    core.PlatformBoth,
		},
		Resolve: Flag("ethereum", "isRainbow"),
	},
	{
		WalletDescriptor: core.WalletDescriptor{
			ID:           "trust",
			Name:         "Trust Wallet",
			Chain:        core.ChainEthereum,
			ProviderPath: "ethereum.isTrust",
			RDNS:         "com.trustwallet.app",
			DownloadURL:  "https://trustwallet.com/download",
			DeepLink:     "trust://open_url?coin_id=60&url=",
			Platforms:    core.PlatformBoth,
		},
		Resolve: Flag("ethereum", "isTrust"),
	},
	{
		WalletDescriptor: core.WalletDescriptor{
			ID:           "rabby",
			Name:         "Rabby",
			Chain:        core.ChainEthereum,
			ProviderPath: "ethereum.isRabby",
			RDNS:         "io.rabby",
			DownloadURL:  "https://rabby.io/",
			Platforms:    core.PlatformDesktop,
		},
		Resolve: Flag("ethereum", "isRabby"),
	},
	{
		WalletDescriptor: core.WalletDescriptor{
			ID:           "phantom-solana",
			Name:         "Phantom",
			Chain:        core.ChainSolana,
			ProviderPath: "phantom.solana",
			DownloadURL:  "https://phantom.app/download",
			DeepLink:     "https://phantom.app/ul/browse/",
			Platforms:    core.PlatformBoth,
		},
		// Older Phantom builds only inject window.solana
		Resolve: FirstOf(Namespace("phantom", "solana"), Flag("solana", "isPhantom")),
	},
	{
		WalletDescriptor: core.WalletDescriptor{
			ID:           "solflare",
			Name:         "Solflare",
			Chain:        core.ChainSolana,
			ProviderPath: "solflare",
			DownloadURL:  "https://solflare.com/download",
			DeepLink:     "https://solflare.com/ul/",
			Platforms:    core.PlatformBoth,
		},
		Resolve: Global("solflare"),
	},
	{
		WalletDescriptor: core.WalletDescriptor{
			ID:           "unisat",
			Name:         "UniSat",
			Chain:        core.ChainBitcoin,
			ProviderPath: "unisat",
			DownloadURL:  "https://unisat.io/download",
			Platforms:    core.PlatformDesktop,
		},
		Resolve: Global("unisat"),
	},
	{
		WalletDescriptor: core.WalletDescriptor{
			ID:           "subwallet",
			Name:         "SubWallet",
			Chain:        core.ChainPolkadot,
			ProviderPath: "injectedWeb3.subwallet-js",
			DownloadURL:  "https://subwallet.app/download.html",
			DeepLink:     "subwallet://",
			Platforms:    core.PlatformBoth,
		},
		Resolve: Namespace("injectedWeb3", "subwallet-js"),
	},
	{
		WalletDescriptor: core.WalletDescriptor{
			ID:           "eternl",
			Name:         "Eternl",
			Chain:        core.ChainCardano,
			ProviderPath: "cardano.eternl",
			DownloadURL:  "https://eternl.io/app/mainnet/welcome",
			DeepLink:     "eternl://",
			Platforms:    core.PlatformBoth,
		},
		Resolve: Namespace("cardano", "eternl"),
	},
}

// FindByID returns the descriptor registered under id
func FindByID(id string) (core.WalletDescriptor, bool) {
	for _, e := range entries {
		if e.ID == id {
			return e.WalletDescriptor, true
		}
	}
	return core.WalletDescriptor{}, false
}

// ByChain returns the descriptors of one chain in registration order
func ByChain(chain core.ChainType) []core.WalletDescriptor {
	var out []core.WalletDescriptor
	for _, e := range entries {
		if e.Chain == chain {
			out = append(out, e.WalletDescriptor)
		}
	}
	return out
}

// All returns every descriptor in registration order
func All() []core.WalletDescriptor {
	out := make([]core.WalletDescriptor, len(entries))
	for i, e := range entries {
		out[i] = e.WalletDescriptor
	}
	return out
}

// Entries returns the registered entries, restricted to chains when any are given
func Entries(chains ...core.ChainType) []Entry {
	if len(chains) == 0 {
		out := make([]Entry, len(entries))
		copy(out, entries)
		return out
	}

	enabled := make(map[core.ChainType]bool, len(chains))
	for _, c := range chains {
		enabled[c] = true
	}

	var out []Entry
	for _, e := range entries {
		if enabled[e.Chain] {
			out = append(out, e)
		}
	}
	return out
}
