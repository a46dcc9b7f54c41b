package core

// WalletDescriptor is the static description of a known wallet provider
type WalletDescriptor struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Chain        ChainType `json:"chain"`
	ProviderPath string    `json:"providerPath"`             // Where the provider is injected, for diagnostics
	RDNS         string    `json:"rdns,omitempty"`           // Reverse DNS announced over EIP-6963
	DownloadURL  string    `json:"downloadUrl"`              // Where to install the wallet
	DeepLink     string    `json:"mobileDeepLink,omitempty"` // Prefix for opening a URL in the mobile app
	Platforms    Platform  `json:"platforms"`
}

// DiscoveredWallet is a descriptor annotated with the result of one detection pass
type DiscoveredWallet struct {
	WalletDescriptor
	Installed bool   `json:"installed"`
	Announced bool   `json:"announced,omitempty"` // Provider came from the announcement protocol
	Provider  Object `json:"-"`                   // Nil unless Installed
}

// NewDiscoveredWallet builds a DiscoveredWallet, marking it installed only when provider is set
func NewDiscoveredWallet(desc WalletDescriptor, provider Object) DiscoveredWallet {
	return DiscoveredWallet{
		WalletDescriptor: desc,
		Installed:        provider != nil,
		Provider:         provider,
	}
}

// InstalledOnly filters wallets down to the installed ones, keeping order
func InstalledOnly(wallets []DiscoveredWallet) []DiscoveredWallet {
	var out []DiscoveredWallet
	for _, w := range wallets {
		if w.Installed {
			out = append(out, w)
		}
	}
	return out
}
