package ports

import (
	"context"

	"github.com/layer-3/walletsso/core"
)

// WalletDetector lists the registry wallets with their installation status
type WalletDetector interface {
	DetectAll(ctx context.Context, chains ...core.ChainType) []core.DiscoveredWallet
}

// WalletConnector drives the chain specific provider calls of a discovered wallet
type WalletConnector interface {
	Connect(ctx context.Context, wallet core.DiscoveredWallet) (string, error)
	SignMessage(ctx context.Context, wallet core.DiscoveredWallet, message string) (string, error)
}
