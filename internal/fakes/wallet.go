package fakes

import (
	"context"
	"time"

	"github.com/layer-3/walletsso/adapters/env"
	"github.com/layer-3/walletsso/core"
	"github.com/layer-3/walletsso/ports"
	"github.com/layer-3/walletsso/registry"
)

// Wallet returns the registry wallet id, installed when installed is set
func Wallet(id string, installed bool) core.DiscoveredWallet {
	desc, ok := registry.FindByID(id)
	if !ok {
		panic("fakes: unknown wallet " + id)
	}
	if !installed {
		return core.NewDiscoveredWallet(desc, nil)
	}
	return core.NewDiscoveredWallet(desc, env.Wrap(map[string]any{}))
}

// Detector returns a fixed wallet list, after Delay when set
type Detector struct {
	calls
	Wallets []core.DiscoveredWallet
	Delay   time.Duration
}

var _ ports.WalletDetector = (*Detector)(nil)

func (d *Detector) DetectAll(context.Context, ...core.ChainType) []core.DiscoveredWallet {
	d.add("detect")
	if d.Delay > 0 {
		time.Sleep(d.Delay)
	}
	return append([]core.DiscoveredWallet(nil), d.Wallets...)
}

// Connector is a programmable ports.WalletConnector. Nil hooks succeed.
type Connector struct {
	calls

	ConnectFn func(ctx context.Context, wallet core.DiscoveredWallet) (string, error)
	SignFn    func(ctx context.Context, wallet core.DiscoveredWallet, message string) (string, error)
}

var _ ports.WalletConnector = (*Connector)(nil)

func (c *Connector) Connect(ctx context.Context, wallet core.DiscoveredWallet) (string, error) {
	c.add("connect")
	if c.ConnectFn != nil {
		return c.ConnectFn(ctx, wallet)
	}
	if !wallet.Installed {
		return "", &core.WalletError{Wallet: wallet.Name, Err: core.ErrNotInstalled}
	}
	return Address, nil
}

func (c *Connector) SignMessage(ctx context.Context, wallet core.DiscoveredWallet, message string) (string, error) {
	c.add("sign")
	if c.SignFn != nil {
		return c.SignFn(ctx, wallet, message)
	}
	return "0xdeadbeef", nil
}
