package connector

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/layer-3/walletsso/core"
	"github.com/layer-3/walletsso/logger"
)

// Capability is the connect and sign convention of one chain
type Capability struct {
	Connect func(ctx context.Context, provider core.Object) (string, error)
	Sign    func(ctx context.Context, provider core.Object, message string) (string, error)
}

// MessageEncoding selects how challenge messages are handed to providers that accept either form
type MessageEncoding string

const (
	EncodingRaw MessageEncoding = "raw"
	EncodingHex MessageEncoding = "hex"
)

// Connector performs chain-specific connect and sign operations behind one interface
type Connector struct {
	mu     sync.RWMutex
	caps   map[core.ChainType]Capability
	logger logger.Logger
}

// Option configures a Connector
type Option func(*config)

type config struct {
	appName  string
	encoding MessageEncoding
	logger   logger.Logger
}

// WithAppName sets the dapp name passed to extensions that ask for one (polkadot)
func WithAppName(name string) Option {
	return func(c *config) {
		c.appName = name
	}
}

// WithMessageEncoding sets how messages are passed to ethereum, polkadot and cardano providers
func WithMessageEncoding(enc MessageEncoding) Option {
	return func(c *config) {
		c.encoding = enc
	}
}

// WithLogger sets the connector logger
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		c.logger = logger.OrNoop(l)
	}
}

// New creates a Connector with the built-in capabilities for every supported chain
func New(opts ...Option) *Connector {
	cfg := config{
		appName:  "walletsso",
		encoding: EncodingRaw,
		logger:   logger.NoopLogger{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Connector{
		caps:   builtinCapabilities(cfg),
		logger: cfg.logger,
	}
}

// Register installs or replaces the capability of a chain
func (c *Connector) Register(chain core.ChainType, capability Capability) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.caps[chain] = capability
}

func (c *Connector) capability(chain core.ChainType) (Capability, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	capability, ok := c.caps[chain]
	return capability, ok
}

// Connect asks the wallet for account access and returns the address to authenticate
func (c *Connector) Connect(ctx context.Context, wallet core.DiscoveredWallet) (string, error) {
	if !wallet.Installed || wallet.Provider == nil {
		return "", &core.WalletError{Wallet: wallet.Name, Err: core.ErrNotInstalled}
	}

	capability, ok := c.capability(wallet.Chain)
	if !ok || capability.Connect == nil {
		return "", &core.WalletError{Wallet: wallet.Name, Err: core.ErrUnsupportedChain}
	}

	address, err := capability.Connect(ctx, wallet.Provider)
	if err != nil {
		c.logger.Warn("wallet connection failed", map[string]any{"wallet": wallet.ID, "error": err})
		return "", normalizeConnectError(wallet.Name, err)
	}

	return address, nil
}

// SignMessage asks the wallet to sign message and returns the signature in the chain's format
func (c *Connector) SignMessage(ctx context.Context, wallet core.DiscoveredWallet, message string) (string, error) {
	if wallet.Provider == nil {
		return "", &core.WalletError{Wallet: wallet.Name, Err: core.ErrNoProvider}
	}

	capability, ok := c.capability(wallet.Chain)
	if !ok || capability.Sign == nil {
		return "", &core.WalletError{Wallet: wallet.Name, Err: core.ErrUnsupportedChain}
	}

	signature, err := capability.Sign(ctx, wallet.Provider, message)
	if err != nil {
		c.logger.Warn("wallet signature failed", map[string]any{"wallet": wallet.ID, "error": err})
		return "", normalizeSignError(wallet.Name, err)
	}

	return signature, nil
}

// GenerateDeepLink returns a link opening currentURL inside the wallet's mobile app,
// or currentURL itself when the wallet has no deep link
func GenerateDeepLink(wallet core.WalletDescriptor, currentURL string) string {
	if wallet.DeepLink == "" {
		return currentURL
	}
	return wallet.DeepLink + encodeURIComponent(currentURL)
}

func encodeURIComponent(s string) string {
	escaped := url.QueryEscape(s)
	return strings.ReplaceAll(escaped, "+", "%20")
}

func wrapWallet(name string, err error) error {
	return &core.WalletError{Wallet: name, Err: err}
}

func errNoAccounts(chain core.ChainType) error {
	return fmt.Errorf("%w on %s", core.ErrNoAccounts, chain)
}
