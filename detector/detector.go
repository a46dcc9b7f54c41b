package detector

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/walletsso/core"
	"github.com/layer-3/walletsso/logger"
	"github.com/layer-3/walletsso/registry"
)

// DefaultAnnounceWindow is how long the announcement probe collects responses
const DefaultAnnounceWindow = 30 * time.Millisecond

// Detector finds installed wallet providers in a host environment
type Detector struct {
	env    core.Environment
	window time.Duration
	logger logger.Logger
}

// Option configures a Detector
type Option func(*Detector)

// WithAnnounceWindow overrides the announcement probe window
func WithAnnounceWindow(d time.Duration) Option {
	return func(det *Detector) {
		det.window = d
	}
}

// WithLogger sets the detector logger
func WithLogger(l logger.Logger) Option {
	return func(det *Detector) {
		det.logger = logger.OrNoop(l)
	}
}

// New creates a detector over env. A nil env is a headless host without globals.
func New(env core.Environment, opts ...Option) *Detector {
	d := &Detector{
		env:    env,
		window: DefaultAnnounceWindow,
		logger: logger.NoopLogger{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectAll returns the registered wallets of the enabled chains (all chains when none
// are given) in registry order, each marked installed or not. It never fails: lookups
// that break degrade to not installed.
func (d *Detector) DetectAll(ctx context.Context, chains ...core.ChainType) []core.DiscoveredWallet {
	entries := registry.Entries(chains...)
	wallets := make([]core.DiscoveredWallet, 0, len(entries))

	if d.env == nil {
		for _, e := range entries {
			wallets = append(wallets, core.NewDiscoveredWallet(e.WalletDescriptor, nil))
		}
		return wallets
	}

	var pool *announcementPool
	if needsProbe(entries) {
		pool = newAnnouncementPool(d.probe(ctx))
	}

	for _, e := range entries {
		if e.Chain == core.ChainEthereum && pool != nil {
			if a, ok := pool.claim(e.WalletDescriptor); ok {
				w := core.NewDiscoveredWallet(e.WalletDescriptor, a.Provider)
				w.Announced = true
				wallets = append(wallets, w)
				continue
			}
		}

		provider := d.resolve(e)
		wallets = append(wallets, core.NewDiscoveredWallet(e.WalletDescriptor, provider))
	}

	d.logger.Debug("wallet detection finished", map[string]any{
		"wallets":   len(wallets),
		"installed": len(core.InstalledOnly(wallets)),
	})

	return wallets
}

// resolve runs the entry's resolver, treating a panicking host lookup as not installed
func (d *Detector) resolve(e registry.Entry) (provider core.Object) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("wallet lookup failed", map[string]any{
				"wallet": e.ID,
				"error":  fmt.Sprint(r),
			})
			provider = nil
		}
	}()

	if e.Resolve == nil {
		return nil
	}
	obj, ok := e.Resolve(d.env)
	if !ok {
		return nil
	}
	return obj
}

func needsProbe(entries []registry.Entry) bool {
	for _, e := range entries {
		if e.Chain == core.ChainEthereum {
			return true
		}
	}
	return false
}
