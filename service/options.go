package service

import (
	"time"

	"github.com/layer-3/walletsso/core"
	"github.com/layer-3/walletsso/logger"
	"github.com/layer-3/walletsso/metrics"
	"github.com/layer-3/walletsso/ports"
)

// Option configures an AuthService
type Option func(*AuthService)

// WithAutoConnect toggles the automatic login attempted by Start
func WithAutoConnect(enabled bool) Option {
	return func(s *AuthService) {
		s.autoConnect = enabled
	}
}

// WithRefreshInterval sets the background token refresh period. Zero disables refreshing.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *AuthService) {
		s.refreshInterval = d
	}
}

// WithChains restricts detection to the given chains
func WithChains(chains ...core.ChainType) Option {
	return func(s *AuthService) {
		if len(chains) > 0 {
			s.chains = append([]core.ChainType(nil), chains...)
		}
	}
}

// WithChooser sets the callback asked to pick a wallet when auto-selection is not possible
func WithChooser(c Chooser) Option {
	return func(s *AuthService) {
		s.chooser = c
	}
}

func WithQR(cfg QRConfig) Option {
	return func(s *AuthService) {
		s.qr = cfg
	}
}

// WithOAuth enables the redirect variant of the handshake
func WithOAuth(p ports.OAuthProvider) Option {
	return func(s *AuthService) {
		s.oauth = p
	}
}

// WithTokenizer lets the engine read the expiry out of tokens the backend sends without one
func WithTokenizer(t ports.Tokenizer) Option {
	return func(s *AuthService) {
		s.tokenizer = t
	}
}

// WithPublisher forwards every event to p
func WithPublisher(p ports.EventPublisher) Option {
	return func(s *AuthService) {
		s.publisher = p
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *AuthService) {
		s.logger = logger.OrNoop(l)
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *AuthService) {
		s.metrics = metrics.OrNoop(r)
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) {
		s.now = now
	}
}
