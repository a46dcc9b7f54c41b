// Package fakes holds in-memory stand-ins for the engine's collaborators
package fakes

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/layer-3/walletsso/core"
	"github.com/layer-3/walletsso/ports"
)

// Address is the account every fake wallet connects with
const Address = "0x52908400098527886E0F7030069857D2E4169EE7"

// DefaultUser is the user the fake backend authenticates
func DefaultUser() *core.User {
	return &core.User{
		Address:   Address,
		ChainType: core.ChainEthereum,
		Points:    decimal.NewFromInt(120),
		Tier:      "Gold",
	}
}

// calls counts invocations per operation
type calls struct {
	mu sync.Mutex
	n  map[string]int
}

func (c *calls) add(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == nil {
		c.n = make(map[string]int)
	}
	c.n[op]++
}

// Calls returns how many times op was invoked
func (c *calls) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n[op]
}

// Backend is a programmable ports.Backend. Nil hooks answer with a happy path.
type Backend struct {
	calls

	ChallengeFn     func(ctx context.Context, address string, chain core.ChainType) (*core.Challenge, error)
	VerifyFn        func(ctx context.Context, req core.VerifyRequest) (*core.AuthResult, error)
	ValidateTokenFn func(ctx context.Context, token string) (*core.TokenValidation, error)
	StatusFn        func(ctx context.Context, token string) (*core.TokenValidation, error)
	RefreshFn       func(ctx context.Context, token string) (*core.AuthResult, error)
	LogoutFn        func(ctx context.Context, token string) error
	LogoutAllFn     func(ctx context.Context, token string) error
	HealthFn        func(ctx context.Context) error
	InitQRFn        func(ctx context.Context) (*core.QRSession, error)
	QRStatusFn      func(ctx context.Context, sessionID string) (*core.QRStatus, error)
	WatchQRFn       func(ctx context.Context, sessionID string) (*core.QRStatus, error)
	QRChallengeFn   func(ctx context.Context, sessionID string) (*core.Challenge, error)
	SignQRFn        func(ctx context.Context, req core.QRSignRequest) error
}

var _ ports.Backend = (*Backend)(nil)

func (b *Backend) Challenge(ctx context.Context, address string, chain core.ChainType) (*core.Challenge, error) {
	b.add("challenge")
	if b.ChallengeFn != nil {
		return b.ChallengeFn(ctx, address, chain)
	}
	return &core.Challenge{Message: "sign-me", Nonce: "n1"}, nil
}

func (b *Backend) Verify(ctx context.Context, req core.VerifyRequest) (*core.AuthResult, error) {
	b.add("verify")
	if b.VerifyFn != nil {
		return b.VerifyFn(ctx, req)
	}
	return &core.AuthResult{Authenticated: true, Token: "tok1", User: DefaultUser(), ExpiresIn: 3600}, nil
}

func (b *Backend) ValidateToken(ctx context.Context, token string) (*core.TokenValidation, error) {
	b.add("validate")
	if b.ValidateTokenFn != nil {
		return b.ValidateTokenFn(ctx, token)
	}
	return &core.TokenValidation{Valid: true, User: DefaultUser()}, nil
}

func (b *Backend) Status(ctx context.Context, token string) (*core.TokenValidation, error) {
	b.add("status")
	if b.StatusFn != nil {
		return b.StatusFn(ctx, token)
	}
	return &core.TokenValidation{Valid: true, User: DefaultUser()}, nil
}

func (b *Backend) Refresh(ctx context.Context, token string) (*core.AuthResult, error) {
	b.add("refresh")
	if b.RefreshFn != nil {
		return b.RefreshFn(ctx, token)
	}
	return &core.AuthResult{Authenticated: true, Token: token + "-refreshed", ExpiresIn: 3600}, nil
}

func (b *Backend) Logout(ctx context.Context, token string) error {
	b.add("logout")
	if b.LogoutFn != nil {
		return b.LogoutFn(ctx, token)
	}
	return nil
}

func (b *Backend) LogoutAll(ctx context.Context, token string) error {
	b.add("logout_all")
	if b.LogoutAllFn != nil {
		return b.LogoutAllFn(ctx, token)
	}
	return nil
}

func (b *Backend) Health(ctx context.Context) error {
	b.add("health")
	if b.HealthFn != nil {
		return b.HealthFn(ctx)
	}
	return nil
}

func (b *Backend) InitQR(ctx context.Context) (*core.QRSession, error) {
	b.add("qr_init")
	if b.InitQRFn != nil {
		return b.InitQRFn(ctx)
	}
	return &core.QRSession{SessionID: "qr-1", AuthURL: "https://auth.example.com/m/qr-1"}, nil
}

func (b *Backend) QRStatus(ctx context.Context, sessionID string) (*core.QRStatus, error) {
	b.add("qr_status")
	if b.QRStatusFn != nil {
		return b.QRStatusFn(ctx, sessionID)
	}
	return &core.QRStatus{Status: core.QRPending}, nil
}

// WatchQR blocks until ctx is done unless WatchQRFn is set
func (b *Backend) WatchQR(ctx context.Context, sessionID string) (*core.QRStatus, error) {
	b.add("qr_watch")
	if b.WatchQRFn != nil {
		return b.WatchQRFn(ctx, sessionID)
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *Backend) QRChallenge(ctx context.Context, sessionID string) (*core.Challenge, error) {
	b.add("qr_challenge")
	if b.QRChallengeFn != nil {
		return b.QRChallengeFn(ctx, sessionID)
	}
	return &core.Challenge{Message: "sign-qr", Nonce: "qn1"}, nil
}

func (b *Backend) SignQR(ctx context.Context, req core.QRSignRequest) error {
	b.add("qr_sign")
	if b.SignQRFn != nil {
		return b.SignQRFn(ctx, req)
	}
	return nil
}
