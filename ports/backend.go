package ports

import (
	"context"

	"github.com/layer-3/walletsso/core"
)

// Backend is the remote authentication API
type Backend interface {
	Challenge(ctx context.Context, address string, chain core.ChainType) (*core.Challenge, error)
	Verify(ctx context.Context, req core.VerifyRequest) (*core.AuthResult, error)
	ValidateToken(ctx context.Context, token string) (*core.TokenValidation, error)
	Status(ctx context.Context, token string) (*core.TokenValidation, error)
	Refresh(ctx context.Context, token string) (*core.AuthResult, error)
	Logout(ctx context.Context, token string) error
	LogoutAll(ctx context.Context, token string) error
	Health(ctx context.Context) error

	// QR handoff
	InitQR(ctx context.Context) (*core.QRSession, error)
	QRStatus(ctx context.Context, sessionID string) (*core.QRStatus, error)
	// WatchQR blocks until the backend pushes a completion for sessionID
	WatchQR(ctx context.Context, sessionID string) (*core.QRStatus, error)
	QRChallenge(ctx context.Context, sessionID string) (*core.Challenge, error)
	SignQR(ctx context.Context, req core.QRSignRequest) error
}

// OAuthProvider is the server-mediated redirect variant of the handshake
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*core.AuthResult, error)
}
