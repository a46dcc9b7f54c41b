package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Challenge is a server-issued message the user signs to prove address ownership
type Challenge struct {
	Message string `json:"message"`
	Nonce   string `json:"nonce"`
}

// User is the authenticated identity. Profile fields are passed through untouched.
type User struct {
	Address   string          `json:"address"`
	ChainType ChainType       `json:"chainType"`
	Points    decimal.Decimal `json:"points"`
	Tier      string          `json:"tier,omitempty"`
	JoinedAt  string          `json:"joinedAt,omitempty"`
}

// AuthResult is the backend's answer to a verification or refresh request
type AuthResult struct {
	Authenticated bool
	Token         string
	TokenType     string
	ChainType     ChainType
	User          *User
	ExpiresAt     time.Time // Zero when the backend did not send it
	ExpiresIn     int64     // Seconds, zero when absent
	Error         string
}

// Session is the locally persisted record of a successful authentication
type Session struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}

// VerifyRequest carries a signed challenge to the backend
type VerifyRequest struct {
	Address   string    `json:"address"`
	Signature string    `json:"signature"`
	Nonce     string    `json:"nonce"`
	ChainType ChainType `json:"chainType"`
}

// TokenValidation is the backend's answer to a token validation or status request
type TokenValidation struct {
	Valid     bool
	User      *User
	ExpiresAt time.Time
	Error     string
}

// QRSession is a mobile handoff session opened on the backend
type QRSession struct {
	SessionID string
	Nonce     string
	ExpiresAt time.Time
	AuthURL   string
}

// QR session states reported by the backend
const (
	QRPending   = "pending"
	QRCompleted = "completed"
	QRExpired   = "expired"
)

// QRStatus is the state of a QR session, as polled or pushed
type QRStatus struct {
	Status    string
	Token     string
	User      *User
	ExpiresAt time.Time
}

// QRSignRequest submits a signature produced on the mobile side of a QR session
type QRSignRequest struct {
	SessionID string    `json:"sessionId"`
	Address   string    `json:"address"`
	Signature string    `json:"signature"`
	ChainType ChainType `json:"chainType"`
}

// QRCode is a rendered QR session handed to the host for display
type QRCode struct {
	SessionID string
	Content   string // Encoded payload, the mobile auth URL
	PNG       []byte
	ExpiresAt time.Time
}
