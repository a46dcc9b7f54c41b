package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims are the claims the backend puts in session tokens
type SessionClaims struct {
	jwt.RegisteredClaims
	Address   string `json:"address,omitempty"`
	ChainType string `json:"chainType,omitempty"`
}

// subject prefers the explicit address claim over sub
func (c *SessionClaims) subject() string {
	if c.Address != "" {
		return c.Address
	}
	return c.Subject
}
