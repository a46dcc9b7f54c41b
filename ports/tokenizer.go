package ports

import "time"

// TokenClaims is what the client can learn from a session token
type TokenClaims struct {
	Subject   string
	ExpiresAt time.Time
}

// Tokenizer inspects session tokens issued by the backend
type Tokenizer interface {
	Claims(token string) (*TokenClaims, error)
}

// ExpiryFromToken returns the token expiry, or a zero time when it cannot be read
func ExpiryFromToken(t Tokenizer, token string) time.Time {
	if t == nil {
		return time.Time{}
	}
	claims, err := t.Claims(token)
	if err != nil || claims == nil {
		return time.Time{}
	}
	return claims.ExpiresAt
}
