package tokenizer

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/walletsso/core"
	"github.com/layer-3/walletsso/ports"
)

// JWTTokenizer reads session tokens issued as JWTs
type JWTTokenizer struct {
	verifyKey *ecdsa.PublicKey
}

// NewJWTTokenizer creates a tokenizer. With a nil key signatures are not checked.
func NewJWTTokenizer(verifyKey *ecdsa.PublicKey) ports.Tokenizer {
	return &JWTTokenizer{verifyKey: verifyKey}
}

// Claims extracts subject and expiry from token
func (j *JWTTokenizer) Claims(tokenStr string) (*ports.TokenClaims, error) {
	claims := &SessionClaims{}

	if j.verifyKey == nil {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
			return nil, fmt.Errorf("failed to parse token: %w", err)
		}
	} else {
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
			// Validate the signing method
			if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return j.verifyKey, nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to parse token: %w", err)
		}
		if !token.Valid {
			return nil, core.ErrNotAuthenticated
		}
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	return &ports.TokenClaims{
		Subject:   claims.subject(),
		ExpiresAt: expiresAt,
	}, nil
}
