package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/walletsso/service"
)

const (
	userAddressKey = "userAddress"
	userChainKey   = "userChain"
)

// RequireSession validates the bearer token with the backend and exposes its user
func RequireSession(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
			return
		}

		validation, err := authService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			abort(c, err)
			return
		}
		if !validation.Valid || validation.User == nil {
			msg := validation.Error
			if msg == "" {
				msg = "Invalid token"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		c.Set(userAddressKey, validation.User.Address)
		c.Set(userChainKey, string(validation.User.ChainType))
		c.Next()
	}
}
