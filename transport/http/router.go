package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/walletsso/service"
)

// SetupRouter sets up the Gin router of the companion server. metrics, when not nil,
// is mounted at /metrics.
func SetupRouter(authService *service.AuthService, metrics http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	handlers := NewAuthHandlers(authService)

	router.GET("/health", handlers.Health)
	router.GET("/wallets", handlers.Wallets)
	router.GET("/state", handlers.State)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	auth := router.Group("/auth")
	{
		auth.POST("/login", handlers.Login)
		auth.POST("/cancel", handlers.Cancel)
		auth.POST("/refresh", handlers.Refresh)
		auth.POST("/logout", handlers.Logout)
		auth.POST("/logout-all", handlers.LogoutAll)
		auth.POST("/qr/approve", handlers.ApproveQR)
	}

	oauth := router.Group("/oauth")
	{
		oauth.GET("/login", handlers.OAuthLogin)
		oauth.GET("/callback", handlers.OAuthCallback)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(RequireSession(authService))
	{
		api.GET("/me", handlers.Me)
		api.GET("/authorize", handlers.Authorize)
	}

	return router
}
