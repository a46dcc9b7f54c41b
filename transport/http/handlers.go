package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/walletsso/core"
	"github.com/layer-3/walletsso/service"
)

// AuthHandlers exposes the engine over HTTP
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

type walletResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Chain       core.ChainType `json:"chain"`
	Installed   bool           `json:"installed"`
	Announced   bool           `json:"announced,omitempty"`
	DownloadURL string         `json:"downloadUrl"`
}

type sessionResponse struct {
	State     core.State `json:"state"`
	User      *core.User `json:"user,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func (h *AuthHandlers) session() sessionResponse {
	resp := sessionResponse{State: h.authService.State()}
	if sess := h.authService.Session(); sess != nil {
		resp.User = &sess.User
		resp.ExpiresAt = &sess.ExpiresAt
	}
	return resp
}

// Health reports liveness
func (h *AuthHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Wallets runs a detection pass
func (h *AuthHandlers) Wallets(c *gin.Context) {
	wallets := h.authService.Wallets(c.Request.Context())

	resp := make([]walletResponse, 0, len(wallets))
	for _, w := range wallets {
		resp = append(resp, walletResponse{
			ID:          w.ID,
			Name:        w.Name,
			Chain:       w.Chain,
			Installed:   w.Installed,
			Announced:   w.Announced,
			DownloadURL: w.DownloadURL,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// State returns the engine state and the current user
func (h *AuthHandlers) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.session())
}

// Login authenticates with the requested wallet, or the only installed one
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		WalletID string `json:"wallet_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var err error
	if req.WalletID != "" {
		_, err = h.authService.LoginWith(c.Request.Context(), req.WalletID)
	} else {
		_, err = h.authService.Login(c.Request.Context())
	}
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, h.session())
}

// Cancel abandons the login in flight
func (h *AuthHandlers) Cancel(c *gin.Context) {
	h.authService.CancelLogin()
	c.JSON(http.StatusOK, h.session())
}

// Refresh exchanges the current token for a fresh one
func (h *AuthHandlers) Refresh(c *gin.Context) {
	if _, err := h.authService.RefreshToken(c.Request.Context()); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session())
}

// Logout ends the current session
func (h *AuthHandlers) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context()); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// LogoutAll ends every session of the current user
func (h *AuthHandlers) LogoutAll(c *gin.Context) {
	if err := h.authService.LogoutAll(c.Request.Context()); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out everywhere"})
}

// ApproveQR signs a QR session opened on another device
func (h *AuthHandlers) ApproveQR(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id" binding:"required"`
		WalletID  string `json:"wallet_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.authService.ApproveQR(c.Request.Context(), req.SessionID, req.WalletID); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// OAuthLogin redirects to the backend authorization page
func (h *AuthHandlers) OAuthLogin(c *gin.Context) {
	url, err := h.authService.AuthorizeURL(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

// OAuthCallback completes the redirect flow
func (h *AuthHandlers) OAuthCallback(c *gin.Context) {
	if reason := c.Query("error"); reason != "" {
		msg := c.Query("error_description")
		if msg == "" {
			msg = reason
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing authorization code"})
		return
	}

	if _, err := h.authService.CompleteOAuth(c.Request.Context(), code, c.Query("state")); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session())
}

// Me returns information about the authenticated user
func (h *AuthHandlers) Me(c *gin.Context) {
	// User address is set by the auth middleware
	address, exists := c.Get(userAddressKey)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address":   address,
		"chainType": c.GetString(userChainKey),
	})
}

// Authorize checks if a user is authorized
func (h *AuthHandlers) Authorize(c *gin.Context) {
	address, exists := c.Get(userAddressKey)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authorized": true,
		"address":    address,
	})
}

// abort maps err to a status code and a user facing message
func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": core.UserMessage(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUserRejected), errors.Is(err, core.ErrSignatureRejected):
		return http.StatusForbidden
	case errors.Is(err, core.ErrUnknownWallet), errors.Is(err, core.ErrUnsupportedChain),
		errors.Is(err, core.ErrStateMismatch):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotInstalled):
		return http.StatusPreconditionFailed
	case errors.Is(err, core.ErrSelectionRequired), errors.Is(err, core.ErrLoginCancelled):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotAuthenticated), errors.Is(err, core.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrQRExpired):
		return http.StatusGone
	case errors.Is(err, core.ErrBackend):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrTransport):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
