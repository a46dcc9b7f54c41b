package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/layer-3/walletsso/core"
	"github.com/layer-3/walletsso/ports"
)

var _ ports.Backend = (*Client)(nil)

// Challenge requests a message to sign for address
func (c *Client) Challenge(ctx context.Context, address string, chain core.ChainType) (*core.Challenge, error) {
	var resp challengeResponse
	err := c.do(ctx, "challenge", http.MethodPost, "/auth/challenge", "", challengeRequest{
		Address:     address,
		ChainType:   chain,
		ClientID:    c.clientID,
		RedirectURI: c.redirectURI,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.Message == "" {
		return nil, &core.BackendError{Status: http.StatusOK, Message: "challenge response without message"}
	}
	return &core.Challenge{Message: resp.Message, Nonce: resp.Nonce}, nil
}

// Verify submits a signed challenge
func (c *Client) Verify(ctx context.Context, req core.VerifyRequest) (*core.AuthResult, error) {
	var resp authResponse
	if err := c.do(ctx, "verify", http.MethodPost, "/auth/verify", "", req, &resp); err != nil {
		return nil, err
	}
	return resp.result(), nil
}

// ValidateToken asks the backend whether token is still valid
func (c *Client) ValidateToken(ctx context.Context, token string) (*core.TokenValidation, error) {
	var resp validationResponse
	err := c.do(ctx, "validate", http.MethodPost, "/auth/validate-token", "", map[string]string{"token": token}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.result(), nil
}

// Status reports the authentication status of the bearer
func (c *Client) Status(ctx context.Context, token string) (*core.TokenValidation, error) {
	var resp validationResponse
	if err := c.do(ctx, "status", http.MethodGet, "/auth/status", token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.result(), nil
}

// Refresh exchanges token for a fresh one
func (c *Client) Refresh(ctx context.Context, token string) (*core.AuthResult, error) {
	var resp authResponse
	if err := c.do(ctx, "refresh", http.MethodPost, "/auth/refresh", token, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, &core.BackendError{Status: http.StatusOK, Message: "refresh response without token"}
	}

	result := resp.result()
	result.Authenticated = true
	return result, nil
}

// Logout ends the session of token
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.success(ctx, "logout", "/auth/logout", token, nil)
}

// LogoutAll ends every session of the bearer's user
func (c *Client) LogoutAll(ctx context.Context, token string) error {
	return c.success(ctx, "logout_all", "/auth/logout-all", token, nil)
}

// Health checks that the backend is up
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, "health", http.MethodGet, "/health", "", nil, nil)
}

// InitQR opens a mobile handoff session
func (c *Client) InitQR(ctx context.Context) (*core.QRSession, error) {
	var resp qrInitResponse
	if err := c.do(ctx, "qr_init", http.MethodPost, "/auth/qr/init", "", struct{}{}, &resp); err != nil {
		return nil, err
	}
	if resp.SessionID == "" {
		return nil, &core.BackendError{Status: http.StatusOK, Message: "QR session without id"}
	}

	return &core.QRSession{
		SessionID: resp.SessionID,
		Nonce:     resp.Nonce,
		ExpiresAt: resp.ExpiresAt.Time,
		AuthURL:   resp.AuthURL,
	}, nil
}

// QRStatus polls the state of a QR session
func (c *Client) QRStatus(ctx context.Context, sessionID string) (*core.QRStatus, error) {
	var resp qrStatusResponse
	path := "/auth/qr/status/" + url.PathEscape(sessionID)
	if err := c.do(ctx, "qr_status", http.MethodGet, path, "", nil, &resp); err != nil {
		return nil, err
	}

	return &core.QRStatus{
		Status:    resp.Status,
		Token:     resp.Token,
		User:      resp.User,
		ExpiresAt: resp.ExpiresAt.Time,
	}, nil
}

// QRChallenge fetches the message the mobile side of a QR session must sign
func (c *Client) QRChallenge(ctx context.Context, sessionID string) (*core.Challenge, error) {
	var resp qrSessionDataResponse
	path := "/auth/qr/session-data/" + url.PathEscape(sessionID)
	if err := c.do(ctx, "qr_session_data", http.MethodGet, path, "", nil, &resp); err != nil {
		return nil, err
	}
	if resp.ChallengeMessage == "" {
		return nil, &core.BackendError{Status: http.StatusOK, Message: "QR session has no challenge"}
	}
	return &core.Challenge{Message: resp.ChallengeMessage, Nonce: resp.Nonce}, nil
}

// SignQR submits the mobile signature of a QR session
func (c *Client) SignQR(ctx context.Context, req core.QRSignRequest) error {
	return c.success(ctx, "qr_sign", "/auth/qr/sign", "", req)
}

// success posts body and fails when the backend answers {success: false}
func (c *Client) success(ctx context.Context, op, path, token string, body any) error {
	var resp successResponse
	if err := c.do(ctx, op, http.MethodPost, path, token, body, &resp); err != nil {
		return err
	}
	if !resp.Success && resp.Error != "" {
		return &core.BackendError{Status: http.StatusOK, Message: resp.Error}
	}
	return nil
}
