package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/layer-3/walletsso/core"
	"github.com/layer-3/walletsso/ports"
	"golang.org/x/oauth2"
)

// OAuthClient runs the authorization-code variant of the handshake, where the
// backend hosts the wallet prompt and redirects back with a code
type OAuthClient struct {
	config *oauth2.Config
	http   *http.Client
}

var _ ports.OAuthProvider = (*OAuthClient)(nil)

// NewOAuthClient creates an OAuth client against the backend at baseURL
func NewOAuthClient(baseURL, clientID, clientSecret, redirectURI string, httpClient *http.Client) *OAuthClient {
	base := strings.TrimRight(baseURL, "/")
	return &OAuthClient{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + "/oauth/authorize",
				TokenURL:  base + "/api/v1/auth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		http: httpClient,
	}
}

// AuthCodeURL returns the authorization URL carrying state
func (o *OAuthClient) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a session token
func (o *OAuthClient) Exchange(ctx context.Context, code string) (*core.AuthResult, error) {
	if o.http != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.http)
	}

	token, err := o.config.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			msg := retrieveErr.ErrorDescription
			if msg == "" {
				msg = retrieveErr.ErrorCode
			}
			if msg == "" && retrieveErr.Response != nil {
				msg = errorMessage(retrieveErr.Body, retrieveErr.Response.StatusCode)
			}
			status := 0
			if retrieveErr.Response != nil {
				status = retrieveErr.Response.StatusCode
			}
			return nil, &core.BackendError{Status: status, Message: msg}
		}
		return nil, fmt.Errorf("%w: %v", core.ErrTransport, err)
	}

	user := &core.User{}
	if raw, ok := token.Extra("user").(map[string]any); ok {
		if data, err := json.Marshal(raw); err == nil {
			_ = json.Unmarshal(data, user)
		}
	}
	if address, ok := token.Extra("wallet_address").(string); ok && address != "" {
		user.Address = address
	}
	if chain, ok := token.Extra("chain_type").(string); ok && chain != "" {
		user.ChainType = core.ChainType(chain)
	}

	return &core.AuthResult{
		Authenticated: token.AccessToken != "",
		Token:         token.AccessToken,
		TokenType:     token.TokenType,
		ChainType:     user.ChainType,
		User:          user,
		ExpiresAt:     token.Expiry,
	}, nil
}
