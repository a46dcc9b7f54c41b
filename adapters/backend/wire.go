package backend

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/layer-3/walletsso/core"
)

// flexTime accepts RFC 3339 strings and unix timestamps in seconds or milliseconds
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" || string(data) == `""` {
		t.Time = time.Time{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	}

	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	if n > 1e12 {
		t.Time = time.UnixMilli(int64(n))
	} else {
		t.Time = time.Unix(int64(n), 0)
	}
	return nil
}

type challengeRequest struct {
	Address     string         `json:"address"`
	ChainType   core.ChainType `json:"chainType"`
	ClientID    string         `json:"client_id,omitempty"`
	RedirectURI string         `json:"redirect_uri,omitempty"`
}

type challengeResponse struct {
	Message string `json:"message"`
	Nonce   string `json:"nonce"`
}

type authResponse struct {
	Authenticated bool           `json:"authenticated"`
	Token         string         `json:"token"`
	TokenType     string         `json:"tokenType"`
	ChainType     core.ChainType `json:"chainType"`
	User          *core.User     `json:"user"`
	ExpiresAt     flexTime       `json:"expiresAt"`
	ExpiresIn     int64          `json:"expiresIn"`
	Error         string         `json:"error"`
}

func (r *authResponse) result() *core.AuthResult {
	return &core.AuthResult{
		Authenticated: r.Authenticated,
		Token:         r.Token,
		TokenType:     r.TokenType,
		ChainType:     r.ChainType,
		User:          r.User,
		ExpiresAt:     r.ExpiresAt.Time,
		ExpiresIn:     r.ExpiresIn,
		Error:         r.Error,
	}
}

type validationResponse struct {
	Valid         bool       `json:"valid"`
	Authenticated bool       `json:"authenticated"`
	User          *core.User `json:"user"`
	Session       *struct {
		ExpiresAt flexTime `json:"expiresAt"`
	} `json:"session"`
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func (r *validationResponse) result() *core.TokenValidation {
	v := &core.TokenValidation{
		Valid: r.Valid || r.Authenticated,
		User:  r.User,
		Error: r.Error,
	}
	if v.Error == "" {
		v.Error = r.Reason
	}
	if r.Session != nil {
		v.ExpiresAt = r.Session.ExpiresAt.Time
	}
	return v
}

type successResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type qrInitResponse struct {
	SessionID string   `json:"sessionId"`
	Nonce     string   `json:"nonce"`
	ExpiresAt flexTime `json:"expiresAt"`
	AuthURL   string   `json:"authUrl"`
}

type qrStatusResponse struct {
	Status    string     `json:"status"`
	Token     string     `json:"token"`
	User      *core.User `json:"user"`
	ExpiresAt flexTime   `json:"expiresAt"`
}

type qrSessionDataResponse struct {
	ChallengeMessage string `json:"challenge_message"`
	Nonce            string `json:"nonce"`
}
