package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/layer-3/walletsso/core"
	"github.com/tidwall/gjson"
)

// WatchQR listens on the backend WebSocket until it pushes a completion or expiry
// for sessionID. Any connection failure is returned as a transport error.
func (c *Client) WatchQR(ctx context.Context, sessionID string) (*core.QRStatus, error) {
	endpoint := c.wsURL + "/ws/auth?sessionId=" + url.QueryEscape(sessionID)

	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: websocket dial: %v", core.ErrTransport, err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the caller gives up
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline(ctx))
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: websocket read: %v", core.ErrTransport, err)
		}

		status, ok := parseQRFrame(data)
		if !ok {
			c.logger.Debug("ignoring websocket frame", map[string]any{"session": sessionID})
			continue
		}
		return status, nil
	}
}

// parseQRFrame recognises auth_success and expiry notifications
func parseQRFrame(data []byte) (*core.QRStatus, bool) {
	if !gjson.ValidBytes(data) {
		return nil, false
	}

	switch gjson.GetBytes(data, "type").String() {
	case "auth_success":
		status := &core.QRStatus{
			Status: core.QRCompleted,
			Token:  gjson.GetBytes(data, "token").String(),
		}
		if raw := gjson.GetBytes(data, "user"); raw.IsObject() {
			var user core.User
			if err := json.Unmarshal([]byte(raw.Raw), &user); err == nil {
				status.User = &user
			}
		}
		if exp := gjson.GetBytes(data, "expiresAt"); exp.Exists() {
			var t flexTime
			if err := t.UnmarshalJSON([]byte(exp.Raw)); err == nil {
				status.ExpiresAt = t.Time
			}
		}
		return status, true
	case "auth_expired", "expired":
		return &core.QRStatus{Status: core.QRExpired}, true
	}
	return nil, false
}

func deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok && d.After(time.Now()) {
		return d
	}
	return time.Now().Add(time.Second)
}
