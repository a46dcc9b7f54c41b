package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/walletsso/core"
	"github.com/layer-3/walletsso/internal/fakes"
)

func fastQR() Option {
	return WithQR(QRConfig{
		Enabled:      true,
		Size:         128,
		Timeout:      time.Second,
		PollInterval: 2 * time.Millisecond,
	})
}

func completed(token string) *core.QRStatus {
	return &core.QRStatus{Status: core.QRCompleted, Token: token, User: fakes.DefaultUser()}
}

func TestLoginWithQRPolling(t *testing.T) {
	h := newHarness(t, nil, fastQR())

	polls := 0
	h.backend.QRStatusFn = func(_ context.Context, id string) (*core.QRStatus, error) {
		polls++
		if polls < 3 {
			return &core.QRStatus{Status: core.QRPending}, nil
		}
		return completed("tok-qr"), nil
	}

	var code core.QRCode
	user, err := h.svc.LoginWithQR(context.Background(), func(c core.QRCode) { code = c })
	require.NoError(t, err)
	assert.Equal(t, fakes.Address, user.Address)

	assert.Equal(t, "qr-1", code.SessionID)
	assert.Equal(t, "https://auth.example.com/m/qr-1", code.Content)
	assert.True(t, bytes.HasPrefix(code.PNG, []byte("\x89PNG")))

	assert.Equal(t, "tok-qr", h.svc.Session().Token)
	assert.Len(t, h.events.of(core.EventQRGenerated), 1)
	assert.Len(t, h.events.of(core.EventQRScanned), 1)
	assert.Len(t, h.events.of(core.EventAuthenticated), 1)
}

func TestLoginWithQRWebSocketFirst(t *testing.T) {
	h := newHarness(t, nil, fastQR())

	h.backend.WatchQRFn = func(ctx context.Context, id string) (*core.QRStatus, error) {
		return completed("tok-ws"), nil
	}
	h.backend.QRStatusFn = func(context.Context, string) (*core.QRStatus, error) {
		return completed("tok-poll"), nil
	}

	_, err := h.svc.LoginWithQR(context.Background(), nil)
	require.NoError(t, err)

	// Give the losing channel time to report as well
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, h.events.of(core.EventAuthenticated), 1)
	assert.Contains(t, []string{"tok-ws", "tok-poll"}, h.svc.Session().Token)
}

func TestLoginWithQRWebSocketFailureFallsBackToPolling(t *testing.T) {
	h := newHarness(t, nil, fastQR())

	h.backend.WatchQRFn = func(context.Context, string) (*core.QRStatus, error) {
		return nil, core.ErrTransport
	}
	h.backend.QRStatusFn = func(context.Context, string) (*core.QRStatus, error) {
		return completed("tok-poll"), nil
	}

	_, err := h.svc.LoginWithQR(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "tok-poll", h.svc.Session().Token)
	assert.Empty(t, h.events.of(core.EventError))
}

func TestLoginWithQRExpired(t *testing.T) {
	h := newHarness(t, nil, fastQR())
	h.backend.QRStatusFn = func(context.Context, string) (*core.QRStatus, error) {
		return &core.QRStatus{Status: core.QRExpired}, nil
	}

	_, err := h.svc.LoginWithQR(context.Background(), nil)
	require.ErrorIs(t, err, core.ErrQRExpired)
	assert.Equal(t, "QR code expired", core.UserMessage(err))

	assert.Len(t, h.events.of(core.EventQRExpired), 1)
	assert.Len(t, h.events.of(core.EventError), 1)
	assert.Equal(t, core.StateReady, h.svc.State())
}

func TestLoginWithQRTimeout(t *testing.T) {
	h := newHarness(t, nil, WithQR(QRConfig{
		Enabled:      true,
		Size:         128,
		Timeout:      20 * time.Millisecond,
		PollInterval: 2 * time.Millisecond,
	}))

	_, err := h.svc.LoginWithQR(context.Background(), nil)
	require.ErrorIs(t, err, core.ErrQRExpired)
	assert.Len(t, h.events.of(core.EventQRExpired), 1)
}

func TestLoginWithQRServerExpiryShortensWait(t *testing.T) {
	h := newHarness(t, nil, fastQR())
	h.backend.InitQRFn = func(context.Context) (*core.QRSession, error) {
		return &core.QRSession{SessionID: "qr-2", ExpiresAt: time.Now().Add(15 * time.Millisecond)}, nil
	}

	start := time.Now()
	_, err := h.svc.LoginWithQR(context.Background(), nil)
	require.ErrorIs(t, err, core.ErrQRExpired)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestLoginWithQRCancelled(t *testing.T) {
	h := newHarness(t, nil, fastQR())

	watching := make(chan struct{})
	h.backend.WatchQRFn = func(ctx context.Context, id string) (*core.QRStatus, error) {
		close(watching)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	done := make(chan error, 1)
	go func() {
		_, err := h.svc.LoginWithQR(context.Background(), nil)
		done <- err
	}()

	<-watching
	h.svc.CancelLogin()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, core.ErrLoginCancelled)
	case <-time.After(time.Second):
		t.Fatal("QR login did not stop after cancellation")
	}
	assert.Empty(t, h.events.of(core.EventQRExpired))
}

func TestLoginWithQRDisabled(t *testing.T) {
	h := newHarness(t, nil, WithQR(QRConfig{Enabled: false}))

	_, err := h.svc.LoginWithQR(context.Background(), nil)
	assert.ErrorIs(t, err, errQRDisabled)
	assert.Zero(t, h.backend.Calls("qr_init"))
}

func TestApproveQR(t *testing.T) {
	h := newHarness(t, oneEthereumWallet())

	var signedMessage string
	h.connector.SignFn = func(_ context.Context, _ core.DiscoveredWallet, msg string) (string, error) {
		signedMessage = msg
		return "0xqrsig", nil
	}
	var req core.QRSignRequest
	h.backend.SignQRFn = func(_ context.Context, r core.QRSignRequest) error {
		req = r
		return nil
	}

	require.NoError(t, h.svc.ApproveQR(context.Background(), "qr-9", "metamask"))

	assert.Equal(t, "sign-qr", signedMessage)
	assert.Equal(t, core.QRSignRequest{
		SessionID: "qr-9",
		Address:   fakes.Address,
		Signature: "0xqrsig",
		ChainType: core.ChainEthereum,
	}, req)
	assert.Equal(t, core.StateIdle, h.svc.State())
	assert.Nil(t, h.svc.Session())
}

func TestApproveQRRejected(t *testing.T) {
	h := newHarness(t, oneEthereumWallet())
	h.connector.SignFn = func(context.Context, core.DiscoveredWallet, string) (string, error) {
		return "", &core.RejectionError{Kind: core.ErrSignatureRejected, Message: "You rejected the signature request"}
	}

	err := h.svc.ApproveQR(context.Background(), "qr-9", "metamask")
	require.ErrorIs(t, err, core.ErrSignatureRejected)
	assert.Zero(t, h.backend.Calls("qr_sign"))
	assert.Len(t, h.events.of(core.EventError), 1)
	assert.Equal(t, core.StateIdle, h.svc.State())
}
