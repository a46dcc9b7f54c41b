package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skip2/go-qrcode"
	"go.uber.org/atomic"

	"github.com/layer-3/walletsso/core"
)

var errQRDisabled = errors.New("QR login is disabled")

// LoginWithQR opens a mobile handoff session, hands the rendered code to onCode and
// waits for the mobile side to authenticate. Completion is watched over the backend
// WebSocket and by polling at once; the first to report wins.
func (s *AuthService) LoginWithQR(ctx context.Context, onCode func(core.QRCode)) (*core.User, error) {
	if user := s.authenticatedUser(); user != nil {
		return user, nil
	}
	return s.coalesce(ctx, func(ctx context.Context, a *attempt) (*core.User, error) {
		return s.loginWithQR(ctx, a, onCode)
	})
}

func (s *AuthService) loginWithQR(ctx context.Context, a *attempt, onCode func(core.QRCode)) (*core.User, error) {
	if !s.qr.Enabled {
		return nil, s.fail(a, "", errQRDisabled)
	}

	qr, err := s.backend.InitQR(ctx)
	if !a.open.Load() {
		return nil, core.ErrLoginCancelled
	}
	if err != nil {
		return nil, s.fail(a, "", err)
	}

	code, err := s.renderQR(qr)
	if err != nil {
		return nil, s.fail(a, "", err)
	}
	s.transition(a, core.StateReady)
	if onCode != nil {
		onCode(code)
	}
	s.emit(core.Event{Type: core.EventQRGenerated, Data: code})

	status, err := s.awaitQR(ctx, qr)
	if !a.open.Load() {
		return nil, core.ErrLoginCancelled
	}
	if errors.Is(err, core.ErrQRExpired) {
		s.emit(core.Event{Type: core.EventQRExpired, Data: qr.SessionID})
		return nil, s.fail(a, "", err)
	}
	if err != nil {
		return nil, s.fail(a, "", err)
	}

	s.emit(core.Event{Type: core.EventQRScanned, Data: qr.SessionID})
	s.transition(a, core.StateVerifying)

	res := &core.AuthResult{
		Authenticated: status.Token != "",
		Token:         status.Token,
		User:          status.User,
		ExpiresAt:     status.ExpiresAt,
	}
	var address string
	var chain core.ChainType
	if status.User != nil {
		address, chain = status.User.Address, status.User.ChainType
	}
	return s.authenticate(ctx, a, res, address, chain)
}

func (s *AuthService) renderQR(qr *core.QRSession) (core.QRCode, error) {
	content := qr.AuthURL
	if content == "" {
		content = qr.SessionID
	}

	png, err := qrcode.Encode(content, qrcode.Medium, s.qr.Size)
	if err != nil {
		return core.QRCode{}, fmt.Errorf("failed to render QR code: %w", err)
	}
	return core.QRCode{
		SessionID: qr.SessionID,
		Content:   content,
		PNG:       png,
		ExpiresAt: qr.ExpiresAt,
	}, nil
}

// awaitQR races the WebSocket watcher against polling. The first completion or expiry
// is delivered; later ones are dropped and both channels are torn down on return.
func (s *AuthService) awaitQR(parent context.Context, qr *core.QRSession) (*core.QRStatus, error) {
	timeout := s.qr.Timeout
	if !qr.ExpiresAt.IsZero() {
		if left := qr.ExpiresAt.Sub(s.now()); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, core.ErrQRExpired
	}

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	var resolved atomic.Bool
	results := make(chan *core.QRStatus, 1)
	deliver := func(source string, status *core.QRStatus) {
		if !resolved.CompareAndSwap(false, true) {
			s.logger.Debug("dropping duplicate QR notification", map[string]any{"source": source})
			return
		}
		results <- status
	}

	go func() {
		status, err := s.backend.WatchQR(ctx, qr.SessionID)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Debug("QR websocket failed, relying on polling", map[string]any{"error": err})
			}
			return
		}
		deliver("websocket", status)
	}()
	go s.pollQR(ctx, qr.SessionID, deliver)

	select {
	case status := <-results:
		if status.Status == core.QRExpired {
			return nil, core.ErrQRExpired
		}
		return status, nil
	case <-ctx.Done():
		if err := parent.Err(); err != nil {
			return nil, err
		}
		return nil, core.ErrQRExpired
	}
}

func (s *AuthService) pollQR(ctx context.Context, sessionID string, deliver func(string, *core.QRStatus)) {
	ticker := time.NewTicker(s.qr.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, err := s.backend.QRStatus(ctx, sessionID)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Debug("QR status poll failed", map[string]any{"error": err})
				}
				continue
			}
			switch status.Status {
			case core.QRCompleted, core.QRExpired:
				deliver("polling", status)
				return
			}
		}
	}
}

// ApproveQR signs the challenge of a QR session opened on another device with the
// local wallet walletID, completing the login over there
func (s *AuthService) ApproveQR(ctx context.Context, sessionID, walletID string) error {
	wallet, err := s.lookup(ctx, nil, walletID)
	if err != nil {
		return s.reportQRError(err)
	}

	challenge, err := s.backend.QRChallenge(ctx, sessionID)
	if err != nil {
		return s.reportQRError(err)
	}

	address, err := s.connector.Connect(ctx, wallet)
	if err != nil {
		return s.reportQRError(err)
	}

	signature, err := s.connector.SignMessage(ctx, wallet, challenge.Message)
	if err != nil {
		return s.reportQRError(err)
	}
	if signature == "" {
		return s.reportQRError(&core.WalletError{Wallet: wallet.Name, Err: core.ErrSignatureFailed})
	}

	err = s.backend.SignQR(ctx, core.QRSignRequest{
		SessionID: sessionID,
		Address:   address,
		Signature: signature,
		ChainType: wallet.Chain,
	})
	if err != nil {
		return s.reportQRError(err)
	}

	s.logger.Info("QR session approved", map[string]any{"session": sessionID, "wallet": walletID})
	return nil
}

// reportQRError emits err without touching the state of this engine's own session
func (s *AuthService) reportQRError(err error) error {
	s.logger.Warn("QR approval failed", map[string]any{"error": err})
	s.emit(core.Event{Type: core.EventError, Err: err})
	return err
}
