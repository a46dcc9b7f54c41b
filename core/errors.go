package core

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotInstalled      = errors.New("wallet is not installed")
	ErrUnsupportedChain  = errors.New("unsupported blockchain")
	ErrUserRejected      = errors.New("connection rejected by user")
	ErrSignatureRejected = errors.New("signature request rejected")
	ErrSignatureFailed   = errors.New("signature failed - no signature returned")
	ErrBackend           = errors.New("backend error")
	ErrSessionExpired    = errors.New("session has expired")
	ErrTransport         = errors.New("network error")
	ErrNoProvider        = errors.New("provider not available")
	ErrNoAccounts        = errors.New("wallet returned no accounts")
	ErrSelectionRequired = errors.New("wallet selection required")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrQRExpired         = errors.New("QR session expired")
	ErrStateMismatch     = errors.New("oauth state mismatch")
	ErrLoginCancelled    = errors.New("login cancelled")
	ErrUnknownWallet     = errors.New("unknown wallet")
	ErrUnknownStorage    = errors.New("unknown storage kind")
	ErrNotFound          = errors.New("not found")
)

// RejectionError reports a prompt the user declined. Its message is stable and meant for display.
type RejectionError struct {
	Kind    error // ErrUserRejected or ErrSignatureRejected
	Message string
}

func (e *RejectionError) Error() string { return e.Message }

func (e *RejectionError) Unwrap() error { return e.Kind }

// BackendError is a non-2xx or malformed response from the authentication backend
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("API Error: %d", e.Status)
}

func (e *BackendError) Is(target error) bool { return target == ErrBackend }

// WalletError attaches the wallet name to a provider failure
type WalletError struct {
	Wallet string
	Err    error
}

func (e *WalletError) Error() string { return fmt.Sprintf("%s: %v", e.Wallet, e.Err) }

func (e *WalletError) Unwrap() error { return e.Err }

// UserMessage resolves err to a short string suitable for display
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var rejection *RejectionError
	if errors.As(err, &rejection) {
		return rejection.Message
	}

	var walletErr *WalletError
	if errors.Is(err, ErrNotInstalled) && errors.As(err, &walletErr) {
		return fmt.Sprintf("%s is not installed. Please install it first.", walletErr.Wallet)
	}

	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		if backendErr.Message != "" {
			return backendErr.Message
		}
		return http.StatusText(backendErr.Status)
	}

	switch {
	case errors.Is(err, ErrTransport):
		return "Network error, please try again"
	case errors.Is(err, ErrSignatureFailed):
		return "Signature failed, please try again"
	case errors.Is(err, ErrSessionExpired):
		return "Your session has expired"
	case errors.Is(err, ErrQRExpired):
		return "QR code expired"
	case errors.Is(err, ErrNotInstalled):
		return "Wallet is not installed"
	}

	return err.Error()
}
