package connector

import (
	"errors"
	"strings"

	"github.com/layer-3/walletsso/core"
)

const (
	msgConnectionRejected   = "Connection rejected by user"
	msgSignatureRejected    = "Signature request rejected"
	msgYouRejectedSignature = "You rejected the signature request"
)

// normalizeConnectError turns a declined account request into a RejectionError
func normalizeConnectError(wallet string, err error) error {
	if isTaxonomy(err) {
		return err
	}
	if code, msg := providerDetails(err); code == core.CodeUserRejected || strings.Contains(strings.ToLower(msg), "rejected") {
		return &core.RejectionError{Kind: core.ErrUserRejected, Message: msgConnectionRejected}
	}
	return wrapWallet(wallet, err)
}

// normalizeSignError turns a declined signature request into a RejectionError
func normalizeSignError(wallet string, err error) error {
	if isTaxonomy(err) {
		return err
	}

	code, msg := providerDetails(err)
	switch {
	case code == core.CodeUserRejected:
		return &core.RejectionError{Kind: core.ErrSignatureRejected, Message: msgSignatureRejected}
	case strings.Contains(msg, "User rejected"):
		return &core.RejectionError{Kind: core.ErrSignatureRejected, Message: msgYouRejectedSignature}
	case strings.Contains(strings.ToLower(msg), "rejected"):
		return &core.RejectionError{Kind: core.ErrSignatureRejected, Message: msgSignatureRejected}
	}
	return wrapWallet(wallet, err)
}

func providerDetails(err error) (int, string) {
	var perr *core.ProviderError
	if errors.As(err, &perr) {
		return perr.Code, perr.Message
	}
	return 0, err.Error()
}

// isTaxonomy reports errors already classified by a capability
func isTaxonomy(err error) bool {
	var rejection *core.RejectionError
	var walletErr *core.WalletError
	return errors.As(err, &rejection) || errors.As(err, &walletErr)
}
