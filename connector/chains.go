package connector

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gagliardetto/solana-go"
	"github.com/layer-3/walletsso/core"
	"github.com/tidwall/gjson"
)

func builtinCapabilities(cfg config) map[core.ChainType]Capability {
	encode := func(message string) string {
		if cfg.encoding == EncodingHex {
			return hexutil.Encode([]byte(message))
		}
		return message
	}

	return map[core.ChainType]Capability{
		core.ChainEthereum: {
			Connect: connectEthereum,
			Sign: func(ctx context.Context, provider core.Object, message string) (string, error) {
				return signEthereum(ctx, provider, encode(message))
			},
		},
		core.ChainSolana: {
			Connect: connectSolana,
			Sign:    signSolana,
		},
		core.ChainBitcoin: {
			Connect: connectBitcoin,
			Sign:    signBitcoin,
		},
		core.ChainPolkadot: {
			Connect: func(ctx context.Context, provider core.Object) (string, error) {
				_, address, err := enablePolkadot(ctx, provider, cfg.appName)
				return address, err
			},
			Sign: func(ctx context.Context, provider core.Object, message string) (string, error) {
				return signPolkadot(ctx, provider, cfg.appName, encode(message))
			},
		},
		core.ChainCardano: {
			Connect: func(ctx context.Context, provider core.Object) (string, error) {
				_, address, err := enableCardano(ctx, provider)
				return address, err
			},
			Sign: func(ctx context.Context, provider core.Object, message string) (string, error) {
				return signCardano(ctx, provider, encode(message))
			},
		},
	}
}

// result calls method and returns the JSON form of its result
func result(ctx context.Context, obj core.Object, method string, args ...any) (gjson.Result, error) {
	res, err := obj.Call(ctx, method, args...)
	if err != nil {
		return gjson.Result{}, err
	}
	if res == nil {
		return gjson.Result{}, nil
	}
	raw, err := res.JSON()
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to read %s result: %w", method, err)
	}
	return gjson.ParseBytes(raw), nil
}

// bytesOf reads a typed array serialized as numbers
func bytesOf(r gjson.Result) ([]byte, bool) {
	if !r.IsArray() {
		return nil, false
	}
	items := r.Array()
	out := make([]byte, len(items))
	for i, item := range items {
		n := item.Uint()
		if n > 0xff {
			return nil, false
		}
		out[i] = byte(n)
	}
	return out, true
}

// Ethereum: EIP-1193 request({method, params})

func connectEthereum(ctx context.Context, provider core.Object) (string, error) {
	accounts, err := result(ctx, provider, "request", map[string]any{"method": "eth_requestAccounts"})
	if err != nil {
		return "", err
	}

	address := accounts.Get("0").String()
	if address == "" {
		return "", errNoAccounts(core.ChainEthereum)
	}
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("wallet returned invalid address %q", address)
	}
	return address, nil
}

func signEthereum(ctx context.Context, provider core.Object, message string) (string, error) {
	address, err := connectEthereum(ctx, provider)
	if err != nil {
		return "", err
	}

	sig, err := result(ctx, provider, "request", map[string]any{
		"method": "personal_sign",
		"params": []any{message, address},
	})
	if err != nil {
		return "", err
	}
	if sig.String() == "" {
		return "", core.ErrSignatureFailed
	}
	return sig.String(), nil
}

// Solana: connect() and signMessage(bytes, "utf8")

func connectSolana(ctx context.Context, provider core.Object) (string, error) {
	res, err := result(ctx, provider, "connect")
	if err != nil {
		return "", err
	}

	pk := res.Get("publicKey")
	if raw, ok := bytesOf(pk); ok {
		if len(raw) != solana.PublicKeyLength {
			return "", fmt.Errorf("wallet returned a %d byte public key", len(raw))
		}
		return solana.PublicKeyFromBytes(raw).String(), nil
	}

	if pk.String() == "" {
		return "", errNoAccounts(core.ChainSolana)
	}
	key, err := solana.PublicKeyFromBase58(pk.String())
	if err != nil {
		return "", fmt.Errorf("wallet returned invalid public key: %w", err)
	}
	return key.String(), nil
}

func signSolana(ctx context.Context, provider core.Object, message string) (string, error) {
	res, err := result(ctx, provider, "signMessage", []byte(message), "utf8")
	if err != nil {
		return "", err
	}

	sig := res.Get("signature")
	if raw, ok := bytesOf(sig); ok && len(raw) > 0 {
		return hex.EncodeToString(raw), nil
	}
	if sig.Type == gjson.String && sig.String() != "" {
		decoded, err := solana.SignatureFromBase58(sig.String())
		if err != nil {
			return "", fmt.Errorf("%w: %v", core.ErrSignatureFailed, err)
		}
		return hex.EncodeToString(decoded[:]), nil
	}
	return "", core.ErrSignatureFailed
}

// Bitcoin: requestAccounts() and signMessage(message)

func connectBitcoin(ctx context.Context, provider core.Object) (string, error) {
	accounts, err := result(ctx, provider, "requestAccounts")
	if err != nil {
		return "", err
	}

	first := accounts.Get("0")
	address := first.String()
	if first.IsObject() {
		address = first.Get("address").String()
	}
	if address == "" {
		return "", errNoAccounts(core.ChainBitcoin)
	}
	return address, nil
}

func signBitcoin(ctx context.Context, provider core.Object, message string) (string, error) {
	sig, err := result(ctx, provider, "signMessage", message)
	if err != nil {
		return "", err
	}
	if sig.String() == "" {
		return "", core.ErrSignatureFailed
	}
	return sig.String(), nil
}

// Polkadot: injected extension enable(appName), then accounts.get() and signer.signRaw()

func enablePolkadot(ctx context.Context, provider core.Object, appName string) (core.Object, string, error) {
	extension, err := provider.Call(ctx, "enable", appName)
	if err != nil {
		return nil, "", err
	}
	if extension == nil {
		return nil, "", fmt.Errorf("extension did not enable")
	}

	accounts, ok := extension.Get("accounts")
	if !ok {
		return nil, "", errNoAccounts(core.ChainPolkadot)
	}
	list, err := result(ctx, accounts, "get")
	if err != nil {
		return nil, "", err
	}

	address := list.Get("0.address").String()
	if address == "" {
		return nil, "", errNoAccounts(core.ChainPolkadot)
	}
	return extension, address, nil
}

func signPolkadot(ctx context.Context, provider core.Object, appName, message string) (string, error) {
	extension, address, err := enablePolkadot(ctx, provider, appName)
	if err != nil {
		return "", err
	}

	signer, ok := extension.Get("signer")
	if !ok {
		return "", fmt.Errorf("extension exposes no signer")
	}
	res, err := result(ctx, signer, "signRaw", map[string]any{
		"address": address,
		"data":    message,
		"type":    "bytes",
	})
	if err != nil {
		return "", err
	}

	sig := res.Get("signature").String()
	if sig == "" {
		return "", core.ErrSignatureFailed
	}
	return sig, nil
}

// Cardano: CIP-30 enable(), then getUsedAddresses() and signData(address, payload)

func enableCardano(ctx context.Context, provider core.Object) (core.Object, string, error) {
	api, err := provider.Call(ctx, "enable")
	if err != nil {
		return nil, "", err
	}
	if api == nil {
		return nil, "", fmt.Errorf("wallet did not enable")
	}

	addresses, err := result(ctx, api, "getUsedAddresses")
	if err != nil {
		return nil, "", err
	}
	address := addresses.Get("0").String()
	if address == "" {
		return nil, "", errNoAccounts(core.ChainCardano)
	}
	return api, address, nil
}

func signCardano(ctx context.Context, provider core.Object, message string) (string, error) {
	api, address, err := enableCardano(ctx, provider)
	if err != nil {
		return "", err
	}

	res, err := result(ctx, api, "signData", address, message)
	if err != nil {
		return "", err
	}
	sig := res.Get("signature").String()
	if sig == "" {
		return "", core.ErrSignatureFailed
	}
	return sig, nil
}
