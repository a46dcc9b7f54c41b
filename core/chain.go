package core

import (
	"fmt"
	"strings"
)

// ChainType identifies a supported blockchain ecosystem
type ChainType string

const (
	ChainEthereum ChainType = "ethereum"
	ChainSolana   ChainType = "solana"
	ChainBitcoin  ChainType = "bitcoin"
	ChainPolkadot ChainType = "polkadot"
	ChainCardano  ChainType = "cardano"
)

// AllChains lists every supported chain in registry order
var AllChains = []ChainType{ChainEthereum, ChainSolana, ChainBitcoin, ChainPolkadot, ChainCardano}

// ParseChain converts a string into a known ChainType
func ParseChain(s string) (ChainType, error) {
	c := ChainType(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedChain, s)
	}
	return c, nil
}

// Valid reports whether c is one of AllChains
func (c ChainType) Valid() bool {
	for _, known := range AllChains {
		if c == known {
			return true
		}
	}
	return false
}

// Platform describes where a wallet can be used
type Platform string

const (
	PlatformDesktop Platform = "desktop"
	PlatformMobile  Platform = "mobile"
	PlatformBoth    Platform = "both"
)
