package core

import (
	"context"
	"fmt"
)

// Environment is a read-only accessor over the host's global namespace.
// Browsers expose injected wallet providers as globals (window.ethereum, window.phantom, ...).
type Environment interface {
	Global(name string) (Object, bool)
}

// Object is a handle onto a value living in the host environment
type Object interface {
	// Get returns the property named key. It reports false when the property is absent or falsy.
	Get(key string) (Object, bool)
	// Call invokes a method on the value and waits for its result, resolving promises.
	Call(ctx context.Context, method string, args ...any) (Object, error)
	// JSON serializes the value. Byte arrays are encoded as arrays of numbers.
	JSON() ([]byte, error)
}

// ProviderInfo is the metadata a wallet announces over EIP-6963
type ProviderInfo struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
	Icon string `json:"icon"`
	RDNS string `json:"rdns"`
}

// Announcement pairs announced metadata with the provider it describes
type Announcement struct {
	Info     ProviderInfo
	Provider Object
}

// Announcer is implemented by environments with a broadcast mechanism for the
// multi-provider announcement protocol
type Announcer interface {
	// OnAnnounce registers fn for announcements and returns a function removing it
	OnAnnounce(fn func(Announcement)) (remove func())
	// RequestProviders broadcasts a discovery request
	RequestProviders()
}

// ProviderError is an error raised by a wallet provider
type ProviderError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ProviderError) Error() string {
	if e.Code == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// CodeUserRejected is the EIP-1193 code for a request declined by the user
const CodeUserRejected = 4001
