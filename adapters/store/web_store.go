//go:build js && wasm

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"syscall/js"
	"time"

	"github.com/layer-3/walletsso/core"
	"github.com/layer-3/walletsso/ports"
)

// WebStore keeps values in a browser Storage area (localStorage or sessionStorage).
// Entries carry their own expiry since Storage has none.
type WebStore struct {
	area js.Value
}

// NewWebStore binds to window[area]. It fails when the area is unavailable,
// as in private browsing modes that block storage.
func NewWebStore(area string) (ports.KVStore, error) {
	v := js.Global().Get(area)
	if !v.Truthy() {
		return nil, fmt.Errorf("%s is not available", area)
	}
	return &WebStore{area: v}, nil
}

// Set writes value under key
func (s *WebStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	e := fileEntry{Value: value}
	if ttl > 0 {
		e.Expiry = time.Now().Add(ttl)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode entry: %w", err)
	}
	return guard(func() { s.area.Call("setItem", key, string(data)) })
}

// Get reads key, dropping it when expired
func (s *WebStore) Get(ctx context.Context, key string) ([]byte, error) {
	var raw js.Value
	if err := guard(func() { raw = s.area.Call("getItem", key) }); err != nil {
		return nil, err
	}
	if raw.Type() != js.TypeString {
		return nil, core.ErrNotFound
	}

	var e fileEntry
	if err := json.Unmarshal([]byte(raw.String()), &e); err != nil {
		return nil, fmt.Errorf("failed to decode entry %s: %w", key, err)
	}
	if !e.Expiry.IsZero() && time.Now().After(e.Expiry) {
		_ = s.Delete(ctx, key)
		return nil, core.ErrNotFound
	}
	return e.Value, nil
}

// Delete removes keys
func (s *WebStore) Delete(ctx context.Context, keys ...string) error {
	return guard(func() {
		for _, key := range keys {
			s.area.Call("removeItem", key)
		}
	})
}

// guard turns a thrown DOMException (quota, security) into an error
func guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("storage: %v", r)
		}
	}()
	fn()
	return nil
}
