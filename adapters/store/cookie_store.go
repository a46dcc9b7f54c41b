package store

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/layer-3/walletsso/core"
	"github.com/layer-3/walletsso/ports"
	"golang.org/x/net/publicsuffix"
)

// CookieStore keeps values as cookies scoped to an origin. Sharing its jar with the
// backend HTTP client sends them along with API requests.
type CookieStore struct {
	jar    http.CookieJar
	origin *url.URL
}

// NewCookieJar creates a jar honouring the public suffix list
func NewCookieJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return jar, nil
}

// NewCookieStore creates a store writing cookies for origin into jar
func NewCookieStore(jar http.CookieJar, origin string) (ports.KVStore, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid cookie origin: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid cookie origin %q", origin)
	}

	return &CookieStore{jar: jar, origin: u}, nil
}

// Set writes value as a cookie. Values are base64 encoded to stay within the cookie grammar.
func (s *CookieStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cookie := &http.Cookie{
		Name:     key,
		Value:    base64.RawURLEncoding.EncodeToString(value),
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	}
	if ttl > 0 {
		cookie.Expires = time.Now().Add(ttl)
	}

	s.jar.SetCookies(s.origin, []*http.Cookie{cookie})
	return nil
}

// Get reads the cookie named key
func (s *CookieStore) Get(ctx context.Context, key string) ([]byte, error) {
	for _, c := range s.jar.Cookies(s.origin) {
		if c.Name != key {
			continue
		}
		value, err := base64.RawURLEncoding.DecodeString(c.Value)
		if err != nil {
			return nil, fmt.Errorf("malformed cookie %s: %w", key, err)
		}
		return value, nil
	}
	return nil, core.ErrNotFound
}

// Delete expires the cookies named keys
func (s *CookieStore) Delete(ctx context.Context, keys ...string) error {
	cookies := make([]*http.Cookie, len(keys))
	for i, key := range keys {
		cookies[i] = &http.Cookie{Name: key, Path: "/", MaxAge: -1}
	}
	s.jar.SetCookies(s.origin, cookies)
	return nil
}
