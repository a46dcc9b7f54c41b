//go:build js && wasm

// Command walletsso-wasm exposes the engine to pages as globalThis.walletsso.
// Every method returns a Promise; init must resolve before the others are used.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"syscall/js"

	"github.com/layer-3/walletsso/adapters/backend"
	"github.com/layer-3/walletsso/adapters/env"
	"github.com/layer-3/walletsso/adapters/events"
	"github.com/layer-3/walletsso/adapters/store"
	"github.com/layer-3/walletsso/adapters/tokenizer"
	"github.com/layer-3/walletsso/config"
	"github.com/layer-3/walletsso/connector"
	"github.com/layer-3/walletsso/core"
	"github.com/layer-3/walletsso/detector"
	"github.com/layer-3/walletsso/logger"
	"github.com/layer-3/walletsso/ports"
	"github.com/layer-3/walletsso/service"
	"github.com/layer-3/walletsso/session"
)

var errNotInitialized = errors.New("walletsso: call init first")

type bridge struct {
	mu  sync.Mutex
	svc *service.AuthService
	log logger.Logger
}

func main() {
	b := &bridge{log: logger.NoopLogger{}}

	api := js.Global().Get("Object").New()
	api.Set("init", asyncFunc(b.init))
	api.Set("login", b.withService(func(ctx context.Context, svc *service.AuthService, args []js.Value) (any, error) {
		if id := stringArg(args, 0); id != "" {
			return svc.LoginWith(ctx, id)
		}
		return svc.Login(ctx)
	}))
	api.Set("loginWithQR", b.withService(loginWithQR))
	api.Set("wallets", b.withService(func(ctx context.Context, svc *service.AuthService, _ []js.Value) (any, error) {
		return svc.Wallets(ctx), nil
	}))
	api.Set("logout", b.withService(func(ctx context.Context, svc *service.AuthService, _ []js.Value) (any, error) {
		return nil, svc.Logout(ctx)
	}))
	api.Set("logoutAll", b.withService(func(ctx context.Context, svc *service.AuthService, _ []js.Value) (any, error) {
		return nil, svc.LogoutAll(ctx)
	}))
	api.Set("refresh", b.withService(func(ctx context.Context, svc *service.AuthService, _ []js.Value) (any, error) {
		return svc.RefreshToken(ctx)
	}))
	api.Set("getUser", b.withService(func(_ context.Context, svc *service.AuthService, _ []js.Value) (any, error) {
		return svc.User(), nil
	}))
	api.Set("getState", b.withService(func(_ context.Context, svc *service.AuthService, _ []js.Value) (any, error) {
		return svc.State().String(), nil
	}))
	api.Set("authorizeUrl", b.withService(func(ctx context.Context, svc *service.AuthService, _ []js.Value) (any, error) {
		return svc.AuthorizeURL(ctx)
	}))
	api.Set("completeOAuth", b.withService(func(ctx context.Context, svc *service.AuthService, args []js.Value) (any, error) {
		return svc.CompleteOAuth(ctx, stringArg(args, 0), stringArg(args, 1))
	}))
	api.Set("cancel", js.FuncOf(func(js.Value, []js.Value) any {
		if svc := b.service(); svc != nil {
			svc.CancelLogin()
		}
		return nil
	}))
	api.Set("on", js.FuncOf(b.on))

	js.Global().Set("walletsso", api)
	select {}
}

// init wires the engine from a config object and restores any stored session
func (b *bridge) init(ctx context.Context, args []js.Value) (any, error) {
	var raw []byte
	if len(args) > 0 && args[0].Truthy() {
		raw = []byte(js.Global().Get("JSON").Call("stringify", args[0]).String())
	}
	cfg, err := config.Parse(raw)
	if err != nil {
		return nil, err
	}

	svc, log, err := wire(cfg)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	if b.svc != nil {
		b.svc.Close()
	}
	b.svc, b.log = svc, log
	b.mu.Unlock()

	if err := svc.Start(ctx); err != nil {
		log.Warn("auto-connect failed", map[string]any{"error": err})
	}
	return svc.User(), nil
}

func wire(cfg config.Config) (*service.AuthService, logger.Logger, error) {
	log := logger.NewZapLogger(cfg.LogLevel)

	backings := map[core.StorageKind]ports.KVStore{
		core.StorageMemory: store.NewMemoryStore(),
	}
	for kind, area := range map[core.StorageKind]string{
		core.StorageLocal:   "localStorage",
		core.StorageSession: "sessionStorage",
	} {
		kv, err := store.NewWebStore(area)
		if err != nil {
			log.Warn("web storage unavailable, using memory", map[string]any{"area": area, "error": err})
			kv = store.NewMemoryStore()
		}
		backings[kind] = kv
	}
	// The browser owns cookies; the backend sets them on its own responses
	backings[core.StorageCookie] = backings[core.StorageMemory]

	sessions, err := session.NewStore(backings, cfg.SessionStorage, session.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	clientOpts := []backend.Option{
		backend.WithHTTPClient(httpClient),
		backend.WithClientCredentials(cfg.ClientID, cfg.ClientSecret),
		backend.WithRedirectURI(cfg.RedirectURI),
		backend.WithLogger(log),
	}
	if cfg.WebSocketURL != "" {
		clientOpts = append(clientOpts, backend.WithWebSocketURL(cfg.WebSocketURL))
	}

	opts := []service.Option{
		service.WithAutoConnect(cfg.AutoConnect),
		service.WithRefreshInterval(cfg.TokenRefreshInterval),
		service.WithChains(cfg.Chains...),
		service.WithQR(service.QRConfig{
			Enabled:      cfg.EnableQR,
			Size:         cfg.QRSize,
			Timeout:      cfg.QRTimeout,
			PollInterval: cfg.QRPollInterval,
		}),
		service.WithTokenizer(tokenizer.NewJWTTokenizer(nil)),
		service.WithLogger(log),
	}
	if cfg.ClientID != "" && cfg.RedirectURI != "" {
		opts = append(opts, service.WithOAuth(
			backend.NewOAuthClient(cfg.APIURL, cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI, httpClient),
		))
	}

	svc := service.NewAuthService(
		backend.NewClient(cfg.APIURL, clientOpts...),
		detector.New(env.NewBrowser(), detector.WithAnnounceWindow(cfg.AnnounceWindow), detector.WithLogger(log)),
		connector.New(
			connector.WithAppName(cfg.AppName),
			connector.WithMessageEncoding(connector.MessageEncoding(cfg.MessageEncoding)),
			connector.WithLogger(log),
		),
		sessions,
		opts...,
	)
	return svc, log, nil
}

func loginWithQR(ctx context.Context, svc *service.AuthService, args []js.Value) (any, error) {
	var onCode js.Value
	if len(args) > 0 && args[0].Type() == js.TypeFunction {
		onCode = args[0]
	}
	return svc.LoginWithQR(ctx, func(code core.QRCode) {
		if onCode.IsUndefined() {
			return
		}
		onCode.Invoke(toJS(map[string]any{
			"sessionId": code.SessionID,
			"content":   code.Content,
			"image":     "data:image/png;base64," + base64.StdEncoding.EncodeToString(code.PNG),
			"expiresAt": code.ExpiresAt,
		}))
	})
}

// on subscribes a callback to an event type, or to every event for "*".
// It returns the unsubscribe function.
func (b *bridge) on(_ js.Value, args []js.Value) any {
	svc := b.service()
	if svc == nil || len(args) < 2 || args[1].Type() != js.TypeFunction {
		return js.Undefined()
	}
	cb := args[1]
	handler := func(event core.Event) {
		cb.Invoke(toJS(events.NewPayload(event)))
	}

	var off func()
	if t := args[0].String(); t == "*" {
		off = svc.SubscribeAll(handler)
	} else {
		off = svc.Subscribe(core.EventType(t), handler)
	}

	var release js.Func
	release = js.FuncOf(func(js.Value, []js.Value) any {
		off()
		release.Release()
		return nil
	})
	return release
}

func (b *bridge) service() *service.AuthService {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.svc
}

type serviceCall func(ctx context.Context, svc *service.AuthService, args []js.Value) (any, error)

func (b *bridge) withService(fn serviceCall) js.Func {
	return asyncFunc(func(ctx context.Context, args []js.Value) (any, error) {
		svc := b.service()
		if svc == nil {
			return nil, errNotInitialized
		}
		return fn(ctx, svc, args)
	})
}

// asyncFunc runs fn on its own goroutine and settles a Promise with the result
func asyncFunc(fn func(ctx context.Context, args []js.Value) (any, error)) js.Func {
	return js.FuncOf(func(_ js.Value, args []js.Value) any {
		var executor js.Func
		executor = js.FuncOf(func(_ js.Value, settle []js.Value) any {
			resolve, reject := settle[0], settle[1]
			go func() {
				defer executor.Release()
				res, err := fn(context.Background(), args)
				if err != nil {
					reject.Invoke(jsError(err))
					return
				}
				resolve.Invoke(toJS(res))
			}()
			return nil
		})
		return js.Global().Get("Promise").New(executor)
	})
}

func jsError(err error) js.Value {
	e := js.Global().Get("Error").New(core.UserMessage(err))
	e.Set("code", errorCode(err))
	return e
}

var errorCodes = []struct {
	err  error
	code string
}{
	{core.ErrUserRejected, "USER_REJECTED"},
	{core.ErrSignatureRejected, "SIGNATURE_REJECTED"},
	{core.ErrSignatureFailed, "SIGNATURE_FAILED"},
	{core.ErrNotInstalled, "NOT_INSTALLED"},
	{core.ErrUnsupportedChain, "UNSUPPORTED_CHAIN"},
	{core.ErrUnknownWallet, "UNKNOWN_WALLET"},
	{core.ErrSelectionRequired, "SELECTION_REQUIRED"},
	{core.ErrLoginCancelled, "CANCELLED"},
	{core.ErrNotAuthenticated, "NOT_AUTHENTICATED"},
	{core.ErrSessionExpired, "SESSION_EXPIRED"},
	{core.ErrQRExpired, "QR_EXPIRED"},
	{core.ErrStateMismatch, "STATE_MISMATCH"},
	{core.ErrBackend, "BACKEND_ERROR"},
	{core.ErrTransport, "NETWORK_ERROR"},
}

// errorCode gives pages a stable value to branch on
func errorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "UNKNOWN"
}

// toJS hands a Go value to the page as plain data
func toJS(v any) js.Value {
	if v == nil {
		return js.Null()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return js.Null()
	}
	return js.Global().Get("JSON").Call("parse", string(data))
}

func stringArg(args []js.Value, i int) string {
	if len(args) <= i || args[i].Type() != js.TypeString {
		return ""
	}
	return args[i].String()
}
