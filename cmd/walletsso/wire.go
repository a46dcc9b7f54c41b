package main

import (
	"crypto/ecdsa"
	"fmt"
	"net/http"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/layer-3/walletsso/adapters/backend"
	"github.com/layer-3/walletsso/adapters/events"
	"github.com/layer-3/walletsso/adapters/store"
	"github.com/layer-3/walletsso/adapters/tokenizer"
	"github.com/layer-3/walletsso/config"
	"github.com/layer-3/walletsso/connector"
	"github.com/layer-3/walletsso/core"
	"github.com/layer-3/walletsso/detector"
	"github.com/layer-3/walletsso/logger"
	"github.com/layer-3/walletsso/metrics"
	"github.com/layer-3/walletsso/ports"
	"github.com/layer-3/walletsso/service"
	"github.com/layer-3/walletsso/session"
)

// app holds the wired engine and what must be released on exit
type app struct {
	cfg     config.Config
	log     logger.Logger
	svc     *service.AuthService
	metrics http.Handler
	closers []func() error
}

func (a *app) Close() {
	a.svc.Close()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("shutdown", map[string]any{"error": err})
		}
	}
}

func wire(cfg config.Config) (*app, error) {
	log := logger.NewZapLogger(cfg.LogLevel)
	a := &app{cfg: cfg, log: log}
	if z, ok := log.(*logger.ZapLogger); ok {
		a.closers = append(a.closers, z.Sync)
	}

	jar, err := store.NewCookieJar()
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Jar: jar, Timeout: cfg.RequestTimeout}

	backings := map[core.StorageKind]ports.KVStore{
		core.StorageLocal:   store.NewFileStore(cfg.StatePath),
		core.StorageSession: store.NewMemoryStore(),
		core.StorageMemory:  store.NewMemoryStore(),
	}
	cookies, err := store.NewCookieStore(jar, cfg.APIURL)
	if err != nil {
		return nil, err
	}
	backings[core.StorageCookie] = cookies

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		a.closers = append(a.closers, redisClient.Close)
		backings[core.StorageRedis] = store.NewRedisStore(redisClient)
	}

	sessions, err := session.NewStore(backings, cfg.SessionStorage, session.WithLogger(log))
	if err != nil {
		return nil, err
	}

	publisher, err := newPublisher(redisClient)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, publisher.Close)

	verifyKey, err := loadVerifyKey(cfg.TokenVerifyKey)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)
	a.metrics = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	clientOpts := []backend.Option{
		backend.WithHTTPClient(httpClient),
		backend.WithClientCredentials(cfg.ClientID, cfg.ClientSecret),
		backend.WithRedirectURI(cfg.RedirectURI),
		backend.WithLogger(log),
		backend.WithMetrics(recorder),
	}
	if cfg.WebSocketURL != "" {
		clientOpts = append(clientOpts, backend.WithWebSocketURL(cfg.WebSocketURL))
	}
	client := backend.NewClient(cfg.APIURL, clientOpts...)

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
		service.WithTokenizer(tokenizer.NewJWTTokenizer(verifyKey)),
		service.WithPublisher(events.NewWatermillPublisher(publisher)),
		service.WithLogger(log),
		service.WithMetrics(recorder),
	}
	if cfg.ClientID != "" && cfg.RedirectURI != "" {
		opts = append(opts, service.WithOAuth(
			backend.NewOAuthClient(cfg.APIURL, cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI, httpClient),
		))
	}

	a.svc = service.NewAuthService(
		client,
		// A CLI process has no injected wallet providers
		detector.New(nil, detector.WithAnnounceWindow(cfg.AnnounceWindow), detector.WithLogger(log)),
		connector.New(
			connector.WithAppName(cfg.AppName),
			connector.WithMessageEncoding(connector.MessageEncoding(cfg.MessageEncoding)),
			connector.WithLogger(log),
		),
		sessions,
		opts...,
	)
	return a, nil
}

// newPublisher streams events to Redis when available, else keeps them in process
func newPublisher(redisClient *redis.Client) (message.Publisher, error) {
	wmLogger := watermill.NewStdLogger(false, false)
	if redisClient == nil {
		return gochannel.NewGoChannel(gochannel.Config{}, wmLogger), nil
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: redisClient,
		},
		wmLogger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis publisher: %w", err)
	}
	return publisher, nil
}

func loadVerifyKey(path string) (*ecdsa.PublicKey, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token verify key: %w", err)
	}
	key, err := jwt.ParseECPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token verify key: %w", err)
	}
	return key, nil
}
