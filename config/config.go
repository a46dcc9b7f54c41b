package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"github.com/layer-3/walletsso/core"
)

// Config holds the SDK and companion server settings
type Config struct {
	APIURL       string `yaml:"api_url" validate:"required,url"`
	WebSocketURL string `yaml:"ws_url" validate:"omitempty,url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri" validate:"omitempty,url"`
	AppName      string `yaml:"app_name" validate:"required"`

	AutoConnect          bool             `yaml:"auto_connect"`
	SessionStorage       core.StorageKind `yaml:"session_storage" validate:"oneof=localStorage sessionStorage cookie memory redis"`
	TokenRefreshInterval time.Duration    `yaml:"token_refresh_interval" validate:"gte=0"`
	Chains               []core.ChainType `yaml:"chains" validate:"min=1,dive,oneof=ethereum solana bitcoin polkadot cardano"`
	MessageEncoding      string           `yaml:"message_encoding" validate:"oneof=raw hex"`
	AnnounceWindow       time.Duration    `yaml:"announce_window" validate:"gt=0"`
	RequestTimeout       time.Duration    `yaml:"request_timeout" validate:"gt=0"`

	EnableQR       bool          `yaml:"enable_qr"`
	QRSize         int           `yaml:"qr_size" validate:"gte=64,lte=2048"`
	QRTimeout      time.Duration `yaml:"qr_timeout" validate:"gt=0"`
	QRPollInterval time.Duration `yaml:"qr_poll_interval" validate:"gt=0"`

	StatePath      string `yaml:"state_path"`
	RedisURL       string `yaml:"redis_url"`
	TokenVerifyKey string `yaml:"token_verify_key"` // PEM file of the backend ES256 public key
	LogLevel       string `yaml:"log_level" validate:"oneof=debug info warn error"`
	ListenAddr     string `yaml:"listen_addr"`
}

// Default returns the settings used when a key is absent from the config file
func Default() Config {
	return Config{
		APIURL:               "https://auth.walletsso.io",
		AppName:              "walletsso",
		AutoConnect:          true,
		SessionStorage:       core.StorageLocal,
		TokenRefreshInterval: time.Hour,
		Chains:               append([]core.ChainType(nil), core.AllChains...),
		MessageEncoding:      "raw",
		AnnounceWindow:       30 * time.Millisecond,
		RequestTimeout:       30 * time.Second,
		EnableQR:             true,
		QRSize:               256,
		QRTimeout:            300 * time.Second,
		QRPollInterval:       2 * time.Second,
		StatePath:            "walletsso.json",
		LogLevel:             "info",
		ListenAddr:           ":8080",
	}
}

// Load reads the YAML file at path over the defaults. An empty path yields the defaults.
// REDIS_URL overrides redis_url.
func Load(path string) (Config, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML (or JSON) over the defaults and validates the result
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if len(data) > 0 {
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.RedisURL = url
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and cross-field rules
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.SessionStorage == core.StorageRedis && c.RedisURL == "" {
		return fmt.Errorf("invalid config: session_storage redis requires redis_url")
	}
	return nil
}

// HasChain reports whether chain is enabled
func (c Config) HasChain(chain core.ChainType) bool {
	for _, ch := range c.Chains {
		if ch == chain {
			return true
		}
	}
	return false
}
