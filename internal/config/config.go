// Package config provides application configuration with multi-source
// priority.
//
// Sources, highest to lowest:
//  1. Environment variables (PARLEY_*)
//  2. Config file (config.yaml in the working directory or ~/.parley)
//  3. Defaults
//
// A .env file in the working directory is loaded best-effort before
// anything else so provider API keys can live next to the data.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	// ErrInvalidStorageBackend indicates an unknown storage_backend value.
	ErrInvalidStorageBackend = errors.New("invalid storage backend")

	// ErrInvalidUpstreamTimeout indicates the upstream timeout is out of
	// range.
	ErrInvalidUpstreamTimeout = errors.New("invalid upstream timeout")

	// ErrInvalidAddr indicates an empty listen address.
	ErrInvalidAddr = errors.New("invalid listen address")
)

// Storage backend identifiers used in Config.StorageBackend.
const (
	BackendFile = "file"
	BackendBolt = "bolt"
)

// Upstream timeout bounds enforced by Validate.
const (
	minUpstreamTimeout = 5 * time.Second
	maxUpstreamTimeout = 10 * time.Minute
)

// Config stores application configuration.
type Config struct {
	// HTTP listen address.
	Addr string `mapstructure:"addr"`

	// DataDir holds conversation records, attachment bytes and saved keys.
	DataDir string `mapstructure:"data_dir"`

	// StaticDir holds the browser bundle and providers.json.
	StaticDir string `mapstructure:"static_dir"`

	// StorageBackend selects the conversation store: "file" or "bolt".
	StorageBackend string `mapstructure:"storage_backend"`

	// Upstream endpoints and call timeout.
	UpstreamURL       string        `mapstructure:"upstream_url"`
	UpstreamModelsURL string        `mapstructure:"upstream_models_url"`
	UpstreamTimeout   time.Duration `mapstructure:"upstream_timeout"`

	// RateBurst bounds bursts of generation calls; zero disables
	// limiting.
	RateBurst int `mapstructure:"rate_burst"`

	// Logging.
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

// Load loads configuration from defaults, an optional config file, and
// environment overrides, then validates it.
func Load() (*Config, error) {
	// Best-effort: absence of a .env file is the common case.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".parley"))
	}

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", "127.0.0.1:8765")
	v.SetDefault("data_dir", "data")
	v.SetDefault("static_dir", "static")
	v.SetDefault("storage_backend", BackendFile)
	v.SetDefault("upstream_url", "https://openrouter.ai/api/v1/chat/completions")
	v.SetDefault("upstream_models_url", "https://openrouter.ai/api/v1/models")
	v.SetDefault("upstream_timeout", 90*time.Second)
	v.SetDefault("rate_burst", 8)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// bindEnvVariables binds the PARLEY_* environment overrides explicitly.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded strings cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("addr", "PARLEY_ADDR")
	mustBind("data_dir", "PARLEY_DATA_DIR")
	mustBind("static_dir", "PARLEY_STATIC_DIR")
	mustBind("storage_backend", "PARLEY_STORAGE_BACKEND")
	mustBind("upstream_url", "PARLEY_UPSTREAM_URL")
	mustBind("upstream_models_url", "PARLEY_UPSTREAM_MODELS_URL")
	mustBind("upstream_timeout", "PARLEY_UPSTREAM_TIMEOUT")
	mustBind("rate_burst", "PARLEY_RATE_BURST")
	mustBind("log_level", "PARLEY_LOG_LEVEL")
	mustBind("log_json", "PARLEY_LOG_JSON")

	// NOTE: provider API keys (OPENROUTER_API_KEY etc.) are read by the
	// keys store directly, not via viper.
}

// Validate fails fast on configuration that cannot work.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return ErrInvalidAddr
	}
	if c.StorageBackend != BackendFile && c.StorageBackend != BackendBolt {
		return fmt.Errorf("%w: %q (want %q or %q)",
			ErrInvalidStorageBackend, c.StorageBackend, BackendFile, BackendBolt)
	}
	if c.UpstreamTimeout < minUpstreamTimeout || c.UpstreamTimeout > maxUpstreamTimeout {
		return fmt.Errorf("%w: %s (want %s..%s)",
			ErrInvalidUpstreamTimeout, c.UpstreamTimeout, minUpstreamTimeout, maxUpstreamTimeout)
	}
	if c.RateBurst < 0 {
		c.RateBurst = 0
	}
	return nil
}

// ChatsDir is where conversation records and attachment bytes live.
func (c *Config) ChatsDir() string {
	return filepath.Join(c.DataDir, "chats")
}

// KeysPath is the saved-credentials file.
func (c *Config) KeysPath() string {
	return filepath.Join(c.DataDir, "keys.json")
}

// BoltPath is the bolt store database file.
func (c *Config) BoltPath() string {
	return filepath.Join(c.DataDir, "parley.db")
}

// ProvidersPath is the provider/model registry document.
func (c *Config) ProvidersPath() string {
	return filepath.Join(c.StaticDir, "providers.json")
}
