// Package config loads the Hibiki configuration from an optional YAML file
// with environment variable overrides. Environment variables win over the
// file, the file wins over defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hibikihq/hibiki/common/environment"
)

// Environment variable names recognised as overrides.
const (
	EnvGatewayURL       = "HIBIKI_GATEWAY_URL"
	EnvDiscoveryTimeout = "HIBIKI_DISCOVERY_TIMEOUT"
	EnvCacheTTL         = "HIBIKI_CACHE_TTL"
	EnvDatabasePath     = "HIBIKI_DATABASE_PATH"
	EnvLogLevel         = "HIBIKI_LOG_LEVEL"
)

// Config holds the runtime settings for the hibiki CLI.
type Config struct {
	// Gateway is the message gateway configuration.
	Gateway GatewayConfig `yaml:"gateway"`
	// Discovery controls capability discovery.
	Discovery DiscoveryConfig `yaml:"discovery"`
	// Cache controls the capability cache.
	Cache CacheConfig `yaml:"cache"`
	// Database is the SQLite database path for memories and the audit log.
	Database DatabaseConfig `yaml:"database"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// GatewayConfig configures the HTTP message gateway client.
type GatewayConfig struct {
	// URL is the gateway base URL.
	URL string `yaml:"url"`
}

// DiscoveryConfig configures capability discovery.
type DiscoveryConfig struct {
	// Timeout bounds one discovery round trip.
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig configures the capability cache.
type CacheConfig struct {
	// TTL is how long a cached snapshot stays fresh.
	TTL time.Duration `yaml:"ttl"`
}

// DatabaseConfig configures local persistence.
type DatabaseConfig struct {
	// Path is the SQLite file path.
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Gateway:   GatewayConfig{URL: "http://localhost:8917"},
		Discovery: DiscoveryConfig{Timeout: 10 * time.Second},
		Cache:     CacheConfig{TTL: 5 * time.Minute},
		Database:  DatabaseConfig{Path: "hibiki.db"},
		LogLevel:  "info",
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (skipped when path is empty or the file does not exist), then
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Missing config file is fine; defaults plus env apply.
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variable overrides.
func (c *Config) applyEnv() {
	c.Gateway.URL = environment.StringOr(EnvGatewayURL, c.Gateway.URL)
	c.Discovery.Timeout = environment.DurationOr(EnvDiscoveryTimeout, c.Discovery.Timeout)
	c.Cache.TTL = environment.DurationOr(EnvCacheTTL, c.Cache.TTL)
	c.Database.Path = environment.StringOr(EnvDatabasePath, c.Database.Path)
	c.LogLevel = environment.StringOr(EnvLogLevel, c.LogLevel)
}

// validate rejects configurations the CLI cannot run with.
func (c *Config) validate() error {
	if c.Gateway.URL == "" {
		return fmt.Errorf("config: gateway url must not be empty")
	}
	if c.Discovery.Timeout <= 0 {
		return fmt.Errorf("config: discovery timeout must be positive, got %v", c.Discovery.Timeout)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("config: cache ttl must be positive, got %v", c.Cache.TTL)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	return nil
}
