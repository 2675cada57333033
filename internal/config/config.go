// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers defaults, an optional YAML file and MOVIERANK_* env vars.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Owners is the fixed set of collection owners. Empty runs a single
	// shared collection.
	Owners []string `koanf:"owners"`

	Store   StoreConfig   `koanf:"store"`
	Catalog CatalogConfig `koanf:"catalog"`
	HTTP    HTTPConfig    `koanf:"http"`
}

// StoreConfig configures the embedded record store.
type StoreConfig struct {
	// Path is the SQLite database file.
	Path string `koanf:"path"`

	// Timeout bounds every store operation.
	Timeout time.Duration `koanf:"timeout"`

	// PersistRanking writes computed rankings back on every list.
	PersistRanking bool `koanf:"persist_ranking"`
}

// CatalogConfig configures the outbound movie catalog client.
type CatalogConfig struct {
	BaseURL   string `koanf:"base_url"`
	ImageBase string `koanf:"image_base"`

	// APIKey is the catalog credential. Never logged.
	APIKey string `koanf:"api_key"`

	Timeout       time.Duration `koanf:"timeout"`
	RatePerSecond float64       `koanf:"rate_per_second"`
	Burst         int           `koanf:"burst"`

	// CacheTTL is how long catalog responses are reused. Zero disables the cache.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// CachePath is the badger directory for the response cache. Empty keeps
	// the cache in memory.
	CachePath string `koanf:"cache_path"`
}

// HTTPConfig configures the HTTP server and its middleware.
type HTTPConfig struct {
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// CORSAllowedOrigins may read /healthz and /stats from a browser.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Addr:      ":5000",
		Store: StoreConfig{
			Path:    "movie-database.db",
			Timeout: 2 * time.Second,
		},
		Catalog: CatalogConfig{
			BaseURL:       "https://api.themoviedb.org/3",
			ImageBase:     "https://image.tmdb.org/t/p/w500",
			Timeout:       10 * time.Second,
			RatePerSecond: 20,
			Burst:         5,
			CacheTTL:      time.Hour,
		},
		HTTP: HTTPConfig{
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			RateLimitRequests: 300,
			RateLimitWindow:   time.Minute,
		},
	}
}

// MultiUser reports whether per-owner collections are enabled.
func (c *Config) MultiUser() bool {
	return len(c.Owners) > 0
}

// Validate checks the loaded configuration for values the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.Store.Path) == "":
		return fmt.Errorf("%w: store.path must not be empty", ErrInvalidConfig)
	case c.Store.Timeout <= 0:
		return fmt.Errorf("%w: store.timeout must be positive", ErrInvalidConfig)
	case strings.TrimSpace(c.Catalog.BaseURL) == "":
		return fmt.Errorf("%w: catalog.base_url must not be empty", ErrInvalidConfig)
	case c.Catalog.Timeout <= 0:
		return fmt.Errorf("%w: catalog.timeout must be positive", ErrInvalidConfig)
	case c.Catalog.RatePerSecond <= 0 || c.Catalog.Burst <= 0:
		return fmt.Errorf("%w: catalog rate_per_second and burst must be positive", ErrInvalidConfig)
	case c.Catalog.CacheTTL < 0:
		return fmt.Errorf("%w: catalog.cache_ttl must not be negative", ErrInvalidConfig)
	}

	seen := make(map[string]struct{}, len(c.Owners))
	for i, owner := range c.Owners {
		owner = strings.TrimSpace(owner)
		if owner == "" {
			return fmt.Errorf("%w: owners[%d] is blank", ErrInvalidConfig, i)
		}
		if _, dup := seen[owner]; dup {
			return fmt.Errorf("%w: owner %q listed twice", ErrInvalidConfig, owner)
		}
		seen[owner] = struct{}{}
		c.Owners[i] = owner
	}
	return nil
}
