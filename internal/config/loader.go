package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "MOVIERANK_"
	envConfig  = envPrefix + "CONFIG"
	nestingSep = "__"
)

// envAliases maps flat env names onto nested keys.
var envAliases = map[string]string{
	"catalog_api_key": "catalog.api_key",
}

// listKeys are slice-typed keys that arrive from env as comma-separated strings.
var listKeys = []string{
	"owners",
	"http.cors_allowed_origins",
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if MOVIERANK_CONFIG is set
//  3. env (prefix MOVIERANK_, nested keys separated by "__")
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// MOVIERANK_STORE__PATH -> store.path, MOVIERANK_LOG_LEVEL -> log_level.
	envProvider := env.Provider(envPrefix, ".", envKey)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}
	if err := splitLists(k); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if s == "config" {
		return ""
	}
	if alias, ok := envAliases[s]; ok {
		return alias
	}
	return strings.ReplaceAll(s, nestingSep, ".")
}

// splitLists turns comma-separated string values of listKeys into trimmed
// slices. Values already decoded as lists (YAML) are left alone.
func splitLists(k *koanf.Koanf) error {
	for _, key := range listKeys {
		raw, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		parts := strings.Split(raw, ",")
		items := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		if err := k.Set(key, items); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}
