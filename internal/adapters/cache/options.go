package cache

import (
	"time"

	"github.com/okian/movierank/pkg/logger"
)

// Option applies a configuration option to the BadgerCache.
type Option func(*BadgerCache)

// WithTTL sets how long a cached catalog response is served.
func WithTTL(ttl time.Duration) Option {
	return func(c *BadgerCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLogger sets a custom logger for the cache.
func WithLogger(l logger.Logger) Option {
	return func(c *BadgerCache) {
		if l != nil {
			c.logger = l
		}
	}
}
