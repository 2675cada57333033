package repository

import (
	"time"

	"github.com/okian/movierank/pkg/logger"
)

// Option applies a configuration option to the SQLStore.
type Option func(*SQLStore)

// WithTimeout bounds every store operation.
func WithTimeout(timeout time.Duration) Option {
	return func(s *SQLStore) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithPersistedRanking makes List write the computed rankings back to the
// ranking column inside one transaction.
func WithPersistedRanking(enabled bool) Option {
	return func(s *SQLStore) {
		s.persistRanking = enabled
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *SQLStore) {
		if l != nil {
			s.logger = l
		}
	}
}
