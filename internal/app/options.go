package service

import (
	"github.com/okian/movierank/internal/adapters/catalog"
	"github.com/okian/movierank/internal/adapters/repository"
	"github.com/okian/movierank/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the record store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithCatalog sets the catalog client.
func WithCatalog(c catalog.Catalog) Option {
	return func(s *Service) {
		s.catalog = c
	}
}

// WithOwners sets the fixed owner list. A non-empty list enables the
// per-owner mode.
func WithOwners(owners []string) Option {
	return func(s *Service) {
		s.owners = append([]string(nil), owners...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}
