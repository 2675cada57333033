// Package service provides the movie workflow used by the site and ops
// handlers: listing, catalog search, selection, rating and removal.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/okian/movierank/internal/adapters/catalog"
	"github.com/okian/movierank/internal/adapters/repository"
	"github.com/okian/movierank/internal/domain/model"
	"github.com/okian/movierank/internal/domain/ranking"
	"github.com/okian/movierank/pkg/logger"
	"github.com/okian/movierank/pkg/metrics"
)

const (
	ModeSingle = "single"
	ModeOwners = "owners"
)

// Service implements the workflow dependencies of the HTTP handlers.
type Service struct {
	mu sync.RWMutex

	store   repository.Store
	catalog catalog.Catalog

	owners   []string
	ownerSet map[string]struct{}

	started bool

	logger logger.Logger
}

// New constructs a new Service.
func New(opts ...Option) *Service {
	s := &Service{}
	for _, opt := range opts {
		opt(s)
	}

	s.ownerSet = make(map[string]struct{}, len(s.owners))
	for _, o := range s.owners {
		s.ownerSet[o] = struct{}{}
	}
	return s
}

// Start checks the injected dependencies and marks the service ready.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.store == nil || s.catalog == nil {
		return ErrMissingDependencies
	}

	s.started = true
	s.logger.Info(ctx, "movie service started",
		logger.String("mode", s.mode()),
		logger.Int("owners", len(s.owners)),
	)
	return nil
}

// Stop closes the record store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(context.Background(), "failed to close record store", logger.Error(err))
	}
	s.started = false
	s.logger.Info(context.Background(), "movie service stopped")
}

// MultiUser reports whether movies are partitioned by owner.
func (s *Service) MultiUser() bool {
	return len(s.owners) > 0
}

// ConfiguredOwners returns the owners a movie may be assigned to.
func (s *Service) ConfiguredOwners() []string {
	return append([]string(nil), s.owners...)
}

func (s *Service) mode() string {
	if s.MultiUser() {
		return ModeOwners
	}
	return ModeSingle
}

func (s *Service) knownOwner(owner string) bool {
	_, ok := s.ownerSet[owner]
	return ok
}

// ListMovies returns the ranked list, narrowed to owner when non-empty.
func (s *Service) ListMovies(ctx context.Context, owner string) ([]model.Movie, error) {
	if owner != "" && !s.knownOwner(owner) {
		return nil, fmt.Errorf("list %q: %w", owner, ErrUnknownOwner)
	}
	movies, err := s.store.List(ctx, repository.ListFilter{Owner: owner})
	if err != nil {
		return nil, err
	}
	s.logger.Debug(ctx, "listed movies", logger.String("owner", owner), logger.Int("count", len(movies)))
	return movies, nil
}

// Owners returns the owners that have at least one movie, in the order
// their movies are listed.
func (s *Service) Owners(ctx context.Context) ([]string, error) {
	movies, err := s.store.List(ctx, repository.ListFilter{})
	if err != nil {
		return nil, err
	}
	return ranking.DistinctOwners(movies), nil
}

// UnassignedMovies returns the ranked movies that have no owner yet, such
// as a selection whose edit step was abandoned.
func (s *Service) UnassignedMovies(ctx context.Context) ([]model.Movie, error) {
	return s.store.List(ctx, repository.ListFilter{Unassigned: true})
}

// Search looks up catalog candidates for a title.
func (s *Service) Search(ctx context.Context, query string) ([]model.CatalogResult, error) {
	results, err := s.catalog.SearchByTitle(ctx, query)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "catalog search", logger.String("query", query), logger.Int("results", len(results)))
	return results, nil
}

// Select fetches a catalog movie and stores it unless its title is
// already present, in which case Duplicate is set.
func (s *Service) Select(ctx context.Context, catalogID int64) (model.Selection, error) {
	if catalogID <= 0 {
		return model.Selection{}, fmt.Errorf("select %d: %w", catalogID, ErrInvalidID)
	}

	cm, err := s.catalog.FetchByID(ctx, catalogID)
	if err != nil {
		return model.Selection{}, err
	}

	exists, err := s.store.ExistsByTitle(ctx, cm.Title)
	if err != nil {
		return model.Selection{}, err
	}
	if exists {
		return s.duplicate(ctx, cm.Title), nil
	}

	id, err := s.store.Insert(ctx, repository.NewMovie{
		Title:       cm.Title,
		Year:        cm.Year,
		Description: cm.Description,
		ImageURL:    cm.PosterURL,
	})
	if errors.Is(err, repository.ErrDuplicateTitle) {
		// Lost a race with a concurrent select of the same title.
		return s.duplicate(ctx, cm.Title), nil
	}
	if err != nil {
		return model.Selection{}, err
	}

	s.logger.Info(ctx, "movie added",
		logger.Int64("movie_id", id),
		logger.Int64("catalog_id", catalogID),
		logger.String("title", cm.Title),
	)
	return model.Selection{ID: id, Title: cm.Title}, nil
}

func (s *Service) duplicate(ctx context.Context, title string) model.Selection {
	metrics.RecordDuplicateTitle()
	s.logger.Info(ctx, "movie already stored", logger.String("title", title))
	return model.Selection{Title: title, Duplicate: true}
}

// Movie returns one stored movie.
func (s *Service) Movie(ctx context.Context, id int64) (model.Movie, error) {
	return s.store.Get(ctx, id)
}

// Rate stores the rating and review and, in per-owner mode, assigns the
// movie to owner. It returns the movie as stored afterwards.
func (s *Service) Rate(ctx context.Context, id int64, rating float64, review, owner string) (model.Movie, error) {
	u := repository.MovieUpdate{Rating: rating, Review: review}
	switch {
	case s.MultiUser():
		if !s.knownOwner(owner) {
			return model.Movie{}, fmt.Errorf("rate %d owner %q: %w", id, owner, ErrUnknownOwner)
		}
		u.Owner = &owner
	case owner != "":
		return model.Movie{}, fmt.Errorf("rate %d owner %q: %w", id, owner, ErrUnknownOwner)
	}

	if err := s.store.Update(ctx, id, u); err != nil {
		return model.Movie{}, err
	}
	m, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Movie{}, err
	}

	s.logger.Info(ctx, "movie rated",
		logger.Int64("movie_id", id),
		logger.Float64("rating", rating),
		logger.String("owner", owner),
	)
	return m, nil
}

// Remove deletes a movie and returns it as it was stored.
func (s *Service) Remove(ctx context.Context, id int64) (model.Movie, error) {
	m, err := s.store.Delete(ctx, id)
	if err != nil {
		return model.Movie{}, err
	}
	s.logger.Info(ctx, "movie deleted", logger.Int64("movie_id", id), logger.String("title", m.Title))
	return m, nil
}

// GetStats returns service statistics for monitoring and refreshes the
// collection gauges.
func (s *Service) GetStats(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	stats := map[string]interface{}{
		"started": started,
		"mode":    s.mode(),
		"owners":  s.ConfiguredOwners(),
	}
	if !started {
		return stats, nil
	}

	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	byOwner, err := s.store.CountByOwner(ctx)
	if err != nil {
		return nil, err
	}

	stats["totalMovies"] = total
	stats["moviesByOwner"] = byOwner
	if sc, ok := s.catalog.(interface{ State() string }); ok {
		stats["catalogBreaker"] = sc.State()
	}

	metrics.UpdateMoviesTotal(total)
	metrics.UpdateMoviesByOwner(byOwner)
	return stats, nil
}

// ParseID parses a positive numeric id from a query parameter.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%q: %w", raw, ErrInvalidID)
	}
	return id, nil
}
