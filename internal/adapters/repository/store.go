// Package repository defines the movie record store interface and errors.
package repository

import (
	"context"

	"github.com/okian/movierank/internal/domain/model"
)

// NewMovie carries the catalog-derived fields of a movie being added.
type NewMovie struct {
	Title       string
	Year        int
	Description string
	ImageURL    string
}

// MovieUpdate carries the user-entered fields written by the edit step.
// A nil Owner leaves the stored owner untouched.
type MovieUpdate struct {
	Rating float64
	Review string
	Owner  *string
}

// ListFilter narrows List. The zero value lists every movie.
type ListFilter struct {
	Owner string
	// Unassigned selects movies with no owner; Owner is ignored when set.
	Unassigned bool
}

// Store provides read/write access to the movie records.
type Store interface {
	// List returns movies ordered by rating desc (unrated last, ties by id)
	// with Ranking set to each movie's 1-based position.
	List(ctx context.Context, filter ListFilter) ([]model.Movie, error)

	// Insert adds a movie and returns its id.
	// Returns ErrDuplicateTitle if the title is already stored.
	Insert(ctx context.Context, m NewMovie) (int64, error)

	// ExistsByTitle reports whether a movie with title is stored.
	ExistsByTitle(ctx context.Context, title string) (bool, error)

	// Get returns ErrNotFound if the id is unknown.
	Get(ctx context.Context, id int64) (model.Movie, error)

	// Update sets rating and review (and owner when given).
	// Returns ErrNotFound if the id is unknown.
	Update(ctx context.Context, id int64, u MovieUpdate) error

	// Delete removes the movie and returns it as it was stored.
	// Returns ErrNotFound if the id is unknown.
	Delete(ctx context.Context, id int64) (model.Movie, error)

	// Count returns the number of stored movies.
	Count(ctx context.Context) (int, error)

	// CountByOwner returns movie counts keyed by owner ("" for unassigned).
	CountByOwner(ctx context.Context) (map[string]int, error)

	Close() error
}
