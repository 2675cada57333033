package repository

import "errors"

// Sentinel kinds for record store errors.
var (
	ErrNotFound         = errors.New("movie not found")
	ErrDuplicateTitle   = errors.New("movie title already exists")
	ErrInvalidRating    = errors.New("rating must be between 0 and 10")
	ErrEmptyTitle       = errors.New("movie title is empty")
	ErrStoreUnavailable = errors.New("record store unavailable")
)
