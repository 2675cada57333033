// Package model contains domain models passed between layers.
package model

import (
	"strconv"
	"strings"
	"time"
)

// Movie is one row of the record store.
// Rating, Review and Owner stay nil until the movie is edited.
type Movie struct {
	ID          int64
	Title       string
	Year        int
	Description string
	ImageURL    string
	Rating      *float64
	Review      *string
	Owner       *string

	// Ranking is the 1-based position in the rating-descending order of the
	// list the movie was returned in. Zero outside of a list.
	Ranking int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasRating reports whether the movie was rated.
func (m Movie) HasRating() bool { return m.Rating != nil }

// RatingValue returns the rating or 0 when unrated.
func (m Movie) RatingValue() float64 {
	if m.Rating == nil {
		return 0
	}
	return *m.Rating
}

// RatingText formats the rating for display and form prefill.
func (m Movie) RatingText() string {
	if m.Rating == nil {
		return ""
	}
	return strconv.FormatFloat(*m.Rating, 'f', -1, 64)
}

// ReviewText returns the review or "" when none was written.
func (m Movie) ReviewText() string {
	if m.Review == nil {
		return ""
	}
	return *m.Review
}

// OwnerName returns the owner or "" when unassigned.
func (m Movie) OwnerName() string {
	if m.Owner == nil {
		return ""
	}
	return *m.Owner
}

// CatalogResult is one candidate returned by a catalog title search.
type CatalogResult struct {
	ID          int64
	Title       string
	ReleaseDate string
	Overview    string
	PosterPath  string
}

// ReleaseYear returns the year part of ReleaseDate, or "" if unknown.
func (r CatalogResult) ReleaseYear() string {
	if y := YearFromDate(r.ReleaseDate); y > 0 {
		return strconv.Itoa(y)
	}
	return ""
}

// CatalogMovie holds the details fetched for a single catalog id.
type CatalogMovie struct {
	ID          int64
	Title       string
	Year        int
	Description string
	PosterURL   string
}

// Selection is the outcome of choosing a catalog candidate.
type Selection struct {
	// ID of the inserted record. Zero when Duplicate is set.
	ID int64
	// Title as stored (or as already present when Duplicate).
	Title string
	// Duplicate is set when a movie with the same title already exists.
	Duplicate bool
}

// YearFromDate extracts the year prefix (before the first '-') of a
// YYYY-MM-DD date. Returns 0 when absent or not numeric.
func YearFromDate(date string) int {
	prefix, _, _ := strings.Cut(date, "-")
	y, err := strconv.Atoi(prefix)
	if err != nil || y < 0 {
		return 0
	}
	return y
}
