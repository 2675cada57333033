// Package ranking derives list positions and owner menus from stored movies.
package ranking

import (
	"sort"

	"github.com/okian/movierank/internal/domain/model"
)

// Less returns true if a should be listed before b.
//
// Ordering: rating DESC with unrated movies last, then ID ASC (deterministic).
func Less(a, b model.Movie) bool {
	switch {
	case a.Rating == nil && b.Rating == nil:
		return a.ID < b.ID
	case a.Rating == nil:
		return false
	case b.Rating == nil:
		return true
	}
	if *a.Rating != *b.Rating {
		return *a.Rating > *b.Rating
	}
	return a.ID < b.ID
}

// Assign orders movies in place and sets each Ranking to its 1-based position.
// The returned slice is the same backing array.
func Assign(movies []model.Movie) []model.Movie {
	sort.SliceStable(movies, func(i, j int) bool {
		return Less(movies[i], movies[j])
	})
	for i := range movies {
		movies[i].Ranking = i + 1
	}
	return movies
}

// DistinctOwners returns the owners present in movies, in first-seen order,
// without duplicates. Unassigned movies are skipped.
func DistinctOwners(movies []model.Movie) []string {
	seen := make(map[string]struct{})
	owners := make([]string, 0)
	for _, m := range movies {
		owner := m.OwnerName()
		if owner == "" {
			continue
		}
		if _, ok := seen[owner]; ok {
			continue
		}
		seen[owner] = struct{}{}
		owners = append(owners, owner)
	}
	return owners
}
