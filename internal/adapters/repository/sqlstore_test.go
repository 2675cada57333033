package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/movierank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func openTestStore(t *testing.T, opts ...Option) *SQLStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "movies.db")
	s, err := Open(context.Background(), path, opts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustInsert(ctx context.Context, s *SQLStore, title string, year int) int64 {
	id, err := s.Insert(ctx, NewMovie{
		Title:       title,
		Year:        year,
		Description: title + " overview",
		ImageURL:    "https://image.example/" + title + ".jpg",
	})
	So(err, ShouldBeNil)
	return id
}

func titles(s *SQLStore, ctx context.Context, filter ListFilter) []string {
	movies, err := s.List(ctx, filter)
	So(err, ShouldBeNil)
	out := make([]string, len(movies))
	for i, m := range movies {
		out[i] = m.Title
	}
	return out
}

func TestSQLStore_InsertAndGet(t *testing.T) {
	Convey("Given an empty store", t, func() {
		ctx := context.Background()
		s := openTestStore(t)

		Convey("When a movie with a new title is inserted", func() {
			id := mustInsert(ctx, s, "Heat", 1995)

			Convey("Then the count grows by one", func() {
				n, err := s.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})

			Convey("And the movie is retrievable with rating and review unset", func() {
				m, err := s.Get(ctx, id)
				So(err, ShouldBeNil)
				So(m.ID, ShouldEqual, id)
				So(m.Title, ShouldEqual, "Heat")
				So(m.Year, ShouldEqual, 1995)
				So(m.Description, ShouldEqual, "Heat overview")
				So(m.ImageURL, ShouldEqual, "https://image.example/Heat.jpg")
				So(m.Rating, ShouldBeNil)
				So(m.Review, ShouldBeNil)
				So(m.Owner, ShouldBeNil)
				So(m.CreatedAt.IsZero(), ShouldBeFalse)
			})

			Convey("And ExistsByTitle reports it", func() {
				ok, err := s.ExistsByTitle(ctx, "Heat")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)

				ok, err = s.ExistsByTitle(ctx, "Ronin")
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the same title is inserted twice", func() {
			mustInsert(ctx, s, "Heat", 1995)
			_, err := s.Insert(ctx, NewMovie{Title: "Heat", Year: 2025})

			Convey("Then the second insert is rejected as a duplicate", func() {
				So(errors.Is(err, ErrDuplicateTitle), ShouldBeTrue)
			})

			Convey("And the store still holds one record with the original year", func() {
				movies, err := s.List(ctx, ListFilter{})
				So(err, ShouldBeNil)
				So(len(movies), ShouldEqual, 1)
				So(movies[0].Year, ShouldEqual, 1995)
			})
		})

		Convey("When a movie with an empty title is inserted", func() {
			_, err := s.Insert(ctx, NewMovie{Title: "  "})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, ErrEmptyTitle), ShouldBeTrue)
			})
		})

		Convey("When an unknown id is requested", func() {
			_, err := s.Get(ctx, 42)

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestSQLStore_Update(t *testing.T) {
	Convey("Given a stored movie", t, func() {
		ctx := context.Background()
		s := openTestStore(t)
		id := mustInsert(ctx, s, "Alien", 1979)

		Convey("When it is rated and reviewed", func() {
			err := s.Update(ctx, id, MovieUpdate{Rating: 7.5, Review: "great"})
			So(err, ShouldBeNil)

			Convey("Then Get returns the new values and unchanged catalog fields", func() {
				m, err := s.Get(ctx, id)
				So(err, ShouldBeNil)
				So(*m.Rating, ShouldEqual, 7.5)
				So(*m.Review, ShouldEqual, "great")
				So(m.Title, ShouldEqual, "Alien")
				So(m.Year, ShouldEqual, 1979)
				So(m.Description, ShouldEqual, "Alien overview")
				So(m.ImageURL, ShouldEqual, "https://image.example/Alien.jpg")
				So(m.Owner, ShouldBeNil)
			})
		})

		Convey("When an owner is assigned", func() {
			owner := "ana"
			So(s.Update(ctx, id, MovieUpdate{Rating: 8, Review: "tense", Owner: &owner}), ShouldBeNil)

			Convey("Then the owner is stored", func() {
				m, err := s.Get(ctx, id)
				So(err, ShouldBeNil)
				So(m.OwnerName(), ShouldEqual, "ana")
			})

			Convey("And a later update without owner keeps it", func() {
				So(s.Update(ctx, id, MovieUpdate{Rating: 9, Review: "classic"}), ShouldBeNil)
				m, err := s.Get(ctx, id)
				So(err, ShouldBeNil)
				So(m.OwnerName(), ShouldEqual, "ana")
				So(m.RatingValue(), ShouldEqual, 9)
			})
		})

		Convey("When the rating is out of range", func() {
			errHigh := s.Update(ctx, id, MovieUpdate{Rating: 10.5})
			errLow := s.Update(ctx, id, MovieUpdate{Rating: -1})

			Convey("Then the update is rejected", func() {
				So(errors.Is(errHigh, ErrInvalidRating), ShouldBeTrue)
				So(errors.Is(errLow, ErrInvalidRating), ShouldBeTrue)
			})
		})

		Convey("When an unknown id is updated", func() {
			err := s.Update(ctx, id+100, MovieUpdate{Rating: 5})

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestSQLStore_Delete(t *testing.T) {
	Convey("Given a stored movie", t, func() {
		ctx := context.Background()
		s := openTestStore(t)
		id := mustInsert(ctx, s, "Brazil", 1985)

		Convey("When it is deleted", func() {
			m, err := s.Delete(ctx, id)
			So(err, ShouldBeNil)

			Convey("Then the deleted row is returned", func() {
				So(m.Title, ShouldEqual, "Brazil")
			})

			Convey("And it can no longer be fetched", func() {
				_, err := s.Get(ctx, id)
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})

			Convey("And deleting it again reports ErrNotFound", func() {
				_, err := s.Delete(ctx, id)
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestSQLStore_List(t *testing.T) {
	Convey("Given movies with mixed ratings", t, func() {
		ctx := context.Background()
		s := openTestStore(t)

		a := mustInsert(ctx, s, "A", 2001)
		b := mustInsert(ctx, s, "B", 2002)
		c := mustInsert(ctx, s, "C", 2003)
		mustInsert(ctx, s, "D", 2004)
		e := mustInsert(ctx, s, "E", 2005)

		So(s.Update(ctx, a, MovieUpdate{Rating: 6.5, Review: "ok"}), ShouldBeNil)
		So(s.Update(ctx, b, MovieUpdate{Rating: 9, Review: "great"}), ShouldBeNil)
		So(s.Update(ctx, c, MovieUpdate{Rating: 6.5, Review: "ok too"}), ShouldBeNil)
		So(s.Update(ctx, e, MovieUpdate{Rating: 0, Review: "awful"}), ShouldBeNil)

		Convey("When the list is requested", func() {
			movies, err := s.List(ctx, ListFilter{})
			So(err, ShouldBeNil)

			Convey("Then movies are ordered by rating with ties by id and unrated last", func() {
				So(titles(s, ctx, ListFilter{}), ShouldResemble, []string{"B", "A", "C", "E", "D"})
			})

			Convey("And every ranking equals its 1-based position", func() {
				for i, m := range movies {
					So(m.Ranking, ShouldEqual, i+1)
				}
			})

			Convey("And listing again yields identical rankings", func() {
				again, err := s.List(ctx, ListFilter{})
				So(err, ShouldBeNil)
				So(len(again), ShouldEqual, len(movies))
				for i := range again {
					So(again[i].ID, ShouldEqual, movies[i].ID)
					So(again[i].Ranking, ShouldEqual, movies[i].Ranking)
				}
			})
		})

		Convey("When the store persists rankings", func() {
			s.persistRanking = true
			_, err := s.List(ctx, ListFilter{})
			So(err, ShouldBeNil)

			Convey("Then Get returns the stored position", func() {
				m, err := s.Get(ctx, b)
				So(err, ShouldBeNil)
				So(m.Ranking, ShouldEqual, 1)

				m, err = s.Get(ctx, e)
				So(err, ShouldBeNil)
				So(m.Ranking, ShouldEqual, 4)
			})
		})
	})
}

func TestSQLStore_Owners(t *testing.T) {
	Convey("Given movies assigned to different owners", t, func() {
		ctx := context.Background()
		s := openTestStore(t)
		ana, bo := "ana", "bo"

		x := mustInsert(ctx, s, "X", 2010)
		y := mustInsert(ctx, s, "Y", 2011)
		z := mustInsert(ctx, s, "Z", 2012)
		mustInsert(ctx, s, "W", 2013)

		So(s.Update(ctx, x, MovieUpdate{Rating: 5, Review: "meh", Owner: &ana}), ShouldBeNil)
		So(s.Update(ctx, y, MovieUpdate{Rating: 8, Review: "good", Owner: &bo}), ShouldBeNil)
		So(s.Update(ctx, z, MovieUpdate{Rating: 9, Review: "best", Owner: &ana}), ShouldBeNil)

		Convey("When the list is filtered by owner", func() {
			movies, err := s.List(ctx, ListFilter{Owner: "ana"})
			So(err, ShouldBeNil)

			Convey("Then only that owner's movies are returned, ranked within the subset", func() {
				So(len(movies), ShouldEqual, 2)
				So(movies[0].Title, ShouldEqual, "Z")
				So(movies[0].Ranking, ShouldEqual, 1)
				So(movies[1].Title, ShouldEqual, "X")
				So(movies[1].Ranking, ShouldEqual, 2)
			})
		})

		Convey("When only unassigned movies are listed", func() {
			movies, err := s.List(ctx, ListFilter{Unassigned: true, Owner: "ana"})
			So(err, ShouldBeNil)

			Convey("Then the owner filter is ignored and only W is returned", func() {
				So(len(movies), ShouldEqual, 1)
				So(movies[0].Title, ShouldEqual, "W")
				So(movies[0].Owner, ShouldBeNil)
				So(movies[0].Ranking, ShouldEqual, 1)
			})
		})

		Convey("When counts are grouped by owner", func() {
			counts, err := s.CountByOwner(ctx)
			So(err, ShouldBeNil)

			Convey("Then unassigned movies count under the empty owner", func() {
				So(counts, ShouldResemble, map[string]int{"ana": 2, "bo": 1, "": 1})
			})
		})
	})
}

func TestSQLStore_InceptionScenario(t *testing.T) {
	Convey("Given an empty store", t, func() {
		ctx := context.Background()
		s := openTestStore(t, WithTimeout(time.Second))

		Convey("When Inception is added twice, rated and then deleted", func() {
			id := mustInsert(ctx, s, "Inception", 2010)
			_, err := s.Insert(ctx, NewMovie{Title: "Inception", Year: 2010})
			So(errors.Is(err, ErrDuplicateTitle), ShouldBeTrue)

			n, err := s.Count(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)

			So(s.Update(ctx, id, MovieUpdate{Rating: 9.0, Review: "mind-bending"}), ShouldBeNil)

			movies, err := s.List(ctx, ListFilter{})
			So(err, ShouldBeNil)
			So(len(movies), ShouldEqual, 1)
			So(movies[0].Ranking, ShouldEqual, 1)
			So(movies[0].ReviewText(), ShouldEqual, "mind-bending")

			_, err = s.Delete(ctx, id)
			So(err, ShouldBeNil)

			Convey("Then the listing is empty", func() {
				movies, err := s.List(ctx, ListFilter{})
				So(err, ShouldBeNil)
				So(movies, ShouldBeEmpty)
			})
		})
	})
}

func TestSQLStore_Reopen(t *testing.T) {
	Convey("Given a store file with data", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "movies.db")

		s, err := Open(ctx, path)
		So(err, ShouldBeNil)
		_, err = s.Insert(ctx, NewMovie{Title: "Solaris", Year: 1972})
		So(err, ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		Convey("When the file is opened again", func() {
			s2, err := Open(ctx, path)
			So(err, ShouldBeNil)
			defer s2.Close()

			Convey("Then the data survives", func() {
				ok, err := s2.ExistsByTitle(ctx, "Solaris")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
			})
		})
	})
}
