package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/okian/movierank/internal/domain/model"
	"github.com/okian/movierank/internal/domain/ranking"
	"github.com/okian/movierank/pkg/logger"
	"github.com/okian/movierank/pkg/metrics"
)

const (
	defaultTimeout = 2 * time.Second
	minRating      = 0
	maxRating      = 10

	// Applied when the path carries no pragmas of its own.
	defaultPragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	nanosecondsPerMillisecond = 1e6
)

// movieRow is the persisted shape of a movie. The table name matches the
// file layout older deployments already have on disk.
type movieRow struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Title       string `gorm:"uniqueIndex;not null"`
	Year        int
	Description string
	ImgURL      string `gorm:"column:img_url"`
	Rating      *float64
	Ranking     *int
	Review      *string
	Owner       *string   `gorm:"index"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (movieRow) TableName() string {
	return "movie"
}

func (r movieRow) toModel() model.Movie {
	m := model.Movie{
		ID:          r.ID,
		Title:       r.Title,
		Year:        r.Year,
		Description: r.Description,
		ImageURL:    r.ImgURL,
		Rating:      r.Rating,
		Review:      r.Review,
		Owner:       r.Owner,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.Ranking != nil {
		m.Ranking = *r.Ranking
	}
	return m
}

// SQLStore is a Store backed by an embedded SQLite file through gorm.
type SQLStore struct {
	db             *gorm.DB
	timeout        time.Duration
	persistRanking bool
	logger         logger.Logger
}

var _ Store = (*SQLStore)(nil)

// Open opens (creating if needed) the SQLite database at path and makes sure
// the movie table exists. The caller owns the returned store and must Close it.
func Open(ctx context.Context, path string, opts ...Option) (*SQLStore, error) {
	s := &SQLStore{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("store")
	}

	db, err := gorm.Open(sqlite.Open(dsn(path)), &gorm.Config{
		Logger:  newGormLogger(s.logger),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStoreUnavailable, path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	// SQLite allows a single writer; one connection serializes statements.
	sqlDB.SetMaxOpenConns(1)

	s.db = db

	migrateCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := db.WithContext(migrateCtx).AutoMigrate(&movieRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%w: migrate: %v", ErrStoreUnavailable, err)
	}

	s.logger.Info(ctx, "record store opened",
		logger.String("path", path),
		logger.Bool("persist_ranking", s.persistRanking),
	)
	return s, nil
}

func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?" + defaultPragmas
}

// List returns movies ranked by rating. With persisted ranking enabled the
// computed positions are also written back before returning.
func (s *SQLStore) List(ctx context.Context, filter ListFilter) (movies []model.Movie, err error) {
	ctx, done := s.begin(ctx, "list")
	defer func() { done(err) }()

	var rows []movieRow
	q := s.db.WithContext(ctx).Model(&movieRow{})
	switch {
	case filter.Unassigned:
		q = q.Where("owner IS NULL OR owner = ''")
	case filter.Owner != "":
		q = q.Where("owner = ?", filter.Owner)
	}
	if err := q.Order("rating IS NULL").Order("rating DESC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("repo list: %w", err)
	}

	movies = make([]model.Movie, len(rows))
	for i, r := range rows {
		movies[i] = r.toModel()
	}
	ranking.Assign(movies)

	if s.persistRanking && len(movies) > 0 {
		if err := s.writeRankings(ctx, movies); err != nil {
			return nil, fmt.Errorf("repo list persist ranking: %w", err)
		}
	}
	return movies, nil
}

func (s *SQLStore) writeRankings(ctx context.Context, movies []model.Movie) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range movies {
			// UpdateColumn keeps updated_at for user edits only.
			err := tx.Model(&movieRow{}).Where("id = ?", m.ID).UpdateColumn("ranking", m.Ranking).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Insert adds a movie. The title's unique index decides duplicates, so two
// concurrent inserts of one title cannot both succeed.
func (s *SQLStore) Insert(ctx context.Context, m NewMovie) (id int64, err error) {
	ctx, done := s.begin(ctx, "insert")
	defer func() { done(err) }()

	if strings.TrimSpace(m.Title) == "" {
		return 0, fmt.Errorf("repo insert: %w", ErrEmptyTitle)
	}

	row := movieRow{
		Title:       m.Title,
		Year:        m.Year,
		Description: m.Description,
		ImgURL:      m.ImageURL,
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "title"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return 0, fmt.Errorf("repo insert: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("repo insert %q: %w", m.Title, ErrDuplicateTitle)
	}
	return row.ID, nil
}

// ExistsByTitle reports whether title is already stored.
func (s *SQLStore) ExistsByTitle(ctx context.Context, title string) (exists bool, err error) {
	ctx, done := s.begin(ctx, "exists")
	defer func() { done(err) }()

	var n int64
	if err := s.db.WithContext(ctx).Model(&movieRow{}).Where("title = ?", title).Limit(1).Count(&n).Error; err != nil {
		return false, fmt.Errorf("repo exists: %w", err)
	}
	return n > 0, nil
}

// Get returns a single movie by id.
func (s *SQLStore) Get(ctx context.Context, id int64) (m model.Movie, err error) {
	ctx, done := s.begin(ctx, "get")
	defer func() { done(err) }()

	row, err := s.take(s.db.WithContext(ctx), id)
	if err != nil {
		return model.Movie{}, fmt.Errorf("repo get %d: %w", id, err)
	}
	return row.toModel(), nil
}

// Update writes rating, review and, when set, owner.
func (s *SQLStore) Update(ctx context.Context, id int64, u MovieUpdate) (err error) {
	ctx, done := s.begin(ctx, "update")
	defer func() { done(err) }()

	if math.IsNaN(u.Rating) || u.Rating < minRating || u.Rating > maxRating {
		return fmt.Errorf("repo update %d: %w", id, ErrInvalidRating)
	}

	updates := map[string]any{
		"rating": u.Rating,
		"review": u.Review,
	}
	if u.Owner != nil {
		updates["owner"] = *u.Owner
	}

	res := s.db.WithContext(ctx).Model(&movieRow{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("repo update %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("repo update %d: %w", id, ErrNotFound)
	}
	return nil
}

// Delete removes a movie and returns the row as it was before deletion.
func (s *SQLStore) Delete(ctx context.Context, id int64) (m model.Movie, err error) {
	ctx, done := s.begin(ctx, "delete")
	defer func() { done(err) }()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.take(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(&movieRow{}, row.ID).Error; err != nil {
			return err
		}
		m = row.toModel()
		return nil
	})
	if err != nil {
		return model.Movie{}, fmt.Errorf("repo delete %d: %w", id, err)
	}
	return m, nil
}

// Count returns the number of stored movies.
func (s *SQLStore) Count(ctx context.Context) (n int, err error) {
	ctx, done := s.begin(ctx, "count")
	defer func() { done(err) }()

	var total int64
	if err := s.db.WithContext(ctx).Model(&movieRow{}).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("repo count: %w", err)
	}
	return int(total), nil
}

// CountByOwner groups the movie count by owner; unassigned movies count under "".
func (s *SQLStore) CountByOwner(ctx context.Context) (counts map[string]int, err error) {
	ctx, done := s.begin(ctx, "count_by_owner")
	defer func() { done(err) }()

	var rows []struct {
		Owner string
		N     int
	}
	err = s.db.WithContext(ctx).Model(&movieRow{}).
		Select("COALESCE(owner, '') AS owner, COUNT(*) AS n").
		Group("COALESCE(owner, '')").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("repo count by owner: %w", err)
	}

	counts = make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Owner] += r.N
	}
	return counts, nil
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLStore) take(db *gorm.DB, id int64) (movieRow, error) {
	var row movieRow
	if err := db.Take(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return movieRow{}, ErrNotFound
		}
		return movieRow{}, err
	}
	return row, nil
}

// begin applies the per-operation timeout and returns a completion func that
// records latency. Expected outcomes (not found, duplicates) are not counted
// as store errors.
func (s *SQLStore) begin(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return ctx, func(err error) {
		cancel()
		ms := float64(time.Since(start).Nanoseconds()) / nanosecondsPerMillisecond
		if isExpected(err) {
			err = nil
		}
		metrics.RecordStoreOperation(op, ms, err)
		if err != nil {
			s.logger.Error(ctx, "store operation failed", logger.String("op", op), logger.Error(err))
		}
	}
}

func isExpected(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDuplicateTitle) ||
		errors.Is(err, ErrInvalidRating) ||
		errors.Is(err, ErrEmptyTitle)
}
