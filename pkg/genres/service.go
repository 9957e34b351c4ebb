// Package genres serves genre rollups. A genre is a tag in the genre
// category; the rollup counts and shelves the visible books carrying it, so
// two callers with different content permissions can see different numbers
// for the same genre.
package genres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/codexlibris/codex/pkg/access"
	"github.com/codexlibris/codex/pkg/errcodes"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/permissions"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveGenreOptions struct {
	ID   *int
	Name *string
}

// ListGenresOptions filters the genre rollup. When Set is present, counts
// cover only books the caller may see, and genres whose visible shelf is
// empty are omitted.
type ListGenresOptions struct {
	Limit  *int
	Offset *int
	Search *string
	Set    *permissions.Set

	includeTotal bool
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// RetrieveGenre looks up a genre-category tag. Tags from other categories
// are invisible here even when the id or name matches.
func (svc *Service) RetrieveGenre(ctx context.Context, opts RetrieveGenreOptions) (*models.Tag, error) {
	genre := &models.Tag{}

	q := svc.db.
		NewSelect().
		Model(genre).
		Where("t.category = ?", models.TagCategoryGenre)

	if opts.ID != nil {
		q = q.Where("t.id = ?", *opts.ID)
	}
	if opts.Name != nil {
		q = q.Where("lower(t.name) = lower(?)", strings.TrimSpace(*opts.Name))
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Genre")
		}
		return nil, errors.WithStack(err)
	}

	return genre, nil
}

func (svc *Service) ListGenres(ctx context.Context, opts ListGenresOptions) ([]*models.Tag, error) {
	g, _, err := svc.listGenresWithTotal(ctx, opts)
	return g, errors.WithStack(err)
}

func (svc *Service) ListGenresWithTotal(ctx context.Context, opts ListGenresOptions) ([]*models.Tag, int, error) {
	opts.includeTotal = true
	return svc.listGenresWithTotal(ctx, opts)
}

func (svc *Service) listGenresWithTotal(ctx context.Context, opts ListGenresOptions) ([]*models.Tag, int, error) {
	var genres []*models.Tag
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&genres).
		Where("t.category = ?", models.TagCategoryGenre).
		Order("t.name ASC")

	// The rollup only lists genres with at least one book the caller can
	// see; the full curated catalog lives on the tags surface instead.
	q = q.Where("EXISTS (?)", svc.visibleBooks(opts.Set).
		Join("JOIN book_tags gbt ON gbt.book_id = b.id").
		Where("gbt.tag_id = t.id"))

	if opts.Search != nil && *opts.Search != "" {
		q = q.Where("lower(t.name) LIKE ?", "%"+strings.ToLower(*opts.Search)+"%")
	}
	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	if err := svc.loadBookCounts(ctx, genres, opts.Set); err != nil {
		return nil, 0, err
	}

	return genres, total, nil
}

// CountVisibleBooks reports how many active books carrying this genre the
// permission set may see.
func (svc *Service) CountVisibleBooks(ctx context.Context, genreID int, set *permissions.Set) (int, error) {
	q := svc.db.
		NewSelect().
		Model((*models.Book)(nil)).
		Join("JOIN book_tags gbt ON gbt.book_id = b.id").
		Where("gbt.tag_id = ?", genreID).
		Where("b.status = ?", models.BookStatusActive)
	if set != nil {
		q = access.ApplyVisibility(q, set)
	}

	count, err := q.Count(ctx)
	return count, errors.WithStack(err)
}

// visibleBooks is the subquery shape every rollup shares: active books,
// narrowed to what the permission set may see.
func (svc *Service) visibleBooks(set *permissions.Set) *bun.SelectQuery {
	q := svc.db.
		NewSelect().
		Model((*models.Book)(nil)).
		ColumnExpr("1").
		Where("b.status = ?", models.BookStatusActive)
	if set != nil {
		q = access.ApplyVisibility(q, set)
	}
	return q
}

func (svc *Service) loadBookCounts(ctx context.Context, genres []*models.Tag, set *permissions.Set) error {
	if len(genres) == 0 {
		return nil
	}

	ids := make([]int, 0, len(genres))
	byID := make(map[int]*models.Tag, len(genres))
	for _, genre := range genres {
		ids = append(ids, genre.ID)
		byID[genre.ID] = genre
	}

	var counts []struct {
		TagID     int `bun:"tag_id"`
		BookCount int `bun:"book_count"`
	}
	q := svc.db.
		NewSelect().
		Model((*models.Book)(nil)).
		ColumnExpr("gbt.tag_id").
		ColumnExpr("count(*) AS book_count").
		Join("JOIN book_tags gbt ON gbt.book_id = b.id").
		Where("gbt.tag_id IN (?)", bun.In(ids)).
		Where("b.status = ?", models.BookStatusActive).
		GroupExpr("gbt.tag_id")
	if set != nil {
		q = access.ApplyVisibility(q, set)
	}

	if err := q.Scan(ctx, &counts); err != nil {
		return errors.WithStack(err)
	}

	for _, row := range counts {
		if genre, ok := byID[row.TagID]; ok {
			genre.BookCount = row.BookCount
		}
	}
	return nil
}
