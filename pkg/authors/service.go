// Package authors serves the author shelf: listing in filed order with
// visible book counts, and detail with the enrichment fields the scan
// pipeline gathers. Author rows are created by scans and by manual book
// edits, never directly through this API.
package authors

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/codexlibris/codex/pkg/access"
	"github.com/codexlibris/codex/pkg/errcodes"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/permissions"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveAuthorOptions struct {
	ID   *int
	Name *string
}

// ListAuthorsOptions filters the author shelf. When Set is present, counts
// and the shelf itself cover only books the caller may see; an author whose
// visible shelf is empty is omitted entirely.
type ListAuthorsOptions struct {
	Limit  *int
	Offset *int
	Search *string
	Set    *permissions.Set

	includeTotal bool
}

type UpdateAuthorOptions struct {
	Columns []string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) RetrieveAuthor(ctx context.Context, opts RetrieveAuthorOptions) (*models.Author, error) {
	author := &models.Author{}

	q := svc.db.
		NewSelect().
		Model(author)

	if opts.ID != nil {
		q = q.Where("a.id = ?", *opts.ID)
	}
	if opts.Name != nil {
		q = q.Where("lower(a.name) = lower(?)", strings.TrimSpace(*opts.Name))
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Author")
		}
		return nil, errors.WithStack(err)
	}

	if err := author.UnmarshalLists(); err != nil {
		return nil, err
	}

	return author, nil
}

func (svc *Service) ListAuthors(ctx context.Context, opts ListAuthorsOptions) ([]*models.Author, error) {
	a, _, err := svc.listAuthorsWithTotal(ctx, opts)
	return a, errors.WithStack(err)
}

func (svc *Service) ListAuthorsWithTotal(ctx context.Context, opts ListAuthorsOptions) ([]*models.Author, int, error) {
	opts.includeTotal = true
	return svc.listAuthorsWithTotal(ctx, opts)
}

func (svc *Service) listAuthorsWithTotal(ctx context.Context, opts ListAuthorsOptions) ([]*models.Author, int, error) {
	var authors []*models.Author
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&authors).
		OrderExpr("coalesce(nullif(a.sort_name, ''), a.name) ASC").
		Order("a.id ASC")

	// The shelf only files authors with at least one book the caller can
	// see. Gated and archived books never vouch for their author.
	q = q.Where("EXISTS (?)", svc.visibleBooks(opts.Set).Where("b.author_id = a.id"))

	if opts.Search != nil && *opts.Search != "" {
		q = q.Where("lower(a.name) LIKE ?", "%"+strings.ToLower(*opts.Search)+"%")
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

	if err := svc.loadBookCounts(ctx, authors, opts.Set); err != nil {
		return nil, 0, err
	}
	for _, author := range authors {
		if err := author.UnmarshalLists(); err != nil {
			return nil, 0, err
		}
	}

	return authors, total, nil
}

// CountVisibleBooks reports how many active books by this author the
// permission set may see.
func (svc *Service) CountVisibleBooks(ctx context.Context, authorID int, set *permissions.Set) (int, error) {
	q := svc.db.
		NewSelect().
		Model((*models.Book)(nil)).
		Where("b.author_id = ?", authorID).
		Where("b.status = ?", models.BookStatusActive)
	if set != nil {
		q = access.ApplyVisibility(q, set)
	}

	count, err := q.Count(ctx)
	return count, errors.WithStack(err)
}

func (svc *Service) UpdateAuthor(ctx context.Context, author *models.Author, opts UpdateAuthorOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	if err := author.MarshalLists(); err != nil {
		return err
	}

	author.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(author).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Author")
		}
		return errors.WithStack(err)
	}
	return nil
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

func (svc *Service) loadBookCounts(ctx context.Context, authors []*models.Author, set *permissions.Set) error {
	if len(authors) == 0 {
		return nil
	}

	ids := make([]int, 0, len(authors))
	byID := make(map[int]*models.Author, len(authors))
	for _, author := range authors {
		ids = append(ids, author.ID)
		byID[author.ID] = author
	}

	var counts []struct {
		AuthorID  int `bun:"author_id"`
		BookCount int `bun:"book_count"`
	}
	q := svc.db.
		NewSelect().
		Model((*models.Book)(nil)).
		ColumnExpr("b.author_id").
		ColumnExpr("count(*) AS book_count").
		Where("b.author_id IN (?)", bun.In(ids)).
		Where("b.status = ?", models.BookStatusActive).
		GroupExpr("b.author_id")
	if set != nil {
		q = access.ApplyVisibility(q, set)
	}

	if err := q.Scan(ctx, &counts); err != nil {
		return errors.WithStack(err)
	}

	for _, row := range counts {
		if author, ok := byID[row.AuthorID]; ok {
			author.BookCount = row.BookCount
		}
	}
	return nil
}
