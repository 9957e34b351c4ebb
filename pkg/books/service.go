// Package books serves the catalog: browsing with tag and genre filters,
// book detail with tags, and the bytes of the files themselves.
package books

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/codexlibris/codex/pkg/access"
	"github.com/codexlibris/codex/pkg/errcodes"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/permissions"
	"github.com/codexlibris/codex/pkg/sortname"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveBookOptions struct {
	ID       *int
	Filepath *string

	// IncludeArchived lifts the default active-only filter; the scanner
	// needs the row back no matter which surface it is on.
	IncludeArchived bool
}

type ListBooksOptions struct {
	Limit  *int
	Offset *int

	// Tags and Genres must all be present on a book for it to match.
	// ExcludeTags and ExcludeGenres knock out any book carrying one.
	Tags          []string
	ExcludeTags   []string
	Genres        []string
	ExcludeGenres []string

	AuthorID *int
	Format   *string
	Search   *string

	// Archived flips the listing from the active catalog to the archive
	// surface.
	Archived bool

	// Set filters out books gated behind permissions the caller lacks.
	Set *permissions.Set

	includeTotal bool
}

type UpdateBookOptions struct {
	Columns []string

	// AuthorName reassigns the book to the named author, creating the
	// author row when it doesn't exist yet.
	AuthorName *string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateBook(ctx context.Context, book *models.Book) error {
	now := time.Now()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = book.CreatedAt
	if book.Status == "" {
		book.Status = models.BookStatusActive
	}
	if book.SortName == "" {
		book.SortName = sortname.ForTitle(book.Name)
	}

	_, err := svc.db.
		NewInsert().
		Model(book).
		Returning("*").
		Exec(ctx)
	return errors.WithStack(err)
}

// FindOrCreateAuthor resolves an author row by name, creating it on first
// sight. Concurrent scan workers hit the same name at once, so the lookup
// and the insert are a single upsert.
func (svc *Service) FindOrCreateAuthor(ctx context.Context, name string) (*models.Author, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errcodes.ValidationError("author name cannot be empty.")
	}

	now := time.Now()
	author := &models.Author{
		CreatedAt: now,
		UpdatedAt: now,
		Name:      name,
		SortName:  sortname.ForAuthor(name),
	}

	_, err := svc.db.
		NewInsert().
		Model(author).
		On("CONFLICT (name) DO UPDATE").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return author, nil
}

func (svc *Service) RetrieveBook(ctx context.Context, opts RetrieveBookOptions) (*models.Book, error) {
	book := &models.Book{}

	q := svc.db.
		NewSelect().
		Model(book).
		Relation("Author")

	if opts.ID != nil {
		q = q.Where("b.id = ?", *opts.ID)
	}
	if opts.Filepath != nil {
		q = q.Where("b.filepath = ?", *opts.Filepath)
	}
	if !opts.IncludeArchived {
		q = q.Where("b.status = ?", models.BookStatusActive)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}

	if err := svc.loadTags(ctx, []*models.Book{book}); err != nil {
		return nil, err
	}

	return book, nil
}

func (svc *Service) ListBooks(ctx context.Context, opts ListBooksOptions) ([]*models.Book, error) {
	b, _, err := svc.listBooksWithTotal(ctx, opts)
	return b, errors.WithStack(err)
}

func (svc *Service) ListBooksWithTotal(ctx context.Context, opts ListBooksOptions) ([]*models.Book, int, error) {
	opts.includeTotal = true
	return svc.listBooksWithTotal(ctx, opts)
}

func (svc *Service) listBooksWithTotal(ctx context.Context, opts ListBooksOptions) ([]*models.Book, int, error) {
	books := []*models.Book{}
	var total int
	var err error

	status := models.BookStatusActive
	if opts.Archived {
		status = models.BookStatusArchived
	}

	q := svc.db.
		NewSelect().
		Model(&books).
		Relation("Author").
		Where("b.status = ?", status).
		OrderExpr("coalesce(nullif(b.sort_name, ''), b.name) ASC").
		Order("b.id ASC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}
	if opts.AuthorID != nil {
		q = q.Where("b.author_id = ?", *opts.AuthorID)
	}
	if opts.Format != nil {
		q = q.Where("lower(b.file_format) = lower(?)", *opts.Format)
	}
	if opts.Search != nil && *opts.Search != "" {
		pattern := "%" + strings.ToLower(*opts.Search) + "%"
		q = q.Where("(lower(b.name) LIKE ? OR lower(author.name) LIKE ?)", pattern, pattern)
	}

	// Each included name gets its own EXISTS so a book must carry every
	// requested tag, not just one of them.
	for _, name := range opts.Tags {
		q = q.Where(`EXISTS (
			SELECT 1 FROM book_tags bt
			JOIN tags ft ON ft.id = bt.tag_id
			WHERE bt.book_id = b.id AND lower(ft.name) = lower(?)
		)`, name)
	}
	for _, name := range opts.Genres {
		q = q.Where(`EXISTS (
			SELECT 1 FROM book_tags bt
			JOIN tags ft ON ft.id = bt.tag_id
			WHERE bt.book_id = b.id AND ft.category = ? AND lower(ft.name) = lower(?)
		)`, models.TagCategoryGenre, name)
	}
	if len(opts.ExcludeTags) > 0 {
		q = q.Where(`NOT EXISTS (
			SELECT 1 FROM book_tags bt
			JOIN tags ft ON ft.id = bt.tag_id
			WHERE bt.book_id = b.id AND lower(ft.name) IN (?)
		)`, bun.In(lowered(opts.ExcludeTags)))
	}
	if len(opts.ExcludeGenres) > 0 {
		q = q.Where(`NOT EXISTS (
			SELECT 1 FROM book_tags bt
			JOIN tags ft ON ft.id = bt.tag_id
			WHERE bt.book_id = b.id AND ft.category = ? AND lower(ft.name) IN (?)
		)`, models.TagCategoryGenre, bun.In(lowered(opts.ExcludeGenres)))
	}

	if opts.Set != nil {
		q = access.ApplyVisibility(q, opts.Set)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	if err := svc.loadTags(ctx, books); err != nil {
		return nil, 0, err
	}

	return books, total, nil
}

func (svc *Service) UpdateBook(ctx context.Context, book *models.Book, opts UpdateBookOptions) error {
	if opts.AuthorName != nil {
		author, err := svc.FindOrCreateAuthor(ctx, *opts.AuthorName)
		if err != nil {
			return err
		}
		if author.ID != book.AuthorID {
			book.AuthorID = author.ID
			book.Author = author
			opts.Columns = append(opts.Columns, "author_id")
		}
	}

	if len(opts.Columns) == 0 {
		return nil
	}

	// A renamed book files under its new name.
	for _, column := range opts.Columns {
		if column == "name" {
			book.SortName = sortname.ForTitle(book.Name)
			opts.Columns = append(opts.Columns, "sort_name")
			break
		}
	}

	now := time.Now()
	book.UpdatedAt = now
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(book).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Book")
		}
		return errors.WithStack(err)
	}

	return nil
}

// loadTags hydrates Tags for every book in one query instead of one per row.
func (svc *Service) loadTags(ctx context.Context, books []*models.Book) error {
	if len(books) == 0 {
		return nil
	}

	ids := make([]int, 0, len(books))
	byID := make(map[int]*models.Book, len(books))
	for _, book := range books {
		ids = append(ids, book.ID)
		byID[book.ID] = book
	}

	rows := []*models.BookTag{}
	err := svc.db.
		NewSelect().
		Model(&rows).
		Relation("Tag").
		Where("bt.book_id IN (?)", bun.In(ids)).
		Order("tag.category ASC", "tag.name ASC").
		Scan(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	for _, row := range rows {
		byID[row.BookID].Tags = append(byID[row.BookID].Tags, row.Tag)
	}

	return nil
}

func lowered(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = strings.ToLower(name)
	}
	return out
}
