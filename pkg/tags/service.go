// Package tags manages the tag catalog and book-tag assignments. The catalog
// is seeded by migrations and curated by librarians; books reference tags
// through book_tags rows that remember who applied them and whether a scan
// did it automatically.
package tags

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/codexlibris/codex/pkg/errcodes"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveTagOptions struct {
	ID   *int
	Name *string
}

type ListTagsOptions struct {
	Category      *string
	Search        *string
	Limit         *int
	Offset        *int
	WithBookCount bool
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateTag(ctx context.Context, tag *models.Tag) error {
	now := time.Now()
	if tag.CreatedAt.IsZero() {
		tag.CreatedAt = now
	}
	tag.UpdatedAt = tag.CreatedAt

	_, err := svc.db.
		NewInsert().
		Model(tag).
		Returning("*").
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) RetrieveTag(ctx context.Context, opts RetrieveTagOptions) (*models.Tag, error) {
	tag := &models.Tag{}

	q := svc.db.
		NewSelect().
		Model(tag)

	if opts.ID != nil {
		q = q.Where("t.id = ?", *opts.ID)
	}
	if opts.Name != nil {
		q = q.Where("LOWER(t.name) = LOWER(?)", strings.TrimSpace(*opts.Name))
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Tag")
		}
		return nil, errors.WithStack(err)
	}

	return tag, nil
}

func (svc *Service) ListTags(ctx context.Context, opts ListTagsOptions) ([]*models.Tag, error) {
	tags := []*models.Tag{}

	q := svc.db.
		NewSelect().
		Model(&tags).
		Order("t.category ASC", "t.name ASC")

	if opts.WithBookCount {
		q = q.ColumnExpr("t.*").
			ColumnExpr("(SELECT COUNT(*) FROM book_tags bt WHERE bt.tag_id = t.id) AS book_count")
	}
	if opts.Category != nil {
		q = q.Where("t.category = ?", *opts.Category)
	}
	if opts.Search != nil && *opts.Search != "" {
		q = q.Where("LOWER(t.name) LIKE ?", "%"+strings.ToLower(*opts.Search)+"%")
	}
	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return tags, nil
}

// ListBookTags returns a book's tag assignments with the tag loaded, ordered
// by category then name.
func (svc *Service) ListBookTags(ctx context.Context, bookID int) ([]*models.BookTag, error) {
	bookTags := []*models.BookTag{}

	err := svc.db.
		NewSelect().
		Model(&bookTags).
		Relation("Tag").
		Where("bt.book_id = ?", bookID).
		OrderExpr("tag.category ASC, tag.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return bookTags, nil
}

// AttachTag adds a tag to a book. Attaching a tag twice is a no-op; the
// unique pair constraint is the coordination point, so concurrent scans and
// manual edits can race safely.
func (svc *Service) AttachTag(ctx context.Context, bookTag *models.BookTag) error {
	if bookTag.AppliedAt.IsZero() {
		bookTag.AppliedAt = time.Now()
	}

	_, err := svc.db.
		NewInsert().
		Model(bookTag).
		On("CONFLICT (book_id, tag_id) DO NOTHING").
		Exec(ctx)
	return errors.WithStack(err)
}

// DetachTag removes the pair; the tag definition itself is never deleted.
// Detaching a tag that isn't attached is a no-op.
func (svc *Service) DetachTag(ctx context.Context, bookID, tagID int) error {
	_, err := svc.db.
		NewDelete().
		Model((*models.BookTag)(nil)).
		Where("book_id = ?", bookID).
		Where("tag_id = ?", tagID).
		Exec(ctx)
	return errors.WithStack(err)
}

// AttachTagByName resolves a catalog tag by name and attaches it to the
// book. Unknown tags are an error; the catalog is curated, not grown as a
// side effect of typos.
func (svc *Service) AttachTagByName(ctx context.Context, bookID int, name string, appliedBy *int) (*models.Tag, error) {
	if err := svc.ensureBookExists(ctx, bookID); err != nil {
		return nil, err
	}

	tag, err := svc.RetrieveTag(ctx, RetrieveTagOptions{Name: &name})
	if err != nil {
		return nil, err
	}

	err = svc.AttachTag(ctx, &models.BookTag{
		BookID:    bookID,
		TagID:     tag.ID,
		AppliedBy: appliedBy,
	})
	if err != nil {
		return nil, err
	}

	return tag, nil
}

// DetachTagByName resolves a catalog tag by name and removes it from the
// book.
func (svc *Service) DetachTagByName(ctx context.Context, bookID int, name string) error {
	if err := svc.ensureBookExists(ctx, bookID); err != nil {
		return err
	}

	tag, err := svc.RetrieveTag(ctx, RetrieveTagOptions{Name: &name})
	if err != nil {
		return err
	}

	return svc.DetachTag(ctx, bookID, tag.ID)
}

func (svc *Service) ensureBookExists(ctx context.Context, bookID int) error {
	exists, err := svc.db.
		NewSelect().
		Model((*models.Book)(nil)).
		Where("b.id = ?", bookID).
		Exists(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if !exists {
		return errcodes.NotFound("Book")
	}
	return nil
}
