// Package progress tracks where each user is in every book they read and
// derives the shelves and reading stats built from those rows.
package progress

import (
	"context"
	"database/sql"
	"math"
	"time"

	"github.com/codexlibris/codex/pkg/access"
	"github.com/codexlibris/codex/pkg/errcodes"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/permissions"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// dayFormat keys reading activity by local calendar date for streaks.
const dayFormat = "2006-01-02"

type Service struct {
	db *bun.DB

	// now returns the wall clock; tests override it to pin dates.
	now func() time.Time
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// round1 rounds to one decimal place, the precision percentage_complete is
// stored with.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// retrieveBook loads an active book with its tags so callers can run the
// content-access check. Archived books are absent from the reading surface.
func (svc *Service) retrieveBook(ctx context.Context, bookID int) (*models.Book, error) {
	book := &models.Book{}

	err := svc.db.
		NewSelect().
		Model(book).
		Where("b.id = ?", bookID).
		Where("b.status = ?", models.BookStatusActive).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}

	err = svc.db.
		NewSelect().
		Model(&book.Tags).
		Join("JOIN book_tags bt ON bt.tag_id = t.id").
		Where("bt.book_id = ?", book.ID).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return book, nil
}

func (svc *Service) Retrieve(ctx context.Context, userID, bookID int) (*models.ReadingProgress, error) {
	rp := &models.ReadingProgress{}

	err := svc.db.
		NewSelect().
		Model(rp).
		Where("rpr.user_id = ?", userID).
		Where("rpr.book_id = ?", bookID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Reading progress")
		}
		return nil, errors.WithStack(err)
	}

	return rp, nil
}

type StartOptions struct {
	UserID     int
	BookID     int
	TotalPages *int
}

// Start begins a book, or restarts one already in progress. Restarting zeroes
// the page position and clears any saved location; a page total already on
// the row survives unless the caller sends a new one.
func (svc *Service) Start(ctx context.Context, opts StartOptions) (*models.ReadingProgress, error) {
	if opts.TotalPages != nil && *opts.TotalPages <= 0 {
		return nil, errcodes.ValidationError("total_pages must be positive.")
	}

	now := svc.now()

	rp := &models.ReadingProgress{
		CreatedAt:  now,
		UpdatedAt:  now,
		UserID:     opts.UserID,
		BookID:     opts.BookID,
		TotalPages: opts.TotalPages,
		LastReadAt: now,
	}

	_, err := svc.db.
		NewInsert().
		Model(rp).
		On("CONFLICT (user_id, book_id) DO UPDATE").
		Set("updated_at = EXCLUDED.updated_at").
		Set("current_page = 0").
		Set("percentage_complete = 0").
		Set("total_pages = COALESCE(EXCLUDED.total_pages, total_pages)").
		Set("last_read_at = EXCLUDED.last_read_at").
		Set("location = NULL").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return rp, nil
}

type UpdateOptions struct {
	UserID      int
	BookID      int
	CurrentPage int
	TotalPages  *int
	Location    *string
}

// Update moves the reader's position, creating the row if this is the first
// touch. The percentage is recomputed whenever a page total is known, and
// last_read_at never moves backward.
func (svc *Service) Update(ctx context.Context, opts UpdateOptions) (*models.ReadingProgress, error) {
	if opts.CurrentPage < 0 {
		return nil, errcodes.ValidationError("current_page cannot be negative.")
	}
	if opts.TotalPages != nil && *opts.TotalPages <= 0 {
		return nil, errcodes.ValidationError("total_pages must be positive.")
	}

	rp := &models.ReadingProgress{}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		now := svc.now()

		err := tx.
			NewSelect().
			Model(rp).
			Where("rpr.user_id = ?", opts.UserID).
			Where("rpr.book_id = ?", opts.BookID).
			Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return errors.WithStack(err)
		}

		if errors.Is(err, sql.ErrNoRows) {
			*rp = models.ReadingProgress{
				CreatedAt:   now,
				UpdatedAt:   now,
				UserID:      opts.UserID,
				BookID:      opts.BookID,
				CurrentPage: opts.CurrentPage,
				TotalPages:  opts.TotalPages,
				LastReadAt:  now,
				Location:    opts.Location,
			}
			if rp.TotalPages != nil {
				if opts.CurrentPage > *rp.TotalPages {
					return errcodes.ValidationError("current_page cannot exceed total_pages.")
				}
				rp.PercentageComplete = round1(float64(opts.CurrentPage) / float64(*rp.TotalPages) * 100)
			}

			_, err := tx.NewInsert().Model(rp).Returning("*").Exec(ctx)
			return errors.WithStack(err)
		}

		totalPages := rp.TotalPages
		if opts.TotalPages != nil {
			totalPages = opts.TotalPages
		}
		if totalPages != nil && opts.CurrentPage > *totalPages {
			return errcodes.ValidationError("current_page cannot exceed total_pages.")
		}

		rp.CurrentPage = opts.CurrentPage
		rp.TotalPages = totalPages
		if totalPages != nil {
			rp.PercentageComplete = round1(float64(opts.CurrentPage) / float64(*totalPages) * 100)
		}
		if now.After(rp.LastReadAt) {
			rp.LastReadAt = now
		}
		rp.UpdatedAt = now

		columns := []string{"updated_at", "current_page", "total_pages", "percentage_complete", "last_read_at"}
		if opts.Location != nil {
			rp.Location = opts.Location
			columns = append(columns, "location")
		}

		_, err = tx.
			NewUpdate().
			Model(rp).
			Column(columns...).
			WherePK().
			Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, err
	}

	return rp, nil
}

// Complete marks a book fully read. The page position snaps to the stored
// total when one is known; a book never started gets a completed row so
// "mark as read" works on anything visible.
func (svc *Service) Complete(ctx context.Context, userID, bookID int) (*models.ReadingProgress, error) {
	rp := &models.ReadingProgress{}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		now := svc.now()

		err := tx.
			NewSelect().
			Model(rp).
			Where("rpr.user_id = ?", userID).
			Where("rpr.book_id = ?", bookID).
			Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return errors.WithStack(err)
		}

		if errors.Is(err, sql.ErrNoRows) {
			*rp = models.ReadingProgress{
				CreatedAt:          now,
				UpdatedAt:          now,
				UserID:             userID,
				BookID:             bookID,
				PercentageComplete: 100,
				LastReadAt:         now,
			}

			_, err := tx.NewInsert().Model(rp).Returning("*").Exec(ctx)
			return errors.WithStack(err)
		}

		rp.PercentageComplete = 100
		if rp.TotalPages != nil {
			rp.CurrentPage = *rp.TotalPages
		}
		if now.After(rp.LastReadAt) {
			rp.LastReadAt = now
		}
		rp.UpdatedAt = now

		_, err = tx.
			NewUpdate().
			Model(rp).
			Column("updated_at", "current_page", "percentage_complete", "last_read_at").
			WherePK().
			Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, err
	}

	return rp, nil
}

// Reset forgets the user's progress on a book. Resetting a book with no
// progress is a no-op.
func (svc *Service) Reset(ctx context.Context, userID, bookID int) error {
	_, err := svc.db.
		NewDelete().
		Model((*models.ReadingProgress)(nil)).
		Where("user_id = ?", userID).
		Where("book_id = ?", bookID).
		Exec(ctx)
	return errors.WithStack(err)
}

type ListOptions struct {
	UserID int
	Set    *permissions.Set
	Limit  int
	Offset int
}

func (svc *Service) listQuery(rows *[]*models.ReadingProgress, opts ListOptions) *bun.SelectQuery {
	q := svc.db.
		NewSelect().
		Model(rows).
		Relation("Book").
		Relation("Book.Author").
		Join("JOIN books b ON b.id = rpr.book_id").
		Where("rpr.user_id = ?", opts.UserID).
		Where("b.status = ?", models.BookStatusActive).
		Order("rpr.last_read_at DESC", "rpr.id DESC")

	if opts.Set != nil {
		q = access.ApplyVisibility(q, opts.Set)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	return q
}

// CurrentlyReading lists books the user is partway through, most recent
// first. A book started but still on page zero is not yet "reading".
func (svc *Service) CurrentlyReading(ctx context.Context, opts ListOptions) ([]*models.ReadingProgress, int, error) {
	var rows []*models.ReadingProgress

	total, err := svc.listQuery(&rows, opts).
		Where("rpr.percentage_complete > 0").
		Where("rpr.percentage_complete < 100").
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return rows, total, nil
}

// Completed lists books the user has finished, most recent first.
func (svc *Service) Completed(ctx context.Context, opts ListOptions) ([]*models.ReadingProgress, int, error) {
	var rows []*models.ReadingProgress

	total, err := svc.listQuery(&rows, opts).
		Where("rpr.percentage_complete >= 100").
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return rows, total, nil
}

// Recent lists everything the user has touched, most recent first.
func (svc *Service) Recent(ctx context.Context, opts ListOptions) ([]*models.ReadingProgress, int, error) {
	var rows []*models.ReadingProgress

	total, err := svc.listQuery(&rows, opts).ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return rows, total, nil
}

type Stats struct {
	Started           int     `json:"started"`
	Completed         int     `json:"completed"`
	AverageCompletion float64 `json:"average_completion"`
	TotalPagesRead    int     `json:"total_pages_read"`
	Streak            int     `json:"streak"`
}

// Stats summarizes the user's whole reading history. Unlike the shelf
// listings it counts archived and gated books too; the history belongs to
// the user even when the catalog hides the book.
func (svc *Service) Stats(ctx context.Context, userID int) (*Stats, error) {
	stats := &Stats{}

	var err error
	stats.Started, err = svc.db.
		NewSelect().
		Model((*models.ReadingProgress)(nil)).
		Where("user_id = ?", userID).
		Count(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	stats.Completed, err = svc.db.
		NewSelect().
		Model((*models.ReadingProgress)(nil)).
		Where("user_id = ?", userID).
		Where("percentage_complete >= 100").
		Count(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var avgCompletion float64
	var pagesRead int
	err = svc.db.
		NewSelect().
		Model((*models.ReadingProgress)(nil)).
		ColumnExpr("coalesce(avg(rpr.percentage_complete), 0)").
		ColumnExpr("coalesce(sum(rpr.current_page), 0)").
		Where("rpr.user_id = ?", userID).
		Scan(ctx, &avgCompletion, &pagesRead)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	stats.AverageCompletion = round1(avgCompletion)
	stats.TotalPagesRead = pagesRead

	stats.Streak, err = svc.streak(ctx, userID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return stats, nil
}

// streak counts consecutive local calendar dates ending today on which at
// least one progress row was touched. A date with no reading breaks the run,
// so no reading today means zero.
func (svc *Service) streak(ctx context.Context, userID int) (int, error) {
	var lastReads []time.Time

	err := svc.db.
		NewSelect().
		Model((*models.ReadingProgress)(nil)).
		Column("last_read_at").
		Where("user_id = ?", userID).
		Scan(ctx, &lastReads)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	active := make(map[string]bool, len(lastReads))
	for _, ts := range lastReads {
		active[ts.Local().Format(dayFormat)] = true
	}

	streak := 0
	for day := svc.now().Local(); active[day.Format(dayFormat)]; day = day.AddDate(0, 0, -1) {
		streak++
	}

	return streak, nil
}
