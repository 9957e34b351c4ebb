// Package archive keeps the catalog honest about files that disappear from
// disk. Books whose file goes missing move to the archive surface instead of
// being deleted, and they come back when the file does.
package archive

import (
	"context"
	"database/sql"
	"os"
	"time"

	"github.com/codexlibris/codex/pkg/access"
	"github.com/codexlibris/codex/pkg/errcodes"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/permissions"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

// ReasonManual is recorded when an operator archives a book by hand without
// giving a reason.
const ReasonManual = "manually archived"

// Service reconciles book statuses with the filesystem and serves the
// archive surface.
type Service struct {
	db *bun.DB
}

// NewService creates a new archive service.
func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// ReconcileResult counts what a reconciliation pass did.
type ReconcileResult struct {
	Checked  int `json:"checked"`
	Archived int `json:"archived"`
	Restored int `json:"restored"`
}

// Reconcile walks every book and squares its status with the filesystem:
// active books whose file is gone get archived with the file-missing reason,
// and archived books whose file is back get restored. Updates are
// conditional on the current status, so a book archived by hand mid-pass is
// left alone.
func (svc *Service) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	log := logger.FromContext(ctx)

	books := []*models.Book{}
	err := svc.db.
		NewSelect().
		Model(&books).
		Column("id", "filepath", "status").
		Order("b.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	result := &ReconcileResult{}
	for _, book := range books {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithStack(err)
		}
		result.Checked++

		_, statErr := os.Stat(book.Filepath)
		missing := os.IsNotExist(statErr)
		if statErr != nil && !missing {
			// An unreadable mount must not archive a whole library, so
			// anything other than a clean not-exist leaves the book as is.
			log.Warn("could not stat book file", logger.Data{
				"book_id":  book.ID,
				"filepath": book.Filepath,
				"error":    statErr.Error(),
			})
			continue
		}

		switch {
		case missing && book.Status == models.BookStatusActive:
			archived, err := svc.archiveBook(ctx, book.ID, models.ArchiveReasonFileMissing)
			if err != nil {
				return nil, err
			}
			if archived {
				result.Archived++
				log.Info("archived book with missing file", logger.Data{
					"book_id":  book.ID,
					"filepath": book.Filepath,
				})
			}
		case !missing && book.Status == models.BookStatusArchived:
			restored, err := svc.restoreBook(ctx, book.ID)
			if err != nil {
				return nil, err
			}
			if restored {
				result.Restored++
				log.Info("restored book with recovered file", logger.Data{
					"book_id":  book.ID,
					"filepath": book.Filepath,
				})
			}
		}
	}

	return result, nil
}

func (svc *Service) archiveBook(ctx context.Context, id int, reason string) (bool, error) {
	now := time.Now()
	res, err := svc.db.
		NewUpdate().
		Model((*models.Book)(nil)).
		Set("status = ?", models.BookStatusArchived).
		Set("archived_at = ?", now).
		Set("archive_reason = ?", reason).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", models.BookStatusActive).
		Exec(ctx)
	if err != nil {
		return false, errors.WithStack(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.WithStack(err)
	}
	return n > 0, nil
}

func (svc *Service) restoreBook(ctx context.Context, id int) (bool, error) {
	res, err := svc.db.
		NewUpdate().
		Model((*models.Book)(nil)).
		Set("status = ?", models.BookStatusActive).
		Set("archived_at = NULL").
		Set("archive_reason = NULL").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("status = ?", models.BookStatusArchived).
		Exec(ctx)
	if err != nil {
		return false, errors.WithStack(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.WithStack(err)
	}
	return n > 0, nil
}

// Archive moves a book to the archive surface by hand.
func (svc *Service) Archive(ctx context.Context, id int, reason string) (*models.Book, error) {
	if reason == "" {
		reason = ReasonManual
	}

	if _, err := svc.RetrieveBook(ctx, id); err != nil {
		return nil, err
	}

	archived, err := svc.archiveBook(ctx, id, reason)
	if err != nil {
		return nil, err
	}
	if !archived {
		return nil, errcodes.Conflict("Book is already archived.")
	}

	return svc.RetrieveBook(ctx, id)
}

// Restore moves a book back to the active catalog.
func (svc *Service) Restore(ctx context.Context, id int) (*models.Book, error) {
	if _, err := svc.RetrieveBook(ctx, id); err != nil {
		return nil, err
	}

	restored, err := svc.restoreBook(ctx, id)
	if err != nil {
		return nil, err
	}
	if !restored {
		return nil, errcodes.Conflict("Book is not archived.")
	}

	return svc.RetrieveBook(ctx, id)
}

// RetrieveBook fetches one book with its author, archived or not.
func (svc *Service) RetrieveBook(ctx context.Context, id int) (*models.Book, error) {
	book := &models.Book{}
	err := svc.db.
		NewSelect().
		Model(book).
		Relation("Author").
		Where("b.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}
	return book, nil
}

// ListArchivedOptions filters the archive listing.
type ListArchivedOptions struct {
	Reason *string
	Limit  int
	Offset int

	// Set filters out books gated behind permissions the caller lacks.
	Set *permissions.Set
}

// ListArchived returns archived books, newest archives first, along with the
// total matching count.
func (svc *Service) ListArchived(ctx context.Context, opts ListArchivedOptions) ([]*models.Book, int, error) {
	books := []*models.Book{}

	q := svc.db.
		NewSelect().
		Model(&books).
		Relation("Author").
		Where("b.status = ?", models.BookStatusArchived).
		Order("b.archived_at DESC", "b.id DESC")

	if opts.Reason != nil {
		q = q.Where("b.archive_reason = ?", *opts.Reason)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	q = access.ApplyVisibility(q, opts.Set)

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return books, total, nil
}

// Stats summarizes the archive surface.
type Stats struct {
	TotalActive    int            `json:"total_active"`
	TotalArchived  int            `json:"total_archived"`
	ByReason       map[string]int `json:"by_reason"`
	ArchivedLast7  int            `json:"archived_last_7_days"`
	ArchivedLast30 int            `json:"archived_last_30_days"`
}

// RetrieveStats counts the archive surface by status, reason, and recency.
func (svc *Service) RetrieveStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByReason: map[string]int{}}

	var err error
	stats.TotalActive, err = svc.db.
		NewSelect().
		Model((*models.Book)(nil)).
		Where("b.status = ?", models.BookStatusActive).
		Count(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	stats.TotalArchived, err = svc.db.
		NewSelect().
		Model((*models.Book)(nil)).
		Where("b.status = ?", models.BookStatusArchived).
		Count(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var rows []struct {
		Reason string `bun:"archive_reason"`
		Count  int    `bun:"count"`
	}
	err = svc.db.
		NewSelect().
		Model((*models.Book)(nil)).
		ColumnExpr("b.archive_reason").
		ColumnExpr("count(*) AS count").
		Where("b.status = ?", models.BookStatusArchived).
		GroupExpr("b.archive_reason").
		Scan(ctx, &rows)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	for _, row := range rows {
		stats.ByReason[row.Reason] = row.Count
	}

	now := time.Now()
	stats.ArchivedLast7, err = svc.countArchivedSince(ctx, now.AddDate(0, 0, -7))
	if err != nil {
		return nil, err
	}
	stats.ArchivedLast30, err = svc.countArchivedSince(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func (svc *Service) countArchivedSince(ctx context.Context, since time.Time) (int, error) {
	count, err := svc.db.
		NewSelect().
		Model((*models.Book)(nil)).
		Where("b.status = ?", models.BookStatusArchived).
		Where("b.archived_at >= ?", since).
		Count(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return count, nil
}

// Issue is one inconsistency between a book's status and reality.
type Issue struct {
	BookID   int    `json:"book_id"`
	Filepath string `json:"filepath"`
	Problem  string `json:"problem"`
}

// ValidationReport is the outcome of an archive audit. The audit never
// mutates anything; Reconcile is the fixer.
type ValidationReport struct {
	Checked int      `json:"checked"`
	Issues  []*Issue `json:"issues"`
}

// Validate audits every book for status/filesystem mismatches and malformed
// archive fields.
func (svc *Service) Validate(ctx context.Context) (*ValidationReport, error) {
	books := []*models.Book{}
	err := svc.db.
		NewSelect().
		Model(&books).
		Column("id", "filepath", "status", "archived_at", "archive_reason").
		Order("b.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	report := &ValidationReport{Issues: []*Issue{}}
	for _, book := range books {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithStack(err)
		}
		report.Checked++

		_, statErr := os.Stat(book.Filepath)
		missing := os.IsNotExist(statErr)

		switch book.Status {
		case models.BookStatusActive:
			if missing {
				report.Issues = append(report.Issues, &Issue{
					BookID:   book.ID,
					Filepath: book.Filepath,
					Problem:  "file missing on disk",
				})
			}
			if book.ArchivedAt != nil || book.ArchiveReason != nil {
				report.Issues = append(report.Issues, &Issue{
					BookID:   book.ID,
					Filepath: book.Filepath,
					Problem:  "active book carries archive fields",
				})
			}
		case models.BookStatusArchived:
			if statErr == nil {
				report.Issues = append(report.Issues, &Issue{
					BookID:   book.ID,
					Filepath: book.Filepath,
					Problem:  "file present on disk",
				})
			}
			if book.ArchivedAt == nil {
				report.Issues = append(report.Issues, &Issue{
					BookID:   book.ID,
					Filepath: book.Filepath,
					Problem:  "archived without timestamp",
				})
			}
			if book.ArchiveReason == nil {
				report.Issues = append(report.Issues, &Issue{
					BookID:   book.ID,
					Filepath: book.Filepath,
					Problem:  "archived without reason",
				})
			}
		}
	}

	return report, nil
}
