// Package scanlog persists scan runs and their operator-visible logs. Every
// scan gets a ScanRun row carrying its counters and a stream of scan_logs
// rows correlated by scan id, so progress survives the process that did the
// scanning.
package scanlog

import (
	"context"
	"database/sql"
	"time"

	"github.com/codexlibris/codex/pkg/errcodes"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveScanRunOptions struct {
	ID     *int
	ScanID *string
}

type ListScanRunsOptions struct {
	Limit    *int
	Offset   *int
	Statuses []string
}

type ListScanLogsOptions struct {
	ScanID  string
	AfterID *int
	Levels  []string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateScanRun(ctx context.Context, run *models.ScanRun) error {
	now := time.Now()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = run.CreatedAt
	if run.Status == "" {
		run.Status = models.ScanStatusPending
	}

	_, err := svc.db.
		NewInsert().
		Model(run).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) RetrieveScanRun(ctx context.Context, opts RetrieveScanRunOptions) (*models.ScanRun, error) {
	run := &models.ScanRun{}

	q := svc.db.
		NewSelect().
		Model(run)

	if opts.ID != nil {
		q = q.Where("sr.id = ?", *opts.ID)
	}
	if opts.ScanID != nil {
		q = q.Where("sr.scan_id = ?", *opts.ScanID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Scan")
		}
		return nil, errors.WithStack(err)
	}

	return run, nil
}

func (svc *Service) ListScanRuns(ctx context.Context, opts ListScanRunsOptions) ([]*models.ScanRun, error) {
	runs := []*models.ScanRun{}

	q := svc.db.
		NewSelect().
		Model(&runs).
		Order("sr.created_at DESC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}
	if len(opts.Statuses) > 0 {
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			for _, s := range opts.Statuses {
				sq = sq.WhereOr("sr.status = ?", s)
			}
			return sq
		})
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return runs, nil
}

// UpdateScanRun writes the given columns plus updated_at. A run with no
// columns named is a no-op.
func (svc *Service) UpdateScanRun(ctx context.Context, run *models.ScanRun, columns ...string) error {
	if len(columns) == 0 {
		return nil
	}

	run.UpdatedAt = time.Now()
	columns = append(columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(run).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// FailStaleRuns marks every pending or in-progress run as failed and returns
// how many it closed. The server calls this at startup: any run still active
// then belongs to a process that is gone, and leaving it active would make
// HasActiveScan skip real scans forever.
func (svc *Service) FailStaleRuns(ctx context.Context) (int, error) {
	now := time.Now()
	res, err := svc.db.
		NewUpdate().
		Model((*models.ScanRun)(nil)).
		Set("status = ?", models.ScanStatusFailed).
		Set("finished_at = ?", now).
		Set("updated_at = ?", now).
		Where("status IN (?)", bun.In([]string{models.ScanStatusPending, models.ScanStatusInProgress})).
		Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return int(n), nil
}

// HasActiveScan reports whether a scan is pending or in progress. The
// scheduler uses this to skip a tick instead of stacking runs.
func (svc *Service) HasActiveScan(ctx context.Context) (bool, error) {
	count, err := svc.db.
		NewSelect().
		Model((*models.ScanRun)(nil)).
		WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Where("status = ?", models.ScanStatusPending).
				WhereOr("status = ?", models.ScanStatusInProgress)
		}).
		Count(ctx)
	if err != nil {
		return false, errors.WithStack(err)
	}

	return count > 0, nil
}

func (svc *Service) CreateScanLog(ctx context.Context, log *models.ScanLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	_, err := svc.db.
		NewInsert().
		Model(log).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) ListScanLogs(ctx context.Context, opts ListScanLogsOptions) ([]*models.ScanLog, error) {
	logs := []*models.ScanLog{}

	q := svc.db.
		NewSelect().
		Model(&logs).
		Where("sl.scan_id = ?", opts.ScanID).
		Order("sl.id ASC")

	if opts.AfterID != nil {
		q = q.Where("sl.id > ?", *opts.AfterID)
	}
	if len(opts.Levels) > 0 {
		q = q.Where("sl.level IN (?)", bun.In(opts.Levels))
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return logs, nil
}
