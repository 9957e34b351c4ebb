// Package scanner keeps the catalog in step with the files on disk. A scan
// walks the library roots, fuses metadata for every supported file from
// external catalogs, sidecars, embedded metadata, and the path itself, then
// upserts books and authors, applies tags, and saves extracted covers. After
// all roots are walked the archive reconciler squares book statuses with the
// filesystem.
package scanner

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codexlibris/codex/pkg/archive"
	"github.com/codexlibris/codex/pkg/authors"
	"github.com/codexlibris/codex/pkg/bookfile"
	"github.com/codexlibris/codex/pkg/books"
	"github.com/codexlibris/codex/pkg/config"
	"github.com/codexlibris/codex/pkg/metadata"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/scanlog"
	"github.com/codexlibris/codex/pkg/tags"
	"github.com/google/uuid"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"
)

// checkpointEvery is how many processed files pass between progress
// checkpoints to the scan run row.
const checkpointEvery = 25

// Options configures a single scan run.
type Options struct {
	// Roots overrides the configured library directories when non-empty.
	Roots []string

	// ExternalLookup asks the metadata resolver to enrich books from
	// external catalogs. It only takes effect when the resolver itself is
	// enabled in configuration.
	ExternalLookup bool
}

// Service runs scans. One Service is shared by the scheduler and any manual
// triggers; the keyed locks inside it serialize writers across concurrent
// runs too.
type Service struct {
	cfg      *config.Config
	resolver *metadata.Resolver

	bookService    *books.Service
	authorService  *authors.Service
	tagService     *tags.Service
	archiveService *archive.Service
	scanlogService *scanlog.Service

	authorLocks   *keyedMutex
	filepathLocks *keyedMutex
}

// NewService creates a scan service on the shared database handle.
func NewService(db *bun.DB, cfg *config.Config, resolver *metadata.Resolver) *Service {
	return &Service{
		cfg:            cfg,
		resolver:       resolver,
		bookService:    books.NewService(db),
		authorService:  authors.NewService(db),
		tagService:     tags.NewService(db),
		archiveService: archive.NewService(db),
		scanlogService: scanlog.NewService(db),
		authorLocks:    newKeyedMutex(),
		filepathLocks:  newKeyedMutex(),
	}
}

// Run executes one full scan and returns the finished run row. The returned
// error reports cancellation and reconciliation failures; per-file problems
// only bump the run's error counter.
func (svc *Service) Run(ctx context.Context, opts Options) (*models.ScanRun, error) {
	roots := opts.Roots
	if len(roots) == 0 {
		roots = svc.cfg.LibraryDirectories
	}

	run := &models.ScanRun{
		ScanID:         uuid.New().String(),
		ExternalLookup: opts.ExternalLookup && svc.resolver.Enabled(),
	}
	if err := svc.scanlogService.CreateScanRun(ctx, run); err != nil {
		return nil, err
	}

	// Log rows and the final run state must land even after cancellation.
	finishCtx := context.WithoutCancel(ctx)
	slog := svc.scanlogService.NewLogger(finishCtx, run.ScanID, logger.FromContext(ctx))

	started := time.Now()
	run.Status = models.ScanStatusInProgress
	run.StartedAt = &started
	if err := svc.scanlogService.UpdateScanRun(ctx, run, "status", "started_at"); err != nil {
		// A run that never starts must not stay pending, or it would
		// block every later scan.
		run.Status = models.ScanStatusFailed
		_ = svc.scanlogService.UpdateScanRun(finishCtx, run, "status")
		return nil, err
	}

	slog.Info("scan started", logger.Data{
		"roots":           strings.Join(roots, ", "),
		"external_lookup": run.ExternalLookup,
	})

	tally := &counters{}
	scanErr := svc.scanRoots(ctx, roots, run, tally, slog)

	if scanErr == nil {
		result, err := svc.archiveService.Reconcile(ctx)
		if err != nil {
			scanErr = err
		} else {
			run.Archived = result.Archived
			run.Restored = result.Restored
			slog.Info("reconciled catalog with filesystem", logger.Data{
				"checked":  result.Checked,
				"archived": result.Archived,
				"restored": result.Restored,
			})
		}
	}

	finished := time.Now()
	run.FinishedAt = &finished
	tally.fill(run)

	if scanErr != nil {
		run.Status = models.ScanStatusFailed
		slog.Error("scan failed", scanErr, nil)
	} else {
		run.Status = models.ScanStatusCompleted
		slog.Info("scan finished", logger.Data{
			"discovered": run.Discovered,
			"indexed":    run.Indexed,
			"updated":    run.Updated,
			"skipped":    run.Skipped,
			"archived":   run.Archived,
			"restored":   run.Restored,
			"errors":     run.Errors,
		})
	}

	err := svc.scanlogService.UpdateScanRun(finishCtx, run,
		"status", "finished_at", "discovered", "indexed", "updated",
		"skipped", "archived", "restored", "errors")
	if err != nil {
		return nil, err
	}

	return run, scanErr
}

// candidate is one discovered file together with the library root it was
// found under; the root anchors path-derived metadata.
type candidate struct {
	root string
	path string
}

// scanRoots walks every root on one producer goroutine and fans the
// discovered files out to the worker pool. The channel is bounded so a slow
// database never lets the walk run unboundedly ahead.
func (svc *Service) scanRoots(ctx context.Context, roots []string, run *models.ScanRun, tally *counters, slog *scanlog.Logger) error {
	workers := svc.cfg.ScanWorkers
	if workers < 1 {
		workers = 1
	}

	files := make(chan candidate, workers*2)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(files)
		for _, root := range roots {
			if err := svc.walkRoot(gctx, root, files, tally, slog); err != nil {
				return err
			}
		}
		return nil
	})

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for cand := range files {
				if err := gctx.Err(); err != nil {
					return err
				}

				result, err := svc.scanFile(gctx, cand.root, cand.path, run.ExternalLookup, slog)
				switch {
				case err != nil:
					// A bad file is logged and skipped; only
					// cancellation stops the scan.
					if gctx.Err() != nil {
						return gctx.Err()
					}
					tally.errors.Add(1)
					slog.Error("failed to scan file", err, logger.Data{"path": cand.path})
				case result == outcomeIndexed:
					tally.indexed.Add(1)
				case result == outcomeUpdated:
					tally.updated.Add(1)
				default:
					tally.skipped.Add(1)
				}

				if n := tally.processed.Add(1); n%checkpointEvery == 0 {
					svc.checkpoint(gctx, run, tally, slog)
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// walkRoot emits every supported regular file under root. Unreadable
// directories and files are logged and walked around; a root that is missing
// entirely is treated the same way, since the reconciler will archive its
// books and restore them when the mount returns.
func (svc *Service) walkRoot(ctx context.Context, root string, files chan<- candidate, tally *counters, slog *scanlog.Logger) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			tally.errors.Add(1)
			slog.Warn("cannot read path during walk", logger.Data{"path": path, "error": err.Error()})
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.IsDir() || !entry.Type().IsRegular() {
			return nil
		}
		if !bookfile.IsSupported(path) {
			return nil
		}

		select {
		case files <- candidate{root: root, path: path}:
			tally.discovered.Add(1)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// checkpoint persists the running counters so operators can watch progress
// while the scan is still going.
func (svc *Service) checkpoint(ctx context.Context, run *models.ScanRun, tally *counters, slog *scanlog.Logger) {
	tally.mu.Lock()
	defer tally.mu.Unlock()

	tally.fill(run)
	err := svc.scanlogService.UpdateScanRun(ctx, run, "discovered", "indexed", "updated", "skipped", "errors")
	if err != nil {
		slog.Warn("failed to checkpoint scan progress", logger.Data{"error": err.Error()})
		return
	}

	slog.Info("scan progress", logger.Data{
		"discovered": run.Discovered,
		"indexed":    run.Indexed,
		"updated":    run.Updated,
		"skipped":    run.Skipped,
		"errors":     run.Errors,
	})
}

// counters accumulates scan results across workers. The mutex only guards
// checkpointing, which copies the counters onto the shared run row.
type counters struct {
	discovered atomic.Int64
	processed  atomic.Int64
	indexed    atomic.Int64
	updated    atomic.Int64
	skipped    atomic.Int64
	errors     atomic.Int64

	mu sync.Mutex
}

func (c *counters) fill(run *models.ScanRun) {
	run.Discovered = int(c.discovered.Load())
	run.Indexed = int(c.indexed.Load())
	run.Updated = int(c.updated.Load())
	run.Skipped = int(c.skipped.Load())
	run.Errors = int(c.errors.Load())
}
