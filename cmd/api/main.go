package main

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/codexlibris/codex/pkg/config"
	"github.com/codexlibris/codex/pkg/database"
	"github.com/codexlibris/codex/pkg/metadata"
	"github.com/codexlibris/codex/pkg/migrations"
	"github.com/codexlibris/codex/pkg/scanlog"
	"github.com/codexlibris/codex/pkg/scanner"
	"github.com/codexlibris/codex/pkg/scheduler"
	"github.com/codexlibris/codex/pkg/server"
	"github.com/codexlibris/codex/pkg/version"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting codex", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}
	log.Info("config loaded", logger.Data{"config": cfg.String()})

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	// Runs left behind by a crashed process would otherwise block every
	// scheduled scan.
	scanlogService := scanlog.NewService(db)
	closed, err := scanlogService.FailStaleRuns(ctx)
	if err != nil {
		log.Err(err).Fatal("stale scan cleanup error")
	}
	if closed > 0 {
		log.Warn("closed stale scan runs", logger.Data{"count": closed})
	}

	resolver := metadata.NewResolver(metadata.ResolverOptions{
		Enabled:     cfg.ExternalLookupEnabled,
		Timeout:     cfg.ProviderTimeout,
		MaxRetries:  uint64(cfg.ProviderMaxRetries),
		Concurrency: int64(cfg.ProviderConcurrency),
	}, metadataProviders(cfg)...)

	scannerService := scanner.NewService(db, cfg, resolver)

	sched := scheduler.New()
	sched.Register(scheduler.Task{
		ID:           "library-scan",
		InitialDelay: cfg.ScanInitialDelay,
		Interval:     cfg.ScanInterval,
		Run: func(ctx context.Context) error {
			// Another process sharing the database may already be mid-scan.
			active, err := scanlogService.HasActiveScan(ctx)
			if err != nil {
				return err
			}
			if active {
				logger.FromContext(ctx).Info("scan already in flight, skipping")
				return nil
			}

			_, err = scannerService.Run(ctx, scanner.Options{
				ExternalLookup: cfg.ExternalLookupEnabled,
			})
			return err
		},
	})

	srv, err := server.New(cfg, db)
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)
		lc := net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			log.Err(err).Fatal("failed to bind port")
		}
		log.Info("server started", logger.Data{"port": listener.Addr().(*net.TCPAddr).Port})

		err = srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	sched.Start()

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(ctx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	sched.Stop()
	log.Info("scheduler shutdown")

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}

// metadataProviders assembles the external catalogs in lookup order. Google
// Books only joins when it has an API key; Open Library needs nothing.
func metadataProviders(cfg *config.Config) []metadata.Provider {
	providers := []metadata.Provider{}
	if cfg.GoogleBooksAPIKey != "" {
		providers = append(providers, metadata.NewGoogleBooks(cfg.GoogleBooksAPIKey))
	}
	providers = append(providers, metadata.NewOpenLibrary())
	return providers
}
