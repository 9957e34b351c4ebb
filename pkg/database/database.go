// Package database opens the SQLite catalog through bun, with the pragmas
// and busy-retry behavior the rest of the code assumes.
package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"time"

	"github.com/codexlibris/codex/pkg/config"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// New opens the configured SQLite database, waits until it answers, and
// applies the connection pragmas.
func New(cfg *config.Config) (*bun.DB, error) {
	drv := sqliteshim.Driver()
	dc, ok := drv.(driver.DriverContext)
	if !ok {
		return nil, errors.New("sqlite driver does not implement OpenConnector")
	}
	connector, err := dc.OpenConnector(cfg.DatabaseFilePath)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// Busy retries wrap the driver itself so every query path (bun, raw
	// database/sql, migrations) gets them.
	sqldb := sql.OpenDB(newRetryConnector(connector, cfg.DatabaseMaxRetries))
	db := bun.NewDB(sqldb, sqlitedialect.New())

	if cfg.DatabaseDebug {
		db.AddQueryHook(&queryLogHook{log: logger.NewWithLevel("debug")})
	}

	if err := waitUntilReady(db, cfg); err != nil {
		return nil, err
	}

	// WAL lets readers proceed during writes. busy_timeout absorbs short
	// writer contention before the retry layer ever sees it.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, errors.Wrap(err, "failed to enable WAL mode")
	}
	if _, err := db.Exec("PRAGMA busy_timeout=?", cfg.DatabaseBusyTimeout.Milliseconds()); err != nil {
		return nil, errors.Wrap(err, "failed to set busy_timeout")
	}

	return db, nil
}

// waitUntilReady probes the database until it accepts a query. A file on a
// slow mount can take a moment to become available at startup.
func waitUntilReady(db *bun.DB, cfg *config.Config) error {
	var err error
	for i := 0; i < cfg.DatabaseConnectRetryCount; i++ {
		if _, err = db.Exec("SELECT 1"); err == nil {
			return nil
		}
		time.Sleep(cfg.DatabaseConnectRetryDelay)
	}
	return errors.WithStack(err)
}

// queryLogHook prints every statement when database debugging is on.
type queryLogHook struct {
	log logger.Logger
}

func (*queryLogHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (qh *queryLogHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	qh.log.Debug(event.Query)
}
