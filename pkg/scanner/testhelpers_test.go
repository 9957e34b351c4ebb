package scanner

import (
	"context"
	"database/sql"
	"testing"

	"github.com/codexlibris/codex/pkg/config"
	"github.com/codexlibris/codex/pkg/metadata"
	"github.com/codexlibris/codex/pkg/migrations"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/robinjoseph08/golib/logger"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// newTestService wires a scan service onto an in-memory database. External
// lookups stay disabled unless the test brings its own resolver.
func newTestService(t *testing.T, roots []string, resolver *metadata.Resolver) (*Service, *bun.DB, context.Context) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	// Every pool connection to :memory: opens its own empty database, and a
	// scan hits the pool from several goroutines at once.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	cfg := config.NewForTest()
	cfg.LibraryDirectories = roots
	cfg.ScanWorkers = 2

	if resolver == nil {
		resolver = metadata.NewResolver(metadata.ResolverOptions{})
	}

	ctx := logger.New().WithContext(context.Background())

	return NewService(db, cfg, resolver), db, ctx
}

// stubProvider scripts external catalog responses for scan tests.
type stubProvider struct {
	name    string
	byISBN  func(ctx context.Context, isbn string) (*metadata.BookMetadata, error)
	byTitle func(ctx context.Context, title, author string) ([]*metadata.BookMetadata, error)
}

func (s *stubProvider) Name() string {
	return s.name
}

func (s *stubProvider) LookupByISBN(ctx context.Context, isbn string) (*metadata.BookMetadata, error) {
	if s.byISBN == nil {
		return nil, nil
	}
	return s.byISBN(ctx, isbn)
}

func (s *stubProvider) LookupByTitle(ctx context.Context, title, author string) ([]*metadata.BookMetadata, error) {
	if s.byTitle == nil {
		return nil, nil
	}
	return s.byTitle(ctx, title, author)
}

func tagNames(tags []*models.Tag) []string {
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	return names
}

func logMessages(logs []*models.ScanLog) []string {
	messages := make([]string, 0, len(logs))
	for _, l := range logs {
		messages = append(messages, l.Message)
	}
	return messages
}
