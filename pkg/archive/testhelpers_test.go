package archive

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codexlibris/codex/pkg/migrations"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/robinjoseph08/golib/logger"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestService(t *testing.T) (*Service, *bun.DB, context.Context) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	ctx := logger.New().WithContext(context.Background())

	return NewService(db), db, ctx
}

// tempBookFile writes a real file so os.Stat sees it.
func tempBookFile(t *testing.T, name string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("book bytes"), 0o600))
	return path
}

func createBook(t *testing.T, db *bun.DB, name, path, status string) *models.Book {
	t.Helper()

	ctx := context.Background()

	author := &models.Author{Name: "Author of " + name}
	_, err := db.NewInsert().Model(author).Returning("*").Exec(ctx)
	require.NoError(t, err)

	book := &models.Book{
		Name:       name,
		Filepath:   path,
		AuthorID:   author.ID,
		FileFormat: "epub",
		Status:     status,
	}
	if status == models.BookStatusArchived {
		now := time.Now()
		reason := models.ArchiveReasonFileMissing
		book.ArchivedAt = &now
		book.ArchiveReason = &reason
	}
	_, err = db.NewInsert().Model(book).Returning("*").Exec(ctx)
	require.NoError(t, err)

	return book
}

func reloadBook(t *testing.T, db *bun.DB, id int) *models.Book {
	t.Helper()

	book := &models.Book{}
	err := db.NewSelect().Model(book).Where("b.id = ?", id).Scan(context.Background())
	require.NoError(t, err)
	return book
}
