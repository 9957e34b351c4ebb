package tags

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

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

// createTestBook inserts an author and a book so tag rows have something to
// hang off. The filepath is derived from the name to satisfy the unique index.
func createTestBook(t *testing.T, db *bun.DB, name string) *models.Book {
	t.Helper()

	ctx := context.Background()

	author := &models.Author{Name: "Author of " + name}
	_, err := db.NewInsert().Model(author).Returning("*").Exec(ctx)
	require.NoError(t, err)

	book := &models.Book{
		Name:       name,
		Filepath:   fmt.Sprintf("/library/%s/%s.epub", author.Name, name),
		AuthorID:   author.ID,
		FileFormat: "epub",
		Status:     models.BookStatusActive,
	}
	_, err = db.NewInsert().Model(book).Returning("*").Exec(ctx)
	require.NoError(t, err)

	return book
}
