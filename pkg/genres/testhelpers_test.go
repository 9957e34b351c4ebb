package genres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/codexlibris/codex/pkg/books"
	"github.com/codexlibris/codex/pkg/migrations"
	"github.com/codexlibris/codex/pkg/models"
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

	return NewService(db), db, context.Background()
}

// seedBook files a book and attaches the named catalog tags to it.
func seedBook(t *testing.T, db *bun.DB, name string, tagNames ...string) *models.Book {
	t.Helper()

	ctx := context.Background()
	svc := books.NewService(db)

	author, err := svc.FindOrCreateAuthor(ctx, "Author of "+name)
	require.NoError(t, err)

	book := &models.Book{
		Name:       name,
		Filepath:   "/library/" + name + ".epub",
		AuthorID:   author.ID,
		FileFormat: "epub",
	}
	require.NoError(t, svc.CreateBook(ctx, book))

	for _, tagName := range tagNames {
		attachTag(t, db, book.ID, tagName)
	}

	return book
}

func createUser(t *testing.T, db *bun.DB, username string) *models.User {
	t.Helper()

	ctx := context.Background()

	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		DisplayName:  username,
		PasswordHash: "x",
		IsActive:     true,
	}
	_, err := db.NewInsert().Model(user).Returning("*").Exec(ctx)
	require.NoError(t, err)

	role := &models.Role{}
	err = db.NewSelect().Model(role).Where("r.name = ?", models.RoleUser).Scan(ctx)
	require.NoError(t, err)

	_, err = db.NewInsert().Model(&models.UserRole{UserID: user.ID, RoleID: role.ID}).Exec(ctx)
	require.NoError(t, err)

	return user
}

func attachTag(t *testing.T, db *bun.DB, bookID int, tagName string) {
	t.Helper()

	ctx := context.Background()

	tag := &models.Tag{}
	err := db.NewSelect().Model(tag).Where("t.name = ?", tagName).Scan(ctx)
	require.NoError(t, err)

	_, err = db.NewInsert().Model(&models.BookTag{BookID: bookID, TagID: tag.ID}).Exec(ctx)
	require.NoError(t, err)
}

func archiveBook(t *testing.T, db *bun.DB, bookID int) {
	t.Helper()

	_, err := db.NewUpdate().
		Model((*models.Book)(nil)).
		Set("status = ?", models.BookStatusArchived).
		Set("archived_at = ?", time.Now()).
		Set("archive_reason = ?", models.ArchiveReasonFileMissing).
		Where("id = ?", bookID).
		Exec(context.Background())
	require.NoError(t, err)
}
