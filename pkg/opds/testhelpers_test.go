package opds

import (
	"context"
	"database/sql"
	"testing"

	"github.com/codexlibris/codex/pkg/archive"
	"github.com/codexlibris/codex/pkg/books"
	"github.com/codexlibris/codex/pkg/migrations"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/permissions"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestHandler(t *testing.T) (*handler, *bun.DB) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	h := &handler{
		opdsService:    NewService(db),
		bookService:    books.NewService(db),
		archiveService: archive.NewService(db),
		permissions:    permissions.NewService(db),
	}
	return h, db
}

func createUser(t *testing.T, db *bun.DB, username string, roleNames ...string) *models.User {
	t.Helper()

	ctx := context.Background()

	if len(roleNames) == 0 {
		roleNames = []string{models.RoleUser}
	}

	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		DisplayName:  username,
		PasswordHash: "x",
		IsActive:     true,
	}
	_, err := db.NewInsert().Model(user).Returning("*").Exec(ctx)
	require.NoError(t, err)

	for _, name := range roleNames {
		role := &models.Role{}
		err = db.NewSelect().Model(role).Where("r.name = ?", name).Scan(ctx)
		require.NoError(t, err)

		_, err = db.NewInsert().Model(&models.UserRole{UserID: user.ID, RoleID: role.ID}).Exec(ctx)
		require.NoError(t, err)
	}

	return user
}

type bookSeed struct {
	Name     string
	Author   string
	Format   string
	Filepath string
}

func seedBook(t *testing.T, db *bun.DB, seed bookSeed) *models.Book {
	t.Helper()

	ctx := context.Background()
	svc := books.NewService(db)

	if seed.Author == "" {
		seed.Author = "Author of " + seed.Name
	}
	if seed.Format == "" {
		seed.Format = "epub"
	}
	if seed.Filepath == "" {
		seed.Filepath = "/library/" + seed.Name + "." + seed.Format
	}

	author, err := svc.FindOrCreateAuthor(ctx, seed.Author)
	require.NoError(t, err)

	book := &models.Book{
		Name:       seed.Name,
		Filepath:   seed.Filepath,
		AuthorID:   author.ID,
		FileFormat: seed.Format,
	}
	require.NoError(t, svc.CreateBook(ctx, book))

	return book
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

// setBookMetadata fills in the optional columns entries are built from.
func setBookMetadata(t *testing.T, db *bun.DB, bookID int, isbn, publisher, published, description string) {
	t.Helper()

	_, err := db.NewUpdate().
		Model((*models.Book)(nil)).
		Set("isbn = ?", isbn).
		Set("publisher = ?", publisher).
		Set("publication_date = ?", published).
		Set("description = ?", description).
		Where("id = ?", bookID).
		Exec(context.Background())
	require.NoError(t, err)
}
