package users

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/codexlibris/codex/pkg/books"
	"github.com/codexlibris/codex/pkg/migrations"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/permissions"
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

	return NewService(db, permissions.NewService(db)), db, context.Background()
}

// createUser inserts an account holding the named roles, defaulting to the
// user role when none are given.
func createUser(t *testing.T, db *bun.DB, username string, roleNames ...string) *models.User {
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

	if len(roleNames) == 0 {
		roleNames = []string{models.RoleUser}
	}
	for _, roleName := range roleNames {
		role := &models.Role{}
		err = db.NewSelect().Model(role).Where("r.name = ?", roleName).Scan(ctx)
		require.NoError(t, err)

		_, err = db.NewInsert().Model(&models.UserRole{UserID: user.ID, RoleID: role.ID}).Exec(ctx)
		require.NoError(t, err)
	}

	return user
}

func deactivateUser(t *testing.T, db *bun.DB, userID int) {
	t.Helper()

	_, err := db.NewUpdate().
		Model((*models.User)(nil)).
		Set("is_active = ?", false).
		Where("id = ?", userID).
		Exec(context.Background())
	require.NoError(t, err)
}

func seedBook(t *testing.T, db *bun.DB, name, authorName string) *models.Book {
	t.Helper()

	ctx := context.Background()
	svc := books.NewService(db)

	author, err := svc.FindOrCreateAuthor(ctx, authorName)
	require.NoError(t, err)

	book := &models.Book{
		Name:       name,
		Filepath:   "/library/" + authorName + "/" + name + ".epub",
		AuthorID:   author.ID,
		FileFormat: "epub",
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

func addProgress(t *testing.T, db *bun.DB, userID, bookID int) {
	t.Helper()

	now := time.Now()
	row := &models.ReadingProgress{
		CreatedAt:          now,
		UpdatedAt:          now,
		UserID:             userID,
		BookID:             bookID,
		CurrentPage:        10,
		PercentageComplete: 5,
		LastReadAt:         now,
	}
	_, err := db.NewInsert().Model(row).Exec(context.Background())
	require.NoError(t, err)
}

func seedScanRun(t *testing.T, db *bun.DB, scanID, status string) {
	t.Helper()

	now := time.Now()
	run := &models.ScanRun{
		CreatedAt: now,
		UpdatedAt: now,
		ScanID:    scanID,
		Status:    status,
	}
	_, err := db.NewInsert().Model(run).Exec(context.Background())
	require.NoError(t, err)
}

func roleNames(roles []*models.Role) []string {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	return names
}

func permissionNames(perms []*models.Permission) []string {
	names := make([]string, 0, len(perms))
	for _, perm := range perms {
		names = append(names, perm.Name)
	}
	return names
}
