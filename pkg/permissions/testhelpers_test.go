package permissions

import (
	"context"
	"database/sql"
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

func createTestUser(t *testing.T, db *bun.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		Email:        username + "@example.com",
		Username:     username,
		DisplayName:  username,
		PasswordHash: "x",
		IsActive:     true,
	}
	_, err := db.NewInsert().Model(user).Returning("*").Exec(context.Background())
	require.NoError(t, err)

	return user
}

func assignRole(t *testing.T, db *bun.DB, userID int, roleName string) {
	t.Helper()

	ctx := context.Background()

	role := &models.Role{}
	err := db.NewSelect().Model(role).Where("r.name = ?", roleName).Scan(ctx)
	require.NoError(t, err)

	_, err = db.NewInsert().Model(&models.UserRole{UserID: userID, RoleID: role.ID}).Exec(ctx)
	require.NoError(t, err)
}

func grantPermission(t *testing.T, db *bun.DB, userID int, name string, resourceID *int) {
	t.Helper()

	ctx := context.Background()

	permission := &models.Permission{}
	err := db.NewSelect().Model(permission).Where("p.name = ?", name).Scan(ctx)
	require.NoError(t, err)

	grant := &models.UserPermission{
		UserID:       userID,
		PermissionID: permission.ID,
		ResourceID:   resourceID,
	}
	_, err = db.NewInsert().Model(grant).Exec(ctx)
	require.NoError(t, err)
}
