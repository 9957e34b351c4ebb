package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/codexlibris/codex/pkg/migrations"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestService(t *testing.T) (*Service, *bun.DB) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return NewService(db, "test-secret", 24*time.Hour), db
}

func registerTestUser(t *testing.T, svc *Service, username string) *models.User {
	t.Helper()

	user, err := svc.Register(context.Background(), username, username+"@example.com", "", "password123")
	require.NoError(t, err)
	return user
}
