package archive

import (
	"github.com/codexlibris/codex/pkg/auth"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/permissions"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers all archive routes on the given group.
// Reading the surface takes books.read; mutating it or auditing it takes
// books.manage.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, permService *permissions.Service, authMiddleware *auth.Middleware) {
	h := &handler{
		archiveService: NewService(db),
		permissions:    permService,
	}

	g.GET("", h.listArchived, authMiddleware.RequirePermission(models.PermissionBooksRead))
	g.GET("/stats", h.stats, authMiddleware.RequirePermission(models.PermissionBooksRead))
	g.GET("/validate", h.validate, authMiddleware.RequirePermission(models.PermissionBooksManage))
	g.POST("/:id", h.archive, authMiddleware.RequirePermission(models.PermissionBooksManage))
	g.POST("/:id/restore", h.restore, authMiddleware.RequirePermission(models.PermissionBooksManage))
}
