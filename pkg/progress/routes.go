package progress

import (
	"github.com/codexlibris/codex/pkg/auth"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/permissions"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers reading progress routes on the given
// group. Everything here is scoped to the signed-in user; the group
// middleware enforces authentication.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, permService *permissions.Service, authMiddleware *auth.Middleware) {
	h := &handler{
		progressService: NewService(db),
		permissions:     permService,
	}

	g.GET("/books/:id", h.get, authMiddleware.RequirePermission(models.PermissionBooksRead))
	g.PUT("/books/:id", h.update, authMiddleware.RequirePermission(models.PermissionBooksRead))
	g.POST("/books/:id/start", h.start, authMiddleware.RequirePermission(models.PermissionBooksRead))
	g.POST("/books/:id/complete", h.complete, authMiddleware.RequirePermission(models.PermissionBooksRead))
	g.DELETE("/books/:id", h.reset, authMiddleware.RequirePermission(models.PermissionBooksRead))
	g.GET("/currently-reading", h.currentlyReading, authMiddleware.RequirePermission(models.PermissionBooksRead))
	g.GET("/completed", h.completed, authMiddleware.RequirePermission(models.PermissionBooksRead))
	g.GET("/recent", h.recent, authMiddleware.RequirePermission(models.PermissionBooksRead))
	g.GET("/stats", h.stats, authMiddleware.RequirePermission(models.PermissionBooksRead))
}
