package books

import (
	"github.com/codexlibris/codex/pkg/archive"
	"github.com/codexlibris/codex/pkg/auth"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/permissions"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers catalog routes on a pre-configured group.
// Browsing and reading require books.read; editing metadata requires
// books.write.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, permService *permissions.Service, authMiddleware *auth.Middleware) {
	h := &handler{
		bookService:    NewService(db),
		archiveService: archive.NewService(db),
		permissions:    permService,
	}

	g.GET("", h.list, authMiddleware.RequirePermission(models.PermissionBooksRead))
	g.GET("/:id", h.retrieve, authMiddleware.RequirePermission(models.PermissionBooksRead))
	g.PUT("/:id", h.update, authMiddleware.RequirePermission(models.PermissionBooksWrite))
	g.GET("/:id/stream", h.stream, authMiddleware.RequirePermission(models.PermissionBooksRead))
	g.HEAD("/:id/stream", h.stream, authMiddleware.RequirePermission(models.PermissionBooksRead))
	g.GET("/:id/cover", h.cover, authMiddleware.RequirePermission(models.PermissionBooksRead))
}
