package genres

import (
	"github.com/codexlibris/codex/pkg/auth"
	"github.com/codexlibris/codex/pkg/books"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/permissions"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers genre rollup routes on a pre-configured
// group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, permService *permissions.Service, authMiddleware *auth.Middleware) {
	h := &handler{
		genreService: NewService(db),
		bookService:  books.NewService(db),
		permissions:  permService,
	}

	g.GET("", h.list, authMiddleware.RequirePermission(models.PermissionGenresRead))
	g.GET("/:id", h.retrieve, authMiddleware.RequirePermission(models.PermissionGenresRead))
}
