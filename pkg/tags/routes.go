package tags

import (
	"github.com/codexlibris/codex/pkg/auth"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers tag catalog routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB) {
	h := &handler{
		tagService: NewService(db),
	}

	g.GET("", h.listTags)
	g.GET("/:category", h.listTagsByCategory)
}

// RegisterBookRoutesWithGroup registers tag management routes on the books
// group. Mutations require books.write; reading a book's tags only requires
// being signed in, which the group middleware already enforces.
func RegisterBookRoutesWithGroup(g *echo.Group, db *bun.DB, authMiddleware *auth.Middleware) {
	h := &handler{
		tagService: NewService(db),
	}

	g.GET("/:id/tags", h.listBookTags)
	g.POST("/:id/tags", h.attachTag, authMiddleware.RequirePermission(models.PermissionBooksWrite))
	g.DELETE("/:id/tags/:name", h.detachTag, authMiddleware.RequirePermission(models.PermissionBooksWrite))
}
