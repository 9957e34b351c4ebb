package opds

import (
	"github.com/codexlibris/codex/pkg/archive"
	"github.com/codexlibris/codex/pkg/auth"
	"github.com/codexlibris/codex/pkg/books"
	"github.com/codexlibris/codex/pkg/permissions"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers the OPDS routes. The whole surface sits behind
// Basic Auth because that is the only scheme e-reader clients speak,
// downloads included.
func RegisterRoutes(e *echo.Echo, db *bun.DB, permService *permissions.Service, authMiddleware *auth.Middleware) {
	h := &handler{
		opdsService:    NewService(db),
		bookService:    books.NewService(db),
		archiveService: archive.NewService(db),
		permissions:    permService,
	}

	g := e.Group("/opds")
	g.Use(authMiddleware.BasicAuth)

	g.GET("", h.root)
	g.GET("/books", h.booksFeed)
	g.GET("/books/:id/download", h.download)
	g.GET("/books/:id/cover", h.cover)
	g.GET("/opensearch.xml", h.openSearch)
}
